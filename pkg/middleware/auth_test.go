package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken":
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	case "admintoken":
		return &fakeToken{data: map[string]interface{}{"sub": "ops", "scope": "read admin"}}, nil
	case "nosub":
		return &fakeToken{data: map[string]interface{}{"email": "x@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, uid string) (bool, error) {
	return f.revoked[uid], f.err
}

func serve(t *testing.T, header string, handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.String(http.StatusOK, Subject(c)) })
	g.GET("/", handlers...)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	rw := serve(t, "", AuthMiddleware(&fakeVerifier{}, nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.JSONEq(t, `{"error":{"kind":"unauthenticated","message":"missing Authorization header","origin":"auth"}}`, rw.Body.String())
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serve(t, "BadHeader", AuthMiddleware(&fakeVerifier{}, nil)).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, "Bearer ", AuthMiddleware(&fakeVerifier{}, nil)).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, "Bearer forged", AuthMiddleware(&fakeVerifier{}, nil)).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, "Bearer nosub", AuthMiddleware(&fakeVerifier{}, nil)).Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serve(t, "Bearer goodtoken", AuthMiddleware(&fakeVerifier{}, nil))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "user1", rw.Body.String())
}

func TestAuthMiddleware_RejectsRevokedSubject(t *testing.T) {
	rev := &fakeRevocations{revoked: map[string]bool{"user1": true}}
	rw := serve(t, "Bearer goodtoken", AuthMiddleware(&fakeVerifier{}, rev))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "disabled")
}

func TestAuthMiddleware_RevocationStoreDown(t *testing.T) {
	rev := &fakeRevocations{err: errors.New("connection refused")}
	rw := serve(t, "Bearer goodtoken", AuthMiddleware(&fakeVerifier{}, rev))
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequireScope(t *testing.T) {
	auth := AuthMiddleware(&fakeVerifier{}, nil)
	require.Equal(t, http.StatusForbidden, serve(t, "Bearer goodtoken", auth, RequireScope(ScopeAdmin)).Code)

	rw := serve(t, "Bearer admintoken", auth, RequireScope(ScopeAdmin))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "ops", rw.Body.String())
}

func TestHasScope(t *testing.T) {
	require.True(t, hasScope("admin", "admin"))
	require.True(t, hasScope([]interface{}{"read", "admin"}, "admin"))
	require.False(t, hasScope("administrator", "admin"))
	require.False(t, hasScope(nil, "admin"))
}
