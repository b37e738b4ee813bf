package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matchbase/marketplace/pkg/metrics"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey  = "claims"
	SubjectKey = "sub"
)

// ScopeAdmin is the scope claim carried by service tokens for the admin API.
const ScopeAdmin = "admin"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports whether the tokens of uid have been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, uid string) (bool, error)
}

func abort(c *gin.Context, status int, kind, message, origin string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"kind": kind, "message": message, "origin": origin}})
}

func unauthenticated(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, "unauthenticated", message, "auth")
}

// AuthMiddleware verifies the Bearer token, rejects revoked subjects and
// stores the claims and the subject on the context. revoked may be nil.
func AuthMiddleware(ver Verifier, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			unauthenticated(c, "missing Authorization header")
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			unauthenticated(c, "invalid Authorization header")
			return
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			unauthenticated(c, "invalid token")
			return
		}
		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			unauthenticated(c, "failed to parse claims")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			unauthenticated(c, "token has no subject")
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), sub)
			// an unreachable revocation store lets the request through
			metrics.BestEffort("auth.revocation", err, "sub", sub)
			if err == nil && isRevoked {
				unauthenticated(c, "this account has been disabled")
				return
			}
		}

		c.Set(ClaimsKey, claims)
		c.Set(SubjectKey, sub)
		c.Next()
	}
}

// RequireScope admits requests whose claims carry scope, either as a string
// or as one of a list of strings. It must run after AuthMiddleware.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ClaimsKey)
		claims, _ := v.(map[string]interface{})
		if !hasScope(claims["scope"], scope) {
			abort(c, http.StatusForbidden, "forbidden", "insufficient scope", "auth")
			return
		}
		c.Next()
	}
}

func hasScope(v interface{}, scope string) bool {
	switch t := v.(type) {
	case string:
		for _, s := range strings.Fields(t) {
			if s == scope {
				return true
			}
		}
	case []interface{}:
		for _, x := range t {
			if s, ok := x.(string); ok && s == scope {
				return true
			}
		}
	}
	return false
}

// Subject returns the authenticated subject set by AuthMiddleware.
func Subject(c *gin.Context) string {
	return c.GetString(SubjectKey)
}

// limitKey prefers the authenticated subject, falling back to the client IP.
func limitKey(c *gin.Context) string {
	if sub := Subject(c); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
