package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/handlers"
	"github.com/matchbase/marketplace/internal/accounts"
	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/listings"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/reconcile"
	"github.com/matchbase/marketplace/internal/storage"
	"github.com/matchbase/marketplace/internal/testutil"
	"github.com/matchbase/marketplace/internal/view"
	"github.com/matchbase/marketplace/pkg/middleware"
)

// claimsToken and rawVerifier treat the bearer value as the subject; an
// "admin:" prefix adds the admin scope.
type claimsToken map[string]interface{}

func (t claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type rawVerifier struct{}

func (rawVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	if sub, ok := strings.CutPrefix(raw, "admin:"); ok {
		return claimsToken{"sub": sub, "scope": "admin"}, nil
	}
	if raw == "invalid" {
		return nil, errors.New("bad signature")
	}
	return claimsToken{"sub": raw}, nil
}

type server struct {
	env    *testutil.Env
	engine *gin.Engine
	files  *storage.MemoryStorage
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := testutil.NewEnv()
	eng := engagement.NewService(env.Store, nil, time.UTC)
	g := gate.New(env.Store, "demo")
	views := view.New(env.Store, eng)
	files := storage.NewMemoryStorage()
	acc := accounts.NewService(accounts.Deps{
		Store: env.Store, Search: env.Projection, Writer: env.Writer, Gate: g,
		Views: views, Engagement: eng, Files: files,
	})
	lst := listings.NewService(env.Store, env.Projection, env.Writer, g, views, eng, view.PageSize)

	r := gin.New()
	handlers.Router{
		Listings:    handlers.NewListingsHandler(lst),
		Accounts:    handlers.NewAccountsHandler(acc),
		Engagements: handlers.NewEngagementsHandler(g, eng),
		Admin:       handlers.NewAdminHandler(acc, reconcile.New(env.Store, env.Projection, 2), env.Writer, env.Log, eng),
		Auth:        middleware.AuthMiddleware(rawVerifier{}, nil),
		AdminAuth:   middleware.AuthMiddleware(rawVerifier{}, nil),
	}.Register(r)
	return &server{env: env, engine: r, files: files}
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSubscriptionLapseOverHTTP(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Org("A"))
	s.env.PutAccount(t, testutil.Person("B"))

	w := s.do(t, http.MethodPost, "/api/v1/companys/listings/matters", "A", map[string]interface{}{
		"title": "Go engineer", "body": "Payments platform",
		"costs": map[string]interface{}{"min": 600000, "max": 800000, "display": "public"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["post"].(map[string]interface{})["objectID"].(string)

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/matters", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	posts := out["posts"].([]interface{})
	require.Len(t, posts, 1)
	require.Equal(t, id, posts[0].(map[string]interface{})["objectID"])
	require.Equal(t, map[string]interface{}{"currentPage": 0.0, "posts": 1.0, "pages": 1.0}, out["hit"])

	w = s.do(t, http.MethodPost, "/api/v1/admin/subscriptions", "admin:ops", map[string]interface{}{"uid": "A", "status": "canceled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/matters", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode(t, w)["posts"])

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/matters/"+id, "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	post := decode(t, w)["post"].(map[string]interface{})
	assert.Equal(t, true, post["placeholder"])
	assert.NotContains(t, post, "costs")
	owner := post["owner"].(map[string]interface{})
	assert.Equal(t, view.PlaceholderName, owner["name"])
	assert.NotContains(t, owner, "email")
}

func TestErrorBodies(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Person("B"))

	w := s.do(t, http.MethodGet, "/api/v1/persons/listings/matters", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/matters", "invalid", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/widgets", "B", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":{"kind":"invalid-argument","message":"unknown index","origin":"objectID"}}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/persons/listings/matters", "B", map[string]interface{}{"title": "x"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/matters/missing", "B", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not-found", decode(t, w)["error"].(map[string]interface{})["kind"])

	w = s.do(t, http.MethodGet, "/api/v1/persons/me", "nobody", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRequiresScope(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Org("A"))

	w := s.do(t, http.MethodPost, "/api/v1/admin/reconcile/A", "A", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/reconcile/A", "admin:ops", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "A", decode(t, w)["report"].(map[string]interface{})["uid"])

	w = s.do(t, http.MethodPost, "/api/v1/admin/reconcile/ghost", "admin:ops", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/admin/repair", "admin:ops", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/logs", "admin:ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode(t, w)["logs"])
}

func TestModerationRevokesAccess(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Person("B"))

	w := s.do(t, http.MethodPost, "/api/v1/admin/accounts/persons/B/status", "admin:ops", map[string]string{"status": "disable"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/persons/listings/matters", "B", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "status", decode(t, w)["error"].(map[string]interface{})["origin"])

	w = s.do(t, http.MethodPost, "/api/v1/admin/accounts/widgets/B/status", "admin:ops", map[string]string{"status": "enable"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLikeThenListLikes(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Org("A", func(a *models.Account) { a.Posts.Matters = []string{"L1"} }))
	s.env.PutAccount(t, testutil.Person("B"))
	s.env.PutListing(t, testutil.Opportunity("L1", "A"))

	w := s.do(t, http.MethodPost, "/api/v1/persons/engagements/like/matters/L1", "B", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, true, decode(t, w)["changed"])

	w = s.do(t, http.MethodPost, "/api/v1/persons/engagements/like/companys/A", "B", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/persons/me/likes/matters", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decode(t, w)["posts"].([]interface{})
	require.Len(t, posts, 1)
	require.Equal(t, "L1", posts[0].(map[string]interface{})["objectID"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/counters?kind=like&index=matters&objectID=L1", "admin:ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1.0, decode(t, w)["count"])

	w = s.do(t, http.MethodDelete, "/api/v1/persons/engagements/like/matters/L1", "B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decode(t, w)["changed"])
}

func TestRequestAndRespond(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Org("A"))
	s.env.PutAccount(t, testutil.Person("B"))

	w := s.do(t, http.MethodPost, "/api/v1/persons/requests/A", "B", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/persons/requests/nobody", "B", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/companys/requests/B", "A", map[string]string{"status": "enable"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, "/api/v1/companys/requests/B", "A", map[string]string{"status": "disable"})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestLapsedOrgCannotEngage(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Org("lapsed", testutil.Canceled))
	s.env.PutAccount(t, testutil.Org("acme"))
	s.env.PutAccount(t, testutil.Person("p1", func(a *models.Account) { a.Posts.Resources = []string{"R1", "R2"} }))
	s.env.PutListing(t, testutil.Candidate("R1", "p1"))
	s.env.PutListing(t, testutil.Candidate("R2", "p1"))

	w := s.do(t, http.MethodPost, "/api/v1/companys/engagements/entry/resources/R1", "lapsed", nil)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/companys/requests/p1", "lapsed", nil)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/companys/engagements/entry/resources/R1", "acme", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/admin/subscriptions", "admin:ops", map[string]interface{}{"uid": "acme", "status": "canceled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/companys/engagements/entry/resources/R2", "acme", nil)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// withdrawing stays open after the lapse
	w = s.do(t, http.MethodDelete, "/api/v1/companys/engagements/entry/resources/R1", "acme", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, true, decode(t, w)["changed"])
}

func TestIconUploadAndRedirect(t *testing.T) {
	s := newServer(t)
	s.env.PutAccount(t, testutil.Org("A"))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="icon.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG icon"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/companys/me/icon", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer A")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "/api/v1/icons/companys/A", decode(t, w)["icon"])

	w = s.do(t, http.MethodGet, "/api/v1/icons/companys/A", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), "memory://icons/companys/A"))

	w = s.do(t, http.MethodGet, "/api/v1/icons/persons/nobody", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterAndMe(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/companys/me", "N", map[string]interface{}{"profile": map[string]string{"name": "Newco"}, "agree": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/companys/me", "N", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)["user"].(map[string]interface{})
	require.Equal(t, "Newco", me["name"])
	require.Equal(t, "hold", me["status"])

	// on hold until approved
	w = s.do(t, http.MethodGet, "/api/v1/companys/accounts/persons", "N", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/counters?kind=login&window=today", "admin:ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1.0, decode(t, w)["count"])
}
