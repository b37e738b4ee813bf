package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/internal/apperr"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err  error
		code int
		body string
	}{
		{apperr.Forbidden(apperr.OriginLimit, "limit reached"), http.StatusForbidden,
			`{"error":{"kind":"forbidden","message":"limit reached","origin":"limit"}}`},
		{fmt.Errorf("create: %w", apperr.DataLoss(apperr.OriginSearch, "saved, but search results may be out of date", errors.New("timeout"))), http.StatusInternalServerError,
			`{"error":{"kind":"data-loss","message":"saved, but search results may be out of date","origin":"meilisearch"}}`},
		{errors.New("mongo: connection reset by peer 10.0.0.3"), http.StatusInternalServerError,
			`{"error":{"kind":"internal","message":"internal error","origin":""}}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, tc.err)
		require.Equal(t, tc.code, w.Code)
		require.JSONEq(t, tc.body, w.Body.String())
	}
}

func TestPageParam(t *testing.T) {
	for q, want := range map[string]int{"": 0, "?page=3": 3, "?page=-1": 0, "?page=x": 0} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+q, nil)
		require.Equal(t, want, pageParam(c), q)
	}
}
