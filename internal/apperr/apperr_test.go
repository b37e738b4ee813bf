package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsThroughWrapping(t *testing.T) {
	base := DataLoss(OriginSearch, "projection write failed", errors.New("timeout"))
	wrapped := fmt.Errorf("update listing: %w", base)

	e, ok := As(wrapped)
	require.True(t, ok)
	require.Equal(t, KindDataLoss, e.Kind)
	require.Equal(t, OriginSearch, e.Origin)
	require.True(t, IsKind(wrapped, KindDataLoss))
	require.False(t, IsKind(wrapped, KindNotFound))
	require.Contains(t, e.Error(), "timeout")
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, HTTPStatus(KindUnauthenticated))
	require.Equal(t, http.StatusForbidden, HTTPStatus(KindForbidden))
	require.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(KindInvalidArgument))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(KindDataLoss))
}
