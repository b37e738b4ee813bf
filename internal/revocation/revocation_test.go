package revocation

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRevokeExpires(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	s := New(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	require.NoError(t, s.Revoke(ctx, "c1", 2*time.Second))

	ok, err := s.IsRevoked(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(3 * time.Second)
	ok, err = s.IsRevoked(ctx, "c1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRestore(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	s := New(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	require.NoError(t, s.Revoke(ctx, "c1", time.Hour))
	require.NoError(t, s.Restore(ctx, "c1"))
	ok, err := s.IsRevoked(ctx, "c1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNoClientIsNoop(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	require.NoError(t, s.Revoke(ctx, "c1", time.Second))
	ok, err := s.IsRevoked(ctx, "c1")
	require.NoError(t, err)
	require.False(t, ok)
}
