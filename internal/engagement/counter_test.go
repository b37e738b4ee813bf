package engagement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/store"
)

func TestWindowStart(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	// Wednesday 2026-10-14 01:30 in Tokyo, still Tuesday in UTC
	now := time.Date(2026, 10, 13, 16, 30, 0, 0, time.UTC)

	require.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, tokyo), engagement.WindowToday.Start(now, tokyo))
	require.Equal(t, time.Date(2026, 10, 11, 0, 0, 0, 0, tokyo), engagement.WindowWeek.Start(now, tokyo))
	require.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, tokyo), engagement.WindowMonth.Start(now, tokyo))
	require.True(t, engagement.WindowTotal.Start(now, tokyo).IsZero())

	require.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), engagement.WindowToday.Start(now, time.UTC))
}

func TestParseWindow(t *testing.T) {
	w, err := engagement.ParseWindow("")
	require.NoError(t, err)
	require.Equal(t, engagement.WindowTotal, w)
	_, err = engagement.ParseWindow("year")
	require.Error(t, err)
}

func TestCountWindowsAndDistinctLogins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	svc := engagement.NewService(s, nil, time.UTC)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) // Thursday
	clock := now

	svc.SetClock(func() time.Time { return clock })
	login := func(uid string, at time.Time) {
		clock = at
		require.NoError(t, svc.RecordLogin(ctx, engagement.Actor{UID: uid, Kind: models.KindOrganization}))
	}
	login("a", now.Add(-1*time.Hour))
	login("a", now.Add(-2*time.Hour))
	login("b", now.Add(-3*time.Hour))
	login("c", now.AddDate(0, 0, -3)) // Monday this week
	login("d", now.AddDate(0, 0, -10))
	login("e", now.AddDate(0, -2, 0))
	clock = now

	count := func(w engagement.Window) int {
		n, err := svc.Count(ctx, engagement.Counter{Kind: models.EngageLogin, Window: w})
		require.NoError(t, err)
		return n
	}
	require.Equal(t, 2, count(engagement.WindowToday))
	require.Equal(t, 3, count(engagement.WindowWeek))
	require.Equal(t, 4, count(engagement.WindowMonth))
	require.Equal(t, 5, count(engagement.WindowTotal))

	n, err := svc.Count(ctx, engagement.Counter{Kind: models.EngageLogin, UID: "a", Window: engagement.WindowToday})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
