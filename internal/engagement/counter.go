package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// Window bounds a count in the configured timezone, aligned to midnight.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowTotal Window = "total"
)

func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case WindowToday, WindowWeek, WindowMonth, WindowTotal:
		return Window(s), nil
	case "":
		return WindowTotal, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Start returns the inclusive lower bound of w at now, or the zero time for
// WindowTotal. Weeks start on Sunday.
func (w Window) Start(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch w {
	case WindowToday:
		return midnight
	case WindowWeek:
		return midnight.AddDate(0, 0, -int(midnight.Weekday()))
	case WindowMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
	return time.Time{}
}

// Counter selects the records to count. Index/ObjectID select the target,
// UID the actor; empty fields are unconstrained.
type Counter struct {
	Kind     models.EngagementKind
	Index    string
	ObjectID string
	UID      string
	Window   Window
}

// Count counts active records matching c. Login counts are distinct by actor;
// every other kind counts each active record. A history record carries the
// time of the viewer's latest visit.
func (s *Service) Count(ctx context.Context, c Counter) (int, error) {
	where := []store.Where{
		{Field: "kind", Op: store.OpEq, Value: string(c.Kind)},
		{Field: "active", Op: store.OpEq, Value: true},
	}
	if c.Index != "" {
		where = append(where, store.Where{Field: "index", Op: store.OpEq, Value: c.Index})
	}
	if c.ObjectID != "" {
		where = append(where, store.Where{Field: "objectID", Op: store.OpEq, Value: c.ObjectID})
	}
	if c.UID != "" {
		where = append(where, store.Where{Field: "uid", Op: store.OpEq, Value: c.UID})
	}
	if start := c.Window.Start(s.now(), s.loc); !start.IsZero() {
		where = append(where, store.Where{Field: "at", Op: store.OpGte, Value: start.UnixMilli()})
	}
	docs, err := s.store.Query(ctx, Collection, store.Query{Where: where})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.Kind, err)
	}
	if !c.Kind.Distinct() {
		return len(docs), nil
	}
	actors := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		uid, _ := d["uid"].(string)
		actors[uid] = struct{}{}
	}
	return len(actors), nil
}

// Counts computes several total counters for one target concurrently. A
// failing counter is logged and reported as zero; it never fails the others.
func (s *Service) Counts(ctx context.Context, index, objectID string, kinds ...models.EngagementKind) map[models.EngagementKind]int {
	out := make(map[models.EngagementKind]int, len(kinds))
	var mu sync.Mutex
	var g errgroup.Group
	for _, k := range kinds {
		k := k
		g.Go(func() error {
			n, err := s.Count(ctx, Counter{Kind: k, Index: index, ObjectID: objectID, Window: WindowTotal})
			if err != nil {
				metrics.BestEffort("engagement.count", err, "kind", k, "index", index, "objectID", objectID)
			}
			mu.Lock()
			out[k] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
