package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterString(t *testing.T) {
	f := And(Eq("display", "public"), nil, Or(Eq("uid", "a"), In("location", "Tokyo", "Osaka")))
	require.Equal(t, `(display = "public") AND ((uid = "a") OR (location IN ["Tokyo", "Osaka"]))`, f.String())
	require.Equal(t, `NOT (status = "deleted")`, Not(Eq("status", "deleted")).String())
	require.Equal(t, "", And().String())
}

func TestFilterMatch(t *testing.T) {
	h := Hit{"display": "public", "handles": []any{"Go", "SQL"}, "costs": 10}
	require.True(t, Eq("handles", "Go").Match(h))
	require.False(t, Eq("handles", "Rust").Match(h))
	require.True(t, Eq("costs", 10.0).Match(h))
	require.True(t, And(Eq("display", "public"), Not(Eq("display", "private"))).Match(h))
	require.False(t, Or(Eq("display", "private"), Eq("missing", "x")).Match(h))
	require.True(t, And().Match(h))
}

func TestMemoryProjectionPartialUpdate(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProjection()

	require.NoError(t, p.PartialUpdateObject(ctx, "matters", Hit{"objectID": "x", "title": "t"}, false))
	_, err := p.GetObject(ctx, "matters", "x")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.PartialUpdateObject(ctx, "matters", Hit{"objectID": "x", "title": "t", "status": "new"}, true))
	require.NoError(t, p.PartialUpdateObject(ctx, "matters", Hit{"objectID": "x", "title": "t2"}, false))
	h, err := p.GetObject(ctx, "matters", "x")
	require.NoError(t, err)
	require.Equal(t, "t2", h.String("title"))
	require.Equal(t, "new", h.String("status"))
}

func TestMemoryProjectionSearchPaging(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProjection()
	for i := 0; i < 120; i++ {
		display := "public"
		if i%4 == 0 {
			display = "private"
		}
		require.NoError(t, p.PartialUpdateObject(ctx, "matters", Hit{
			"objectID": fmt.Sprintf("m%03d", i),
			"display":  display,
			"title":    "Go engineer",
			"createAt": int64(i),
		}, true))
	}

	res, err := p.Search(ctx, "matters", "", Options{Filter: Eq("display", "public")})
	require.NoError(t, err)
	require.Equal(t, 90, res.TotalHits)
	require.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Hits, 50)
	require.Equal(t, "m119", res.Hits[0].ObjectID())

	res, err = p.Search(ctx, "matters", "engineer", Options{Filter: Eq("display", "public"), Page: 1})
	require.NoError(t, err)
	require.Len(t, res.Hits, 40)

	res, err = p.Search(ctx, "matters", "rust", Options{})
	require.NoError(t, err)
	require.Zero(t, res.TotalHits)
	require.NotNil(t, res.Hits)
}

func TestMemoryProjectionGetObjectsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProjection()
	require.NoError(t, p.PartialUpdateObject(ctx, "companys", Hit{"objectID": "a"}, true))
	require.NoError(t, p.PartialUpdateObject(ctx, "companys", Hit{"objectID": "c"}, true))

	hits, err := p.GetObjects(ctx, "companys", []string{"c", "b", "a"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "c", hits[0].ObjectID())
	require.Nil(t, hits[1])
	require.Equal(t, "a", hits[2].ObjectID())
}

func TestMemoryProjectionFailWrites(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProjection()
	boom := errors.New("index unavailable")
	p.FailWrites("matters", boom)
	require.ErrorIs(t, p.PartialUpdateObject(ctx, "matters", Hit{"objectID": "x"}, true), boom)
	require.ErrorIs(t, p.DeleteObject(ctx, "matters", "x"), boom)
	p.FailWrites("matters", nil)
	require.NoError(t, p.DeleteObject(ctx, "matters", "x"))
}
