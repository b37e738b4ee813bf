package projection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/oplog"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
	fixtures "github.com/matchbase/marketplace/internal/testutil"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// projected fields must equal the authoritative values after every write.
func requireParity(t *testing.T, env *fixtures.Env, collection, id string) {
	t.Helper()
	ctx := context.Background()
	doc, err := env.Store.Get(ctx, collection, id)
	require.NoError(t, err)
	hit, err := env.Projection.GetObject(ctx, collection, id)
	require.NoError(t, err)
	want, _ := env.Writer.Project(collection, id, doc)
	for k, v := range want {
		require.EqualValues(t, normalizeNumbers(v), normalizeNumbers(hit[k]), "field %s", k)
	}
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case map[string]any:
		out := map[string]any{}
		for k, x := range t {
			out[k] = normalizeNumbers(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalizeNumbers(x)
		}
		return out
	}
	return v
}

func TestApplyKeepsProjectedFieldsInParity(t *testing.T) {
	env := fixtures.NewEnv()
	ctx := context.Background()
	env.PutListing(t, fixtures.Opportunity("L1", "A"))
	requireParity(t, env, "matters", "L1")

	costs, err := store.Encode(models.Costs{Min: 500000, Max: 900000, Display: models.VisibilityPublic}.WithMid())
	require.NoError(t, err)
	require.NoError(t, env.Writer.Apply(ctx, projection.Mutation{
		Collection: "matters", ID: "L1", Merge: true,
		Delta: store.Doc{"title": "Renamed", "costs": costs, "memo": "changed"},
	}))
	requireParity(t, env, "matters", "L1")

	hit := env.Hit(t, "matters", "L1")
	require.Equal(t, "Renamed", hit.String("title"))
	require.NotContains(t, hit, "memo")
	require.NotContains(t, hit, "body")
}

func TestAccountProfileIsFlattened(t *testing.T) {
	env := fixtures.NewEnv()
	env.PutAccount(t, fixtures.Org("A"))
	requireParity(t, env, "companys", "A")

	hit := env.Hit(t, "companys", "A")
	require.Equal(t, "Acme A", hit.String("name"))
	require.Equal(t, models.VisibilityPublic, hit.String("visibility"))
	for _, hidden := range []string{"email", "tel", "payment", "agree", "posts", "profile"} {
		require.NotContains(t, hit, hidden)
	}
}

func TestApplyNonProjectedDeltaSkipsProjection(t *testing.T) {
	env := fixtures.NewEnv()
	ctx := context.Background()
	env.PutListing(t, fixtures.Opportunity("L1", "A"))
	env.Projection.FailWrites("matters", errors.New("should not be called"))

	require.NoError(t, env.Writer.Apply(ctx, projection.Mutation{
		Collection: "matters", ID: "L1", Merge: true, Delta: store.Doc{"memo": "private"},
	}))
}

func TestStoreFailureIsDataLossFromStore(t *testing.T) {
	env := fixtures.NewEnv()
	ctx := context.Background()
	env.Store.FailWrites("matters", errors.New("write concern"))
	before := testutil.ToFloat64(metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginStore))

	err := env.Writer.Apply(ctx, projection.Mutation{
		Collection: "matters", ID: "L1", Delta: store.Doc{"title": "x"}, CreateIfNotExists: true,
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindDataLoss, e.Kind)
	require.Equal(t, apperr.OriginStore, e.Origin)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginStore)))

	_, err = env.Projection.GetObject(ctx, "matters", "L1")
	require.ErrorIs(t, err, search.ErrNotFound)
}

func TestProjectionFailureKeepsStoreWriteAndRepairs(t *testing.T) {
	env := fixtures.NewEnv()
	ctx := context.Background()
	env.PutListing(t, fixtures.Opportunity("L1", "A"))
	env.Projection.FailWrites("matters", errors.New("meili down"))
	before := testutil.ToFloat64(metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginSearch))

	err := env.Writer.Apply(ctx, projection.Mutation{
		Collection: "matters", ID: "L1", Merge: true, Delta: store.Doc{"title": "New title"},
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindDataLoss, e.Kind)
	require.Equal(t, apperr.OriginSearch, e.Origin)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginSearch)))

	doc, err := env.Store.Get(ctx, "matters", "L1")
	require.NoError(t, err)
	require.Equal(t, "New title", doc["title"])
	require.NotEqual(t, "New title", env.Hit(t, "matters", "L1").String("title"))

	pending, err := env.Log.Pending(ctx, oplog.KindProjection, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "L1", pending[0].ObjectID)

	// still failing: the entry stays pending
	res, err := env.Writer.Repair(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, projection.RepairResult{Failed: 1}, res)

	env.Projection.FailWrites("matters", nil)
	res, err = env.Writer.Repair(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, projection.RepairResult{Repaired: 1}, res)
	requireParity(t, env, "matters", "L1")

	pending, err = env.Log.Pending(ctx, oplog.KindProjection, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRepairRemovesDeletedRecords(t *testing.T) {
	env := fixtures.NewEnv()
	ctx := context.Background()
	env.PutListing(t, fixtures.Opportunity("L1", "A"))
	_, err := env.Log.Record(ctx, oplog.KindProjection, "matters", "L1", apperr.OriginSearch, "delete: timeout")
	require.NoError(t, err)
	require.NoError(t, env.Store.Set(ctx, "matters", "L1", store.Doc{"status": models.ListingStatusDeleted}, store.SetOptions{Merge: true}))

	res, err := env.Writer.Repair(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.Repaired)
	_, err = env.Projection.GetObject(ctx, "matters", "L1")
	require.ErrorIs(t, err, search.ErrNotFound)
}

func TestRemove(t *testing.T) {
	env := fixtures.NewEnv()
	ctx := context.Background()
	env.PutAccount(t, fixtures.Org("A"))

	require.NoError(t, env.Writer.Remove(ctx, "companys", "A", true))
	_, err := env.Store.Get(ctx, "companys", "A")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.Projection.GetObject(ctx, "companys", "A")
	require.ErrorIs(t, err, search.ErrNotFound)
}
