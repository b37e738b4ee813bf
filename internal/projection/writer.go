// Package projection applies logical writes to both stores: the authoritative
// document store first, then the whitelisted partial update of the search
// projection.
package projection

import (
	"context"
	"fmt"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/oplog"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// Mutation is one logical edit of an entity.
type Mutation struct {
	Collection string
	ID         string
	// Delta is merged into (or, without Merge, replaces) the authoritative
	// document. Projected nested values must be complete: the projection
	// replaces them wholesale.
	Delta store.Doc
	Merge bool
	// CreateIfNotExists creates the projection record when it is missing.
	CreateIfNotExists bool
}

type Writer struct {
	store  store.DocumentStore
	search search.Projection
	schema Schema
	log    *oplog.Log
}

func NewWriter(s store.DocumentStore, p search.Projection, schema Schema, log *oplog.Log) *Writer {
	return &Writer{store: s, search: p, schema: schema, log: log}
}

// Schema returns the projection whitelist in use.
func (w *Writer) Schema() Schema { return w.schema }

// Project picks the projected fields out of doc. The second result is false
// when doc touches no projected field.
func (w *Writer) Project(collection, id string, doc store.Doc) (search.Hit, bool) {
	hit := search.Hit{"objectID": id}
	touched := false
	for _, f := range w.schema.Fields(collection) {
		v, ok := store.Lookup(doc, f.Path)
		if !ok {
			continue
		}
		hit[f.Name] = plain(v)
		touched = true
	}
	return hit, touched
}

// Apply writes m to the authoritative store and then to the projection.
// A failed projection write leaves the authoritative write in place, records
// an unresolved oplog entry for Repair and returns DataLoss tagged with the
// search origin.
func (w *Writer) Apply(ctx context.Context, m Mutation) error {
	if err := w.store.Set(ctx, m.Collection, m.ID, m.Delta, store.SetOptions{Merge: m.Merge}); err != nil {
		metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginStore).Inc()
		return apperr.DataLoss(apperr.OriginStore, "failed to save", fmt.Errorf("set %s/%s: %w", m.Collection, m.ID, err))
	}
	if !w.schema.Projected(m.Collection) {
		return nil
	}
	hit, touched := w.Project(m.Collection, m.ID, m.Delta)
	if !touched && !m.CreateIfNotExists {
		return nil
	}
	if err := w.search.PartialUpdateObject(ctx, m.Collection, hit, m.CreateIfNotExists); err != nil {
		return w.projectionFailed(ctx, m.Collection, m.ID, "partial update", err)
	}
	return nil
}

// Remove deletes the projection record of id. With hardDelete the
// authoritative document is deleted first; otherwise it is left as is (soft
// deletes write their state through Apply beforehand).
func (w *Writer) Remove(ctx context.Context, collection, id string, hardDelete bool) error {
	if hardDelete {
		if err := w.store.Delete(ctx, collection, id); err != nil {
			metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginStore).Inc()
			return apperr.DataLoss(apperr.OriginStore, "failed to delete", fmt.Errorf("delete %s/%s: %w", collection, id, err))
		}
	}
	if !w.schema.Projected(collection) {
		return nil
	}
	if err := w.search.DeleteObject(ctx, collection, id); err != nil {
		return w.projectionFailed(ctx, collection, id, "delete", err)
	}
	return nil
}

func (w *Writer) projectionFailed(ctx context.Context, collection, id, op string, cause error) error {
	metrics.ProjectionWriteFailures.WithLabelValues(apperr.OriginSearch).Inc()
	logger.Errorw("projection write failed after authoritative write", "op", op, "index", collection, "objectID", id, "err", cause)
	if w.log != nil {
		if _, err := w.log.Record(ctx, oplog.KindProjection, collection, id, apperr.OriginSearch, fmt.Sprintf("%s: %v", op, cause)); err != nil {
			metrics.BestEffort("oplog.record", err, "index", collection, "objectID", id)
		}
	}
	return apperr.DataLoss(apperr.OriginSearch, "saved, but search results may be out of date", cause)
}

// plain converts store documents into JSON-like maps for the projection.
func plain(v any) any {
	switch t := v.(type) {
	case store.Doc:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = plain(x)
		}
		return out
	case map[string]any:
		return plain(store.Doc(t))
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	}
	return v
}
