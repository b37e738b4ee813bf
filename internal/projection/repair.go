package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/matchbase/marketplace/internal/oplog"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// RepairResult summarizes one Repair pass.
type RepairResult struct {
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// Repair re-derives projection records named by unresolved oplog entries from
// the authoritative store. Records whose authoritative document is gone or
// soft-deleted are removed from the projection. Entries are resolved one
// by one; a failing entry stays pending for the next pass.
func (w *Writer) Repair(ctx context.Context, limit int) (RepairResult, error) {
	var res RepairResult
	if w.log == nil {
		return res, nil
	}
	pending, err := w.log.Pending(ctx, oplog.KindProjection, limit)
	if err != nil {
		return res, fmt.Errorf("load pending repairs: %w", err)
	}
	for _, e := range pending {
		if err := w.repairOne(ctx, e.Index, e.ObjectID); err != nil {
			res.Failed++
			metrics.BestEffort("projection.repair", err, "index", e.Index, "objectID", e.ObjectID)
			continue
		}
		if err := w.log.Resolve(ctx, e.ID); err != nil {
			res.Failed++
			metrics.BestEffort("oplog.resolve", err, "id", e.ID)
			continue
		}
		res.Repaired++
	}
	return res, nil
}

func (w *Writer) repairOne(ctx context.Context, collection, id string) error {
	doc, err := w.store.Get(ctx, collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return w.search.DeleteObject(ctx, collection, id)
	}
	if err != nil {
		return err
	}
	if status, _ := doc["status"].(string); status == "deleted" {
		return w.search.DeleteObject(ctx, collection, id)
	}
	hit, _ := w.Project(collection, id, doc)
	return w.search.PartialUpdateObject(ctx, collection, hit, true)
}

// Resync rewrites the projection record of one document from the
// authoritative store.
func (w *Writer) Resync(ctx context.Context, collection, id string) error {
	if !w.schema.Projected(collection) {
		return nil
	}
	return w.repairOne(ctx, collection, id)
}
