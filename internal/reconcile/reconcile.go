// Package reconcile prunes stale foreign ids from the denormalized lists kept
// on accounts, using the search projection as the live view.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// KeepFunc reports whether a resolved projection record is still a valid
// reference.
type KeepFunc func(search.Hit) bool

// Target names one denormalized list: the ids stored at Field on the account
// document Collection/UID refer to records of the projection Index.
type Target struct {
	Collection string
	UID        string
	Field      string
	Index      string
	// Keep defaults to DefaultKeep(Index).
	Keep KeepFunc
}

// NotDeleted keeps listings that have not been soft-deleted.
func NotDeleted(h search.Hit) bool {
	return h.String("status") != models.ListingStatusDeleted
}

// PublicListing keeps listings other accounts may still see.
func PublicListing(h search.Hit) bool {
	return NotDeleted(h) && h.String("display") == models.VisibilityPublic
}

// EnabledAccount keeps accounts that are not on hold or disabled.
func EnabledAccount(h search.Hit) bool {
	return h.String("status") == string(models.StatusEnable)
}

// DefaultKeep is the status filter of a projection index.
func DefaultKeep(index string) KeepFunc {
	switch index {
	case string(models.KindOrganization), string(models.KindIndividual):
		return EnabledAccount
	}
	return PublicListing
}

// Key is a registered denormalized list.
type Key struct {
	Field string
	Index func(owner models.AccountKind) string
	Keep  KeepFunc
}

func fixed(index string) func(models.AccountKind) string {
	return func(models.AccountKind) string { return index }
}

// Keys are reconciled by ReconcileAccount. An owner's own posts keep private
// listings; liked listings must still be public. Follows point at the other
// account kind.
var Keys = []Key{
	{Field: "posts.matters", Index: fixed("matters"), Keep: NotDeleted},
	{Field: "posts.resources", Index: fixed("resources"), Keep: NotDeleted},
	{Field: "likes.matters", Index: fixed("matters"), Keep: PublicListing},
	{Field: "likes.resources", Index: fixed("resources"), Keep: PublicListing},
	{Field: "follows", Index: followIndex, Keep: EnabledAccount},
}

func followIndex(owner models.AccountKind) string {
	if owner == models.KindIndividual {
		return string(models.KindOrganization)
	}
	return string(models.KindIndividual)
}

type Reconciler struct {
	store   store.DocumentStore
	search  search.Projection
	workers int
}

func New(s store.DocumentStore, p search.Projection, workers int) *Reconciler {
	if workers <= 0 {
		workers = 1
	}
	return &Reconciler{store: s, search: p, workers: workers}
}

// Reconcile returns the list at t.Field with every id dropped that no longer
// resolves in the projection or fails t.Keep. When ids were dropped the pruned
// list is merged back into the store; that write is best-effort.
func (r *Reconciler) Reconcile(ctx context.Context, t Target) ([]string, error) {
	doc, err := r.store.Get(ctx, t.Collection, t.UID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(apperr.OriginStore, "account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", t.Collection, t.UID, err)
	}
	ids := store.Strings(doc, t.Field)
	if len(ids) == 0 {
		return []string{}, nil
	}
	hits, err := r.search.GetObjects(ctx, t.Index, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve %s in %s: %w", t.Field, t.Index, err)
	}
	keep := t.Keep
	if keep == nil {
		keep = DefaultKeep(t.Index)
	}
	live := make([]string, 0, len(ids))
	for i, id := range ids {
		if i < len(hits) && hits[i] != nil && keep(hits[i]) {
			live = append(live, id)
		}
	}
	if pruned := len(ids) - len(live); pruned > 0 {
		vals := make([]any, len(live))
		for i, id := range live {
			vals[i] = id
		}
		err := r.store.Set(ctx, t.Collection, t.UID, store.Nest(t.Field, vals), store.SetOptions{Merge: true})
		if err != nil {
			metrics.BestEffort("reconcile.write", err, "uid", t.UID, "field", t.Field)
		} else {
			metrics.ReconcilePruned.WithLabelValues(t.Field).Add(float64(pruned))
		}
	}
	return live, nil
}

// Report maps each reconciled field to the number of ids it still holds; a
// field whose pass failed is absent and listed in Failed.
type Report struct {
	UID    string         `json:"uid"`
	Kept   map[string]int `json:"kept"`
	Failed []string       `json:"failed,omitempty"`
}

// ReconcileAccount runs every registered key of one account independently.
func (r *Reconciler) ReconcileAccount(ctx context.Context, kind models.AccountKind, uid string) (*Report, error) {
	if _, err := r.store.Get(ctx, string(kind), uid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(apperr.OriginStore, "account not found")
		}
		return nil, fmt.Errorf("load %s/%s: %w", kind, uid, err)
	}
	rep := &Report{UID: uid, Kept: map[string]int{}}
	for _, k := range Keys {
		live, err := r.Reconcile(ctx, Target{
			Collection: string(kind),
			UID:        uid,
			Field:      k.Field,
			Index:      k.Index(kind),
			Keep:       k.Keep,
		})
		if err != nil {
			metrics.BestEffort("reconcile.key", err, "uid", uid, "field", k.Field)
			rep.Failed = append(rep.Failed, k.Field)
			continue
		}
		rep.Kept[k.Field] = len(live)
	}
	return rep, nil
}

// Summary is the outcome of a ReconcileAll pass.
type Summary struct {
	Accounts int `json:"accounts"`
	Failed   int `json:"failed"`
}

// ReconcileAll reconciles every enabled account of both kinds with bounded
// concurrency. Per-account failures are counted, not returned.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Summary, error) {
	var (
		sum Summary
		mu  sync.Mutex
	)
	for _, kind := range []models.AccountKind{models.KindOrganization, models.KindIndividual} {
		docs, err := r.store.Query(ctx, string(kind), store.Query{
			Where: []store.Where{{Field: "status", Op: store.OpEq, Value: string(models.StatusEnable)}},
		})
		if err != nil {
			return sum, fmt.Errorf("list %s: %w", kind, err)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, d := range docs {
			uid, _ := d["uid"].(string)
			if uid == "" {
				continue
			}
			kind := kind
			g.Go(func() error {
				rep, err := r.ReconcileAccount(gctx, kind, uid)
				mu.Lock()
				defer mu.Unlock()
				sum.Accounts++
				if err != nil || len(rep.Failed) > 0 {
					sum.Failed++
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	logger.Infow("reconcile pass complete", "accounts", sum.Accounts, "failed", sum.Failed)
	return sum, nil
}
