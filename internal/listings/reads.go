package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/internal/view"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// Query narrows a listing search. Empty fields are unconstrained.
type Query struct {
	Text     string
	Handles  []string
	Location string
	Remote   string
	Position string
	UID      string
	Page     int
}

func (q Query) filter() search.Filter {
	terms := []search.Filter{
		search.Eq("display", models.VisibilityPublic),
		search.Not(search.Eq("status", models.ListingStatusDeleted)),
	}
	for _, h := range q.Handles {
		terms = append(terms, search.Eq("handles", h))
	}
	for field, v := range map[string]string{"location": q.Location, "remote": q.Remote, "position": q.Position, "uid": q.UID} {
		if v != "" {
			terms = append(terms, search.Eq(field, v))
		}
	}
	return search.And(terms...)
}

func viewKind(kind models.ListingKind) view.Kind {
	if kind == models.KindCandidate {
		return view.KindCandidate
	}
	return view.KindOpportunity
}

// Search lists public listings. Listings whose owner is disqualified are
// dropped by the materializer.
func (s *Service) Search(ctx context.Context, c gate.Caller, index string, q Query) ([]view.View, view.Page, error) {
	kind, err := kindOf(index)
	if err != nil {
		return nil, view.Page{}, err
	}
	grant, err := s.gate.Check(ctx, c, gate.Read)
	if err != nil {
		return nil, view.Page{}, err
	}
	res, err := s.search.Search(ctx, string(kind), q.Text, search.Options{Filter: q.filter(), Page: q.Page, HitsPerPage: s.pageSize})
	if err != nil {
		return nil, view.Page{}, fmt.Errorf("search %s: %w", kind, err)
	}
	views, err := s.views.Materialize(ctx, view.Request{Kind: viewKind(kind), Hits: res.Hits, Viewer: view.ViewerOf(grant), Mode: view.ModeList})
	if err != nil {
		return nil, view.Page{}, err
	}
	return views, view.PageOf(q.Page, res), nil
}

// Get returns the detail view of one listing. Private listings are only
// visible to their owner. A view by someone other than the owner is recorded
// as history.
func (s *Service) Get(ctx context.Context, c gate.Caller, index, id string) (view.View, error) {
	kind, err := kindOf(index)
	if err != nil {
		return nil, err
	}
	grant, err := s.gate.Check(ctx, c, gate.Read)
	if err != nil {
		return nil, err
	}
	l, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	isOwner := l.UID == c.UID
	if l.Display != models.VisibilityPublic && !isOwner {
		return nil, apperr.NotFound(apperr.OriginStore, "listing not found")
	}
	hit, err := s.search.GetObject(ctx, string(kind), id)
	if err != nil {
		if !errors.Is(err, search.ErrNotFound) {
			return nil, fmt.Errorf("get %s/%s: %w", kind, id, err)
		}
		// projection lag: shape from the authoritative record
		doc, err := s.store.Get(ctx, string(kind), id)
		if err != nil {
			return nil, fmt.Errorf("load listing %s: %w", id, err)
		}
		hit, _ = s.writer.Project(string(kind), id, doc)
	}
	views, err := s.views.Materialize(ctx, view.Request{Kind: viewKind(kind), Hits: []search.Hit{hit}, Viewer: view.ViewerOf(grant), Mode: view.ModeDetail})
	if err != nil {
		return nil, err
	}
	if !isOwner {
		_, err := s.engagement.Add(ctx, engagement.Actor{UID: c.UID, Kind: c.Kind}, models.EngageHistory, string(kind), id)
		metrics.BestEffort("listings.history", err, "objectID", id)
	}
	return views[0], nil
}

// Batch returns page p of the given object ids in their original order, e.g.
// the caller's likes or posts. Ids that no longer resolve, or that are
// private and not the caller's, are skipped.
func (s *Service) Batch(ctx context.Context, c gate.Caller, index string, ids []string, page int) ([]view.View, view.Page, error) {
	kind, err := kindOf(index)
	if err != nil {
		return nil, view.Page{}, err
	}
	grant, err := s.gate.Check(ctx, c, gate.Read)
	if err != nil {
		return nil, view.Page{}, err
	}
	slice, meta := view.Paginate(ids, page, s.pageSize)
	if len(slice) == 0 {
		return []view.View{}, meta, nil
	}
	hits, err := s.search.GetObjects(ctx, string(kind), slice)
	if err != nil {
		return nil, view.Page{}, fmt.Errorf("get %s: %w", kind, err)
	}
	visible := make([]search.Hit, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			continue
		}
		if h.String("display") != models.VisibilityPublic && h.String("uid") != c.UID {
			continue
		}
		visible = append(visible, h)
	}
	views, err := s.views.Materialize(ctx, view.Request{Kind: viewKind(kind), Hits: visible, Viewer: view.ViewerOf(grant), Mode: view.ModeList})
	if err != nil {
		return nil, view.Page{}, err
	}
	return views, meta, nil
}

// Owned returns the caller's own posts of index, read from the
// authoritative posts list.
func (s *Service) Owned(ctx context.Context, c gate.Caller, index string, page int) ([]view.View, view.Page, error) {
	return s.listed(ctx, c, "posts."+index, index, page)
}

// Liked returns the listings of index the caller has liked.
func (s *Service) Liked(ctx context.Context, c gate.Caller, index string, page int) ([]view.View, view.Page, error) {
	return s.listed(ctx, c, "likes."+index, index, page)
}

func (s *Service) listed(ctx context.Context, c gate.Caller, path, index string, page int) ([]view.View, view.Page, error) {
	if _, err := kindOf(index); err != nil {
		return nil, view.Page{}, err
	}
	doc, err := s.store.Get(ctx, string(c.Kind), c.UID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, view.Page{}, apperr.NotFound(apperr.OriginStore, "account not found")
	}
	if err != nil {
		return nil, view.Page{}, err
	}
	return s.Batch(ctx, c, index, store.Strings(doc, path), page)
}
