// Package listings implements the lifecycle and reads of opportunities and
// candidates.
package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/internal/view"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/metrics"
)

type Service struct {
	store      store.DocumentStore
	search     search.Projection
	writer     *projection.Writer
	gate       *gate.Gate
	views      *view.Materializer
	engagement *engagement.Service
	pageSize   int
	now        func() time.Time
	newID      func() string
}

func NewService(s store.DocumentStore, p search.Projection, w *projection.Writer, g *gate.Gate, v *view.Materializer, e *engagement.Service, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = view.PageSize
	}
	return &Service{
		store: s, search: p, writer: w, gate: g, views: v, engagement: e,
		pageSize: pageSize,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Input carries the editable fields of a listing. Nil fields are left
// unchanged on update; Create requires the fields of its kind.
type Input struct {
	Display  *string        `json:"display"`
	Status   *string        `json:"status"`
	Title    *string        `json:"title"`
	Body     *string        `json:"body"`
	Position *string        `json:"position"`
	Handles  []string       `json:"handles"`
	Location *string        `json:"location"`
	Remote   *string        `json:"remote"`
	Period   *models.Period `json:"period"`
	Costs    *models.Costs  `json:"costs"`
	Name     *models.Name   `json:"name"`
	Belong   *string        `json:"belong"`
	Memo     *string        `json:"memo"`
}

func (in Input) validate(kind models.ListingKind, creating bool) error {
	if in.Display != nil && *in.Display != models.VisibilityPublic && *in.Display != models.VisibilityPrivate {
		return apperr.InvalidArgument(apperr.OriginObjectID, "display must be public or private")
	}
	if in.Status != nil && *in.Status == models.ListingStatusDeleted {
		return apperr.InvalidArgument(apperr.OriginObjectID, "use delete to remove a listing")
	}
	if in.Costs != nil && in.Costs.Min > 0 && in.Costs.Max > 0 && in.Costs.Min > in.Costs.Max {
		return apperr.InvalidArgument(apperr.OriginObjectID, "minimum rate exceeds maximum rate")
	}
	if !creating {
		return nil
	}
	switch kind {
	case models.KindOpportunity:
		if in.Title == nil || *in.Title == "" {
			return apperr.InvalidArgument(apperr.OriginObjectID, "title is required")
		}
	case models.KindCandidate:
		if in.Position == nil || *in.Position == "" {
			return apperr.InvalidArgument(apperr.OriginObjectID, "position is required")
		}
	}
	return nil
}

// apply copies the set fields of in onto l and returns them as a store
// delta. Nested values are written whole so the projection stays in step.
func (in Input) apply(l *models.Listing) store.Doc {
	d := store.Doc{}
	str := func(key string, src *string, dst *string) {
		if src != nil {
			*dst = *src
			d[key] = *src
		}
	}
	str("display", in.Display, &l.Display)
	str("status", in.Status, &l.Status)
	str("title", in.Title, &l.Title)
	str("body", in.Body, &l.Body)
	str("position", in.Position, &l.Position)
	str("location", in.Location, &l.Location)
	str("remote", in.Remote, &l.Remote)
	str("belong", in.Belong, &l.Belong)
	str("memo", in.Memo, &l.Memo)
	if in.Handles != nil {
		l.Handles = in.Handles
		d["handles"] = in.Handles
	}
	if in.Period != nil {
		l.Period = *in.Period
		d["period"] = store.Doc{"year": l.Period.Year, "month": l.Period.Month}
	}
	if in.Costs != nil {
		l.Costs = in.Costs.WithMid()
		c, _ := store.Encode(l.Costs)
		d["costs"] = c
	}
	if in.Name != nil {
		n := *in.Name
		l.Name = &n
		d["name"] = store.Doc{"first": n.First, "last": n.Last}
	}
	return d
}

func kindOf(index string) (models.ListingKind, error) {
	k := models.ListingKind(index)
	if !k.Valid() {
		return "", apperr.InvalidArgument(apperr.OriginObjectID, "unknown index")
	}
	return k, nil
}

// Create posts a new listing for the calling organization. The owner's
// usage limit is enforced against its current posts.
func (s *Service) Create(ctx context.Context, c gate.Caller, index string, in Input) (*models.Listing, error) {
	kind, err := kindOf(index)
	if err != nil {
		return nil, err
	}
	if c.Kind != models.KindOrganization {
		return nil, apperr.Forbidden(apperr.OriginAuth, "only organizations can post listings")
	}
	grant, err := s.gate.Check(ctx, c, gate.Write)
	if err != nil {
		return nil, err
	}
	if err := in.validate(kind, true); err != nil {
		return nil, err
	}
	owner := grant.Account
	posts := owner.Posts.Get(kind)
	if owner.Payment != nil && owner.Payment.Limit > 0 && len(posts) >= owner.Payment.Limit {
		return nil, apperr.Forbidden(apperr.OriginLimit, "the listing limit of your plan has been reached")
	}

	now := s.now().UnixMilli()
	l := models.Listing{
		ObjectID: s.newID(),
		UID:      owner.UID,
		Index:    kind,
		Display:  models.VisibilityPublic,
		Status:   models.ListingStatusNew,
		CreateAt: now,
		UpdateAt: now,
	}
	in.apply(&l)
	l.Costs = l.Costs.WithMid()
	doc, err := store.Encode(l)
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	writeErr := s.writer.Apply(ctx, projection.Mutation{Collection: string(kind), ID: l.ObjectID, Delta: doc, CreateIfNotExists: true})
	if writeErr != nil && !projectionLag(writeErr) {
		return nil, writeErr
	}
	// the authoritative record exists from here on, even if the projection lags
	if err := s.setPosts(ctx, owner, kind, append(append([]string(nil), posts...), l.ObjectID)); err != nil {
		return &l, err
	}
	logger.Infow("listing created", "index", kind, "objectID", l.ObjectID, "uid", owner.UID)
	return &l, writeErr
}

// load reads a live listing; soft-deleted listings are not found.
func (s *Service) load(ctx context.Context, kind models.ListingKind, id string) (*models.Listing, error) {
	doc, err := s.store.Get(ctx, string(kind), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(apperr.OriginStore, "listing not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load listing %s: %w", id, err)
	}
	var l models.Listing
	if err := store.Decode(doc, &l); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", id, err)
	}
	if l.Status == models.ListingStatusDeleted {
		return nil, apperr.NotFound(apperr.OriginStore, "listing not found")
	}
	l.ObjectID = id
	return &l, nil
}

// Update edits a listing owned by the caller.
func (s *Service) Update(ctx context.Context, c gate.Caller, index, id string, in Input) (*models.Listing, error) {
	kind, err := kindOf(index)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Check(ctx, c, gate.Write); err != nil {
		return nil, err
	}
	if err := in.validate(kind, false); err != nil {
		return nil, err
	}
	l, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if l.UID != c.UID {
		return nil, apperr.Forbidden(apperr.OriginOwner, "only the owner can edit this listing")
	}
	delta := in.apply(l)
	if len(delta) == 0 {
		return l, nil
	}
	l.UpdateAt = s.now().UnixMilli()
	delta["updateAt"] = l.UpdateAt
	if err := s.writer.Apply(ctx, projection.Mutation{Collection: string(kind), ID: id, Delta: delta, Merge: true}); err != nil {
		return l, err
	}
	return l, nil
}

// Delete soft-deletes a listing: the authoritative record turns private and
// deleted, engagement on it is deactivated, it leaves the owner's posts and
// its projection record is removed.
func (s *Service) Delete(ctx context.Context, c gate.Caller, index, id string) error {
	kind, err := kindOf(index)
	if err != nil {
		return err
	}
	grant, err := s.gate.Check(ctx, c, gate.Manage)
	if err != nil {
		return err
	}
	l, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if l.UID != c.UID {
		return apperr.Forbidden(apperr.OriginOwner, "only the owner can delete this listing")
	}
	err = s.writer.Apply(ctx, projection.Mutation{
		Collection: string(kind), ID: id, Merge: true,
		Delta: store.Doc{
			"display":  models.VisibilityPrivate,
			"status":   models.ListingStatusDeleted,
			"updateAt": s.now().UnixMilli(),
		},
	})
	if err != nil && !projectionLag(err) {
		return err
	}
	n := s.engagement.Deactivate(ctx, string(kind), id)
	metrics.BestEffort("listings.unpost", s.setPosts(ctx, grant.Account, kind, without(grant.Account.Posts.Get(kind), id)), "objectID", id)
	if rmErr := s.writer.Remove(ctx, string(kind), id, false); rmErr != nil {
		return rmErr
	}
	logger.Infow("listing deleted", "index", kind, "objectID", id, "engagements", n)
	return nil
}

func (s *Service) setPosts(ctx context.Context, owner *models.Account, kind models.ListingKind, ids []string) error {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return s.writer.Apply(ctx, projection.Mutation{
		Collection: string(owner.Kind), ID: owner.UID, Merge: true,
		Delta: store.Nest("posts."+string(kind), vals),
	})
}

// projectionLag reports whether err is a projection failure that left the
// authoritative write in place.
func projectionLag(err error) bool {
	e, ok := apperr.As(err)
	return ok && e.Kind == apperr.KindDataLoss && e.Origin == apperr.OriginSearch
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
