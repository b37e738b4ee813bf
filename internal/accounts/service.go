// Package accounts manages the account lifecycle: registration, profile
// edits, moderation, subscription transitions, parent/child grouping and
// deletion.
package accounts

import (
	"context"
	"fmt"
	"io"
	"time"

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

// Files stores uploaded profile icons.
type Files interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Revoker invalidates the tokens of disabled accounts.
type Revoker interface {
	Revoke(ctx context.Context, uid string, ttl time.Duration) error
	Restore(ctx context.Context, uid string) error
}

type Deps struct {
	Store      store.DocumentStore
	Search     search.Projection
	Writer     *projection.Writer
	Gate       *gate.Gate
	Views      *view.Materializer
	Engagement *engagement.Service
	Files      Files
	Revoker    Revoker
	RevokeTTL  time.Duration
}

type Service struct {
	store      store.DocumentStore
	search     search.Projection
	writer     *projection.Writer
	gate       *gate.Gate
	views      *view.Materializer
	engagement *engagement.Service
	files      Files
	revoker    Revoker
	revokeTTL  time.Duration
	now        func() time.Time
}

func NewService(d Deps) *Service {
	if d.RevokeTTL <= 0 {
		d.RevokeTTL = 24 * time.Hour
	}
	return &Service{
		store:      d.Store,
		search:     d.Search,
		writer:     d.Writer,
		gate:       d.Gate,
		views:      d.Views,
		engagement: d.Engagement,
		files:      d.Files,
		revoker:    d.Revoker,
		revokeTTL:  d.RevokeTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type RegisterInput struct {
	Profile models.Profile `json:"profile"`
	Agree   bool           `json:"agree"`
}

// Register creates the account of an authenticated identity. Organizations
// start on hold until approved; individuals are enabled immediately.
// Registering an existing account returns it unchanged.
func (s *Service) Register(ctx context.Context, c gate.Caller, in RegisterInput) (*models.Account, error) {
	if c.UID == "" {
		return nil, apperr.Unauthenticated("sign-in required")
	}
	if !c.Kind.Valid() {
		return nil, apperr.InvalidArgument(apperr.OriginObjectID, "unknown account kind")
	}
	existing, err := gate.LoadAccount(ctx, s.store, c.Kind, c.UID)
	if err == nil {
		return existing, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}
	if in.Profile.Name == "" {
		return nil, apperr.InvalidArgument(apperr.OriginObjectID, "profile name is required")
	}
	now := s.now().UnixMilli()
	a := models.Account{
		UID:      c.UID,
		Kind:     c.Kind,
		Status:   models.StatusHold,
		Agree:    models.StatusDisable,
		Profile:  in.Profile,
		CreateAt: now,
		UpdateAt: now,
	}
	if c.Kind == models.KindIndividual {
		a.Type = models.TypeIndividual
		a.Status = models.StatusEnable
	}
	if in.Agree {
		a.Agree = models.StatusEnable
	}
	if a.Profile.Visibility == "" {
		a.Profile.Visibility = models.VisibilityPrivate
	}
	doc, err := store.Encode(a)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	if err := s.writer.Apply(ctx, projection.Mutation{Collection: string(c.Kind), ID: c.UID, Delta: doc, CreateIfNotExists: true}); err != nil {
		return &a, err
	}
	logger.Infow("account registered", "uid", c.UID, "kind", c.Kind)
	return &a, nil
}

// AcceptTerms records the caller's agreement to the terms of use.
func (s *Service) AcceptTerms(ctx context.Context, c gate.Caller) error {
	if _, err := s.gate.Check(ctx, c, gate.Requirements{}); err != nil {
		return err
	}
	return s.writer.Apply(ctx, projection.Mutation{
		Collection: string(c.Kind), ID: c.UID, Merge: true,
		Delta: store.Doc{"agree": string(models.StatusEnable), "updateAt": s.now().UnixMilli()},
	})
}

// ProfileInput is a partial profile edit; nil fields are left unchanged.
type ProfileInput struct {
	Name       *string `json:"name"`
	Person     *string `json:"person"`
	Body       *string `json:"body"`
	Email      *string `json:"email"`
	Tel        *string `json:"tel"`
	URL        *string `json:"url"`
	Address    *string `json:"address"`
	Position   *string `json:"position"`
	Visibility *string `json:"visibility"`
}

func (in ProfileInput) delta() (store.Doc, error) {
	p := store.Doc{}
	set := func(k string, v *string) {
		if v != nil {
			p[k] = *v
		}
	}
	if in.Name != nil && *in.Name == "" {
		return nil, apperr.InvalidArgument(apperr.OriginObjectID, "profile name cannot be empty")
	}
	if in.Visibility != nil && *in.Visibility != models.VisibilityPublic && *in.Visibility != models.VisibilityPrivate {
		return nil, apperr.InvalidArgument(apperr.OriginObjectID, "visibility must be public or private")
	}
	set("name", in.Name)
	set("person", in.Person)
	set("body", in.Body)
	set("email", in.Email)
	set("tel", in.Tel)
	set("url", in.URL)
	set("address", in.Address)
	set("position", in.Position)
	set("visibility", in.Visibility)
	return p, nil
}

// UpdateProfile applies a partial profile edit to both stores.
func (s *Service) UpdateProfile(ctx context.Context, c gate.Caller, in ProfileInput) (*models.Account, error) {
	if _, err := s.gate.Check(ctx, c, gate.Manage); err != nil {
		return nil, err
	}
	p, err := in.delta()
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return gate.LoadAccount(ctx, s.store, c.Kind, c.UID)
	}
	if err := s.writer.Apply(ctx, projection.Mutation{
		Collection: string(c.Kind), ID: c.UID, Merge: true,
		Delta: store.Doc{"profile": p, "updateAt": s.now().UnixMilli()},
	}); err != nil {
		return nil, err
	}
	return gate.LoadAccount(ctx, s.store, c.Kind, c.UID)
}

// SetStatus is the moderation transition. Disabling deactivates engagement
// targeting the account and revokes its tokens; both are best-effort.
func (s *Service) SetStatus(ctx context.Context, kind models.AccountKind, uid string, status models.Status) error {
	switch status {
	case models.StatusHold, models.StatusEnable, models.StatusDisable:
	default:
		return apperr.InvalidArgument(apperr.OriginStatus, "status must be hold, enable or disable")
	}
	if _, err := gate.LoadAccount(ctx, s.store, kind, uid); err != nil {
		return err
	}
	if err := s.writer.Apply(ctx, projection.Mutation{
		Collection: string(kind), ID: uid, Merge: true,
		Delta: store.Doc{"status": string(status), "updateAt": s.now().UnixMilli()},
	}); err != nil {
		return err
	}
	switch status {
	case models.StatusDisable:
		n := s.engagement.Deactivate(ctx, string(kind), uid)
		if s.revoker != nil {
			metrics.BestEffort("accounts.revoke", s.revoker.Revoke(ctx, uid, s.revokeTTL), "uid", uid)
		}
		logger.Infow("account disabled", "uid", uid, "kind", kind, "engagements", n)
	case models.StatusEnable:
		if s.revoker != nil {
			metrics.BestEffort("accounts.restore", s.revoker.Restore(ctx, uid), "uid", uid)
		}
	}
	return nil
}

// SubscriptionEvent is a billing transition for an organization.
type SubscriptionEvent struct {
	UID    string               `json:"uid"`
	Status models.PaymentStatus `json:"status"`
	Price  string               `json:"price,omitempty"`
	Limit  *int                 `json:"limit,omitempty"`
	// Parent upgrades the account to a parent of grouped accounts.
	Parent *bool `json:"parent,omitempty"`
}

// ApplySubscription records a billing transition. Payment fields are not
// projected; visibility follows from the authoritative status on every read.
func (s *Service) ApplySubscription(ctx context.Context, ev SubscriptionEvent) (*models.Account, error) {
	switch ev.Status {
	case models.PaymentActive, models.PaymentTrialing, models.PaymentCanceled:
	default:
		return nil, apperr.InvalidArgument(apperr.OriginPayment, "unknown subscription status")
	}
	a, err := gate.LoadAccount(ctx, s.store, models.KindOrganization, ev.UID)
	if err != nil {
		return nil, err
	}
	payment := store.Doc{"status": string(ev.Status)}
	if ev.Price != "" {
		payment["price"] = ev.Price
	}
	if ev.Limit != nil {
		payment["limit"] = *ev.Limit
	}
	delta := store.Doc{"payment": payment, "updateAt": s.now().UnixMilli()}
	if ev.Parent != nil {
		switch {
		case *ev.Parent && a.IsChild():
			return nil, apperr.Forbidden(apperr.OriginParent, "a grouped account cannot become a parent")
		case *ev.Parent:
			delta["type"] = models.TypeParent
		case a.Type == models.TypeParent && a.Payment != nil && len(a.Payment.Children) > 0:
			return nil, apperr.Forbidden(apperr.OriginParent, "remove grouped accounts first")
		case a.Type == models.TypeParent:
			delta["type"] = ""
		}
	}
	if err := s.writer.Apply(ctx, projection.Mutation{Collection: string(models.KindOrganization), ID: ev.UID, Delta: delta, Merge: true}); err != nil {
		return nil, err
	}
	logger.Infow("subscription updated", "uid", ev.UID, "status", ev.Status)
	return gate.LoadAccount(ctx, s.store, models.KindOrganization, ev.UID)
}

// Me returns the caller's own account, whatever its status, and records a
// login.
func (s *Service) Me(ctx context.Context, c gate.Caller) (view.View, error) {
	grant, err := s.gate.Check(ctx, c, gate.Requirements{})
	if err != nil {
		return nil, err
	}
	if s.engagement != nil {
		metrics.BestEffort("accounts.login", s.engagement.RecordLogin(ctx, engagement.Actor{UID: c.UID, Kind: c.Kind}), "uid", c.UID)
	}
	return s.detail(ctx, grant, c.Kind, c.UID)
}

// Get returns the detail view of an account.
func (s *Service) Get(ctx context.Context, c gate.Caller, kind models.AccountKind, uid string) (view.View, error) {
	grant, err := s.gate.Check(ctx, c, gate.Read)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, grant, kind, uid)
}

func (s *Service) detail(ctx context.Context, grant *gate.Grant, kind models.AccountKind, uid string) (view.View, error) {
	vk, ok := view.KindOf(string(kind))
	if !ok {
		return nil, apperr.InvalidArgument(apperr.OriginObjectID, "unknown index")
	}
	// account views are shaped from the authoritative record
	hit := search.Hit{"objectID": uid, "uid": uid}
	views, err := s.views.Materialize(ctx, view.Request{Kind: vk, Hits: []search.Hit{hit}, Viewer: view.ViewerOf(grant), Mode: view.ModeDetail})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// Search lists enabled accounts of kind matching text.
func (s *Service) Search(ctx context.Context, c gate.Caller, kind models.AccountKind, text string, page int) ([]view.View, view.Page, error) {
	grant, err := s.gate.Check(ctx, c, gate.Read)
	if err != nil {
		return nil, view.Page{}, err
	}
	vk, ok := view.KindOf(string(kind))
	if !ok {
		return nil, view.Page{}, apperr.InvalidArgument(apperr.OriginObjectID, "unknown index")
	}
	res, err := s.search.Search(ctx, string(kind), text, search.Options{
		Filter:      search.Eq("status", string(models.StatusEnable)),
		Page:        page,
		HitsPerPage: view.PageSize,
	})
	if err != nil {
		return nil, view.Page{}, fmt.Errorf("search %s: %w", kind, err)
	}
	views, err := s.views.Materialize(ctx, view.Request{Kind: vk, Hits: res.Hits, Viewer: view.ViewerOf(grant), Mode: view.ModeList})
	if err != nil {
		return nil, view.Page{}, err
	}
	return views, view.PageOf(page, res), nil
}
