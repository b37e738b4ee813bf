package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
)

type Request struct {
	Kind   Kind
	Hits   []search.Hit
	Viewer Viewer
	Mode   Mode
}

// Materializer shapes projection hits for one caller.
type Materializer struct {
	store    store.DocumentStore
	counters *engagement.Service
}

// New returns a Materializer. counters may be nil, in which case detail views
// carry no counters.
func New(s store.DocumentStore, counters *engagement.Service) *Materializer {
	return &Materializer{store: s, counters: counters}
}

// variant is the per-kind strategy: where the subject account of a hit lives
// and how a hit is shaped once the policy is known.
type variant interface {
	subject(hit search.Hit) (models.AccountKind, string)
	shape(ctx context.Context, m *Materializer, in input) (View, error)
}

type input struct {
	hit     search.Hit
	subject *models.Account
	policy  Policy
	mode    Mode
}

var variants = map[Kind]variant{
	KindOpportunity:  listingVariant{kind: models.KindOpportunity},
	KindCandidate:    listingVariant{kind: models.KindCandidate},
	KindOrganization: orgVariant{},
	KindPerson:       personVariant{},
}

// Materialize shapes req.Hits in order. Nil hits (projection misses) are
// skipped. Subjects are read from the authoritative store once per call.
func (m *Materializer) Materialize(ctx context.Context, req Request) ([]View, error) {
	v, ok := variants[req.Kind]
	if !ok {
		return nil, apperr.InvalidArgument(apperr.OriginObjectID, "unknown index")
	}
	subjects := newSubjects(m.store)
	out := make([]View, 0, len(req.Hits))
	for _, hit := range req.Hits {
		if hit == nil {
			continue
		}
		kind, uid := v.subject(hit)
		subj, err := subjects.get(ctx, kind, uid)
		if err != nil {
			return nil, err
		}
		isOwner := req.Viewer.UID != "" && req.Viewer.UID == uid
		qualified := isOwner
		if !qualified {
			if qualified, err = subjects.qualified(ctx, subj); err != nil {
				return nil, err
			}
		}
		if !qualified && req.Mode == ModeList {
			continue
		}
		pol := Policy{
			IsOwner:       isOwner,
			Capability:    req.Viewer.Capability,
			ContactPublic: subj != nil && subj.Profile.Visibility == models.VisibilityPublic,
			Placeholder:   !qualified,
		}
		shaped, err := v.shape(ctx, m, input{hit: hit, subject: subj, policy: pol, mode: req.Mode})
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	if req.Mode == ModeDetail {
		m.attach(ctx, out, req.Viewer)
	}
	return out, nil
}

// subjects caches subject accounts for the duration of one call; nil marks a
// missing account.
type subjects struct {
	store store.DocumentStore
	byKey map[string]*models.Account
}

func newSubjects(s store.DocumentStore) *subjects {
	return &subjects{store: s, byKey: map[string]*models.Account{}}
}

func (c *subjects) get(ctx context.Context, kind models.AccountKind, uid string) (*models.Account, error) {
	if uid == "" {
		return nil, nil
	}
	key := string(kind) + "/" + uid
	if a, ok := c.byKey[key]; ok {
		return a, nil
	}
	a, err := gate.LoadAccount(ctx, c.store, kind, uid)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}
	c.byKey[key] = a
	return a, nil
}

// qualified is the visibility decision: the subject exists, is enabled and
// is either exempt or covered by a current subscription (its own, or its
// parent's for a correctly linked child).
func (c *subjects) qualified(ctx context.Context, a *models.Account) (bool, error) {
	if a == nil || a.Status != models.StatusEnable {
		return false, nil
	}
	if a.IsChild() {
		parent, err := c.get(ctx, models.KindOrganization, a.ParentID())
		if err != nil {
			return false, err
		}
		if parent == nil || parent.Status != models.StatusEnable || !parent.HasChild(a.UID) {
			return false, nil
		}
		return parent.Exempt() || parent.Subscribed(), nil
	}
	return a.Exempt() || a.Subscribed(), nil
}

type listingVariant struct {
	kind models.ListingKind
}

func (listingVariant) subject(hit search.Hit) (models.AccountKind, string) {
	return models.KindOrganization, hit.String("uid")
}

func (lv listingVariant) shape(ctx context.Context, m *Materializer, in input) (View, error) {
	l, err := lv.load(ctx, m, in)
	if err != nil {
		return nil, err
	}
	p := in.policy
	f := listingFields{
		ObjectID:    l.ObjectID,
		Index:       string(lv.kind),
		Display:     l.Display,
		Status:      l.Status,
		Position:    l.Position,
		Handles:     l.Handles,
		Location:    l.Location,
		Remote:      l.Remote,
		Placeholder: p.Placeholder,
		CreateAt:    l.CreateAt,
		UpdateAt:    l.UpdateAt,
	}
	if l.Period.Year != 0 || l.Period.Month != 0 {
		period := l.Period
		f.Period = &period
	}
	if p.rates(l.Costs.Display) {
		costs := l.Costs
		f.Costs = &costs
	}
	if in.mode == ModeDetail {
		f.Body = body(p, l.Body)
	}
	if p.IsOwner {
		f.Memo = l.Memo
	}
	f.UID, f.Owner = owner(in.subject, p, l.UID)

	if lv.kind == models.KindCandidate {
		cv := &CandidateView{listingFields: f, Belong: l.Belong}
		if l.Name != nil {
			cv.Name = &models.Name{First: name(p, l.Name.First), Last: name(p, l.Name.Last)}
		}
		if !p.full() {
			cv.Belong = ""
		}
		return cv, nil
	}
	return &OpportunityView{listingFields: f, Title: l.Title}, nil
}

// load decodes the listing. Detail views read the authoritative record, list
// views shape from the projection alone.
func (lv listingVariant) load(ctx context.Context, m *Materializer, in input) (*models.Listing, error) {
	var l models.Listing
	if in.mode == ModeDetail {
		doc, err := m.store.Get(ctx, string(lv.kind), in.hit.ObjectID())
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound(apperr.OriginStore, "listing not found")
		case err != nil:
			return nil, fmt.Errorf("load listing %s: %w", in.hit.ObjectID(), err)
		}
		if err := store.Decode(doc, &l); err != nil {
			return nil, fmt.Errorf("decode listing %s: %w", in.hit.ObjectID(), err)
		}
	} else if err := fromHit(in.hit, &l); err != nil {
		return nil, err
	}
	if l.ObjectID == "" {
		l.ObjectID = in.hit.ObjectID()
	}
	return &l, nil
}

// owner builds the owner block of a listing. A disqualified owner is replaced
// with the placeholder and loses its uid.
func owner(a *models.Account, p Policy, uid string) (string, *Owner) {
	if p.Placeholder || a == nil {
		return "", &Owner{Name: PlaceholderName}
	}
	o := &Owner{UID: uid, Name: name(p, a.Profile.Name), Icon: a.Profile.Icon}
	if p.full() {
		o.Person = a.Profile.Person
	}
	if p.contact() {
		o.Email = a.Profile.Email
		o.Tel = a.Profile.Tel
	}
	return uid, o
}

type orgVariant struct{}

func (orgVariant) subject(hit search.Hit) (models.AccountKind, string) {
	return models.KindOrganization, uidOf(hit)
}

func (orgVariant) shape(_ context.Context, _ *Materializer, in input) (View, error) {
	p := in.policy
	if p.Placeholder || in.subject == nil {
		return &OrgView{UID: uidOf(in.hit), Name: PlaceholderName, Placeholder: true}, nil
	}
	a := in.subject
	v := &OrgView{
		UID:      a.UID,
		Type:     a.Type,
		Status:   string(a.Status),
		Name:     name(p, a.Profile.Name),
		Icon:     a.Profile.Icon,
		CreateAt: a.CreateAt,
	}
	if p.full() {
		v.Person = a.Profile.Person
		v.URL = a.Profile.URL
		v.Address = a.Profile.Address
	}
	v.Body = body(p, a.Profile.Body)
	if p.contact() {
		v.Email = a.Profile.Email
		v.Tel = a.Profile.Tel
	}
	if p.IsOwner && a.Payment != nil {
		pay := *a.Payment
		v.Payment = &pay
	}
	return v, nil
}

type personVariant struct{}

func (personVariant) subject(hit search.Hit) (models.AccountKind, string) {
	return models.KindIndividual, uidOf(hit)
}

func (personVariant) shape(_ context.Context, _ *Materializer, in input) (View, error) {
	p := in.policy
	if p.Placeholder || in.subject == nil {
		return &PersonView{UID: uidOf(in.hit), Name: PlaceholderName, Placeholder: true}, nil
	}
	a := in.subject
	v := &PersonView{
		UID:      a.UID,
		Status:   string(a.Status),
		Name:     name(p, a.Profile.Name),
		Icon:     a.Profile.Icon,
		CreateAt: a.CreateAt,
	}
	if p.full() {
		v.Position = a.Profile.Position
	}
	v.Body = body(p, a.Profile.Body)
	if p.contact() {
		v.Email = a.Profile.Email
		v.Tel = a.Profile.Tel
	}
	return v, nil
}

func uidOf(hit search.Hit) string {
	if uid := hit.String("uid"); uid != "" {
		return uid
	}
	return hit.ObjectID()
}

// fromHit decodes a projection record. Hits from the in-memory projection
// carry Go ints, hits from Meilisearch carry float64; JSON accepts both.
func fromHit(hit search.Hit, v any) error {
	b, err := json.Marshal(hit)
	if err != nil {
		return fmt.Errorf("encode hit %s: %w", hit.ObjectID(), err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode hit %s: %w", hit.ObjectID(), err)
	}
	return nil
}
