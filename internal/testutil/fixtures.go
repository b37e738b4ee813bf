// Package testutil seeds the in-memory stores with accounts and listings.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/oplog"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/store"
)

// Env is a pair of in-memory stores wired through a projection writer.
type Env struct {
	Store      *store.MemoryStore
	Projection *search.MemoryProjection
	Log        *oplog.Log
	Writer     *projection.Writer
}

func NewEnv() *Env {
	s := store.NewMemoryStore()
	p := search.NewMemoryProjection()
	log := oplog.New(s)
	return &Env{Store: s, Projection: p, Log: log, Writer: projection.NewWriter(s, p, projection.DefaultSchema(), log)}
}

// Org returns an enabled, agreed organization with an active subscription
// and public contact details.
func Org(uid string, opts ...func(*models.Account)) models.Account {
	a := models.Account{
		UID:    uid,
		Kind:   models.KindOrganization,
		Status: models.StatusEnable,
		Agree:  models.StatusEnable,
		Profile: models.Profile{
			Name:       "Acme " + uid,
			Person:     "Taro Yamada",
			Body:       "We build things.",
			Email:      uid + "@example.com",
			Tel:        "03-0000-0000",
			URL:        "https://example.com/" + uid,
			Visibility: models.VisibilityPublic,
		},
		Payment:  &models.Payment{Status: models.PaymentActive, Price: "standard"},
		CreateAt: 1700000000000,
		UpdateAt: 1700000000000,
	}
	for _, o := range opts {
		o(&a)
	}
	return a
}

// Person returns an enabled, agreed individual.
func Person(uid string, opts ...func(*models.Account)) models.Account {
	a := models.Account{
		UID:    uid,
		Kind:   models.KindIndividual,
		Type:   models.TypeIndividual,
		Status: models.StatusEnable,
		Agree:  models.StatusEnable,
		Profile: models.Profile{
			Name:       "Hanako " + uid,
			Body:       "Backend engineer.",
			Position:   "engineer",
			Email:      uid + "@example.com",
			Visibility: models.VisibilityPublic,
		},
		CreateAt: 1700000000000,
		UpdateAt: 1700000000000,
	}
	for _, o := range opts {
		o(&a)
	}
	return a
}

func Canceled(a *models.Account) { a.Payment.Status = models.PaymentCanceled }

func Unpaid(a *models.Account) { a.Payment = nil }

func FreePlan(a *models.Account) {
	if a.Payment == nil {
		a.Payment = &models.Payment{}
	}
	a.Payment.Option.FreePlan = true
}

func Disabled(a *models.Account) { a.Status = models.StatusDisable }

func PrivateContact(a *models.Account) { a.Profile.Visibility = models.VisibilityPrivate }

// ChildOf marks a as a grouped child of parent (one side only).
func ChildOf(parent string) func(*models.Account) {
	return func(a *models.Account) {
		a.Type = models.TypeChild
		a.Payment = &models.Payment{Status: models.PaymentActive, Parent: parent}
	}
}

// ParentOf marks a as the parent of children (one side only).
func ParentOf(children ...string) func(*models.Account) {
	return func(a *models.Account) {
		a.Type = models.TypeParent
		if a.Payment == nil {
			a.Payment = &models.Payment{Status: models.PaymentActive}
		}
		a.Payment.Children = children
	}
}

// Opportunity returns a public opportunity owned by uid.
func Opportunity(id, uid string, opts ...func(*models.Listing)) models.Listing {
	l := models.Listing{
		ObjectID: id,
		UID:      uid,
		Index:    models.KindOpportunity,
		Display:  models.VisibilityPublic,
		Status:   models.ListingStatusNew,
		Title:    "Go backend " + id,
		Body:     "Build a matching service.",
		Position: "backend",
		Handles:  []string{"Go", "MongoDB"},
		Location: "Tokyo",
		Remote:   "remote",
		Period:   models.Period{Year: 2026, Month: 11},
		Costs:    models.Costs{Min: 600000, Max: 800000, Display: models.VisibilityPublic}.WithMid(),
		Memo:     "internal note",
		CreateAt: 1700000000000,
		UpdateAt: 1700000000000,
	}
	for _, o := range opts {
		o(&l)
	}
	return l
}

// Candidate returns a public candidate owned by uid.
func Candidate(id, uid string, opts ...func(*models.Listing)) models.Listing {
	l := Opportunity(id, uid)
	l.Index = models.KindCandidate
	l.Title = ""
	l.Name = &models.Name{First: "Ichiro", Last: "Suzuki"}
	l.Belong = "Acme subcontracting"
	for _, o := range opts {
		o(&l)
	}
	return l
}

func Private(l *models.Listing) { l.Display = models.VisibilityPrivate }

// PutAccount writes a through the projection writer.
func (e *Env) PutAccount(t testing.TB, a models.Account) {
	t.Helper()
	doc, err := store.Encode(a)
	require.NoError(t, err)
	require.NoError(t, e.Writer.Apply(context.Background(), projection.Mutation{
		Collection: string(a.Kind), ID: a.UID, Delta: doc, CreateIfNotExists: true,
	}))
}

// PutListing writes l through the projection writer.
func (e *Env) PutListing(t testing.TB, l models.Listing) {
	t.Helper()
	doc, err := store.Encode(l)
	require.NoError(t, err)
	require.NoError(t, e.Writer.Apply(context.Background(), projection.Mutation{
		Collection: string(l.Index), ID: l.ObjectID, Delta: doc, CreateIfNotExists: true,
	}))
}

// Hit reads a projection record, failing the test when it is missing.
func (e *Env) Hit(t testing.TB, index, id string) search.Hit {
	t.Helper()
	h, err := e.Projection.GetObject(context.Background(), index, id)
	require.NoError(t, err)
	return h
}
