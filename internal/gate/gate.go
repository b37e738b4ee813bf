// Package gate resolves a caller into an authoritative account record and a
// capability level.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/store"
)

// Capability is what a resolved caller may do. Limited callers (lapsed
// subscription) can still read, but receive redacted views and cannot write.
type Capability int

const (
	Denied Capability = iota
	Limited
	Full
)

func (c Capability) String() string {
	switch c {
	case Full:
		return "full"
	case Limited:
		return "limited"
	}
	return "denied"
}

type Requirements struct {
	MustBeEnabled  bool
	MustHaveAgreed bool
	MustNotBeDemo  bool
	MustBeParent   bool
	// MustOwnChild names a child account the caller must be the parent of.
	MustOwnChild      string
	MinimumCapability Capability
}

// Read is the requirement set of read-type handlers: any enabled, agreed
// account; lapsed subscriptions pass with Limited capability.
var Read = Requirements{MustBeEnabled: true, MustHaveAgreed: true}

// Manage is the requirement set of edits that must stay available to lapsed
// subscriptions: profile edits, deletes, icon uploads.
var Manage = Requirements{MustBeEnabled: true, MustHaveAgreed: true, MustNotBeDemo: true}

// Write is the requirement set of mutating handlers.
var Write = Requirements{MustBeEnabled: true, MustHaveAgreed: true, MustNotBeDemo: true, MinimumCapability: Full}

// Caller identifies an authenticated account by id and kind.
type Caller struct {
	UID  string
	Kind models.AccountKind
}

// Grant is the outcome of a successful authorization.
type Grant struct {
	Account    *models.Account
	Capability Capability
}

// UID returns the caller's account id.
func (g *Grant) UID() string { return g.Account.UID }

type Gate struct {
	store  store.DocumentStore
	demoID string
}

func New(s store.DocumentStore, demoAccountID string) *Gate {
	return &Gate{store: s, demoID: demoAccountID}
}

// Check authorizes c against req.
func (g *Gate) Check(ctx context.Context, c Caller, req Requirements) (*Grant, error) {
	return g.Authorize(ctx, c.UID, c.Kind, req)
}

// LoadAccount reads an account from the authoritative store.
func LoadAccount(ctx context.Context, s store.DocumentStore, kind models.AccountKind, uid string) (*models.Account, error) {
	doc, err := s.Get(ctx, string(kind), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(apperr.OriginStore, "account not found")
		}
		return nil, fmt.Errorf("load account %s/%s: %w", kind, uid, err)
	}
	var a models.Account
	if err := store.Decode(doc, &a); err != nil {
		return nil, fmt.Errorf("decode account %s/%s: %w", kind, uid, err)
	}
	a.UID = uid
	a.Kind = kind
	return &a, nil
}

// Account loads the account uid of kind without checking any requirement.
func (g *Gate) Account(ctx context.Context, kind models.AccountKind, uid string) (*models.Account, error) {
	return LoadAccount(ctx, g.store, kind, uid)
}

// Authorize resolves uid within kind and checks req. Checks run in a fixed
// order so the first failing condition decides the message.
func (g *Gate) Authorize(ctx context.Context, uid string, kind models.AccountKind, req Requirements) (*Grant, error) {
	if uid == "" {
		return nil, apperr.Unauthenticated("sign-in required")
	}
	acct, err := LoadAccount(ctx, g.store, kind, uid)
	if err != nil {
		return nil, err
	}
	if req.MustBeEnabled && acct.Status != models.StatusEnable {
		return nil, apperr.Forbidden(apperr.OriginStatus, "this account is not enabled")
	}
	if req.MustHaveAgreed && acct.Agree != models.StatusEnable {
		return nil, apperr.Forbidden(apperr.OriginAgree, "terms of use have not been accepted")
	}
	if req.MustNotBeDemo && g.demoID != "" && acct.UID == g.demoID {
		return nil, apperr.Forbidden(apperr.OriginDemo, "not available for the demo account")
	}
	if req.MustBeParent && acct.Type != models.TypeParent {
		return nil, apperr.Forbidden(apperr.OriginParent, "only parent accounts can manage grouped accounts")
	}
	if req.MustOwnChild != "" {
		if err := g.checkOwnsChild(ctx, acct, req.MustOwnChild); err != nil {
			return nil, err
		}
	}

	capability, err := g.capability(ctx, acct)
	if err != nil {
		return nil, err
	}
	if capability < req.MinimumCapability {
		return nil, apperr.Forbidden(apperr.OriginPayment, "an active subscription is required")
	}
	return &Grant{Account: acct, Capability: capability}, nil
}

func (g *Gate) checkOwnsChild(ctx context.Context, parent *models.Account, childID string) error {
	if !parent.HasChild(childID) {
		return apperr.Forbidden(apperr.OriginParent, "the account is not one of your grouped accounts")
	}
	child, err := LoadAccount(ctx, g.store, models.KindOrganization, childID)
	if err != nil {
		return err
	}
	if child.ParentID() != parent.UID {
		return apperr.Forbidden(apperr.OriginParent, "the account is not one of your grouped accounts")
	}
	return nil
}

func (g *Gate) capability(ctx context.Context, acct *models.Account) (Capability, error) {
	if acct.Status != models.StatusEnable || acct.Agree != models.StatusEnable {
		return Denied, nil
	}
	if acct.Exempt() || acct.Subscribed() {
		return Full, nil
	}
	// children inherit the parent's subscription
	if acct.IsChild() && acct.ParentID() != "" {
		parent, err := LoadAccount(ctx, g.store, models.KindOrganization, acct.ParentID())
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				return Limited, nil
			}
			return Denied, err
		}
		if parent.HasChild(acct.UID) && parent.Subscribed() {
			return Full, nil
		}
	}
	return Limited, nil
}
