package accounts

import (
	"context"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// LinkChild groups childUID under the calling parent. Both sides are written;
// when the parent side fails the child side is rolled back, so the pair is
// either fully linked or left as it was.
func (s *Service) LinkChild(ctx context.Context, c gate.Caller, childUID string) error {
	req := gate.Write
	req.MustBeParent = true
	grant, err := s.gate.Check(ctx, c, req)
	if err != nil {
		return err
	}
	parent := grant.Account
	if childUID == "" || childUID == parent.UID {
		return apperr.InvalidArgument(apperr.OriginParent, "choose another organization account")
	}
	if parent.HasChild(childUID) {
		return nil
	}
	child, err := gate.LoadAccount(ctx, s.store, models.KindOrganization, childUID)
	if err != nil {
		return err
	}
	if child.Type == models.TypeParent || (child.IsChild() && child.ParentID() != parent.UID) {
		return apperr.Forbidden(apperr.OriginParent, "the account already belongs to another group")
	}

	if err := s.setChildLink(ctx, childUID, models.TypeChild, parent.UID); err != nil {
		return err
	}
	var children []string
	if parent.Payment != nil {
		children = append(children, parent.Payment.Children...)
	}
	children = append(children, childUID)
	if err := s.setChildren(ctx, parent.UID, children); err != nil {
		metrics.BestEffort("accounts.link_rollback", s.setChildLink(ctx, childUID, child.Type, child.ParentID()), "child", childUID)
		return err
	}
	logger.Infow("child account linked", "parent", parent.UID, "child", childUID)
	return nil
}

// UnlinkChild removes childUID from the calling parent's group, undoing the
// parent side when the child side cannot be written.
func (s *Service) UnlinkChild(ctx context.Context, c gate.Caller, childUID string) error {
	grant, err := s.gate.Check(ctx, c, gate.Requirements{
		MustBeEnabled: true, MustHaveAgreed: true, MustNotBeDemo: true,
		MustBeParent: true, MustOwnChild: childUID,
	})
	if err != nil {
		return err
	}
	parent := grant.Account
	prev := append([]string(nil), parent.Payment.Children...)
	if err := s.setChildren(ctx, parent.UID, without(prev, childUID)); err != nil {
		return err
	}
	if err := s.setChildLink(ctx, childUID, "", ""); err != nil {
		metrics.BestEffort("accounts.unlink_rollback", s.setChildren(ctx, parent.UID, prev), "parent", parent.UID)
		return err
	}
	logger.Infow("child account unlinked", "parent", parent.UID, "child", childUID)
	return nil
}

func (s *Service) setChildLink(ctx context.Context, uid, typ, parent string) error {
	return s.writer.Apply(ctx, projection.Mutation{
		Collection: string(models.KindOrganization), ID: uid, Merge: true,
		Delta: store.Doc{
			"type":     typ,
			"payment":  store.Doc{"parent": parent},
			"updateAt": s.now().UnixMilli(),
		},
	})
}

func (s *Service) setChildren(ctx context.Context, uid string, children []string) error {
	vals := make([]any, len(children))
	for i, id := range children {
		vals[i] = id
	}
	return s.writer.Apply(ctx, projection.Mutation{
		Collection: string(models.KindOrganization), ID: uid, Merge: true,
		Delta: store.Doc{"payment": store.Doc{"children": vals}, "updateAt": s.now().UnixMilli()},
	})
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
