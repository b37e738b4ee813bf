package accounts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/metrics"
)

// Delete removes the caller's account. Owned listings are removed from both
// stores, engagement by and on the account is deactivated and any group link
// is detached; those steps are best-effort. The account itself is removed
// last and its failure is returned.
func (s *Service) Delete(ctx context.Context, c gate.Caller) error {
	grant, err := s.gate.Check(ctx, c, gate.Requirements{MustNotBeDemo: true})
	if err != nil {
		return err
	}
	a := grant.Account

	for _, kind := range []models.ListingKind{models.KindOpportunity, models.KindCandidate} {
		for _, id := range a.Posts.Get(kind) {
			metrics.BestEffort("accounts.delete_listing", s.writer.Remove(ctx, string(kind), id, true), "objectID", id)
			s.engagement.Deactivate(ctx, string(kind), id)
		}
	}
	s.engagement.Deactivate(ctx, string(a.Kind), a.UID)
	s.engagement.DeactivateActor(ctx, a.UID)

	if a.IsChild() && a.ParentID() != "" {
		if parent, err := gate.LoadAccount(ctx, s.store, models.KindOrganization, a.ParentID()); err == nil && parent.Payment != nil {
			metrics.BestEffort("accounts.detach_parent", s.setChildren(ctx, parent.UID, without(parent.Payment.Children, a.UID)), "parent", parent.UID)
		}
	}
	if a.Type == models.TypeParent && a.Payment != nil {
		for _, child := range a.Payment.Children {
			metrics.BestEffort("accounts.detach_child", s.setChildLink(ctx, child, "", ""), "child", child)
		}
	}
	if s.files != nil && a.Profile.Icon != "" {
		metrics.BestEffort("accounts.remove_icon", s.files.Remove(ctx, iconKey(a.Kind, a.UID)), "uid", a.UID)
	}

	if err := s.writer.Remove(ctx, string(a.Kind), a.UID, true); err != nil {
		return err
	}
	logger.Infow("account deleted", "uid", a.UID, "kind", a.Kind)
	return nil
}

// MaxIconSize bounds uploaded icons.
const MaxIconSize = 2 << 20

var iconTypes = map[string]bool{"image/png": true, "image/jpeg": true, "image/webp": true}

func iconKey(kind models.AccountKind, uid string) string {
	return fmt.Sprintf("icons/%s/%s", kind, uid)
}

// IconPath is the public path that redirects to the stored icon.
func IconPath(kind models.AccountKind, uid string) string {
	return fmt.Sprintf("/api/v1/icons/%s/%s", kind, uid)
}

// UploadIcon stores the caller's profile icon and projects its public path.
func (s *Service) UploadIcon(ctx context.Context, c gate.Caller, r io.Reader, size int64, contentType string) (string, error) {
	if _, err := s.gate.Check(ctx, c, gate.Manage); err != nil {
		return "", err
	}
	if s.files == nil {
		return "", apperr.DataLoss(apperr.OriginFiles, "file storage is not configured", nil)
	}
	if !iconTypes[strings.ToLower(contentType)] {
		return "", apperr.InvalidArgument(apperr.OriginFile, "icon must be a PNG, JPEG or WebP image")
	}
	if size <= 0 || size > MaxIconSize {
		return "", apperr.InvalidArgument(apperr.OriginFile, "icon must be at most 2 MiB")
	}
	if err := s.files.Upload(ctx, iconKey(c.Kind, c.UID), r, size, contentType); err != nil {
		return "", apperr.DataLoss(apperr.OriginFiles, "failed to store icon", err)
	}
	path := IconPath(c.Kind, c.UID)
	if err := s.writer.Apply(ctx, projection.Mutation{
		Collection: string(c.Kind), ID: c.UID, Merge: true,
		Delta: store.Doc{"profile": store.Doc{"icon": path}, "updateAt": s.now().UnixMilli()},
	}); err != nil {
		return "", err
	}
	return path, nil
}

// IconURL resolves the stored icon of an account to a short-lived URL.
func (s *Service) IconURL(ctx context.Context, kind models.AccountKind, uid string) (string, error) {
	if s.files == nil || !kind.Valid() {
		return "", apperr.NotFound(apperr.OriginFiles, "icon not found")
	}
	u, err := s.files.PresignedURL(ctx, iconKey(kind, uid), 15*time.Minute)
	if err != nil {
		return "", apperr.NotFound(apperr.OriginFiles, "icon not found")
	}
	return u, nil
}
