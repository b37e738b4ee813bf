// Package engagement manages join records between accounts and their targets
// (likes, outputs, entries, views, follows, requests) and derives counters
// from them.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matchbase/marketplace/internal/apperr"
	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/pkg/metrics"
)

const Collection = "engagements"

// Notifier is told about engagement that the target's owner should hear of.
type Notifier interface {
	Engaged(ctx context.Context, e models.Engagement) error
}

// Actor is the account performing an engagement.
type Actor struct {
	UID  string
	Kind models.AccountKind
}

type Service struct {
	store    store.DocumentStore
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

func NewService(s store.DocumentStore, n Notifier, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: s, notifier: n, loc: loc, now: time.Now}
}

// SetClock overrides the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Get returns the engagement record of the tuple, or nil when absent.
func (s *Service) Get(ctx context.Context, uid string, kind models.EngagementKind, index, objectID string) (*models.Engagement, error) {
	doc, err := s.store.Get(ctx, Collection, models.EngagementID(uid, kind, index, objectID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e models.Engagement
	if err := store.Decode(doc, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// CheckTarget reports whether actor may engage with records of index using
// kind: listing engagement targets listings, follows and requests target the
// other account kind.
func CheckTarget(actor Actor, kind models.EngagementKind, index string) error {
	listing := index == string(models.KindOpportunity) || index == string(models.KindCandidate)
	account := models.AccountKind(index).Valid()
	var ok bool
	switch kind {
	case models.EngageLike, models.EngageOutput, models.EngageEntry, models.EngageHistory:
		ok = listing
	case models.EngageFollow, models.EngageRequest:
		ok = account && models.AccountKind(index) != actor.Kind
	}
	if !ok {
		return apperr.InvalidArgument(apperr.OriginObjectID, fmt.Sprintf("cannot %s %s", kind, index))
	}
	return nil
}

// Add activates the (actor, kind, target) record, creating it on first use.
// The target must be live: a listing that is not deleted and is public or
// the actor's own, or an enabled account. Adding an already active record is
// a no-op except for history, whose time is refreshed; the result reports
// whether the record was activated.
func (s *Service) Add(ctx context.Context, actor Actor, kind models.EngagementKind, index, objectID string) (bool, error) {
	if objectID == "" || index == "" {
		return false, apperr.InvalidArgument(apperr.OriginObjectID, "target is required")
	}
	if err := CheckTarget(actor, kind, index); err != nil {
		return false, err
	}
	if err := s.checkLive(ctx, actor, index, objectID); err != nil {
		return false, err
	}
	cur, err := s.Get(ctx, actor.UID, kind, index, objectID)
	if err != nil {
		return false, apperr.DataLoss(apperr.OriginStore, "failed to load", err)
	}
	if cur != nil && cur.Active {
		if kind == models.EngageHistory {
			// windowed view counts follow the latest visit
			if err := s.store.Set(ctx, Collection, cur.ID, store.Doc{"at": s.now().UnixMilli()}, store.SetOptions{Merge: true}); err != nil {
				return false, apperr.DataLoss(apperr.OriginStore, "failed to save", err)
			}
		}
		return false, nil
	}
	e := models.Engagement{
		ID:       models.EngagementID(actor.UID, kind, index, objectID),
		UID:      actor.UID,
		Kind:     kind,
		Index:    index,
		ObjectID: objectID,
		Active:   true,
		At:       s.now().UnixMilli(),
	}
	if kind == models.EngageRequest {
		e.Status = models.StatusHold
	}
	if err := s.put(ctx, e); err != nil {
		return false, err
	}
	if err := s.syncActorList(ctx, actor, kind, index, objectID, true); err != nil {
		return true, err
	}
	if s.notifier != nil && (kind == models.EngageEntry || kind == models.EngageRequest) {
		metrics.BestEffort("engagement.notify", s.notifier.Engaged(ctx, e), "kind", kind, "objectID", objectID)
	}
	return true, nil
}

// checkLive loads the target of an engagement from the authoritative store.
func (s *Service) checkLive(ctx context.Context, actor Actor, index, objectID string) error {
	doc, err := s.store.Get(ctx, index, objectID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.OriginObjectID, "target not found")
	}
	if err != nil {
		return apperr.DataLoss(apperr.OriginStore, "failed to load", err)
	}
	str := func(key string) string {
		v, _ := doc[key].(string)
		return v
	}
	if models.AccountKind(index).Valid() {
		if str("status") != string(models.StatusEnable) {
			return apperr.NotFound(apperr.OriginObjectID, "target not found")
		}
		return nil
	}
	if str("status") == models.ListingStatusDeleted {
		return apperr.NotFound(apperr.OriginObjectID, "target not found")
	}
	if str("display") != models.VisibilityPublic && str("uid") != actor.UID {
		return apperr.NotFound(apperr.OriginObjectID, "target not found")
	}
	return nil
}

// Remove deactivates the record. Removing a missing or inactive record is a no-op.
func (s *Service) Remove(ctx context.Context, actor Actor, kind models.EngagementKind, index, objectID string) (bool, error) {
	cur, err := s.Get(ctx, actor.UID, kind, index, objectID)
	if err != nil {
		return false, apperr.DataLoss(apperr.OriginStore, "failed to load", err)
	}
	if cur == nil || !cur.Active {
		return false, nil
	}
	if err := s.store.Set(ctx, Collection, cur.ID, store.Doc{"active": false, "at": s.now().UnixMilli()}, store.SetOptions{Merge: true}); err != nil {
		return false, apperr.DataLoss(apperr.OriginStore, "failed to save", err)
	}
	if err := s.syncActorList(ctx, actor, kind, index, objectID, false); err != nil {
		return true, err
	}
	return true, nil
}

// Respond sets the status of a pending request addressed to target.
func (s *Service) Respond(ctx context.Context, target Actor, requesterUID string, status models.Status) error {
	if status != models.StatusEnable && status != models.StatusDisable {
		return apperr.InvalidArgument(apperr.OriginRequest, "status must be enable or disable")
	}
	cur, err := s.Get(ctx, requesterUID, models.EngageRequest, string(target.Kind), target.UID)
	if err != nil {
		return apperr.DataLoss(apperr.OriginStore, "failed to load", err)
	}
	if cur == nil || !cur.Active {
		return apperr.NotFound(apperr.OriginRequest, "request not found")
	}
	if cur.Status != models.StatusHold {
		return apperr.Forbidden(apperr.OriginRequest, "request has already been answered")
	}
	if err := s.store.Set(ctx, Collection, cur.ID, store.Doc{"status": string(status), "at": s.now().UnixMilli()}, store.SetOptions{Merge: true}); err != nil {
		return apperr.DataLoss(apperr.OriginStore, "failed to save", err)
	}
	return nil
}

// RecordLogin appends a login record; login counts are distinct per actor.
func (s *Service) RecordLogin(ctx context.Context, actor Actor) error {
	at := s.now().UnixMilli()
	e := models.Engagement{
		ID:       fmt.Sprintf("%s_%s_%d", actor.UID, models.EngageLogin, at),
		UID:      actor.UID,
		Kind:     models.EngageLogin,
		Index:    string(actor.Kind),
		ObjectID: actor.UID,
		Active:   true,
		At:       at,
	}
	return s.put(ctx, e)
}

// Deactivate flips every active record targeting (index, objectID) to
// inactive. Individual failures are swallowed; the number of records changed
// is returned.
func (s *Service) Deactivate(ctx context.Context, index, objectID string) int {
	return s.deactivateWhere(ctx, "engagement.deactivate", []store.Where{
		{Field: "index", Op: store.OpEq, Value: index},
		{Field: "objectID", Op: store.OpEq, Value: objectID},
		{Field: "active", Op: store.OpEq, Value: true},
	})
}

// DeactivateActor flips every active record made by uid to inactive.
func (s *Service) DeactivateActor(ctx context.Context, uid string) int {
	return s.deactivateWhere(ctx, "engagement.deactivate_actor", []store.Where{
		{Field: "uid", Op: store.OpEq, Value: uid},
		{Field: "active", Op: store.OpEq, Value: true},
	})
}

func (s *Service) deactivateWhere(ctx context.Context, op string, where []store.Where) int {
	docs, err := s.store.Query(ctx, Collection, store.Query{Where: where})
	if err != nil {
		metrics.BestEffort(op, err)
		return 0
	}
	n := 0
	for _, d := range docs {
		id, _ := d["id"].(string)
		if err := s.store.Set(ctx, Collection, id, store.Doc{"active": false}, store.SetOptions{Merge: true}); err != nil {
			metrics.BestEffort(op, err, "id", id)
			continue
		}
		n++
	}
	return n
}

func (s *Service) put(ctx context.Context, e models.Engagement) error {
	doc, err := store.Encode(e)
	if err != nil {
		return fmt.Errorf("encode engagement: %w", err)
	}
	if err := s.store.Set(ctx, Collection, e.ID, doc, store.SetOptions{}); err != nil {
		return apperr.DataLoss(apperr.OriginStore, "failed to save", err)
	}
	return nil
}

// syncActorList keeps the actor's denormalized id list in step with like and
// follow records. Read-then-write without a guard; concurrent toggles by the
// same actor may race.
func (s *Service) syncActorList(ctx context.Context, actor Actor, kind models.EngagementKind, index, objectID string, add bool) error {
	var path string
	switch kind {
	case models.EngageLike:
		if index != string(models.KindOpportunity) && index != string(models.KindCandidate) {
			return nil
		}
		path = "likes." + index
	case models.EngageFollow:
		path = "follows"
	default:
		return nil
	}
	doc, err := s.store.Get(ctx, string(actor.Kind), actor.UID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperr.DataLoss(apperr.OriginStore, "failed to load", err)
	}
	ids := store.Strings(doc, path)
	next := make([]any, 0, len(ids)+1)
	found := false
	for _, id := range ids {
		if id == objectID {
			found = true
			if !add {
				continue
			}
		}
		next = append(next, id)
	}
	if add && !found {
		next = append(next, objectID)
	}
	if add == found {
		return nil
	}
	if err := s.store.Set(ctx, string(actor.Kind), actor.UID, store.Nest(path, next), store.SetOptions{Merge: true}); err != nil {
		return apperr.DataLoss(apperr.OriginStore, "failed to save", err)
	}
	return nil
}
