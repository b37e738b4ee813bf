package view

import (
	"context"

	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/pkg/metrics"
)

var listingCounters = []models.EngagementKind{
	models.EngageLike, models.EngageOutput, models.EngageEntry, models.EngageHistory,
}

// attach adds counters and the viewer's own like/follow flag to detail views.
// Every lookup is best-effort.
func (m *Materializer) attach(ctx context.Context, views []View, viewer Viewer) {
	if m.counters == nil {
		return
	}
	for _, v := range views {
		switch t := v.(type) {
		case *OpportunityView:
			m.attachListing(ctx, &t.listingFields, viewer)
		case *CandidateView:
			m.attachListing(ctx, &t.listingFields, viewer)
		case *OrgView:
			if !t.Placeholder {
				t.Counters, t.Followed = m.accountCounters(ctx, models.KindOrganization, t.UID, viewer)
			}
		case *PersonView:
			if !t.Placeholder {
				t.Counters, t.Followed = m.accountCounters(ctx, models.KindIndividual, t.UID, viewer)
			}
		}
	}
}

func (m *Materializer) attachListing(ctx context.Context, f *listingFields, viewer Viewer) {
	c := m.counters.Counts(ctx, f.Index, f.ObjectID, listingCounters...)
	f.Counters = &Counters{
		Likes:   c[models.EngageLike],
		Outputs: c[models.EngageOutput],
		Entries: c[models.EngageEntry],
		Views:   c[models.EngageHistory],
	}
	if viewer.UID == "" {
		return
	}
	e, err := m.counters.Get(ctx, viewer.UID, models.EngageLike, f.Index, f.ObjectID)
	metrics.BestEffort("view.liked", err, "objectID", f.ObjectID)
	f.Liked = e != nil && e.Active
}

func (m *Materializer) accountCounters(ctx context.Context, kind models.AccountKind, uid string, viewer Viewer) (*Counters, bool) {
	c := m.counters.Counts(ctx, string(kind), uid, models.EngageFollow)
	out := &Counters{Followers: c[models.EngageFollow]}
	if viewer.UID == "" || viewer.UID == uid {
		return out, false
	}
	e, err := m.counters.Get(ctx, viewer.UID, models.EngageFollow, string(kind), uid)
	metrics.BestEffort("view.followed", err, "uid", uid)
	return out, e != nil && e.Active
}
