package models

import "fmt"

// EngagementKind is the type of join record between an actor and a target.
type EngagementKind string

const (
	EngageLike    EngagementKind = "like"
	EngageOutput  EngagementKind = "output"
	EngageEntry   EngagementKind = "entry"
	EngageHistory EngagementKind = "history"
	EngageFollow  EngagementKind = "follow"
	EngageRequest EngagementKind = "request"
	EngageLogin   EngagementKind = "login"
)

// Distinct reports whether counts of this kind are deduplicated by actor.
func (k EngagementKind) Distinct() bool {
	return k == EngageLogin
}

// Engagement links one account (UID) to one listing or account (Index, ObjectID).
type Engagement struct {
	ID       string         `bson:"id" json:"id"`
	UID      string         `bson:"uid" json:"uid"`
	Kind     EngagementKind `bson:"kind" json:"kind"`
	Index    string         `bson:"index" json:"index"`
	ObjectID string         `bson:"objectID" json:"objectID"`
	Active   bool           `bson:"active" json:"active"`
	Status   Status         `bson:"status,omitempty" json:"status,omitempty"`
	At       int64          `bson:"at" json:"at"`
}

// EngagementID is the deterministic key of the (actor, kind, target) tuple.
func EngagementID(uid string, kind EngagementKind, index, objectID string) string {
	return fmt.Sprintf("%s_%s_%s_%s", uid, kind, index, objectID)
}
