package models

// ListingKind names the collection (and projection index) a listing lives in.
type ListingKind string

const (
	KindOpportunity ListingKind = "matters"
	KindCandidate   ListingKind = "resources"
)

func (k ListingKind) Valid() bool {
	return k == KindOpportunity || k == KindCandidate
}

const (
	ListingStatusNew     = "new"
	ListingStatusFilled  = "filled"
	ListingStatusDeleted = "deleted"
)

type Period struct {
	Year  int `bson:"year" json:"year"`
	Month int `bson:"month" json:"month"`
}

// Costs is the rate range of a listing. Mid is derived from Min/Max when the
// listing is written and stored in both stores.
type Costs struct {
	Min     int    `bson:"min" json:"min"`
	Max     int    `bson:"max" json:"max"`
	Mid     int    `bson:"mid" json:"mid"`
	Display string `bson:"display" json:"display"`
	Type    string `bson:"type,omitempty" json:"type,omitempty"`
}

// WithMid returns a copy of c with Mid recomputed.
func (c Costs) WithMid() Costs {
	switch {
	case c.Min > 0 && c.Max > 0:
		c.Mid = (c.Min + c.Max) / 2
	case c.Max > 0:
		c.Mid = c.Max
	default:
		c.Mid = c.Min
	}
	return c
}

type Name struct {
	First string `bson:"first" json:"first"`
	Last  string `bson:"last" json:"last"`
}

// Listing is an Opportunity ("matters") or Candidate ("resources") owned by one
// Organization. Name and Belong only apply to candidates.
type Listing struct {
	ObjectID string      `bson:"objectID" json:"objectID"`
	UID      string      `bson:"uid" json:"uid"`
	Index    ListingKind `bson:"index" json:"index"`
	Display  string      `bson:"display" json:"display"`
	Status   string      `bson:"status" json:"status"`
	Title    string      `bson:"title,omitempty" json:"title,omitempty"`
	Body     string      `bson:"body,omitempty" json:"body,omitempty"`
	Position string      `bson:"position,omitempty" json:"position,omitempty"`
	Handles  []string    `bson:"handles,omitempty" json:"handles,omitempty"`
	Location string      `bson:"location,omitempty" json:"location,omitempty"`
	Remote   string      `bson:"remote,omitempty" json:"remote,omitempty"`
	Period   Period      `bson:"period" json:"period"`
	Costs    Costs       `bson:"costs" json:"costs"`
	Name     *Name       `bson:"name,omitempty" json:"name,omitempty"`
	Belong   string      `bson:"belong,omitempty" json:"belong,omitempty"`
	Memo     string      `bson:"memo,omitempty" json:"memo,omitempty"`
	CreateAt int64       `bson:"createAt" json:"createAt"`
	UpdateAt int64       `bson:"updateAt" json:"updateAt"`
}
