// Package view turns projection hits into caller-specific shaped views: it
// joins each hit back to the authoritative store, decides visibility from the
// subject's current status and redacts fields by caller capability.
package view

import (
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
)

// Kind is the closed set of view variants.
type Kind int

const (
	KindOpportunity Kind = iota + 1
	KindCandidate
	KindOrganization
	KindPerson
)

// KindOf maps a projection index onto its variant.
func KindOf(index string) (Kind, bool) {
	switch index {
	case string(models.KindOpportunity):
		return KindOpportunity, true
	case string(models.KindCandidate):
		return KindCandidate, true
	case string(models.KindOrganization):
		return KindOrganization, true
	case string(models.KindIndividual):
		return KindPerson, true
	}
	return 0, false
}

// Index returns the projection index of k.
func (k Kind) Index() string {
	switch k {
	case KindOpportunity:
		return string(models.KindOpportunity)
	case KindCandidate:
		return string(models.KindCandidate)
	case KindOrganization:
		return string(models.KindOrganization)
	case KindPerson:
		return string(models.KindIndividual)
	}
	return ""
}

type Mode int

const (
	// ModeList drops hits whose subject is disqualified.
	ModeList Mode = iota
	// ModeDetail replaces them with a placeholder.
	ModeDetail
)

type Viewer struct {
	UID        string
	Capability gate.Capability
}

// ViewerOf builds the viewer of a successful authorization.
func ViewerOf(g *gate.Grant) Viewer {
	return Viewer{UID: g.UID(), Capability: g.Capability}
}

// View is one of OpportunityView, CandidateView, OrgView or PersonView.
type View interface {
	ID() string
	isView()
}

// PlaceholderName replaces the name of a subject that can no longer be shown.
const PlaceholderName = "non-existent user"

// PlaceholderBody replaces free text for viewers without a current subscription.
const PlaceholderBody = "Subscribe to read the full details."

type Counters struct {
	Likes     int `json:"likes"`
	Outputs   int `json:"outputs"`
	Entries   int `json:"entries"`
	Views     int `json:"views"`
	Followers int `json:"followers"`
}

// Owner is the listing owner's public face; contact fields appear only when
// the viewer may see them.
type Owner struct {
	UID    string `json:"uid,omitempty"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Person string `json:"person,omitempty"`
	Email  string `json:"email,omitempty"`
	Tel    string `json:"tel,omitempty"`
}

type listingFields struct {
	ObjectID    string         `json:"objectID"`
	UID         string         `json:"uid,omitempty"`
	Index       string         `json:"index"`
	Display     string         `json:"display,omitempty"`
	Status      string         `json:"status,omitempty"`
	Position    string         `json:"position,omitempty"`
	Body        string         `json:"body,omitempty"`
	Handles     []string       `json:"handles,omitempty"`
	Location    string         `json:"location,omitempty"`
	Remote      string         `json:"remote,omitempty"`
	Period      *models.Period `json:"period,omitempty"`
	Costs       *models.Costs  `json:"costs,omitempty"`
	Memo        string         `json:"memo,omitempty"`
	Owner       *Owner         `json:"owner,omitempty"`
	Counters    *Counters      `json:"counters,omitempty"`
	Liked       bool           `json:"liked,omitempty"`
	Placeholder bool           `json:"placeholder,omitempty"`
	CreateAt    int64          `json:"createAt,omitempty"`
	UpdateAt    int64          `json:"updateAt,omitempty"`
}

type OpportunityView struct {
	listingFields
	Title string `json:"title,omitempty"`
}

type CandidateView struct {
	listingFields
	Name   *models.Name `json:"name,omitempty"`
	Belong string       `json:"belong,omitempty"`
}

type OrgView struct {
	UID         string          `json:"uid"`
	Type        string          `json:"type,omitempty"`
	Status      string          `json:"status,omitempty"`
	Name        string          `json:"name"`
	Person      string          `json:"person,omitempty"`
	Body        string          `json:"body,omitempty"`
	URL         string          `json:"url,omitempty"`
	Address     string          `json:"address,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Email       string          `json:"email,omitempty"`
	Tel         string          `json:"tel,omitempty"`
	Payment     *models.Payment `json:"payment,omitempty"`
	Counters    *Counters       `json:"counters,omitempty"`
	Followed    bool            `json:"followed,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`
	CreateAt    int64           `json:"createAt,omitempty"`
}

type PersonView struct {
	UID         string    `json:"uid"`
	Status      string    `json:"status,omitempty"`
	Name        string    `json:"name"`
	Body        string    `json:"body,omitempty"`
	Position    string    `json:"position,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Email       string    `json:"email,omitempty"`
	Tel         string    `json:"tel,omitempty"`
	Counters    *Counters `json:"counters,omitempty"`
	Followed    bool      `json:"followed,omitempty"`
	Placeholder bool      `json:"placeholder,omitempty"`
	CreateAt    int64     `json:"createAt,omitempty"`
}

func (v *OpportunityView) ID() string { return v.ObjectID }
func (v *CandidateView) ID() string   { return v.ObjectID }
func (v *OrgView) ID() string         { return v.UID }
func (v *PersonView) ID() string      { return v.UID }

func (*OpportunityView) isView() {}
func (*CandidateView) isView()   {}
func (*OrgView) isView()         {}
func (*PersonView) isView()      {}
