package models

// AccountKind names the collection (and projection index) an account lives in.
type AccountKind string

const (
	KindOrganization AccountKind = "companys"
	KindIndividual   AccountKind = "persons"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	return k == KindOrganization || k == KindIndividual
}

type Status string

const (
	StatusHold    Status = "hold"
	StatusEnable  Status = "enable"
	StatusDisable Status = "disable"
)

type PaymentStatus string

const (
	PaymentActive   PaymentStatus = "active"
	PaymentTrialing PaymentStatus = "trialing"
	PaymentCanceled PaymentStatus = "canceled"
)

// Account types. Individuals carry TypeIndividual; organizations are either
// standalone (empty), parents of grouped accounts, or children.
const (
	TypeParent     = "parent"
	TypeChild      = "child"
	TypeIndividual = "individual"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type Profile struct {
	Name       string `bson:"name" json:"name"`
	Person     string `bson:"person,omitempty" json:"person,omitempty"`
	Body       string `bson:"body,omitempty" json:"body,omitempty"`
	Email      string `bson:"email,omitempty" json:"email,omitempty"`
	Tel        string `bson:"tel,omitempty" json:"tel,omitempty"`
	URL        string `bson:"url,omitempty" json:"url,omitempty"`
	Address    string `bson:"address,omitempty" json:"address,omitempty"`
	Position   string `bson:"position,omitempty" json:"position,omitempty"`
	Icon       string `bson:"icon,omitempty" json:"icon,omitempty"`
	Visibility string `bson:"visibility,omitempty" json:"visibility,omitempty"`
}

type PaymentOption struct {
	FreePlan bool `bson:"freePlan,omitempty" json:"freePlan,omitempty"`
	Direct   bool `bson:"direct,omitempty" json:"direct,omitempty"`
}

// Payment is the subscription sub-record. Children lists the grouped child
// accounts of a parent; Parent is set on children only.
type Payment struct {
	Status   PaymentStatus `bson:"status" json:"status"`
	Price    string        `bson:"price,omitempty" json:"price,omitempty"`
	Limit    int           `bson:"limit,omitempty" json:"limit,omitempty"`
	Parent   string        `bson:"parent,omitempty" json:"parent,omitempty"`
	Children []string      `bson:"children,omitempty" json:"children,omitempty"`
	Option   PaymentOption `bson:"option" json:"option"`
}

// Lists holds denormalized id lists keyed by listing index.
type Lists struct {
	Matters   []string `bson:"matters,omitempty" json:"matters,omitempty"`
	Resources []string `bson:"resources,omitempty" json:"resources,omitempty"`
}

// Get returns the ids stored for the given listing kind.
func (l Lists) Get(kind ListingKind) []string {
	if kind == KindCandidate {
		return l.Resources
	}
	return l.Matters
}

// Account is the authoritative identity record.
type Account struct {
	UID      string      `bson:"uid" json:"uid"`
	Kind     AccountKind `bson:"kind" json:"kind"`
	Type     string      `bson:"type,omitempty" json:"type,omitempty"`
	Status   Status      `bson:"status" json:"status"`
	Agree    Status      `bson:"agree" json:"agree"`
	Profile  Profile     `bson:"profile" json:"profile"`
	Payment  *Payment    `bson:"payment,omitempty" json:"payment,omitempty"`
	Posts    Lists       `bson:"posts" json:"posts"`
	Likes    Lists       `bson:"likes" json:"likes"`
	Follows  []string    `bson:"follows,omitempty" json:"follows,omitempty"`
	CreateAt int64       `bson:"createAt" json:"createAt"`
	UpdateAt int64       `bson:"updateAt" json:"updateAt"`
}

// Exempt reports whether the account is outside subscription gating.
func (a *Account) Exempt() bool {
	if a.Kind == KindIndividual {
		return true
	}
	return a.Payment != nil && a.Payment.Option.FreePlan
}

// Subscribed reports whether the account's own payment record is current.
func (a *Account) Subscribed() bool {
	if a.Payment == nil {
		return false
	}
	return a.Payment.Status == PaymentActive || a.Payment.Status == PaymentTrialing
}

// IsChild reports whether the account is a grouped child organization.
func (a *Account) IsChild() bool {
	return a.Kind == KindOrganization && a.Type == TypeChild
}

// ParentID returns the parent reference of a child account.
func (a *Account) ParentID() string {
	if a.Payment == nil {
		return ""
	}
	return a.Payment.Parent
}

// HasChild reports whether id appears in the account's children list.
func (a *Account) HasChild(id string) bool {
	if a.Payment == nil {
		return false
	}
	for _, c := range a.Payment.Children {
		if c == id {
			return true
		}
	}
	return false
}
