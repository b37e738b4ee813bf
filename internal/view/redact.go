package view

import (
	"unicode/utf8"

	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/models"
)

// Policy is the redaction key of one shaped view.
type Policy struct {
	IsOwner    bool
	Capability gate.Capability
	// ContactPublic is the subject's own visibility flag for contact details.
	ContactPublic bool
	// Placeholder marks a subject that failed the visibility decision.
	Placeholder bool
}

// full reports whether the viewer gets the public-safe field set.
func (p Policy) full() bool {
	return p.IsOwner || (p.Capability == gate.Full && !p.Placeholder)
}

// contact reports whether contact fields are visible.
func (p Policy) contact() bool {
	return p.IsOwner || (p.full() && p.ContactPublic)
}

// rates reports whether rate fields of a listing with the given display flag are visible.
func (p Policy) rates(display string) bool {
	return p.IsOwner || (p.full() && display == models.VisibilityPublic)
}

// truncate keeps the first character of s.
func truncate(s string) string {
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r) + "…"
}

func body(p Policy, s string) string {
	if p.full() || s == "" {
		return s
	}
	return PlaceholderBody
}

func name(p Policy, s string) string {
	if p.full() {
		return s
	}
	return truncate(s)
}
