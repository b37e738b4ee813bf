package search

import (
	"fmt"
	"strings"
)

// Filter is a flat boolean expression over projected fields. It renders to the
// Meilisearch filter syntax and can be evaluated against a Hit.
type Filter interface {
	String() string
	Match(h Hit) bool
}

type eq struct {
	field string
	value any
}

// Eq matches records whose field equals value (or contains it, for arrays).
func Eq(field string, value any) Filter { return eq{field: field, value: value} }

func (f eq) String() string { return fmt.Sprintf("%s = %s", f.field, literal(f.value)) }

func (f eq) Match(h Hit) bool {
	v, ok := h[f.field]
	if !ok {
		return false
	}
	if arr, ok := v.([]any); ok {
		for _, x := range arr {
			if same(x, f.value) {
				return true
			}
		}
		return false
	}
	if arr, ok := v.([]string); ok {
		for _, x := range arr {
			if same(x, f.value) {
				return true
			}
		}
		return false
	}
	return same(v, f.value)
}

type in struct {
	field  string
	values []any
}

// In matches records whose field equals any of values.
func In(field string, values ...any) Filter { return in{field: field, values: values} }

func (f in) String() string {
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = literal(v)
	}
	return fmt.Sprintf("%s IN [%s]", f.field, strings.Join(parts, ", "))
}

func (f in) Match(h Hit) bool {
	for _, v := range f.values {
		if (eq{field: f.field, value: v}).Match(h) {
			return true
		}
	}
	return false
}

type group struct {
	op    string
	terms []Filter
}

// And joins terms; nil terms are skipped.
func And(terms ...Filter) Filter { return group{op: "AND", terms: compact(terms)} }

// Or joins terms; nil terms are skipped.
func Or(terms ...Filter) Filter { return group{op: "OR", terms: compact(terms)} }

func (g group) String() string {
	if len(g.terms) == 0 {
		return ""
	}
	if len(g.terms) == 1 {
		return g.terms[0].String()
	}
	parts := make([]string, len(g.terms))
	for i, t := range g.terms {
		parts[i] = "(" + t.String() + ")"
	}
	return strings.Join(parts, " "+g.op+" ")
}

func (g group) Match(h Hit) bool {
	if len(g.terms) == 0 {
		return true
	}
	for _, t := range g.terms {
		m := t.Match(h)
		if g.op == "OR" && m {
			return true
		}
		if g.op == "AND" && !m {
			return false
		}
	}
	return g.op == "AND"
}

type not struct{ term Filter }

func Not(term Filter) Filter { return not{term: term} }

func (n not) String() string  { return "NOT (" + n.term.String() + ")" }
func (n not) Match(h Hit) bool { return !n.term.Match(h) }

func compact(terms []Filter) []Filter {
	out := make([]Filter, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func literal(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func same(a, b any) bool {
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
