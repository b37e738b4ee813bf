// Package store is the authoritative document store contract and its
// implementations (MongoDB for production, in-memory for tests and local runs).
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("document not found")

// Doc is a schemaless document; nested objects are Doc values as well.
type Doc map[string]any

type SetOptions struct {
	// Merge deep-merges nested objects into the existing document instead of
	// replacing it.
	Merge bool
}

type Op string

const (
	OpEq            Op = "=="
	OpNe            Op = "!="
	OpLt            Op = "<"
	OpLte           Op = "<="
	OpGt            Op = ">"
	OpGte           Op = ">="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

// Where is a single clause; Field may be a dotted path.
type Where struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Where   []Where
	OrderBy string
	Desc    bool
	Limit   int
}

// DocumentStore is the source of truth for entity state.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Set(ctx context.Context, collection, id string, doc Doc, opts SetOptions) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
}

// Decode converts a document into a bson-tagged struct.
func Decode(doc Doc, v any) error {
	b, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(b, v)
}

// Encode converts a bson-tagged struct into a document.
func Encode(v any) (Doc, error) {
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return normalize(map[string]any(m)).(Doc), nil
}

// normalize rewrites driver-specific container types into Doc / []any so
// callers can type-switch on plain Go types.
func normalize(v any) any {
	switch t := v.(type) {
	case Doc:
		out := make(Doc, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case map[string]any:
		return normalize(Doc(t))
	case bson.M:
		return normalize(Doc(t))
	case bson.D:
		out := make(Doc, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	case primitive.DateTime:
		return t.Time().UnixMilli()
	default:
		return v
	}
}

// Lookup resolves a dotted path inside doc.
func Lookup(doc Doc, path string) (any, bool) {
	var cur any = doc
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		m, ok := cur.(Doc)
		if !ok {
			if mm, ok2 := cur.(map[string]any); ok2 {
				m = Doc(mm)
			} else {
				return nil, false
			}
		}
		cur, ok = m[path[start:i]]
		if !ok {
			return nil, false
		}
		start = i + 1
	}
	return cur, true
}

// Strings reads a string list stored at path; missing paths yield nil.
func Strings(doc Doc, path string) []string {
	v, ok := Lookup(doc, path)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Nest builds a nested document from a dotted path, e.g. Nest("posts.matters", ids)
// yields {"posts": {"matters": ids}}.
func Nest(path string, value any) Doc {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return Nest(path[:i], Doc{path[i+1:]: value})
		}
	}
	return Doc{path: value}
}
