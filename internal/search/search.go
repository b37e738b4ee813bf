// Package search is the search projection contract: a denormalized,
// eventually-consistent mirror of accounts and listings used for querying and
// list rendering only.
package search

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

// Hit is a projection record; "objectID" is its primary key.
type Hit map[string]any

// ObjectID returns the record's primary key.
func (h Hit) ObjectID() string {
	s, _ := h["objectID"].(string)
	return s
}

// String reads a string field.
func (h Hit) String(key string) string {
	s, _ := h[key].(string)
	return s
}

type Options struct {
	Filter      Filter
	Page        int // zero-based
	HitsPerPage int
}

type Result struct {
	Hits       []Hit
	TotalHits  int
	TotalPages int
}

// Projection is the search index contract consumed by the core.
type Projection interface {
	GetObject(ctx context.Context, index, id string) (Hit, error)
	// GetObjects preserves the order of ids; misses are nil.
	GetObjects(ctx context.Context, index string, ids []string) ([]Hit, error)
	Search(ctx context.Context, index, text string, opts Options) (*Result, error)
	// PartialUpdateObject merges top-level fields of obj into the record keyed by
	// obj["objectID"]. When createIfNotExists is false a missing record is left absent.
	PartialUpdateObject(ctx context.Context, index string, obj Hit, createIfNotExists bool) error
	DeleteObject(ctx context.Context, index, id string) error
}

const DefaultHitsPerPage = 50
