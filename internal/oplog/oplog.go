// Package oplog records operations that need operator attention, chiefly dual
// writes whose projection half failed.
package oplog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matchbase/marketplace/internal/store"
)

const Collection = "logs"

const KindProjection = "projection"

// Entry is one admin-visible log record.
type Entry struct {
	ID       string `bson:"id" json:"id"`
	Kind     string `bson:"kind" json:"kind"`
	Index    string `bson:"index" json:"index"`
	ObjectID string `bson:"objectID" json:"objectID"`
	Origin   string `bson:"origin" json:"origin"`
	Message  string `bson:"message" json:"message"`
	Resolved bool   `bson:"resolved" json:"resolved"`
	At       int64  `bson:"at" json:"at"`
}

type Log struct {
	store store.DocumentStore
	now   func() time.Time
}

func New(s store.DocumentStore) *Log {
	return &Log{store: s, now: time.Now}
}

// Record appends an unresolved entry and returns its id.
func (l *Log) Record(ctx context.Context, kind, index, objectID, origin, message string) (string, error) {
	id := uuid.NewString()
	doc := store.Doc{
		"id":       id,
		"kind":     kind,
		"index":    index,
		"objectID": objectID,
		"origin":   origin,
		"message":  message,
		"resolved": false,
		"at":       l.now().UnixMilli(),
	}
	if err := l.store.Set(ctx, Collection, id, doc, store.SetOptions{}); err != nil {
		return "", fmt.Errorf("record oplog entry: %w", err)
	}
	return id, nil
}

// Pending lists unresolved entries of kind, oldest first.
func (l *Log) Pending(ctx context.Context, kind string, limit int) ([]Entry, error) {
	docs, err := l.store.Query(ctx, Collection, store.Query{
		Where: []store.Where{
			{Field: "kind", Op: store.OpEq, Value: kind},
			{Field: "resolved", Op: store.OpEq, Value: false},
		},
		OrderBy: "at",
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		var e Entry
		if err := store.Decode(d, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *Log) Resolve(ctx context.Context, id string) error {
	return l.store.Set(ctx, Collection, id, store.Doc{"resolved": true}, store.SetOptions{Merge: true})
}
