package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryProjection is an in-memory Projection used by tests and local runs.
// Text search is a case-insensitive substring match over string fields; hits
// are ordered by createAt, newest first.
type MemoryProjection struct {
	mu      sync.RWMutex
	indexes map[string]map[string]Hit
	failing map[string]error
}

func NewMemoryProjection() *MemoryProjection {
	return &MemoryProjection{indexes: map[string]map[string]Hit{}, failing: map[string]error{}}
}

// FailWrites makes writes to index return err until cleared with nil.
func (m *MemoryProjection) FailWrites(index string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, index)
		return
	}
	m.failing[index] = err
}

func (m *MemoryProjection) GetObject(ctx context.Context, index, id string) (Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.indexes[index][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneHit(h), nil
}

func (m *MemoryProjection) GetObjects(ctx context.Context, index string, ids []string) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Hit, len(ids))
	for i, id := range ids {
		if h, ok := m.indexes[index][id]; ok {
			out[i] = cloneHit(h)
		}
	}
	return out, nil
}

func (m *MemoryProjection) Search(ctx context.Context, index, text string, opts Options) (*Result, error) {
	m.mu.RLock()
	matched := []Hit{}
	q := strings.ToLower(strings.TrimSpace(text))
	for _, h := range m.indexes[index] {
		if opts.Filter != nil && !opts.Filter.Match(h) {
			continue
		}
		if q != "" && !containsText(h, q) {
			continue
		}
		matched = append(matched, cloneHit(h))
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, _ := number(matched[i]["createAt"])
		b, _ := number(matched[j]["createAt"])
		if a == b {
			return matched[i].ObjectID() < matched[j].ObjectID()
		}
		return a > b
	})

	per := opts.HitsPerPage
	if per <= 0 {
		per = DefaultHitsPerPage
	}
	total := len(matched)
	res := &Result{Hits: []Hit{}, TotalHits: total, TotalPages: (total + per - 1) / per}
	start := opts.Page * per
	if start < total {
		end := start + per
		if end > total {
			end = total
		}
		res.Hits = matched[start:end]
	}
	return res, nil
}

func (m *MemoryProjection) PartialUpdateObject(ctx context.Context, index string, obj Hit, createIfNotExists bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[index]; err != nil {
		return err
	}
	id := obj.ObjectID()
	idx, ok := m.indexes[index]
	if !ok {
		idx = map[string]Hit{}
		m.indexes[index] = idx
	}
	cur, exists := idx[id]
	if !exists {
		if !createIfNotExists {
			return nil
		}
		cur = Hit{"objectID": id}
		idx[id] = cur
	}
	for k, v := range cloneHit(obj) {
		cur[k] = v
	}
	return nil
}

func (m *MemoryProjection) DeleteObject(ctx context.Context, index, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[index]; err != nil {
		return err
	}
	delete(m.indexes[index], id)
	return nil
}

func containsText(h Hit, q string) bool {
	for _, v := range h {
		switch t := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(t), q) {
				return true
			}
		case []any:
			for _, x := range t {
				if s, ok := x.(string); ok && strings.Contains(strings.ToLower(s), q) {
					return true
				}
			}
		}
	}
	return false
}

func cloneHit(h Hit) Hit {
	out := make(Hit, len(h))
	for k, v := range h {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		a := make([]any, len(t))
		for i, x := range t {
			a[i] = cloneValue(x)
		}
		return a
	default:
		return v
	}
}
