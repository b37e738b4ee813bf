package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory DocumentStore used by unit tests and local runs
// without MongoDB.
type MemoryStore struct {
	mu   sync.RWMutex
	cols map[string]map[string]Doc
	// FailSet, when set, is returned by Set for the named collection.
	failSet map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cols: make(map[string]map[string]Doc), failSet: map[string]error{}}
}

// FailWrites makes every subsequent Set/Delete on collection return err (nil clears it).
func (m *MemoryStore) FailWrites(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failSet, collection)
		return
	}
	m.failSet[collection] = err
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return normalize(d).(Doc), nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, doc Doc, opts SetOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSet[collection]; err != nil {
		return err
	}
	col, ok := m.cols[collection]
	if !ok {
		col = make(map[string]Doc)
		m.cols[collection] = col
	}
	in := normalize(doc).(Doc)
	if cur, exists := col[id]; exists && opts.Merge {
		deepMerge(cur, in)
		return nil
	}
	col[id] = in
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSet[collection]; err != nil {
		return err
	}
	delete(m.cols[collection], id)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Doc{}
	for _, d := range m.cols[collection] {
		match := true
		for _, w := range q.Where {
			ok, err := matchWhere(d, w)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			out = append(out, normalize(d).(Doc))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := Lookup(out[i], q.OrderBy)
			b, _ := Lookup(out[j], q.OrderBy)
			c, _ := compare(a, b)
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func deepMerge(dst, src Doc) {
	for k, v := range src {
		if sv, ok := v.(Doc); ok {
			if dv, ok := dst[k].(Doc); ok {
				deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

func matchWhere(d Doc, w Where) (bool, error) {
	v, found := Lookup(d, w.Field)
	switch w.Op {
	case OpEq:
		return found && equal(v, w.Value), nil
	case OpNe:
		return !found || !equal(v, w.Value), nil
	case OpLt, OpLte, OpGt, OpGte:
		if !found {
			return false, nil
		}
		c, ok := compare(v, w.Value)
		if !ok {
			return false, nil
		}
		switch w.Op {
		case OpLt:
			return c < 0, nil
		case OpLte:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case OpIn:
		if !found {
			return false, nil
		}
		for _, x := range normalize(w.Value).([]any) {
			if equal(v, x) {
				return true, nil
			}
		}
		return false, nil
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false, nil
		}
		for _, x := range arr {
			if equal(x, w.Value) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unsupported operator %q", w.Op)
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return a == b
}

// compare orders numbers and strings; ok is false for incomparable values.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, ok := a.(string)
	if !ok {
		return 0, false
	}
	bs, ok := b.(string)
	if !ok {
		return 0, false
	}
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
