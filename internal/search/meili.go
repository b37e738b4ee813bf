package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/matchbase/marketplace/pkg/logger"
)

// IndexSettings declares which projected attributes are searchable and filterable.
type IndexSettings struct {
	UID        string
	Filterable []string
	Searchable []string
}

// DefaultSettings covers the four marketplace indexes.
func DefaultSettings() []IndexSettings {
	listing := []string{"uid", "display", "status", "handles", "location", "remote", "position"}
	account := []string{"uid", "status", "type"}
	return []IndexSettings{
		{UID: "matters", Filterable: listing, Searchable: []string{"title", "position", "handles", "location"}},
		{UID: "resources", Filterable: listing, Searchable: []string{"position", "handles", "location", "belong"}},
		{UID: "companys", Filterable: account, Searchable: []string{"name", "person", "body"}},
		{UID: "persons", Filterable: account, Searchable: []string{"name", "body", "position"}},
	}
}

// Meili implements Projection on Meilisearch. Index names are prefixed so
// several environments can share one instance.
type Meili struct {
	client   meili.ServiceManager
	prefix   string
	settings []IndexSettings
	healthy  atomic.Bool
	done     chan struct{}
}

// NewMeili creates the client, configures the indexes and starts a background
// health monitor. An unreachable server is tolerated; writes fail until it recovers.
func NewMeili(url, apiKey, prefix string, settings []IndexSettings) *Meili {
	m := &Meili{
		client:   meili.New(url, meili.WithAPIKey(apiKey)),
		prefix:   prefix,
		settings: settings,
		done:     make(chan struct{}),
	}
	if _, err := m.client.Health(); err != nil {
		logger.Warnf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}
	go m.healthLoop()
	return m
}

func (m *Meili) uid(index string) string { return m.prefix + index }

func (m *Meili) configureIndexes() {
	for _, s := range m.settings {
		uid := m.uid(s.UID)
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: uid, PrimaryKey: "objectID"}); err != nil {
			logger.Debugf("search: create index %s (may already exist): %v", uid, err)
		}
		index := m.client.Index(uid)
		filterable := make([]interface{}, len(s.Filterable))
		for i, v := range s.Filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			logger.Warnf("search: update filterable attrs for %s: %v", uid, err)
		}
		searchable := append([]string(nil), s.Searchable...)
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			logger.Warnf("search: update searchable attrs for %s: %v", uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !was {
				logger.Infof("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the health monitor.
func (m *Meili) Close() { close(m.done) }

// Healthy reports whether Meilisearch answered the last health probe.
func (m *Meili) Healthy() bool { return m.healthy.Load() }

func (m *Meili) GetObject(ctx context.Context, index, id string) (Hit, error) {
	var doc map[string]any
	if err := m.client.Index(m.uid(index)).GetDocument(id, nil, &doc); err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("meilisearch get %s/%s: %w", index, id, err)
	}
	return Hit(doc), nil
}

// GetObjects fetches ids in one request and returns them in request order.
func (m *Meili) GetObjects(ctx context.Context, index string, ids []string) ([]Hit, error) {
	if len(ids) == 0 {
		return []Hit{}, nil
	}
	var resp meili.DocumentsResult
	err := m.client.Index(m.uid(index)).GetDocumentsWithContext(ctx, &meili.DocumentsQuery{
		Ids:   ids,
		Limit: int64(len(ids)),
	}, &resp)
	if err != nil {
		if isNotFound(err) {
			return make([]Hit, len(ids)), nil
		}
		return nil, fmt.Errorf("meilisearch get %s (%d ids): %w", index, len(ids), err)
	}
	found := make([]Hit, 0, len(resp.Results))
	for _, raw := range resp.Results {
		h, err := decodeHit(raw)
		if err != nil {
			return nil, err
		}
		found = append(found, h)
	}
	return inOrder(ids, found), nil
}

// inOrder lines hits up with ids; ids without a hit are nil.
func inOrder(ids []string, hits []Hit) []Hit {
	byID := make(map[string]Hit, len(hits))
	for _, h := range hits {
		byID[h.ObjectID()] = h
	}
	out := make([]Hit, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}

func (m *Meili) Search(ctx context.Context, index, text string, opts Options) (*Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	per := opts.HitsPerPage
	if per <= 0 {
		per = DefaultHitsPerPage
	}
	req := &meili.SearchRequest{
		Page:        int64(opts.Page + 1),
		HitsPerPage: int64(per),
	}
	if opts.Filter != nil {
		if f := opts.Filter.String(); f != "" {
			req.Filter = f
		}
	}
	resp, err := m.client.Index(m.uid(index)).Search(text, req)
	if err != nil {
		return nil, fmt.Errorf("meilisearch search %s: %w", index, err)
	}
	res := &Result{Hits: make([]Hit, 0, len(resp.Hits)), TotalHits: int(resp.TotalHits), TotalPages: int(resp.TotalPages)}
	for _, raw := range resp.Hits {
		h, err := decodeHit(raw)
		if err != nil {
			return nil, err
		}
		res.Hits = append(res.Hits, h)
	}
	return res, nil
}

func (m *Meili) PartialUpdateObject(ctx context.Context, index string, obj Hit, createIfNotExists bool) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if !createIfNotExists {
		if _, err := m.GetObject(ctx, index, obj.ObjectID()); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
	}
	docs := []map[string]any{map[string]any(obj)}
	if _, err := m.client.Index(m.uid(index)).UpdateDocuments(docs, nil); err != nil {
		return fmt.Errorf("meilisearch update %s/%s: %w", index, obj.ObjectID(), err)
	}
	return nil
}

func (m *Meili) DeleteObject(ctx context.Context, index, id string) error {
	if _, err := m.client.Index(m.uid(index)).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("meilisearch delete %s/%s: %w", index, id, err)
	}
	return nil
}

func decodeHit(raw meili.Hit) (Hit, error) {
	h := make(Hit, len(raw))
	for k, v := range raw {
		if k == "_formatted" || k == "_rankingScore" {
			continue
		}
		var x any
		if err := json.Unmarshal(v, &x); err != nil {
			return nil, fmt.Errorf("decode hit field %s: %w", k, err)
		}
		h[k] = x
	}
	return h, nil
}

func isNotFound(err error) bool {
	var me *meili.Error
	return errors.As(err, &me) && me.StatusCode == http.StatusNotFound
}
