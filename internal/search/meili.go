package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const (
	idxTasks       = "taskdoc_tasks"
	idxAttachments = "taskdoc_attachments"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	log     zerolog.Logger
	healthy atomic.Bool
	done    chan struct{}

	// indexed remembers the IDs pushed last time so Replace can delete
	// records that disappeared from the document.
	mu      sync.Mutex
	indexed map[string]map[string]struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error: the client reports unhealthy and a
// background loop reconnects.
func NewMeili(url, apiKey string, log zerolog.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client:  client,
		log:     log.With().Str("component", "meilisearch").Logger(),
		done:    make(chan struct{}),
		indexed: map[string]map[string]struct{}{},
	}

	if _, err := client.Health(); err != nil {
		m.log.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxTasks,
			primaryKey: "id",
			filterable: []string{"owner", "status", "priority", "blockId"},
			searchable: []string{"title", "content", "owner", "blockTitle"},
		},
		{
			uid:        idxAttachments,
			primaryKey: "id",
			filterable: []string{},
			searchable: []string{"originalName"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			m.log.Debug().Err(err).Str("index", idx.uid).Msg("create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			m.log.Warn().Err(err).Str("index", idx.uid).Msg("update filterable attributes")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.log.Warn().Err(err).Str("index", idx.uid).Msg("update searchable attributes")
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
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info().Msg("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxTasks, ResultTask},
		{idxAttachments, ResultAttachment},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		var filters []string
		if q.Owner != "" {
			filters = append(filters, fmt.Sprintf("owner = %q", q.Owner))
		}
		if q.Status != "" {
			filters = append(filters, fmt.Sprintf("status = %q", q.Status))
		}
		if ti.rtyp == ResultAttachment && len(filters) > 0 {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}
		if len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTasks:
		return ResultTask
	case idxAttachments:
		return ResultAttachment
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")

	switch rtyp {
	case ResultTask:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "content"), decodeString(hit, "content"))
		r.BlockID = decodeString(hit, "blockId")
		r.BlockTitle = decodeString(hit, "blockTitle")
		r.Owner = decodeString(hit, "owner")
		r.Status = decodeString(hit, "status")
	case ResultAttachment:
		r.Title = firstNonBlank(decodeFormattedString(hit, "originalName"), decodeString(hit, "originalName"))
		r.Snippet = decodeString(hit, "uploadTime")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// Replace upserts the snapshot and deletes records indexed by a previous
// call that are no longer present.
func (m *Meili) Replace(tasks []TaskRecord, attachments []AttachmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	attachmentIDs := make([]string, 0, len(attachments))
	for _, a := range attachments {
		attachmentIDs = append(attachmentIDs, a.ID)
	}

	if len(tasks) > 0 {
		if _, err := m.client.Index(idxTasks).AddDocuments(tasks, nil); err != nil {
			return fmt.Errorf("index tasks: %w", err)
		}
	}
	if len(attachments) > 0 {
		if _, err := m.client.Index(idxAttachments).AddDocuments(attachments, nil); err != nil {
			return fmt.Errorf("index attachments: %w", err)
		}
	}
	if err := m.prune(idxTasks, taskIDs); err != nil {
		return err
	}
	return m.prune(idxAttachments, attachmentIDs)
}

// prune must be called with m.mu held.
func (m *Meili) prune(uid string, current []string) error {
	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	for id := range m.indexed[uid] {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, err := m.client.Index(uid).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete %s from %s: %w", id, uid, err)
		}
	}
	m.indexed[uid] = keep
	return nil
}
