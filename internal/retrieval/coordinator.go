package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/logger"
)

// IngestStats summarizes one ingestion pass.
type IngestStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Coordinator runs ingestion (source -> chunker -> index) and answers searches.
type Coordinator struct {
	source    Source
	chunker   Chunker
	index     *Index
	snapshots SnapshotStore
	log       *logger.Logger
	sf        singleflight.Group

	mu     sync.RWMutex
	topics []string
}

// NewCoordinator wires a coordinator. chunker defaults to the structural policy
// and snapshots may be nil.
func NewCoordinator(source Source, chunker Chunker, index *Index, snapshots SnapshotStore, log *logger.Logger) *Coordinator {
	if chunker == nil {
		chunker = StructuralChunker{Size: 400}
	}
	if index == nil {
		index = NewIndex(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		source:    source,
		chunker:   chunker,
		index:     index,
		snapshots: snapshots,
		log:       log.With("component", "RetrievalCoordinator"),
	}
}

// Ingest replaces the index with a fresh pass over the source. Concurrent
// callers share a single run.
func (c *Coordinator) Ingest(ctx context.Context) (IngestStats, error) {
	v, err, _ := c.sf.Do("ingest", func() (interface{}, error) {
		return c.ingest(ctx)
	})
	if err != nil {
		return IngestStats{}, err
	}
	return v.(IngestStats), nil
}

func (c *Coordinator) ingest(ctx context.Context) (IngestStats, error) {
	if c.source == nil {
		return IngestStats{}, errors.New("no document source configured")
	}
	docs, err := c.source.Documents(ctx)
	if err != nil {
		return IngestStats{}, err
	}

	var chunks []domain.DocumentChunk
	for _, doc := range docs {
		batch := c.chunker.Chunk(doc)
		c.log.Debug("chunked document", "source", doc.Name, "chunks", len(batch))
		chunks = append(chunks, batch...)
	}
	c.index.Replace(chunks)
	c.setTopicsFromIndex()

	if c.snapshots != nil {
		if err := c.saveSnapshot(ctx); err != nil {
			c.log.Warn("snapshot save failed", "error", err)
		}
	}
	stats := IngestStats{Documents: len(docs), Chunks: c.index.Len()}
	c.log.Info("ingestion complete", "documents", stats.Documents, "chunks", stats.Chunks)
	return stats, nil
}

// Restore loads the last saved snapshot. It reports false when none exists.
func (c *Coordinator) Restore(ctx context.Context) (bool, error) {
	if c.snapshots == nil {
		return false, nil
	}
	blob, err := c.snapshots.LoadSnapshot(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if err := c.index.Load(bytes.NewReader(blob)); err != nil {
		return false, err
	}
	c.setTopicsFromIndex()
	c.log.Info("index restored from snapshot", "chunks", c.index.Len())
	return true, nil
}

// Search returns up to k chunks relevant to query.
func (c *Coordinator) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.index.Search(query, k), nil
}

// Topics lists the topics of the ingested documents in source order.
func (c *Coordinator) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.topics...)
}

func (c *Coordinator) saveSnapshot(ctx context.Context) error {
	var buf bytes.Buffer
	if err := c.index.Save(&buf); err != nil {
		return err
	}
	return c.snapshots.SaveSnapshot(ctx, buf.Bytes())
}

func (c *Coordinator) setTopicsFromIndex() {
	seen := make(map[string]struct{})
	var sources []string
	for _, chunk := range c.index.Chunks() {
		if _, ok := seen[chunk.Source]; ok {
			continue
		}
		seen[chunk.Source] = struct{}{}
		sources = append(sources, chunk.Source)
	}
	sort.Strings(sources)
	topics := make([]string, 0, len(sources))
	named := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		name := TopicName(s)
		if _, ok := named[name]; ok {
			continue
		}
		named[name] = struct{}{}
		topics = append(topics, name)
	}

	c.mu.Lock()
	c.topics = topics
	c.mu.Unlock()
}
