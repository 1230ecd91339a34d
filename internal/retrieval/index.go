package retrieval

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"quiz-pipeline-service/internal/domain"
)

// SearchResult pairs a chunk with its similarity to the query.
type SearchResult struct {
	Chunk domain.DocumentChunk `json:"chunk"`
	Score float64              `json:"similarity_score"`
}

// Index is an in-memory brute-force cosine similarity store. Results with
// equal scores keep insertion order.
type Index struct {
	embedder Embedder

	mu       sync.RWMutex
	order    []string
	vectors  map[string][]float64
	metadata map[string]domain.DocumentChunk
}

type snapshot struct {
	Order    []string                        `msgpack:"order"`
	Vectors  map[string][]float64            `msgpack:"vectors"`
	Metadata map[string]domain.DocumentChunk `msgpack:"metadata"`
}

func NewIndex(embedder Embedder) *Index {
	if embedder == nil {
		embedder = NewTermFrequencyEmbedder(nil)
	}
	return &Index{
		embedder: embedder,
		vectors:  make(map[string][]float64),
		metadata: make(map[string]domain.DocumentChunk),
	}
}

// Add embeds and stores chunks. Re-adding an id replaces its content but
// keeps its original position.
func (ix *Index) Add(chunks []domain.DocumentChunk) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range chunks {
		if _, ok := ix.vectors[c.ID]; !ok {
			ix.order = append(ix.order, c.ID)
		}
		ix.vectors[c.ID] = ix.embedder.Embed(c.Content)
		ix.metadata[c.ID] = c
	}
	return len(chunks)
}

// Replace swaps the whole index content for chunks.
func (ix *Index) Replace(chunks []domain.DocumentChunk) int {
	order := make([]string, 0, len(chunks))
	vectors := make(map[string][]float64, len(chunks))
	metadata := make(map[string]domain.DocumentChunk, len(chunks))
	for _, c := range chunks {
		if _, ok := vectors[c.ID]; !ok {
			order = append(order, c.ID)
		}
		vectors[c.ID] = ix.embedder.Embed(c.Content)
		metadata[c.ID] = c
	}

	ix.mu.Lock()
	ix.order, ix.vectors, ix.metadata = order, vectors, metadata
	ix.mu.Unlock()
	return len(order)
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.order)
}

// Chunks returns the stored chunks in insertion order.
func (ix *Index) Chunks() []domain.DocumentChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]domain.DocumentChunk, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.metadata[id])
	}
	return out
}

// Search returns up to k chunks ordered by descending cosine similarity.
// An empty index yields an empty slice.
func (ix *Index) Search(query string, k int) []SearchResult {
	if k <= 0 {
		return []SearchResult{}
	}
	q := ix.embedder.Embed(query)

	ix.mu.RLock()
	results := make([]SearchResult, 0, len(ix.order))
	for _, id := range ix.order {
		results = append(results, SearchResult{
			Chunk: ix.metadata[id],
			Score: cosine(q, ix.vectors[id]),
		})
	}
	ix.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Save writes the vectors and metadata as a single msgpack blob.
func (ix *Index) Save(w io.Writer) error {
	ix.mu.RLock()
	snap := snapshot{Order: ix.order, Vectors: ix.vectors, Metadata: ix.metadata}
	err := msgpack.NewEncoder(w).Encode(&snap)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// Load replaces the index content with a blob produced by Save.
func (ix *Index) Load(r io.Reader) error {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	if snap.Vectors == nil {
		snap.Vectors = make(map[string][]float64)
	}
	if snap.Metadata == nil {
		snap.Metadata = make(map[string]domain.DocumentChunk)
	}
	order := make([]string, 0, len(snap.Order))
	for _, id := range snap.Order {
		if _, ok := snap.Vectors[id]; ok {
			order = append(order, id)
		}
	}

	ix.mu.Lock()
	ix.order, ix.vectors, ix.metadata = order, snap.Vectors, snap.Metadata
	ix.mu.Unlock()
	return nil
}
