package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// VectorEntry is one indexed embedding.
type VectorEntry struct {
	Key       string            `json:"key"`
	Vector    []float32         `json:"vector"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// VectorMatch is a search hit.
type VectorMatch struct {
	Key        string            `json:"key"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// VectorIndex stores embeddings and answers nearest-neighbour queries by
// cosine similarity.
type VectorIndex interface {
	Upsert(ctx context.Context, e VectorEntry) error
	// Search returns at most k matches with similarity >= threshold, most
	// similar first.
	Search(ctx context.Context, query []float32, k int, threshold float64) ([]VectorMatch, error)
	// DeleteOlderThan drops entries created before cutoff and reports how many.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors of
// different length or zero magnitude have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// FlatIndex is an exhaustive in-process index.
type FlatIndex struct {
	mu      sync.RWMutex
	entries map[string]VectorEntry
}

var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex returns an empty index.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{entries: make(map[string]VectorEntry)}
}

// Upsert implements VectorIndex.
func (f *FlatIndex) Upsert(_ context.Context, e VectorEntry) error {
	e.Vector = append([]float32(nil), e.Vector...)
	f.mu.Lock()
	f.entries[e.Key] = e
	f.mu.Unlock()
	return nil
}

// Search implements VectorIndex.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]VectorMatch, error) {
	f.mu.RLock()
	matches := make([]VectorMatch, 0, len(f.entries))
	for _, e := range f.entries {
		sim := CosineSimilarity(query, e.Vector)
		if sim < threshold {
			continue
		}
		matches = append(matches, VectorMatch{Key: e.Key, Similarity: sim, Metadata: e.Metadata})
	}
	f.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Key < matches[j].Key
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteOlderThan implements VectorIndex.
func (f *FlatIndex) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, e := range f.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

// Len implements VectorIndex.
func (f *FlatIndex) Len(context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries), nil
}

// Close implements VectorIndex.
func (f *FlatIndex) Close() error { return nil }
