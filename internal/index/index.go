// Package index implements the Embedding Index (C2, §4.2): a vector store
// mapping function_id to a fixed-dimension embedding of its description,
// answering top-k cosine-similarity queries for the Hybrid Selector's
// semantic tier.
package index

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Record is the Embedding Record (§3): denormalised metadata travels with
// the vector so the selector's (C4) LLM tier can describe a candidate in its
// prompt without a Registry Store lookup; selected candidates are still
// hydrated from the Store.
type Record struct {
	FunctionID      string
	Vector          []float32
	Name            string
	Description     string
	Domain          string
	PopularityScore float64
}

// SearchResult is one ranked hit from Search.
type SearchResult struct {
	FunctionID string
	Score      float64 // cosine similarity in [-1, 1]
	Record     Record
}

// Index is an in-memory approximate nearest-neighbour store. A flat
// brute-force cosine scan stands in for the IVF-style ANN structure named in
// §4.2: at the scale of a function catalogue (hundreds to low thousands of
// entries) a brute-force scan is affordable and exact (recall 1.0), and
// keeping the algorithm pure/in-process avoids depending on a vector
// database the pack does not otherwise exercise for this domain.
type Index struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// New creates an empty Index.
func New() *Index {
	return &Index{recs: map[string]Record{}}
}

// Upsert inserts or replaces the embedding for function_id.
func (idx *Index) Upsert(_ context.Context, functionID string, vector []float32, meta Record) {
	meta.FunctionID = functionID
	meta.Vector = vector
	idx.mu.Lock()
	idx.recs[functionID] = meta
	idx.mu.Unlock()
}

// Delete removes function_id from the index. After this call, Search never
// returns function_id again (§3 invariant, §8 testable property).
func (idx *Index) Delete(_ context.Context, functionID string) {
	idx.mu.Lock()
	delete(idx.recs, functionID)
	idx.mu.Unlock()
}

// Search returns the top_k nearest records to queryVector by cosine
// similarity, optionally restricted to domainFilter, sorted descending.
func (idx *Index) Search(_ context.Context, queryVector []float32, topK int, domainFilter string) []SearchResult {
	idx.mu.RLock()
	candidates := make([]SearchResult, 0, len(idx.recs))
	for id, rec := range idx.recs {
		if domainFilter != "" && rec.Domain != domainFilter {
			continue
		}
		candidates = append(candidates, SearchResult{
			FunctionID: id,
			Score:      cosineSimilarity(queryVector, rec.Vector),
			Record:     rec,
		})
	}
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].FunctionID < candidates[j].FunctionID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// Len reports how many embeddings are currently indexed (diagnostics/tests).
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.recs)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
