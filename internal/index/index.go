// Package index owns the searchable collection of code items: flattening
// declaration trees into items, batching embedding requests, persisting the
// collection, and answering nearest-neighbor similarity queries.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mvail/arbor/internal/digest"
	"github.com/mvail/arbor/internal/embed"
	"github.com/mvail/arbor/internal/tree"
)

// Item is the unit of semantic search: one declaration flattened out of its
// tree, with the digest text that was (or will be) embedded. Vector is nil
// until an embedding batch succeeds.
type Item struct {
	Name     string
	Kind     tree.Kind
	FilePath string
	Digest   string
	Vector   []float32
}

// Match pairs an item with its similarity score for a query.
type Match struct {
	Item  *Item
	Score float64
}

// Index holds the item collection and its snapshot cache. All mutation of
// the collection and the cache file happens under one mutex; Ingest,
// EmbedPending, and queries on the same Index never interleave.
type Index struct {
	provider embed.Provider

	mu        sync.Mutex
	items     []*Item
	cachePath string
}

// New creates an Index backed by provider, restoring any snapshot at
// cachePath. A missing or unreadable snapshot starts the index empty; it is
// never a fatal condition. An empty cachePath disables persistence.
func New(cachePath string, provider embed.Provider) *Index {
	idx := &Index{provider: provider, cachePath: cachePath}
	if cachePath != "" {
		idx.items = loadSnapshot(cachePath)
	}
	return idx
}

// Add appends an item to the collection without embedding it.
func (x *Index) Add(item *Item) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.items = append(x.items, item)
}

// Ingest flattens each root and its descendants in pre-order into items,
// computing each one's digest. Repeated ingestion appends; there is no
// dedup by name or path.
func (x *Index) Ingest(roots []*tree.Node) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, n := range tree.Flatten(roots) {
		x.items = append(x.items, &Item{
			Name:     n.Name,
			Kind:     n.Kind,
			FilePath: n.FilePath,
			Digest:   digest.Digest(n),
		})
	}
}

// Len returns the number of items in the collection.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.items)
}

// Items returns a copy of the item slice, preserving input order.
func (x *Index) Items() []*Item {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]*Item, len(x.items))
	copy(out, x.items)
	return out
}

// EmbedPending embeds every item that has no vector in a single batched
// provider request and persists the snapshot on success. It is a no-op when
// nothing is pending. On provider failure no item acquires a vector, so the
// call is safe to repeat.
func (x *Index) EmbedPending(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var pending []*Item
	for _, item := range x.items {
		if item.Vector == nil {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if x.provider == nil {
		return fmt.Errorf("embed pending: %w", embed.ErrUnavailable)
	}

	inputs := make([]string, len(pending))
	for i, item := range pending {
		inputs[i] = digest.EmbedInput(item.Name, item.Digest)
	}
	vecs, err := x.provider.Embeddings(ctx, inputs)
	if err != nil {
		return fmt.Errorf("embed %d items: %w", len(pending), err)
	}
	if len(vecs) != len(pending) {
		return fmt.Errorf("embed %d items: %w", len(pending), embed.ErrUnavailable)
	}
	for i, item := range pending {
		item.Vector = vecs[i]
	}

	if x.cachePath != "" {
		if err := saveSnapshot(x.cachePath, x.items); err != nil {
			return fmt.Errorf("save index cache: %w", err)
		}
	}
	return nil
}

// FindSimilar embeds the query once, scores it against every embedded item,
// and returns at most limit matches with score >= threshold, sorted
// non-increasing by score (ties keep input order). A negative limit means
// unlimited: every match clearing the threshold is returned. Items without
// a vector, and items whose comparison degenerates, are silently excluded.
func (x *Index) FindSimilar(ctx context.Context, query string, limit int, threshold float64) ([]Match, error) {
	if x.provider == nil {
		return nil, fmt.Errorf("find similar: %w", embed.ErrUnavailable)
	}
	vecs, err := x.provider.Embeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: %w", embed.ErrUnavailable)
	}
	queryVec := vecs[0]

	x.mu.Lock()
	defer x.mu.Unlock()

	var matches []Match
	for _, item := range x.items {
		if item.Vector == nil {
			continue
		}
		score, err := Cosine(queryVec, item.Vector)
		if err != nil {
			continue // degenerate comparison, excluded not fatal
		}
		if score >= threshold {
			matches = append(matches, Match{Item: item, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// SimilarityText embeds query and content in one batched call and returns
// their cosine similarity. Used for ad-hoc text that was never ingested.
func (x *Index) SimilarityText(ctx context.Context, query, content string) (float64, error) {
	if x.provider == nil {
		return 0, fmt.Errorf("similarity: %w", embed.ErrUnavailable)
	}
	vecs, err := x.provider.Embeddings(ctx, []string{query, content})
	if err != nil {
		return 0, fmt.Errorf("embed pair: %w", err)
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("embed pair: %w", embed.ErrUnavailable)
	}
	return Cosine(vecs[0], vecs[1])
}
