// Package vectorindex implements a flat in-memory similarity index over the
// hospital documents. The index is built once at startup and read-only
// afterwards, so Search needs no locking.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// Embedder produces one fixed-dimension vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one search result: the document's insertion id and its cosine
// similarity to the query.
type Hit struct {
	ID    int
	Score float32
}

// Index holds L2-normalized document vectors. With unit vectors the cosine
// similarity reduces to a dot product.
type Index struct {
	embedder Embedder
	vectors  [][]float32
	dim      int
	logger   *logrus.Logger
}

// Build embeds every document in one batched call and constructs the index.
// Document ids are positions in the input slice.
func Build(ctx context.Context, docs []string, embedder Embedder, logger *logrus.Logger) (*Index, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to index")
	}

	vectors, err := embedder.Embed(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("indexing documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("indexing documents: got %d vectors for %d documents", len(vectors), len(docs))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("indexing documents: vector %d has dimension %d, want %d", i, len(v), dim)
		}
		normalize(v)
	}

	logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"dimension": dim,
	}).Info("Vector index built")

	return &Index{embedder: embedder, vectors: vectors, dim: dim, logger: logger}, nil
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.vectors) }

// Dimension returns the vector dimension the index was built with.
func (ix *Index) Dimension() int { return ix.dim }

// Search embeds the query and returns the k most similar documents by
// descending score. Ties keep insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	return ix.SearchFiltered(ctx, query, k, nil)
}

// SearchFiltered restricts candidates to ids accepted by allow. A nil allow
// considers every document.
func (ix *Index) SearchFiltered(ctx context.Context, query string, k int, allow func(id int) bool) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != ix.dim {
		return nil, fmt.Errorf("embedding query: unexpected vector shape")
	}
	q := vectors[0]
	normalize(q)

	hits := make([]Hit, 0, len(ix.vectors))
	for id, v := range ix.vectors {
		if allow != nil && !allow(id) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: dot(q, v)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
