// Package vector holds the flat nearest-neighbour index over corpus
// embeddings and its on-disk format. Distances are negated cosine
// similarities, so a more negative distance means a closer match.
package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrZeroVector        = errors.New("zero-length vector")
)

// Index is a brute-force inner-product index over L2-normalised vectors.
// Each vector carries the corpus position it was built from. Add must not
// run concurrently with Search; once built the index is read-only.
type Index struct {
	dims    int
	ids     []int
	vectors [][]float32
}

func New(dims int) *Index {
	return &Index{dims: dims}
}

func (x *Index) Dims() int { return x.dims }
func (x *Index) Len() int  { return len(x.ids) }

// Add stores a copy of v, normalised, under id.
func (x *Index) Add(id int, v []float32) error {
	if len(v) != x.dims {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), x.dims)
	}
	n, ok := normalize(v)
	if !ok {
		return fmt.Errorf("%w for id %d", ErrZeroVector, id)
	}
	x.ids = append(x.ids, id)
	x.vectors = append(x.vectors, n)
	return nil
}

// Search returns up to k entries closest to query, as parallel slices of
// distances (ascending) and ids. Equal distances keep insertion order.
func (x *Index) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != x.dims {
		return nil, nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), x.dims)
	}
	if k <= 0 || len(x.ids) == 0 {
		return nil, nil, nil
	}
	q, ok := normalize(query)
	if !ok {
		return nil, nil, ErrZeroVector
	}

	order := make([]int, len(x.vectors))
	dist := make([]float32, len(x.vectors))
	for i, v := range x.vectors {
		order[i] = i
		dist[i] = -dot(q, v)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] < dist[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}

	distances := make([]float32, k)
	ids := make([]int, k)
	for i := 0; i < k; i++ {
		distances[i] = dist[order[i]]
		ids[i] = x.ids[order[i]]
	}
	return distances, ids, nil
}

// each visits stored entries in insertion order.
func (x *Index) each(fn func(id int, v []float32) error) error {
	for i, id := range x.ids {
		if err := fn(id, x.vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(v []float32) ([]float32, bool) {
	var sq float64
	for _, f := range v {
		sq += float64(f) * float64(f)
	}
	if sq == 0 {
		return nil, false
	}
	inv := float32(1 / math.Sqrt(sq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f * inv
	}
	return out, true
}
