// Package embedding provides an in-memory dense vector index with
// cosine similarity search and versioned snapshot persistence.
package embedding

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/amanshresthaa/quizd/distance"
	"github.com/amanshresthaa/quizd/model"
)

// Options contains configuration options for the embedding index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all upserts and queries.
	Dimension int
}

// indexState holds the immutable state of the index for lock-free reads.
// Writers clone the state and swap it atomically, so a reader (or a
// snapshot) always observes a consistent point in time.
type indexState struct {
	vectors map[model.ChunkID][]float32
}

// Index is an in-memory dense vector index using cosine similarity.
// It uses a copy-on-write pattern for lock-free concurrent reads.
type Index struct {
	state   atomic.Pointer[indexState]
	writeMu sync.Mutex // Serializes writes only
	opts    Options
}

// New creates a new embedding index with a fixed dimension.
func New(dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Dimension: dimension}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	idx := &Index{opts: opts}
	idx.state.Store(&indexState{vectors: make(map[model.ChunkID][]float32)})

	return idx, nil
}

// Dimension returns the fixed dimensionality of the index.
func (idx *Index) Dimension() int {
	return idx.opts.Dimension
}

// Len returns the number of vectors in the index.
func (idx *Index) Len() int {
	return len(idx.state.Load().vectors)
}

func (idx *Index) cloneState() *indexState {
	old := idx.state.Load()
	vectors := make(map[model.ChunkID][]float32, len(old.vectors)+1)
	for id, vec := range old.vectors {
		vectors[id] = vec
	}
	return &indexState{vectors: vectors}
}

// Upsert inserts or replaces the vector for the given chunk.
// The vector is copied; the caller may reuse the slice.
func (idx *Index) Upsert(id model.ChunkID, vector []float32) error {
	if len(vector) != idx.opts.Dimension {
		return &ErrDimensionMismatch{Expected: idx.opts.Dimension, Actual: len(vector)}
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	newState := idx.cloneState()
	newState.vectors[id] = slices.Clone(vector)
	idx.state.Store(newState)

	return nil
}

// Remove deletes the vector for the given chunk. Removing an unknown
// chunk is a no-op.
func (idx *Index) Remove(id model.ChunkID) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	old := idx.state.Load()
	if _, ok := old.vectors[id]; !ok {
		return nil
	}

	newState := idx.cloneState()
	delete(newState.vectors, id)
	idx.state.Store(newState)

	return nil
}

// Query returns up to k chunks nearest to the query vector by cosine
// similarity, filtered at minScore. Scores are in [-1,1]. Results are
// ordered by descending score with ascending chunk ID as tie-break.
func (idx *Index) Query(vector []float32, k int, minScore float32) ([]model.Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(vector) != idx.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: idx.opts.Dimension, Actual: len(vector)}
	}

	state := idx.state.Load()

	hits := make([]model.Hit, 0, len(state.vectors))
	for id, vec := range state.vectors {
		score := distance.Cosine(vector, vec)
		if score < minScore {
			continue
		}
		hits = append(hits, model.Hit{ChunkID: id, Score: score})
	}

	slices.SortFunc(hits, func(a, b model.Hit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(string(a.ChunkID), string(b.ChunkID))
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}
