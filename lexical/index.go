// Package lexical provides an in-memory BM25 keyword index.
//
// Postings are rebuilt from chunk text, never hand-edited. Aggregate
// statistics (average document length, cached IDF) are recomputed
// lazily on the first search after a mutation, so a burst of writes
// pays the rebuild cost once.
package lexical

import (
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/amanshresthaa/quizd/model"
)

const (
	k1 = 1.2
	b  = 0.75
)

// docNum is a dense internal identifier assigned per indexed chunk.
type docNum = uint32

type posting struct {
	Doc   docNum
	Count uint32
}

// Index is an in-memory BM25 index with concurrent readers and an
// exclusive writer.
type Index struct {
	mu sync.RWMutex

	inverted   map[string][]posting
	docLengths map[docNum]int

	// Chunk identity mapping. Internal doc numbers are dense and
	// never reused within one index lifetime.
	byChunk map[model.ChunkID]docNum
	byDoc   map[docNum]model.ChunkID
	nextDoc docNum

	// live tracks which doc numbers are currently indexed.
	live *roaring.Bitmap

	totalLength int64

	// Lazily rebuilt aggregates, valid while dirty is false.
	dirty bool
	avgDL float64
	idf   map[string]float64
}

// New creates a new empty Index.
func New() *Index {
	return &Index{
		inverted:   make(map[string][]posting),
		docLengths: make(map[docNum]int),
		byChunk:    make(map[model.ChunkID]docNum),
		byDoc:      make(map[docNum]model.ChunkID),
		live:       roaring.New(),
		idf:        make(map[string]float64),
	}
}

// Tokenize lowercases text and splits it on non-letter, non-digit runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.live.GetCardinality())
}

// Add indexes the text of a chunk, replacing any previous text for the
// same chunk, and marks the index dirty.
func (idx *Index) Add(id model.ChunkID, text string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byChunk[id]; ok {
		idx.removeLocked(id)
	}

	doc := idx.nextDoc
	idx.nextDoc++
	idx.byChunk[id] = doc
	idx.byDoc[doc] = id
	idx.live.Add(doc)

	tokens := Tokenize(text)
	idx.docLengths[doc] = len(tokens)
	idx.totalLength += int64(len(tokens))

	tf := make(map[string]uint32)
	for _, t := range tokens {
		tf[t]++
	}
	for t, count := range tf {
		idx.inverted[t] = append(idx.inverted[t], posting{Doc: doc, Count: count})
	}

	idx.dirty = true
	return nil
}

// Remove deletes a chunk from the index. Removing an unknown chunk is
// a no-op.
func (idx *Index) Remove(id model.ChunkID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
	return nil
}

func (idx *Index) removeLocked(id model.ChunkID) {
	doc, ok := idx.byChunk[id]
	if !ok {
		return
	}

	for t := range idx.inverted {
		postings := idx.inverted[t]
		for i, p := range postings {
			if p.Doc == doc {
				idx.inverted[t] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
		if len(idx.inverted[t]) == 0 {
			delete(idx.inverted, t)
		}
	}

	idx.totalLength -= int64(idx.docLengths[doc])
	delete(idx.docLengths, doc)
	delete(idx.byChunk, id)
	delete(idx.byDoc, doc)
	idx.live.Remove(doc)
	idx.dirty = true
}

// rebuildLocked recomputes the aggregates invalidated by mutations.
// Caller must hold the write lock.
func (idx *Index) rebuildLocked() {
	n := float64(idx.live.GetCardinality())
	if n > 0 {
		idx.avgDL = float64(idx.totalLength) / n
	} else {
		idx.avgDL = 0
	}

	idx.idf = make(map[string]float64, len(idx.inverted))
	for t, postings := range idx.inverted {
		df := float64(len(postings))
		// IDF = log(1 + (N - n + 0.5) / (n + 0.5))
		idx.idf[t] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}

	idx.dirty = false
}

// Search scores the query against all postings with BM25 and returns
// up to k chunks ordered by descending score. Identical queries over an
// unchanged index always yield identical ordered results; ties break by
// ascending chunk ID.
func (idx *Index) Search(query string, k int) ([]model.Hit, error) {
	idx.mu.RLock()
	if idx.dirty {
		idx.mu.RUnlock()
		idx.mu.Lock()
		if idx.dirty {
			idx.rebuildLocked()
		}
		idx.mu.Unlock()
		idx.mu.RLock()
	}
	defer idx.mu.RUnlock()

	if idx.live.IsEmpty() {
		return nil, nil
	}

	scores := make(map[docNum]float64)
	for _, t := range Tokenize(query) {
		postings, ok := idx.inverted[t]
		if !ok {
			continue
		}
		termIDF := idx.idf[t]

		for _, p := range postings {
			tf := float64(p.Count)
			docLen := float64(idx.docLengths[p.Doc])

			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/idx.avgDL))
			scores[p.Doc] += termIDF * (num / denom)
		}
	}

	hits := make([]model.Hit, 0, len(scores))
	for doc, score := range scores {
		hits = append(hits, model.Hit{ChunkID: idx.byDoc[doc], Score: float32(score)})
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

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}
