// Package fusion merges ranked result lists from the semantic and
// lexical indexes into a single ranked list.
package fusion

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amanshresthaa/quizd/model"
)

// ErrUnknownStrategy is returned when a Strategy value is out of range.
var ErrUnknownStrategy = errors.New("unknown fusion strategy")

// Strategy selects how two ranked lists are combined.
type Strategy int

const (
	// StrategyWeighted normalizes each list's scores to [0,1] and
	// combines them with configurable weights.
	StrategyWeighted Strategy = iota
	// StrategyRRF combines lists by reciprocal rank: score = Σ 1/(k+rank).
	StrategyRRF
)

func (s Strategy) String() string {
	switch s {
	case StrategyWeighted:
		return "weighted"
	case StrategyRRF:
		return "rrf"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Params are the tunables shared by the fusion strategies.
type Params struct {
	// SemanticWeight and LexicalWeight are renormalized to sum to 1.
	SemanticWeight float64
	LexicalWeight  float64
	// RRFK discounts the influence of low ranks. Typically 60.
	RRFK int
}

// DefaultParams returns the default fusion tunables.
func DefaultParams() Params {
	return Params{
		SemanticWeight: 0.7,
		LexicalWeight:  0.3,
		RRFK:           60,
	}
}

// Fuse merges the two ranked lists under the given strategy. Either
// list may be empty; the non-empty list is then returned unscaled.
// Output is totally ordered: descending score, ascending chunk ID on
// ties.
func Fuse(semantic, lexical []model.Hit, strategy Strategy, params Params) ([]model.Hit, error) {
	if len(semantic) == 0 && len(lexical) == 0 {
		return nil, nil
	}
	if len(semantic) == 0 {
		return sortHits(slices.Clone(lexical)), nil
	}
	if len(lexical) == 0 {
		return sortHits(slices.Clone(semantic)), nil
	}

	switch strategy {
	case StrategyWeighted:
		return weightedFusion(semantic, lexical, params), nil
	case StrategyRRF:
		return rrfFusion(semantic, lexical, params), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
}

// minMaxNormalize maps scores to [0,1] per list. A degenerate list
// (single result or zero score range) normalizes to 1.0 throughout.
func minMaxNormalize(hits []model.Hit) map[model.ChunkID]float64 {
	minScore := hits[0].Score
	maxScore := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	norm := make(map[model.ChunkID]float64, len(hits))
	for _, h := range hits {
		if maxScore == minScore {
			norm[h.ChunkID] = 1.0
		} else {
			norm[h.ChunkID] = float64(h.Score-minScore) / float64(maxScore-minScore)
		}
	}
	return norm
}

func weightedFusion(semantic, lexical []model.Hit, params Params) []model.Hit {
	wSem := params.SemanticWeight
	wLex := params.LexicalWeight
	if total := wSem + wLex; total > 0 {
		wSem /= total
		wLex /= total
	}

	semNorm := minMaxNormalize(semantic)
	lexNorm := minMaxNormalize(lexical)

	fused := make(map[model.ChunkID]float64, len(semNorm)+len(lexNorm))
	for id, score := range semNorm {
		fused[id] += wSem * score
	}
	for id, score := range lexNorm {
		fused[id] += wLex * score
	}

	return collectHits(fused)
}

func rrfFusion(semantic, lexical []model.Hit, params Params) []model.Hit {
	k := params.RRFK
	if k <= 0 {
		k = DefaultParams().RRFK
	}

	fused := make(map[model.ChunkID]float64, len(semantic)+len(lexical))
	for rank, h := range semantic {
		fused[h.ChunkID] += 1.0 / float64(k+rank+1)
	}
	for rank, h := range lexical {
		fused[h.ChunkID] += 1.0 / float64(k+rank+1)
	}

	return collectHits(fused)
}

func collectHits(scores map[model.ChunkID]float64) []model.Hit {
	hits := make([]model.Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, model.Hit{ChunkID: id, Score: float32(score)})
	}
	return sortHits(hits)
}

func sortHits(hits []model.Hit) []model.Hit {
	slices.SortFunc(hits, func(a, b model.Hit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(string(a.ChunkID), string(b.ChunkID))
	})
	return hits
}
