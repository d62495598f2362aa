// Package assembler turns verified candidates into a final quiz.
//
// Selection prefers distinct source chunks so the quiz covers as much
// of the retrieved material as possible, and drops near-duplicate
// questions via a pluggable text-similarity predicate. Earlier
// candidates win ties; a later near-duplicate is the one excluded.
package assembler

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amanshresthaa/quizd/model"
	"github.com/amanshresthaa/quizd/pipeline"
)

// SimilarityFunc scores the similarity of two question texts in [0,1].
type SimilarityFunc func(a, b string) float32

// TokenOverlap is the default SimilarityFunc: the Jaccard overlap of
// the lowercased word sets of both texts.
func TokenOverlap(a, b string) float32 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	overlap := 0
	for w := range wordsA {
		if wordsB[w] {
			overlap++
		}
	}
	union := len(wordsA) + len(wordsB) - overlap
	return float32(overlap) / float32(union)
}

func wordSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// Options contains configuration options for the assembler.
type Options struct {
	// SimilarityThreshold is the score at or above which a later
	// candidate counts as a duplicate of an earlier selection.
	SimilarityThreshold float32
	// Similarity overrides the duplicate predicate. Defaults to
	// TokenOverlap.
	Similarity SimilarityFunc
	// Logger receives debug events. Defaults to a discard logger.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	SimilarityThreshold: 0.7,
}

// Input is one assembly request.
type Input struct {
	Topic        string
	NumQuestions int
	// Candidates is the accepted-candidate list in pipeline order.
	Candidates []model.Candidate
	// Stats is the pipeline accounting folded into quiz metadata.
	Stats pipeline.Stats
	// Retrieval is the wall-clock cost of the retrieval stage.
	Retrieval time.Duration
}

// Assembler selects and orders quiz questions.
type Assembler struct {
	opts       Options
	similarity SimilarityFunc
	logger     *slog.Logger
}

// New creates an assembler.
func New(optFns ...func(o *Options)) *Assembler {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	similarity := opts.Similarity
	if similarity == nil {
		similarity = TokenOverlap
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Assembler{opts: opts, similarity: similarity, logger: logger}
}

// Assemble builds the final quiz. When fewer than NumQuestions
// candidates survive deduplication and selection, the partial quiz is
// returned together with ErrInsufficientQuestions.
func (a *Assembler) Assemble(input Input) (*model.Quiz, error) {
	start := time.Now()

	selected := a.selectQuestions(input.Candidates, input.NumQuestions)

	assembly := time.Since(start)
	quiz := &model.Quiz{
		ID:        uuid.NewString(),
		Topic:     input.Topic,
		Questions: selected,
		Metadata:  buildMetadata(input, assembly),
		CreatedAt: time.Now(),
	}

	if len(selected) < input.NumQuestions {
		a.logger.Debug("assembled short quiz",
			"want", input.NumQuestions, "got", len(selected))
		return quiz, &ErrInsufficientQuestions{Want: input.NumQuestions, Got: len(selected)}
	}

	a.logger.Debug("assembled quiz",
		"questions", len(selected), "candidates", len(input.Candidates))
	return quiz, nil
}

// selectQuestions picks up to want candidates. Candidates from chunks
// not yet represented are taken first so the quiz spans as many
// distinct source chunks as possible; remaining slots are filled from
// the leftovers in order. Near-duplicates of an earlier selection are
// skipped in both passes.
func (a *Assembler) selectQuestions(candidates []model.Candidate, want int) []model.Candidate {
	selected := make([]model.Candidate, 0, want)
	usedChunks := make(map[model.ChunkID]bool, want)
	leftover := make([]model.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) >= want {
			break
		}
		if usedChunks[c.SourceChunk] {
			leftover = append(leftover, c)
			continue
		}
		if a.duplicateOfAny(c, selected) {
			continue
		}
		selected = append(selected, c)
		usedChunks[c.SourceChunk] = true
	}

	for _, c := range leftover {
		if len(selected) >= want {
			break
		}
		if a.duplicateOfAny(c, selected) {
			continue
		}
		selected = append(selected, c)
	}

	return selected
}

func (a *Assembler) duplicateOfAny(candidate model.Candidate, selected []model.Candidate) bool {
	for _, s := range selected {
		if a.similarity(candidate.Question, s.Question) >= a.opts.SimilarityThreshold {
			return true
		}
	}
	return false
}

func buildMetadata(input Input, assembly time.Duration) model.QuizMetadata {
	stats := input.Stats

	var passRate float32
	if stats.Evaluated > 0 {
		passRate = float32(stats.Passed) / float32(stats.Evaluated)
	}

	return model.QuizMetadata{
		Evaluated:    stats.Evaluated,
		Passed:       stats.Passed,
		Failed:       stats.Failed,
		AverageScore: stats.AverageScore,
		PassRate:     passRate,
		Timings: model.StageTimings{
			Retrieval:  input.Retrieval,
			Generation: stats.Generation,
			Evaluation: stats.Evaluation,
			Assembly:   assembly,
			Total:      input.Retrieval + stats.Elapsed + assembly,
		},
	}
}
