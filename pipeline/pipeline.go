// Package pipeline drives concurrent question generation and
// evaluation over retrieved context chunks.
//
// The pipeline launches up to AttemptFactor*N generation attempts,
// bounded by a parallelism limit. Each attempt claims one context chunk
// exclusively, generates a candidate, and judges it immediately. A
// failing chunk is requeued for one more attempt; a chunk backing an
// accepted candidate is never reused. The run terminates early once N
// candidates are accepted, when the attempt budget is exhausted, or
// when the context deadline expires, returning whatever was accepted
// plus full statistics.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amanshresthaa/quizd/llm"
	"github.com/amanshresthaa/quizd/model"
)

// Options contains configuration options for the pipeline.
type Options struct {
	// AttemptFactor sets the attempt budget to AttemptFactor * N.
	AttemptFactor int
	// Parallelism bounds concurrent generation/evaluation attempts.
	// Attempts beyond the bound queue rather than spawning workers.
	Parallelism int
	// PassThreshold is the minimum verdict score for acceptance.
	PassThreshold float32
	// MaxChunkRetries is how often a failing chunk may be requeued.
	MaxChunkRetries int
	// Logger receives debug events. Defaults to a discard logger.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	AttemptFactor:   3,
	Parallelism:     5,
	PassThreshold:   0.7,
	MaxChunkRetries: 1,
}

// Input describes one pipeline run.
type Input struct {
	// Chunks is the retrieved context, in rank order. Attempts claim
	// chunks front to back.
	Chunks []model.ContentChunk
	// NumQuestions is the target accepted-candidate count N.
	NumQuestions int
	Difficulty   model.Difficulty
	Type         model.QuestionType
}

// Stats is the accounting for one pipeline run.
type Stats struct {
	// Attempts is the number of dispatched generation attempts.
	Attempts int
	// Evaluated is the number of candidates that reached the judge.
	Evaluated int
	Passed    int
	Failed    int
	// Errors counts attempts that failed before producing a verdict.
	Errors       int
	AverageScore float32
	Generation   time.Duration
	Evaluation   time.Duration
	Elapsed      time.Duration
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Accepted holds at most NumQuestions candidates, each backed by a
	// distinct source chunk.
	Accepted []model.Candidate
	// Verdicts holds every verdict produced, including failures with
	// their rationale.
	Verdicts []model.Verdict
	Stats    Stats
}

// Pipeline owns candidates and verdicts for the duration of one run.
type Pipeline struct {
	generator llm.Generator
	judge     llm.Judge
	opts      Options
	logger    *slog.Logger
}

// New creates a pipeline over the generation and judge capabilities.
func New(generator llm.Generator, judge llm.Judge, optFns ...func(o *Options)) *Pipeline {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.AttemptFactor <= 0 {
		opts.AttemptFactor = DefaultOptions.AttemptFactor
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultOptions.Parallelism
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		generator: generator,
		judge:     judge,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes one generation/evaluation run. A context deadline does
// not fail the run: in-flight attempts are cancelled and whatever was
// accepted so far is returned.
func (p *Pipeline) Run(ctx context.Context, input Input) (*Result, error) {
	start := time.Now()
	budget := p.opts.AttemptFactor * input.NumQuestions

	state := newRunState(input.Chunks, input.NumQuestions, p.opts.MaxChunkRetries)

	// Wake the dispatcher when the deadline expires so it stops
	// waiting for in-flight attempts.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			state.abandon()
		case <-watchDone:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)

	attempts := 0
	for attempts < budget {
		chunk, ok := state.claim()
		if !ok {
			break
		}
		attempts++

		attemptNo := attempts
		g.Go(func() error {
			p.runAttempt(gctx, state, chunk, attemptNo, input)
			return nil
		})
	}

	_ = g.Wait()

	accepted, verdicts, stats := state.snapshot()
	stats.Attempts = attempts
	stats.Elapsed = time.Since(start)

	p.logger.DebugContext(ctx, "pipeline run completed",
		"attempts", attempts,
		"accepted", len(accepted),
		"passed", stats.Passed,
		"failed", stats.Failed,
		"elapsed", stats.Elapsed,
	)

	return &Result{
		Accepted: accepted,
		Verdicts: verdicts,
		Stats:    stats,
	}, nil
}

func (p *Pipeline) runAttempt(ctx context.Context, state *runState, chunk model.ContentChunk, attemptNo int, input Input) {
	genStart := time.Now()
	gen, err := p.generator.Generate(ctx, llm.GenerateInput{
		Context:    chunk.Text,
		Difficulty: input.Difficulty,
		Type:       input.Type,
	})
	genElapsed := time.Since(genStart)

	if err != nil {
		p.logger.DebugContext(ctx, "generation attempt failed",
			"chunk", chunk.ID, "attempt", attemptNo, "error", err)
		state.completeError(chunk, genElapsed, 0)
		return
	}

	candidate := model.Candidate{
		ID:          uuid.NewString(),
		Question:    gen.Question,
		Answer:      gen.Answer,
		Choices:     gen.Choices,
		Type:        input.Type,
		Difficulty:  input.Difficulty,
		SourceChunk: chunk.ID,
		Attempt:     attemptNo,
	}

	evalStart := time.Now()
	judged, err := p.judge.Judge(ctx, llm.JudgeInput{
		Context:  chunk.Text,
		Question: candidate.Question,
		Answer:   candidate.Answer,
	})
	evalElapsed := time.Since(evalStart)

	if err != nil {
		p.logger.DebugContext(ctx, "judge attempt failed",
			"chunk", chunk.ID, "attempt", attemptNo, "error", err)
		state.completeError(chunk, genElapsed, evalElapsed)
		return
	}

	verdict := model.Verdict{
		CandidateID: candidate.ID,
		Passed:      judged.Score >= p.opts.PassThreshold,
		Score:       judged.Score,
		Rationale:   judged.Rationale,
		SubScores: model.SubScores{
			Answerable: judged.Answerable,
			Correct:    judged.Correct,
		},
	}

	state.complete(chunk, candidate, verdict, genElapsed, evalElapsed)
}
