// Package retrieval routes queries to the embedding and lexical indexes
// and fuses their results into one ranked list.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amanshresthaa/quizd/embedding"
	"github.com/amanshresthaa/quizd/fusion"
	"github.com/amanshresthaa/quizd/lexical"
	"github.com/amanshresthaa/quizd/llm"
	"github.com/amanshresthaa/quizd/model"
)

// Options contains configuration options for the retrieval engine.
type Options struct {
	// Strategy selects how hybrid results are fused.
	Strategy fusion.Strategy
	// FusionParams are the tunables for the fusion strategy.
	FusionParams fusion.Params
	// MinScore filters semantic hits below this cosine similarity.
	// The nominal operating point of 0.7 over-filters in practice;
	// 0.35 is the tuned default.
	MinScore float32
	// Logger receives debug/warn events. Defaults to a discard logger.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	Strategy:     fusion.StrategyWeighted,
	FusionParams: fusion.DefaultParams(),
	MinScore:     0.35,
}

// Result is the outcome of one retrieval call, including provenance
// the caller must not lose.
type Result struct {
	Results []model.RetrievalResult
	// RequestedMode is the mode the caller asked for.
	RequestedMode Mode
	// ResolvedMode is the mode that actually served the query.
	ResolvedMode Mode
	// Degraded reports that the query was served differently than
	// requested (auto-resolution to a single index, embedder failover).
	Degraded       bool
	DegradedReason string
	Elapsed        time.Duration
}

// Engine routes queries to one or both indexes. It owns no chunk data,
// only orchestration and statistics.
type Engine struct {
	embedder llm.Embedder
	semantic *embedding.Index
	lexical  *lexical.Index
	opts     Options
	logger   *slog.Logger

	stats statsCounters
}

// NewEngine creates a retrieval engine over the two indexes.
// embedder may be nil; semantic and hybrid queries then degrade to
// lexical-only.
func NewEngine(embedder llm.Embedder, semanticIdx *embedding.Index, lexicalIdx *lexical.Index, optFns ...func(o *Options)) *Engine {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		embedder: embedder,
		semantic: semanticIdx,
		lexical:  lexicalIdx,
		opts:     opts,
		logger:   logger,
	}
}

// Retrieve returns up to k ranked results for the query under the
// requested mode. A degraded query (failover or auto-resolution to a
// weaker mode) is reported in the Result, never silently.
func (e *Engine) Retrieve(ctx context.Context, query string, mode Mode, k int) (*Result, error) {
	if k <= 0 {
		return nil, embedding.ErrInvalidK
	}

	start := time.Now()
	resolved, degraded, reason := e.resolve(mode)

	res, err := e.retrieveResolved(ctx, query, resolved, k)
	if err != nil {
		e.stats.recordError()
		return nil, err
	}

	if res.Degraded {
		// Failover inside retrieveResolved takes precedence.
		degraded, reason = true, res.DegradedReason
		resolved = res.ResolvedMode
	}

	res.RequestedMode = mode
	res.ResolvedMode = resolved
	res.Degraded = degraded
	res.DegradedReason = reason
	res.Elapsed = time.Since(start)

	e.stats.record(resolved, degraded, res.Elapsed)
	e.logger.DebugContext(ctx, "retrieve completed",
		"mode", mode.String(),
		"resolved", resolved.String(),
		"degraded", degraded,
		"results", len(res.Results),
		"elapsed", res.Elapsed,
	)

	return res, nil
}

func (e *Engine) retrieveResolved(ctx context.Context, query string, mode Mode, k int) (*Result, error) {
	switch mode {
	case ModeLexicalOnly:
		hits, err := e.lexical.Search(query, k)
		if err != nil {
			return nil, err
		}
		return &Result{Results: tagHits(hits, model.SourceLexical)}, nil

	case ModeSemanticOnly:
		hits, err := e.searchSemantic(ctx, query, k)
		if err != nil {
			return e.failover(query, k, err)
		}
		return &Result{Results: tagHits(hits, model.SourceSemantic)}, nil

	case ModeHybrid:
		return e.retrieveHybrid(ctx, query, k)

	default:
		return nil, fmt.Errorf("unresolved retrieval mode %s", mode)
	}
}

func (e *Engine) retrieveHybrid(ctx context.Context, query string, k int) (*Result, error) {
	// Fetch more candidates than k from each side to increase overlap
	// before fusion.
	fetchK := k * 2

	var semHits, lexHits []model.Hit
	var semErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Embedder failure is handled by failover, not propagated.
		semHits, semErr = e.searchSemantic(gctx, query, fetchK)
		return nil
	})
	g.Go(func() error {
		var err error
		lexHits, err = e.lexical.Search(query, fetchK)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if semErr != nil {
		return e.failover(query, k, semErr)
	}

	fused, err := fusion.Fuse(semHits, lexHits, e.opts.Strategy, e.opts.FusionParams)
	if err != nil {
		return nil, err
	}
	if len(fused) > k {
		fused = fused[:k]
	}

	return &Result{Results: tagHits(fused, model.SourceFused)}, nil
}

// failover serves a semantic or hybrid query from the lexical index
// after an embedder failure, flagging the response as degraded. It
// propagates the original error only when the lexical index cannot
// serve either.
func (e *Engine) failover(query string, k int, cause error) (*Result, error) {
	if e.lexical.Len() == 0 {
		return nil, cause
	}

	e.logger.Warn("embedding unavailable, serving lexical-only", "error", cause)

	hits, err := e.lexical.Search(query, k)
	if err != nil {
		return nil, err
	}

	return &Result{
		Results:        tagHits(hits, model.SourceLexical),
		ResolvedMode:   ModeLexicalOnly,
		Degraded:       true,
		DegradedReason: fmt.Sprintf("embedding unavailable: %v", cause),
	}, nil
}

func (e *Engine) searchSemantic(ctx context.Context, query string, k int) ([]model.Hit, error) {
	if e.embedder == nil {
		return nil, llm.ErrEmbeddingUnavailable
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return e.semantic.Query(vector, k, e.opts.MinScore)
}

func tagHits(hits []model.Hit, source model.SourceTag) []model.RetrievalResult {
	results := make([]model.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = model.RetrievalResult{
			ChunkID: h.ChunkID,
			Score:   h.Score,
			Source:  source,
			Rank:    i + 1,
		}
	}
	return results
}
