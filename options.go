package quizd

import (
	"log/slog"

	"github.com/amanshresthaa/quizd/assembler"
	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/fusion"
	"github.com/amanshresthaa/quizd/pipeline"
	"github.com/amanshresthaa/quizd/retrieval"
)

type options struct {
	dimension        int
	store            blobstore.Store
	metricsCollector MetricsCollector
	logger           *Logger
	retrievalMode    retrieval.Mode
	retrievalOptions []func(*retrieval.Options)
	pipelineOptions  []func(*pipeline.Options)
	assemblerOptions []func(*assembler.Options)
}

// Option configures Service constructor behavior.
type Option func(*options)

// WithDimension fixes the embedding dimensionality up front. Without
// it, the dimension is taken from the first ingested embedding.
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

// WithBlobStore configures where SaveSnapshot and LoadSnapshot keep
// index snapshots. Defaults to an in-memory store; use
// blobstore.NewLocalStore or blobstore/minio for durability.
func WithBlobStore(store blobstore.Store) Option {
	return func(o *options) {
		if store != nil {
			o.store = store
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &quizd.BasicMetricsCollector{}
//	svc, _ := quizd.New(embedder, generator, judge, quizd.WithMetricsCollector(metrics))
//	// ... use svc ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := quizd.NewJSONLogger(slog.LevelInfo)
//	svc, _ := quizd.New(embedder, generator, judge, quizd.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithRetrievalMode sets the default mode for quiz-generation
// retrieval. Defaults to retrieval.ModeAuto.
func WithRetrievalMode(mode retrieval.Mode) Option {
	return func(o *options) {
		o.retrievalMode = mode
	}
}

// WithFusionStrategy selects the hybrid fusion strategy.
// Convenience wrapper over WithRetrievalOptions.
func WithFusionStrategy(strategy fusion.Strategy) Option {
	return WithRetrievalOptions(func(ro *retrieval.Options) {
		ro.Strategy = strategy
	})
}

// WithRetrievalOptions forwards options to the retrieval engine.
//
// Example:
//
//	quizd.WithRetrievalOptions(func(o *retrieval.Options) {
//		o.MinScore = 0.5
//	})
func WithRetrievalOptions(optFns ...func(*retrieval.Options)) Option {
	return func(o *options) {
		o.retrievalOptions = append(o.retrievalOptions, optFns...)
	}
}

// WithPipelineOptions forwards options to the generation pipeline.
//
// Example:
//
//	quizd.WithPipelineOptions(func(o *pipeline.Options) {
//		o.Parallelism = 10
//		o.PassThreshold = 0.8
//	})
func WithPipelineOptions(optFns ...func(*pipeline.Options)) Option {
	return func(o *options) {
		o.pipelineOptions = append(o.pipelineOptions, optFns...)
	}
}

// WithAssemblerOptions forwards options to the quiz assembler.
//
// Example:
//
//	quizd.WithAssemblerOptions(func(o *assembler.Options) {
//		o.SimilarityThreshold = 0.5
//	})
func WithAssemblerOptions(optFns ...func(*assembler.Options)) Option {
	return func(o *options) {
		o.assemblerOptions = append(o.assemblerOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		store:            blobstore.NewMemoryStore(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		retrievalMode:    retrieval.ModeAuto,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
