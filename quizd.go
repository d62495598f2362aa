package quizd

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amanshresthaa/quizd/assembler"
	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/embedding"
	"github.com/amanshresthaa/quizd/lexical"
	"github.com/amanshresthaa/quizd/llm"
	"github.com/amanshresthaa/quizd/model"
	"github.com/amanshresthaa/quizd/pipeline"
	"github.com/amanshresthaa/quizd/retrieval"
)

// DefaultDimension is the embedding dimensionality assumed when
// WithDimension is not given. It matches OpenAI text-embedding-3-small.
const DefaultDimension = 1536

// Service is the quizd facade. It owns the chunk catalog, both indexes,
// the retrieval engine, and the generation pipeline.
//
// All methods are safe for concurrent use.
type Service struct {
	embedder  llm.Embedder
	generator llm.Generator
	judge     llm.Judge

	semantic *embedding.Index
	lexical  *lexical.Index
	engine   *retrieval.Engine
	pipe     *pipeline.Pipeline
	asm      *assembler.Assembler

	store blobstore.Store
	mode  retrieval.Mode

	logger  *Logger
	metrics MetricsCollector

	// mu serializes chunk lifecycle mutations and guards the catalog.
	// Index reads stay lock-free; the catalog read path takes RLock.
	mu     sync.RWMutex
	chunks map[model.ChunkID]model.ContentChunk
}

// New creates a Service over the given capabilities. embedder may be
// nil; retrieval then serves lexical-only. generator and judge may be
// nil for a retrieval-only service; GenerateQuiz will refuse to run.
func New(embedder llm.Embedder, generator llm.Generator, judge llm.Judge, optFns ...Option) (*Service, error) {
	opts := applyOptions(optFns)

	dimension := opts.dimension
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	semanticIdx, err := embedding.New(dimension)
	if err != nil {
		return nil, err
	}
	lexicalIdx := lexical.New()

	retrievalOpts := append([]func(*retrieval.Options){func(ro *retrieval.Options) {
		ro.Logger = opts.logger.Logger
	}}, opts.retrievalOptions...)
	engine := retrieval.NewEngine(embedder, semanticIdx, lexicalIdx, retrievalOpts...)

	pipelineOpts := append([]func(*pipeline.Options){func(po *pipeline.Options) {
		po.Logger = opts.logger.Logger
	}}, opts.pipelineOptions...)
	pipe := pipeline.New(generator, judge, pipelineOpts...)

	assemblerOpts := append([]func(*assembler.Options){func(ao *assembler.Options) {
		ao.Logger = opts.logger.Logger
	}}, opts.assemblerOptions...)
	asm := assembler.New(assemblerOpts...)

	return &Service{
		embedder:  embedder,
		generator: generator,
		judge:     judge,
		semantic:  semanticIdx,
		lexical:   lexicalIdx,
		engine:    engine,
		pipe:      pipe,
		asm:       asm,
		store:     opts.store,
		mode:      opts.retrievalMode,
		logger:    opts.logger,
		metrics:   opts.metricsCollector,
		chunks:    make(map[model.ChunkID]model.ContentChunk),
	}, nil
}

// Dimension returns the embedding dimensionality of the service.
func (s *Service) Dimension() int {
	return s.semantic.Dimension()
}

// Len returns the number of chunks in the catalog.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Ingest indexes the given chunks in both indexes. A chunk whose
// embedding cannot be produced is still indexed lexically, so it stays
// retrievable in degraded mode; the count of such chunks is reported
// through metrics. A dimension mismatch aborts the ingest.
func (s *Service) Ingest(ctx context.Context, chunks ...model.ContentChunk) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	lexicalOnly := 0
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("chunk with empty ID (document %q)", chunk.DocumentID)
		}
		if err := s.indexChunkLocked(ctx, chunk, &lexicalOnly); err != nil {
			s.logger.LogIngest(ctx, len(chunks), lexicalOnly, err)
			s.metrics.RecordIngest(len(chunks), lexicalOnly, time.Since(start))
			return err
		}
	}

	s.logger.LogIngest(ctx, len(chunks), lexicalOnly, nil)
	s.metrics.RecordIngest(len(chunks), lexicalOnly, time.Since(start))
	return nil
}

func (s *Service) indexChunkLocked(ctx context.Context, chunk model.ContentChunk, lexicalOnly *int) error {
	if s.embedder != nil {
		vector, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			s.logger.WithChunk(string(chunk.ID)).WarnContext(ctx,
				"embedding failed, indexing lexically only", "error", err)
			*lexicalOnly++
		} else if err := s.semantic.Upsert(chunk.ID, vector); err != nil {
			return translateError(err)
		}
	}

	if err := s.lexical.Add(chunk.ID, chunk.Text); err != nil {
		return err
	}

	s.chunks[chunk.ID] = chunk
	return nil
}

// UpdateChunk replaces an indexed chunk with new content. The old entry
// is removed from both indexes before the new one is inserted, under
// the service's write exclusion, so no query ever mixes old and new
// text for the same chunk ID.
func (s *Service) UpdateChunk(ctx context.Context, chunk model.ContentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[chunk.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrChunkNotFound, chunk.ID)
	}

	if err := s.removeChunkLocked(chunk.ID); err != nil {
		return err
	}

	lexicalOnly := 0
	return s.indexChunkLocked(ctx, chunk, &lexicalOnly)
}

// RemoveChunk removes a chunk from the catalog and both indexes.
func (s *Service) RemoveChunk(ctx context.Context, id model.ChunkID) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[id]; !ok {
		err := fmt.Errorf("%w: %s", ErrChunkNotFound, id)
		s.metrics.RecordRemove(time.Since(start), err)
		return err
	}

	err := s.removeChunkLocked(id)
	s.logger.LogRemove(ctx, string(id), err)
	s.metrics.RecordRemove(time.Since(start), err)
	return err
}

func (s *Service) removeChunkLocked(id model.ChunkID) error {
	if err := s.semantic.Remove(id); err != nil {
		return translateError(err)
	}
	if err := s.lexical.Remove(id); err != nil {
		return err
	}
	delete(s.chunks, id)
	return nil
}

// Retrieve returns up to k ranked chunks for the query under the
// requested mode.
func (s *Service) Retrieve(ctx context.Context, query string, mode retrieval.Mode, k int) (*retrieval.Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	res, err := s.engine.Retrieve(ctx, query, mode, k)
	if err != nil {
		s.logger.LogRetrieve(ctx, k, 0, false, err)
		s.metrics.RecordRetrieve(k, false, time.Since(start), err)
		return nil, translateError(err)
	}

	s.logger.LogRetrieve(ctx, k, len(res.Results), res.Degraded, nil)
	s.metrics.RecordRetrieve(k, res.Degraded, time.Since(start), nil)
	return res, nil
}

// GenerateQuiz runs the full retrieve/generate/judge/assemble flow for
// one quiz request. A run that serves less than requested (lexical-only
// retrieval, short quiz) returns a response with Degraded set rather
// than an error; only empty retrieval and infrastructure failures are
// errors.
func (s *Service) GenerateQuiz(ctx context.Context, req QuizRequest) (*QuizResponse, error) {
	start := time.Now()

	resp, err := s.generateQuiz(ctx, req, start)

	got := 0
	if resp != nil && resp.Quiz != nil {
		got = len(resp.Quiz.Questions)
	}
	s.logger.LogQuiz(ctx, req.NumQuestions, got, time.Since(start), err)
	s.metrics.RecordQuiz(req.NumQuestions, got, time.Since(start), err)

	return resp, err
}

func (s *Service) generateQuiz(ctx context.Context, req QuizRequest, start time.Time) (*QuizResponse, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.NumQuestions <= 0 {
		return nil, ErrInvalidQuestionCount
	}
	if s.generator == nil || s.judge == nil {
		return nil, llm.ErrGenerationUnavailable
	}

	mode := req.Mode
	if mode == retrieval.ModeAuto {
		mode = s.mode
	}

	// Over-fetch so failing chunks can be replaced without re-querying.
	contextK := req.NumQuestions * 2

	retrieved, err := s.engine.Retrieve(ctx, req.Query, mode, contextK)
	if err != nil {
		return nil, translateError(err)
	}
	if len(retrieved.Results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoContent, req.Query)
	}

	chunks := s.resolveChunks(retrieved.Results)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoContent, req.Query)
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	questionType := model.QuestionMultipleChoice
	if len(req.Types) > 0 {
		questionType = req.Types[0]
	}

	pipeRes, err := s.pipe.Run(ctx, pipeline.Input{
		Chunks:       chunks,
		NumQuestions: req.NumQuestions,
		Difficulty:   difficulty,
		Type:         questionType,
	})
	if err != nil {
		return nil, err
	}

	quiz, asmErr := s.asm.Assemble(assembler.Input{
		Topic:        req.Query,
		NumQuestions: req.NumQuestions,
		Candidates:   pipeRes.Accepted,
		Stats:        pipeRes.Stats,
		Retrieval:    retrieved.Elapsed,
	})

	resp := &QuizResponse{
		Quiz:           quiz,
		Degraded:       retrieved.Degraded,
		DegradedReason: retrieved.DegradedReason,
	}

	var insufficient *assembler.ErrInsufficientQuestions
	if errors.As(asmErr, &insufficient) {
		resp.Degraded = true
		reason := fmt.Sprintf("short quiz: %d of %d questions verified", insufficient.Got, insufficient.Want)
		if resp.DegradedReason != "" {
			reason = resp.DegradedReason + "; " + reason
		}
		resp.DegradedReason = reason
	} else if asmErr != nil {
		return nil, asmErr
	}

	quiz.Metadata.Timings.Total = time.Since(start)
	return resp, nil
}

// resolveChunks maps ranked results back to catalog chunks, preserving
// rank order. Results whose chunk was removed since retrieval are
// skipped.
func (s *Service) resolveChunks(results []model.RetrievalResult) []model.ContentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]model.ContentChunk, 0, len(results))
	for _, r := range results {
		if chunk, ok := s.chunks[r.ChunkID]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Stats is a point-in-time view of service state and retrieval
// accounting.
type Stats struct {
	Chunks          int
	SemanticVectors int
	LexicalDocs     int
	Retrieval       retrieval.Stats
}

// Stats returns current service statistics.
func (s *Service) Stats() Stats {
	return Stats{
		Chunks:          s.Len(),
		SemanticVectors: s.semantic.Len(),
		LexicalDocs:     s.lexical.Len(),
		Retrieval:       s.engine.Stats(),
	}
}

// SaveSnapshot persists both indexes and the chunk catalog to the
// configured blob store under the given name.
func (s *Service) SaveSnapshot(ctx context.Context, name string) error {
	start := time.Now()
	err := s.saveSnapshot(ctx, name)
	s.logger.LogSnapshot(ctx, "save", name, err)
	s.metrics.RecordSnapshot("save", time.Since(start), err)
	return err
}

func (s *Service) saveSnapshot(ctx context.Context, name string) error {
	if err := s.semantic.SaveSnapshot(ctx, s.store, name+".embedding"); err != nil {
		return err
	}
	if err := s.lexical.SaveSnapshot(ctx, s.store, name+".lexical"); err != nil {
		return err
	}
	return s.saveCatalog(ctx, name)
}

// LoadSnapshot restores both indexes and the chunk catalog from the
// configured blob store. On any error the previous state is kept.
func (s *Service) LoadSnapshot(ctx context.Context, name string) error {
	start := time.Now()
	err := s.loadSnapshot(ctx, name)
	s.logger.LogSnapshot(ctx, "load", name, err)
	s.metrics.RecordSnapshot("load", time.Since(start), err)
	return err
}

func (s *Service) loadSnapshot(ctx context.Context, name string) error {
	// Catalog first: it fails fast on a missing snapshot without
	// touching index state.
	catalog, err := s.loadCatalog(ctx, name)
	if err != nil {
		return err
	}

	if err := s.semantic.LoadSnapshot(ctx, s.store, name+".embedding"); err != nil {
		return translateError(err)
	}
	if err := s.lexical.LoadSnapshot(ctx, s.store, name+".lexical"); err != nil {
		return translateError(err)
	}

	s.mu.Lock()
	s.chunks = catalog
	s.mu.Unlock()
	return nil
}

func (s *Service) saveCatalog(ctx context.Context, name string) error {
	s.mu.RLock()
	catalog := make(map[model.ChunkID]model.ContentChunk, len(s.chunks))
	for id, chunk := range s.chunks {
		catalog[id] = chunk
	}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(catalog); err != nil {
		return err
	}
	return s.store.Put(ctx, name+".catalog", buf.Bytes())
}

func (s *Service) loadCatalog(ctx context.Context, name string) (map[model.ChunkID]model.ContentChunk, error) {
	data, err := s.store.Get(ctx, name+".catalog")
	if err != nil {
		return nil, translateError(err)
	}

	var catalog map[model.ChunkID]model.ContentChunk
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}
