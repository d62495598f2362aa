package quizd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/llm"
	"github.com/amanshresthaa/quizd/model"
	"github.com/amanshresthaa/quizd/retrieval"
)

// hashEmbedder maps each token to a fixed vector slot, giving texts
// with shared vocabulary a higher cosine similarity.
type hashEmbedder struct {
	dimension int
	err       error
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vector := make([]float32, e.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		slot := 0
		for _, r := range word {
			slot = (slot*31 + int(r)) % e.dimension
		}
		vector[slot]++
	}
	return vector, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, input llm.GenerateInput) (*llm.GeneratedQuestion, error) {
	return &llm.GeneratedQuestion{
		Question: "What is described by: " + input.Context + "?",
		Answer:   "the described concept",
	}, nil
}

type passJudge struct{}

func (passJudge) Judge(context.Context, llm.JudgeInput) (*llm.JudgeVerdict, error) {
	return &llm.JudgeVerdict{Score: 0.95, Rationale: "grounded", Answerable: 0.95, Correct: 0.95}, nil
}

func testChunks() []model.ContentChunk {
	return []model.ContentChunk{
		{ID: "c1", DocumentID: "d1", Text: "coronary arteries fill during diastole when the heart muscle relaxes", Ordinal: 0},
		{ID: "c2", DocumentID: "d1", Text: "systole is the contraction phase that ejects blood into the aorta", Ordinal: 1},
		{ID: "c3", DocumentID: "d2", Text: "the mitral valve prevents backflow between atrium and ventricle", Ordinal: 0},
		{ID: "c4", DocumentID: "d2", Text: "cardiac output is stroke volume times heart rate", Ordinal: 1},
	}
}

func newTestService(t *testing.T, optFns ...Option) *Service {
	t.Helper()
	opts := append([]Option{WithDimension(8)}, optFns...)
	svc, err := New(&hashEmbedder{dimension: 8}, echoGenerator{}, passJudge{}, opts...)
	require.NoError(t, err)
	return svc
}

func TestService_IngestAndRetrieve(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	assert.Equal(t, 4, svc.Len())

	res, err := svc.Retrieve(context.Background(), "diastole coronary arteries", retrieval.ModeAuto, 2)
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, retrieval.ModeHybrid, res.ResolvedMode)
	assert.False(t, res.Degraded)
	assert.Equal(t, model.ChunkID("c1"), res.Results[0].ChunkID)
}

func TestService_RetrieveEmptyQuery(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Retrieve(context.Background(), "", retrieval.ModeAuto, 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestService_UpdateChunk(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	updated := model.ContentChunk{ID: "c4", DocumentID: "d2", Text: "ejection fraction measures pump efficiency", Ordinal: 1}
	require.NoError(t, svc.UpdateChunk(context.Background(), updated))

	res, err := svc.Retrieve(context.Background(), "ejection fraction pump", retrieval.ModeLexicalOnly, 1)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, model.ChunkID("c4"), res.Results[0].ChunkID)

	// The old text is gone.
	res, err = svc.Retrieve(context.Background(), "stroke volume", retrieval.ModeLexicalOnly, 4)
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.NotEqual(t, model.ChunkID("c4"), r.ChunkID)
	}
}

func TestService_UpdateUnknownChunk(t *testing.T) {
	svc := newTestService(t)
	err := svc.UpdateChunk(context.Background(), model.ContentChunk{ID: "ghost", Text: "boo"})
	assert.ErrorIs(t, err, ErrChunkNotFound)
}

func TestService_RemoveChunk(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	require.NoError(t, svc.RemoveChunk(context.Background(), "c1"))
	assert.Equal(t, 3, svc.Len())

	err := svc.RemoveChunk(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrChunkNotFound)
}

func TestService_GenerateQuiz(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	resp, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "cardiac cycle phases",
		NumQuestions: 2,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Quiz)

	assert.Len(t, resp.Quiz.Questions, 2)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "cardiac cycle phases", resp.Quiz.Topic)
	assert.Greater(t, resp.Quiz.Metadata.Evaluated, 0)
	assert.Greater(t, resp.Quiz.Metadata.Timings.Total, resp.Quiz.Metadata.Timings.Retrieval)

	// Each question comes from a distinct chunk.
	seen := make(map[model.ChunkID]bool)
	for _, q := range resp.Quiz.Questions {
		assert.False(t, seen[q.SourceChunk])
		seen[q.SourceChunk] = true
	}
}

func TestService_GenerateQuizExplicitMode(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	resp, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "mitral valve backflow",
		Mode:         retrieval.ModeLexicalOnly,
		NumQuestions: 1,
	})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.Len(t, resp.Quiz.Questions, 1)
}

func TestService_GenerateQuizValidation(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	_, err := svc.GenerateQuiz(context.Background(), QuizRequest{NumQuestions: 3})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.GenerateQuiz(context.Background(), QuizRequest{Query: "heart"})
	assert.ErrorIs(t, err, ErrInvalidQuestionCount)
}

func TestService_GenerateQuizNoContent(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "anything",
		NumQuestions: 2,
	})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestService_GenerateQuizWithoutGenerator(t *testing.T) {
	svc, err := New(&hashEmbedder{dimension: 8}, nil, nil, WithDimension(8))
	require.NoError(t, err)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	_, err = svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "heart",
		NumQuestions: 1,
	})
	assert.ErrorIs(t, err, llm.ErrGenerationUnavailable)
}

func TestService_DegradedWithoutEmbedder(t *testing.T) {
	svc, err := New(nil, echoGenerator{}, passJudge{}, WithDimension(8))
	require.NoError(t, err)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	resp, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "mitral valve backflow",
		NumQuestions: 1,
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.DegradedReason)
	assert.Len(t, resp.Quiz.Questions, 1)
}

func TestService_ShortQuizIsDegraded(t *testing.T) {
	svc := newTestService(t)
	// One chunk can back at most one question.
	require.NoError(t, svc.Ingest(context.Background(), testChunks()[0]))

	resp, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "diastole coronary",
		NumQuestions: 3,
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.DegradedReason, "short quiz")
	assert.Len(t, resp.Quiz.Questions, 1)
}

func TestService_EmbedderFailureDegradesIngest(t *testing.T) {
	embedder := &hashEmbedder{dimension: 8, err: errors.New("quota exceeded")}
	svc, err := New(embedder, echoGenerator{}, passJudge{}, WithDimension(8))
	require.NoError(t, err)

	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	stats := svc.Stats()
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 0, stats.SemanticVectors)
	assert.Equal(t, 4, stats.LexicalDocs)

	// Retrieval still works, lexically.
	res, err := svc.Retrieve(context.Background(), "mitral valve", retrieval.ModeAuto, 2)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, retrieval.ModeLexicalOnly, res.ResolvedMode)
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	_, err := svc.Retrieve(context.Background(), "heart", retrieval.ModeAuto, 2)
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 4, stats.SemanticVectors)
	assert.Equal(t, 4, stats.LexicalDocs)
	assert.Equal(t, int64(1), stats.Retrieval.TotalQueries)
}

func TestService_MetricsCollector(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	svc := newTestService(t, WithMetricsCollector(metrics))
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))

	_, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "cardiac output",
		NumQuestions: 1,
	})
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.IngestCount)
	assert.Equal(t, int64(4), stats.IngestChunks)
	assert.Equal(t, int64(1), stats.QuizCount)
	assert.Zero(t, stats.QuizErrors)
}

func TestService_SnapshotRoundTrip(t *testing.T) {
	store := blobstore.NewMemoryStore()

	svc := newTestService(t, WithBlobStore(store))
	require.NoError(t, svc.Ingest(context.Background(), testChunks()...))
	require.NoError(t, svc.SaveSnapshot(context.Background(), "quiz-2026-08-30"))

	restored := newTestService(t, WithBlobStore(store))
	require.NoError(t, restored.LoadSnapshot(context.Background(), "quiz-2026-08-30"))

	assert.Equal(t, 4, restored.Len())

	res, err := restored.Retrieve(context.Background(), "diastole coronary arteries", retrieval.ModeAuto, 2)
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, model.ChunkID("c1"), res.Results[0].ChunkID)

	// Restored catalog backs quiz generation.
	resp, err := restored.GenerateQuiz(context.Background(), QuizRequest{
		Query:        "mitral valve",
		NumQuestions: 1,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Quiz.Questions, 1)
}

func TestService_LoadSnapshotMissing(t *testing.T) {
	svc := newTestService(t)
	err := svc.LoadSnapshot(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestService_IngestEmptyID(t *testing.T) {
	svc := newTestService(t)
	err := svc.Ingest(context.Background(), model.ContentChunk{DocumentID: "d1", Text: "orphan"})
	require.Error(t, err)
	assert.Equal(t, 0, svc.Len())
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	err := translateError(fmt.Errorf("wrap: %w", blobstore.ErrNotFound))
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
