package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanshresthaa/quizd/embedding"
	"github.com/amanshresthaa/quizd/lexical"
	"github.com/amanshresthaa/quizd/llm"
	"github.com/amanshresthaa/quizd/model"
)

// stubEmbedder embeds text deterministically via a caller-provided
// function, or fails when fn is nil.
type stubEmbedder struct {
	fn func(text string) []float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.fn == nil {
		return nil, llm.ErrEmbeddingUnavailable
	}
	return s.fn(text), nil
}

// keywordEmbedder maps text to a 2-dim vector from two keyword groups.
func keywordEmbedder(text string) []float32 {
	lower := strings.ToLower(text)
	vec := []float32{0.1, 0.1}
	for _, w := range []string{"diastole", "perfusion", "coronary"} {
		if strings.Contains(lower, w) {
			vec[0]++
		}
	}
	for _, w := range []string{"systole", "ejection"} {
		if strings.Contains(lower, w) {
			vec[1]++
		}
	}
	return vec
}

func newTestEngine(t *testing.T, embedder llm.Embedder, optFns ...func(o *Options)) (*Engine, *embedding.Index, *lexical.Index) {
	t.Helper()
	semIdx, err := embedding.New(2)
	require.NoError(t, err)
	lexIdx := lexical.New()
	return NewEngine(embedder, semIdx, lexIdx, optFns...), semIdx, lexIdx
}

func indexChunk(t *testing.T, semIdx *embedding.Index, lexIdx *lexical.Index, id model.ChunkID, text string) {
	t.Helper()
	require.NoError(t, semIdx.Upsert(id, keywordEmbedder(text)))
	require.NoError(t, lexIdx.Add(id, text))
}

func TestEngine_HybridScenario(t *testing.T) {
	embedder := &stubEmbedder{fn: keywordEmbedder}
	engine, semIdx, lexIdx := newTestEngine(t, embedder)

	indexChunk(t, semIdx, lexIdx, "1", "diastole perfusion text")
	indexChunk(t, semIdx, lexIdx, "2", "systole ejection text")

	res, err := engine.Retrieve(context.Background(), "coronary perfusion phase", ModeHybrid, 2)
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)

	assert.Equal(t, model.ChunkID("1"), res.Results[0].ChunkID)
	assert.Equal(t, model.SourceFused, res.Results[0].Source)
	assert.Equal(t, 1, res.Results[0].Rank)
	assert.False(t, res.Degraded)
	assert.Equal(t, ModeHybrid, res.ResolvedMode)
}

func TestEngine_AutoResolution(t *testing.T) {
	embedder := &stubEmbedder{fn: keywordEmbedder}

	t.Run("BothPopulated", func(t *testing.T) {
		engine, semIdx, lexIdx := newTestEngine(t, embedder)
		indexChunk(t, semIdx, lexIdx, "1", "diastole perfusion text")

		res, err := engine.Retrieve(context.Background(), "perfusion", ModeAuto, 5)
		require.NoError(t, err)
		assert.Equal(t, ModeHybrid, res.ResolvedMode)
		assert.False(t, res.Degraded)
	})

	t.Run("LexicalOnlyPopulated", func(t *testing.T) {
		engine, _, lexIdx := newTestEngine(t, embedder)
		require.NoError(t, lexIdx.Add("1", "diastole perfusion text"))

		res, err := engine.Retrieve(context.Background(), "perfusion", ModeAuto, 5)
		require.NoError(t, err)
		assert.Equal(t, ModeLexicalOnly, res.ResolvedMode)
		assert.True(t, res.Degraded)
		assert.NotEmpty(t, res.DegradedReason)
		require.Len(t, res.Results, 1)
		assert.Equal(t, model.SourceLexical, res.Results[0].Source)
	})

	t.Run("SemanticOnlyPopulated", func(t *testing.T) {
		engine, semIdx, _ := newTestEngine(t, embedder)
		require.NoError(t, semIdx.Upsert("1", keywordEmbedder("diastole perfusion")))

		res, err := engine.Retrieve(context.Background(), "perfusion phase", ModeAuto, 5)
		require.NoError(t, err)
		assert.Equal(t, ModeSemanticOnly, res.ResolvedMode)
		assert.True(t, res.Degraded)
	})
}

func TestEngine_EmbedderFailover(t *testing.T) {
	// Embedder that always fails.
	engine, semIdx, lexIdx := newTestEngine(t, &stubEmbedder{})
	indexChunk(t, semIdx, lexIdx, "1", "diastole perfusion text")

	for _, mode := range []Mode{ModeSemanticOnly, ModeHybrid, ModeAuto} {
		t.Run(mode.String(), func(t *testing.T) {
			res, err := engine.Retrieve(context.Background(), "perfusion", mode, 5)
			require.NoError(t, err)
			assert.True(t, res.Degraded)
			assert.Equal(t, ModeLexicalOnly, res.ResolvedMode)
			require.NotEmpty(t, res.Results)
			assert.Equal(t, model.SourceLexical, res.Results[0].Source)
		})
	}
}

func TestEngine_FailoverWithoutLexicalData(t *testing.T) {
	engine, semIdx, _ := newTestEngine(t, &stubEmbedder{})
	require.NoError(t, semIdx.Upsert("1", []float32{1, 0}))

	_, err := engine.Retrieve(context.Background(), "anything", ModeSemanticOnly, 5)
	assert.ErrorIs(t, err, llm.ErrEmbeddingUnavailable)
}

func TestEngine_NilEmbedder(t *testing.T) {
	engine, _, lexIdx := newTestEngine(t, nil)
	require.NoError(t, lexIdx.Add("1", "diastole perfusion text"))

	res, err := engine.Retrieve(context.Background(), "perfusion", ModeAuto, 5)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, ModeLexicalOnly, res.ResolvedMode)
}

func TestEngine_InvalidK(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	_, err := engine.Retrieve(context.Background(), "q", ModeAuto, 0)
	assert.ErrorIs(t, err, embedding.ErrInvalidK)
}

func TestEngine_Stats(t *testing.T) {
	embedder := &stubEmbedder{fn: keywordEmbedder}
	engine, semIdx, lexIdx := newTestEngine(t, embedder)
	indexChunk(t, semIdx, lexIdx, "1", "diastole perfusion text")

	ctx := context.Background()
	_, err := engine.Retrieve(ctx, "perfusion", ModeHybrid, 5)
	require.NoError(t, err)
	_, err = engine.Retrieve(ctx, "perfusion", ModeLexicalOnly, 5)
	require.NoError(t, err)
	_, err = engine.Retrieve(ctx, "perfusion", ModeAuto, 5)
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, int64(3), stats.TotalQueries)
	assert.Equal(t, int64(2), stats.HybridCount)
	assert.Equal(t, int64(1), stats.LexicalCount)
	assert.Equal(t, int64(0), stats.ErrorCount)
	assert.GreaterOrEqual(t, stats.AverageLatency, time.Duration(0))
}

func TestEngine_LexicalRankTagging(t *testing.T) {
	engine, _, lexIdx := newTestEngine(t, nil)
	require.NoError(t, lexIdx.Add("a", "alpha beta gamma"))
	require.NoError(t, lexIdx.Add("b", "alpha beta"))
	require.NoError(t, lexIdx.Add("c", "unrelated words"))

	res, err := engine.Retrieve(context.Background(), "alpha beta", ModeLexicalOnly, 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for i, r := range res.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, model.SourceLexical, r.Source)
	}
}
