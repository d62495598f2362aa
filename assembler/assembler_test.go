package assembler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanshresthaa/quizd/model"
	"github.com/amanshresthaa/quizd/pipeline"
)

func candidate(id string, chunk model.ChunkID, question string) model.Candidate {
	return model.Candidate{
		ID:          id,
		Question:    question,
		Answer:      "answer " + id,
		SourceChunk: chunk,
	}
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TokenOverlap("the same question", "the same question"), 1e-6)
	assert.InDelta(t, 1.0, TokenOverlap("The Same Question", "the same question"), 1e-6)
	assert.InDelta(t, 0.0, TokenOverlap("alpha beta", "gamma delta"), 1e-6)
	// {a,b,c} vs {b,c,d}: overlap 2, union 4.
	assert.InDelta(t, 0.5, TokenOverlap("a b c", "b c d"), 1e-6)
	assert.InDelta(t, 0.0, TokenOverlap("", "anything"), 1e-6)
}

func TestAssemble_SelectsExactlyN(t *testing.T) {
	a := New()

	candidates := make([]model.Candidate, 8)
	for i := range candidates {
		candidates[i] = candidate(
			fmt.Sprintf("q%d", i),
			model.ChunkID(fmt.Sprintf("c%d", i)),
			fmt.Sprintf("question number %d about topic %d", i, i),
		)
	}

	quiz, err := a.Assemble(Input{
		Topic:        "cardiology",
		NumQuestions: 5,
		Candidates:   candidates,
	})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 5)

	// Earlier candidates win: q0..q4 in order.
	for i, q := range quiz.Questions {
		assert.Equal(t, fmt.Sprintf("q%d", i), q.ID)
	}
	assert.Equal(t, "cardiology", quiz.Topic)
	assert.NotEmpty(t, quiz.ID)
}

func TestAssemble_PrefersDistinctChunks(t *testing.T) {
	a := New()

	// Two candidates from chunk c0; the one from c2 should displace the
	// second c0 candidate even though it comes later.
	candidates := []model.Candidate{
		candidate("q0", "c0", "what regulates cardiac output"),
		candidate("q1", "c0", "which valve prevents backflow"),
		candidate("q2", "c1", "when does coronary perfusion happen"),
		candidate("q3", "c2", "where does gas exchange occur"),
	}

	quiz, err := a.Assemble(Input{NumQuestions: 3, Candidates: candidates})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 3)

	ids := []string{quiz.Questions[0].ID, quiz.Questions[1].ID, quiz.Questions[2].ID}
	assert.Equal(t, []string{"q0", "q2", "q3"}, ids)
}

func TestAssemble_FillsFromLeftoversWhenChunksRunOut(t *testing.T) {
	a := New()

	candidates := []model.Candidate{
		candidate("q0", "c0", "what regulates cardiac output"),
		candidate("q1", "c0", "which valve prevents backflow"),
		candidate("q2", "c1", "when does coronary perfusion happen"),
	}

	quiz, err := a.Assemble(Input{NumQuestions: 3, Candidates: candidates})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 3)
	// Distinct chunks first, then the leftover from c0.
	ids := []string{quiz.Questions[0].ID, quiz.Questions[1].ID, quiz.Questions[2].ID}
	assert.Equal(t, []string{"q0", "q2", "q1"}, ids)
}

func TestAssemble_ExcludesLaterNearDuplicate(t *testing.T) {
	a := New()

	candidates := []model.Candidate{
		candidate("q0", "c0", "what is the role of the mitral valve"),
		candidate("q1", "c1", "what is the role of the mitral valve exactly"),
		candidate("q2", "c2", "how do coronary arteries fill during diastole"),
	}

	quiz, err := a.Assemble(Input{NumQuestions: 2, Candidates: candidates})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "q0", quiz.Questions[0].ID)
	assert.Equal(t, "q2", quiz.Questions[1].ID)
}

func TestAssemble_CustomSimilarity(t *testing.T) {
	// A predicate that flags everything as a duplicate keeps only the
	// first candidate.
	a := New(func(o *Options) {
		o.Similarity = func(a, b string) float32 { return 1.0 }
	})

	candidates := []model.Candidate{
		candidate("q0", "c0", "alpha"),
		candidate("q1", "c1", "beta"),
		candidate("q2", "c2", "gamma"),
	}

	quiz, err := a.Assemble(Input{NumQuestions: 3, Candidates: candidates})
	require.Error(t, err)
	assert.Len(t, quiz.Questions, 1)
}

func TestAssemble_ShortQuizReturnsPartialWithError(t *testing.T) {
	a := New()

	candidates := []model.Candidate{
		candidate("q0", "c0", "what regulates cardiac output"),
		candidate("q1", "c1", "when does coronary perfusion happen"),
	}

	quiz, err := a.Assemble(Input{NumQuestions: 5, Candidates: candidates})
	require.Error(t, err)

	var insufficient *ErrInsufficientQuestions
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 5, insufficient.Want)
	assert.Equal(t, 2, insufficient.Got)

	// The partial quiz is still usable.
	require.NotNil(t, quiz)
	assert.Len(t, quiz.Questions, 2)
}

func TestAssemble_Metadata(t *testing.T) {
	a := New()

	quiz, err := a.Assemble(Input{
		NumQuestions: 1,
		Candidates:   []model.Candidate{candidate("q0", "c0", "a question")},
		Stats: pipeline.Stats{
			Evaluated:    10,
			Passed:       7,
			Failed:       3,
			AverageScore: 0.81,
			Generation:   2 * time.Second,
			Evaluation:   time.Second,
			Elapsed:      3 * time.Second,
		},
		Retrieval: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	md := quiz.Metadata
	assert.Equal(t, 10, md.Evaluated)
	assert.Equal(t, 7, md.Passed)
	assert.Equal(t, 3, md.Failed)
	assert.InDelta(t, 0.7, md.PassRate, 1e-6)
	assert.InDelta(t, 0.81, md.AverageScore, 1e-6)
	assert.Equal(t, 100*time.Millisecond, md.Timings.Retrieval)
	assert.Equal(t, 2*time.Second, md.Timings.Generation)
	assert.GreaterOrEqual(t, md.Timings.Total, md.Timings.Retrieval)
}

func TestAssemble_EmptyCandidates(t *testing.T) {
	a := New()

	quiz, err := a.Assemble(Input{NumQuestions: 3})
	require.Error(t, err)
	require.NotNil(t, quiz)
	assert.Empty(t, quiz.Questions)
	assert.Zero(t, quiz.Metadata.PassRate)
}
