// Package llm defines the contracts for the external language-model and
// embedding capabilities consumed by quizd.
//
// All capabilities are fallible and stateless from the caller's point
// of view. Errors wrap the package sentinels so callers can decide
// between degradation and retry with errors.Is.
package llm

import (
	"context"
	"errors"

	"github.com/amanshresthaa/quizd/model"
)

var (
	// ErrEmbeddingUnavailable indicates the embedding service cannot be
	// reached. Recoverable: retrieval degrades to lexical-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrGenerationUnavailable indicates the generation capability
	// failed. Recoverable: the attempt is recorded and retried.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	// ErrJudgeUnavailable indicates the judge capability failed.
	// Recoverable: the attempt is recorded and retried.
	ErrJudgeUnavailable = errors.New("judge service unavailable")
)

// Embedder turns text into a dense vector of fixed dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateInput constrains one question generation call.
type GenerateInput struct {
	// Context is the source text the question must be grounded in.
	Context    string
	Difficulty model.Difficulty
	Type       model.QuestionType
}

// GeneratedQuestion is the raw output of one generation call.
type GeneratedQuestion struct {
	Question string
	Answer   string
	// Choices is set for multiple-choice questions, nil otherwise.
	Choices []string
}

// Generator produces one candidate question from context text.
type Generator interface {
	Generate(ctx context.Context, input GenerateInput) (*GeneratedQuestion, error)
}

// JudgeInput is one evaluation call.
type JudgeInput struct {
	Context  string
	Question string
	Answer   string
}

// JudgeVerdict is the raw output of one judge call.
type JudgeVerdict struct {
	// Score is in [0,1].
	Score     float32
	Rationale string
	// Answerable and Correct grade the two judged aspects, each in [0,1].
	Answerable float32
	Correct    float32
}

// Judge grades a generated question against its source context.
type Judge interface {
	Judge(ctx context.Context, input JudgeInput) (*JudgeVerdict, error)
}
