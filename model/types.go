package model

import (
	"time"
)

// ChunkID is the user-facing stable identifier of a content chunk.
type ChunkID string

// DocumentID identifies the source document a chunk was cut from.
type DocumentID string

// ContentChunk is the smallest indexed unit of source text.
// A chunk is immutable once indexed; updates create a new chunk and
// retire the old one from both indexes.
type ContentChunk struct {
	ID         ChunkID
	DocumentID DocumentID
	Text       string
	// Ordinal is the chunk's position within its document.
	Ordinal   int
	Tags      []string
	CreatedAt time.Time
}

// Hit is a scored match returned by an index or fusion stage, before
// provenance and rank are attached.
type Hit struct {
	ChunkID ChunkID
	Score   float32
}

// SourceTag records which index a retrieval result came from.
type SourceTag string

const (
	SourceSemantic SourceTag = "semantic"
	SourceLexical  SourceTag = "lexical"
	SourceFused    SourceTag = "fused"
)

// RetrievalResult is a single ranked hit. It is produced per query and
// never persisted.
type RetrievalResult struct {
	ChunkID ChunkID
	Score   float32
	Source  SourceTag
	// Rank is 1-based within the result list.
	Rank int
}

// QuestionType constrains the shape of a generated question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// Difficulty is the declared difficulty of a generated question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Candidate is an unverified generated question. Candidates are never
// mutated after creation; a failed candidate is discarded and a fresh
// one generated.
type Candidate struct {
	ID         string
	Question   string
	Answer     string
	Choices    []string
	Type       QuestionType
	Difficulty Difficulty
	// SourceChunk is the chunk the question was generated from.
	SourceChunk ChunkID
	// Attempt is the 1-based generation attempt number.
	Attempt int
}

// Verdict is the evaluation outcome for one candidate. Produced once,
// immutable.
type Verdict struct {
	CandidateID string
	Passed      bool
	// Score is in [0,1].
	Score     float32
	Rationale string
	SubScores SubScores
}

// SubScores breaks the verdict score into its graded aspects.
type SubScores struct {
	Answerable float32
	Correct    float32
}

// QuizMetadata aggregates accounting for one assembly run.
type QuizMetadata struct {
	Evaluated    int
	Passed       int
	Failed       int
	AverageScore float32
	// PassRate is Passed / Evaluated, 0 when nothing was evaluated.
	PassRate float32
	Timings  StageTimings
}

// StageTimings is the per-stage wall-clock breakdown of a quiz run.
type StageTimings struct {
	Retrieval  time.Duration
	Generation time.Duration
	Evaluation time.Duration
	Assembly   time.Duration
	Total      time.Duration
}

// Quiz is the final ordered question set. Read-only after assembly.
type Quiz struct {
	ID        string
	Topic     string
	Questions []Candidate
	Metadata  QuizMetadata
	CreatedAt time.Time
}
