package quizd

import (
	"github.com/amanshresthaa/quizd/model"
	"github.com/amanshresthaa/quizd/retrieval"
)

// QuizRequest is the caller-facing request for one quiz run. Transport
// is owned by the embedding application; quizd only sees this struct.
type QuizRequest struct {
	// Query is the topic or free-text query used for retrieval.
	Query string
	// Mode selects how context is retrieved. The zero value
	// (retrieval.ModeAuto) defers to the service default.
	Mode retrieval.Mode
	// NumQuestions is the target question count N.
	NumQuestions int
	Difficulty   model.Difficulty
	Types        []model.QuestionType
}

// QuizResponse pairs the assembled quiz with run-level signals the
// caller must not lose, such as degradation flags.
type QuizResponse struct {
	Quiz *model.Quiz
	// Degraded reports that the run served something other than what
	// was literally requested (lexical-only fallback, short quiz).
	Degraded bool
	// DegradedReason is empty unless Degraded is set.
	DegradedReason string
}
