package quizd

import (
	"errors"
	"fmt"

	"github.com/amanshresthaa/quizd/blobstore"
	"github.com/amanshresthaa/quizd/embedding"
)

var (
	// ErrChunkNotFound is returned when an operation names a chunk the
	// service never ingested (or already removed).
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrEmptyQuery is returned when a retrieval or quiz request carries
	// no query text.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidQuestionCount is returned when a quiz request asks for a
	// non-positive number of questions.
	ErrInvalidQuestionCount = errors.New("number of questions must be positive")

	// ErrNoContent is returned when quiz generation retrieves nothing to
	// generate from.
	ErrNoContent = errors.New("no content retrieved for query")

	// ErrSnapshotNotFound is returned when LoadSnapshot finds no snapshot
	// under the given name.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrSnapshotNotFound, err)
	}

	// Dimension normalization.
	var dm *embedding.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}
