package assembler

import "fmt"

// ErrInsufficientQuestions is returned when fewer verified candidates
// survived selection than the quiz asked for. The partial quiz is still
// returned alongside it.
type ErrInsufficientQuestions struct {
	Want int
	Got  int
}

func (e *ErrInsufficientQuestions) Error() string {
	return fmt.Sprintf("assembler: insufficient questions: want %d, got %d", e.Want, e.Got)
}
