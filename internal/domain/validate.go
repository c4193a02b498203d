package domain

import "fmt"

// Validate checks the quiz against the catalog contract: exactly four
// options per question, correct index within bounds, non-negative points
// and time limits. Authoring flows are expected to uphold this; loaders
// enforce it so malformed content is rejected before a session starts.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrEmptyQuiz
	}
	for i, question := range q.Questions {
		if len(question.Options) != OptionCount {
			return fmt.Errorf("question %d has %d options: %w", i, len(question.Options), ErrInvalidQuiz)
		}
		if question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options) {
			return fmt.Errorf("question %d correct index %d out of bounds: %w", i, question.CorrectIndex, ErrInvalidQuiz)
		}
		if question.Points < 0 {
			return fmt.Errorf("question %d has negative points: %w", i, ErrInvalidQuiz)
		}
		if question.TimeLimitSec < 0 {
			return fmt.Errorf("question %d has negative time limit: %w", i, ErrInvalidQuiz)
		}
	}
	return nil
}
