package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz is returned when a session is started for a quiz with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrInvalidQuiz indicates quiz content violates the catalog contract
	// (option count, correct-index bounds, negative points or time limits).
	ErrInvalidQuiz = errors.New("quiz content is invalid")
	// ErrSessionNotFound is returned when a session id does not resolve to an active attempt.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotCompleted is returned when finalization is requested before the last answer.
	ErrSessionNotCompleted = errors.New("quiz session not completed")
	// ErrSessionFinalized is returned when a completed session is finalized twice.
	ErrSessionFinalized = errors.New("quiz session already finalized")
	// ErrStatsNotFound indicates no progression record exists for the user yet.
	ErrStatsNotFound = errors.New("user stats not found")
)
