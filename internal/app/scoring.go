package app

import (
	"math"

	"quiz-progression-service/internal/domain"
)

// maxScore is the scoring ceiling. Point totals above it saturate; totals
// below it are left alone. There is no normalization by question count, so
// a quiz whose points sum under 100 can never show a perfect score. That
// asymmetry is intentional and relied upon by the progression rules.
const maxScore = 100

// ComputeScore totals the point values of correctly answered questions and
// clamps the result to [0, maxScore]. The timeout sentinel never matches a
// correct index, so timed-out questions contribute nothing. Deterministic:
// same quiz and answers always produce the same score.
func ComputeScore(quiz domain.Quiz, answers []int) int {
	var sum float64
	for i, question := range quiz.Questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == question.CorrectIndex {
			sum += question.Points
		}
	}
	if sum > maxScore {
		sum = maxScore
	}
	return int(math.Round(sum))
}

// CountCorrect returns how many answers match their question's correct index.
func CountCorrect(quiz domain.Quiz, answers []int) int {
	correct := 0
	for i, question := range quiz.Questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == question.CorrectIndex {
			correct++
		}
	}
	return correct
}
