package service

import (
	"english_edu_backend/internal/model"
	"strings"
)

// GradeResult reports the outcome of grading one candidate answer.
type GradeResult struct {
	Correct       bool   `json:"correct"`
	MatchedAnswer string `json:"matchedAnswer,omitempty"`
}

// NormalizeAnswer trims, lowercases and collapses internal whitespace.
// Grading compares normalized forms only; there is no partial credit.
func NormalizeAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// GradeAgainst checks the candidate against a list of acceptable answers.
func GradeAgainst(accepted []string, candidate string) GradeResult {
	normalized := NormalizeAnswer(candidate)
	if normalized == "" {
		return GradeResult{}
	}
	for _, a := range accepted {
		if NormalizeAnswer(a) == normalized {
			return GradeResult{Correct: true, MatchedAnswer: a}
		}
	}
	return GradeResult{}
}

// GradeQuestion grades a candidate against a curriculum question.
// Pronunciation and listening questions are graded against the target
// string; the speech-to-text conversion happens upstream.
func GradeQuestion(q *model.Question, candidate string) GradeResult {
	return GradeAgainst(q.AcceptedAnswers(), candidate)
}
