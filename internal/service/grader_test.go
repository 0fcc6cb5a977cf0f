package service

import (
	"encoding/json"
	"testing"

	"english_edu_backend/internal/model"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already normal", in: "apple", want: "apple"},
		{name: "uppercase", in: "APPLE", want: "apple"},
		{name: "surrounding space", in: "  apple  ", want: "apple"},
		{name: "internal runs", in: "the   quick\tfox", want: "the quick fox"},
		{name: "blank", in: "   ", want: ""},
		{name: "mixed", in: " The  QUICK fox ", want: "the quick fox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeAnswer(tt.in); got != tt.want {
				t.Errorf("NormalizeAnswer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGradeAgainst(t *testing.T) {
	accepted := []string{"I am fine", "I'm fine"}

	tests := []struct {
		name        string
		candidate   string
		wantCorrect bool
		wantMatched string
	}{
		{name: "exact", candidate: "I am fine", wantCorrect: true, wantMatched: "I am fine"},
		{name: "case and spacing", candidate: "  i AM   fine ", wantCorrect: true, wantMatched: "I am fine"},
		{name: "second accepted form", candidate: "i'm fine", wantCorrect: true, wantMatched: "I'm fine"},
		{name: "wrong", candidate: "I am sad", wantCorrect: false},
		{name: "blank never matches", candidate: "   ", wantCorrect: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GradeAgainst(accepted, tt.candidate)
			if got.Correct != tt.wantCorrect {
				t.Errorf("GradeAgainst(%q).Correct = %v, want %v", tt.candidate, got.Correct, tt.wantCorrect)
			}
			if got.MatchedAnswer != tt.wantMatched {
				t.Errorf("GradeAgainst(%q).MatchedAnswer = %q, want %q", tt.candidate, got.MatchedAnswer, tt.wantMatched)
			}
		})
	}
}

func TestGradeAgainstBlankAccepted(t *testing.T) {
	// A blank accepted answer must not make a blank candidate correct.
	got := GradeAgainst([]string{""}, "")
	if got.Correct {
		t.Error("blank candidate graded correct against blank accepted answer")
	}
}

func TestGradeQuestion(t *testing.T) {
	q := &model.Question{
		QuestionType:  model.QuestionMCQ,
		Prompt:        "Pick the fruit",
		CorrectAnswer: json.RawMessage(`["Apple","Banana"]`),
	}
	if got := GradeQuestion(q, "banana"); !got.Correct {
		t.Errorf("GradeQuestion(banana) not correct, accepted = %v", q.AcceptedAnswers())
	}
	if got := GradeQuestion(q, "cherry"); got.Correct {
		t.Error("GradeQuestion(cherry) graded correct")
	}
}
