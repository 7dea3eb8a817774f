package domain

import (
	"errors"
	"testing"
)

func TestScoreCountsOnlyMatchingAnswers(t *testing.T) {
	questions := []Question{
		{ID: 1, CorrectAnswer: 0},
		{ID: 2, CorrectAnswer: 1},
		{ID: 3, CorrectAnswer: 2},
	}

	cases := []struct {
		name    string
		answers []Answer
		want    int
	}{
		{"all correct", []Answer{{1, 0}, {2, 1}, {3, 2}}, 3},
		{"nothing answered", nil, 0},
		{"unknown question ignored", []Answer{{99, 0}, {2, 1}}, 1},
		{"wrong choices", []Answer{{1, 1}, {2, 0}}, 0},
		{"last entry wins", []Answer{{1, 1}, {1, 0}}, 1},
	}
	for _, tc := range cases {
		if got := Score(questions, tc.answers); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestPercentageAndPassed(t *testing.T) {
	if got := Percentage(2, 3); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := Percentage(1, 0); got != 0 {
		t.Fatalf("expected 0 for empty quiz, got %d", got)
	}
	if !Passed(60, 0) {
		t.Fatalf("expected default passing score of 60 to pass 60%%")
	}
	if Passed(69, 70) {
		t.Fatalf("expected 69%% to fail a 70%% quiz")
	}
}

func TestClampTimeTaken(t *testing.T) {
	if got := ClampTimeTaken(-5, 60); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := ClampTimeTaken(75, 60); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := ClampTimeTaken(42, 60); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestFormatClockAndBands(t *testing.T) {
	if got := FormatClock(305); got != "05:05" {
		t.Fatalf("expected 05:05, got %s", got)
	}
	if got := BandFor(RemainingPercent(6, 60)); got != TimerCritical {
		t.Fatalf("expected critical, got %s", got)
	}
	if got := BandFor(RemainingPercent(15, 60)); got != TimerWarning {
		t.Fatalf("expected warning, got %s", got)
	}
	if got := BandFor(RemainingPercent(60, 60)); got != TimerNormal {
		t.Fatalf("expected normal, got %s", got)
	}
}

func TestRedactedCopiesQuestions(t *testing.T) {
	original := []Question{{ID: 1, Options: []string{"a", "b"}, CorrectAnswer: 1}}
	redacted := Redacted(original)
	if redacted[0].CorrectAnswer != HiddenAnswer {
		t.Fatalf("expected hidden answer, got %d", redacted[0].CorrectAnswer)
	}
	if original[0].CorrectAnswer != 1 {
		t.Fatalf("redaction must not mutate the source")
	}
}

func TestQuestionValidate(t *testing.T) {
	valid := Question{Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}

	bad := []Question{
		{Text: "Hi", Options: []string{"a", "b"}},
		{Text: "Only one?", Options: []string{"a"}},
		{Text: "Blank option", Options: []string{"a", " "}},
		{Text: "Out of range", Options: []string{"a", "b"}, CorrectAnswer: 2},
		{Text: "Negative", Options: []string{"a", "b"}, CorrectAnswer: -1},
	}
	for _, q := range bad {
		err := q.Validate()
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", q.Text, err)
		}
	}
}

func TestQuizValidate(t *testing.T) {
	if err := (Quiz{Title: "Go basics", TimeLimit: 10, PassingScore: 60}).Validate(); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}
	if err := (Quiz{Title: "Go basics", TimeLimit: 0, PassingScore: 60}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero time limit, got %v", err)
	}
	if err := (Quiz{Title: "Go basics", TimeLimit: 5, PassingScore: 101}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for passing score, got %v", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if !errors.Is(ErrAlreadyCompleted, ErrConflict) {
		t.Fatalf("expected already-completed to be a conflict")
	}
	if !errors.Is(ErrNotOwner, ErrForbidden) {
		t.Fatalf("expected not-owner to be forbidden")
	}
	if !errors.Is(ErrResultNotFound, ErrNotFound) {
		t.Fatalf("expected result-not-found to be not found")
	}
}
