package domain

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if len(strings.TrimSpace(q.Text)) < 3 {
		return NewValidationError("text", "question must be at least 3 characters")
	}
	if len(q.Options) < MinOptions {
		return NewValidationError("options", fmt.Sprintf("at least %d options required", MinOptions))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return NewValidationError(fmt.Sprintf("options[%d]", i), "option cannot be empty")
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return NewValidationError("correctAnswer", "must index one of the options")
	}
	return nil
}

// Validate checks the structural invariants of a quiz, excluding its questions.
func (q Quiz) Validate() error {
	if len(strings.TrimSpace(q.Title)) < 3 {
		return NewValidationError("title", "title must be at least 3 characters")
	}
	if q.TimeLimit <= 0 {
		return NewValidationError("timeLimit", "time limit must be positive")
	}
	if q.PassingScore < 1 || q.PassingScore > 100 {
		return NewValidationError("passingScore", "passing score must be between 1 and 100")
	}
	return nil
}
