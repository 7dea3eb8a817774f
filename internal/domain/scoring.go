package domain

import (
	"fmt"
	"math"
)

const (
	// DefaultPassingScore is the passing percentage used when a quiz has none.
	DefaultPassingScore = 60
	// MinOptions is the minimum number of options per question.
	MinOptions = 2
	// HiddenAnswer replaces correctAnswer in payloads shown to non-admin viewers.
	HiddenAnswer = -1
)

// Score counts the questions whose recorded answer equals the correct answer.
// Answers for unknown questions are ignored; a question with no answer never counts.
func Score(questions []Question, answers []Answer) int {
	selected := AnswerMap(answers)
	score := 0
	for _, q := range questions {
		if choice, ok := selected[q.ID]; ok && choice == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// AnswerMap indexes answers by question id; a later entry for the same question wins.
func AnswerMap(answers []Answer) map[int64]int {
	m := make(map[int64]int, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a.SelectedAnswer
	}
	return m
}

// Percentage returns score/total as a rounded whole percentage.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// Passed reports whether percentage meets passingScore, falling back to the default.
func Passed(percentage, passingScore int) bool {
	if passingScore <= 0 {
		passingScore = DefaultPassingScore
	}
	return percentage >= passingScore
}

// ClampTimeTaken bounds a reported duration to [0, limitSeconds].
func ClampTimeTaken(seconds, limitSeconds int) int {
	if seconds < 0 {
		return 0
	}
	if limitSeconds > 0 && seconds > limitSeconds {
		return limitSeconds
	}
	return seconds
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// TimerBand classifies the remaining-time bar.
type TimerBand string

const (
	TimerNormal   TimerBand = "normal"
	TimerWarning  TimerBand = "warning"
	TimerCritical TimerBand = "critical"
)

// RemainingPercent is the share of the time limit still left.
func RemainingPercent(timeLeft, limitSeconds int) float64 {
	if limitSeconds <= 0 {
		return 0
	}
	return float64(timeLeft) / float64(limitSeconds) * 100
}

// BandFor maps a remaining percentage to a band: critical at 10% or less, warning at 25% or less.
func BandFor(remainingPercent float64) TimerBand {
	switch {
	case remainingPercent <= 10:
		return TimerCritical
	case remainingPercent <= 25:
		return TimerWarning
	default:
		return TimerNormal
	}
}

// Redacted returns a copy of questions with every answer key replaced by HiddenAnswer.
func Redacted(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Options = append([]string(nil), q.Options...)
		q.CorrectAnswer = HiddenAnswer
		out[i] = q
	}
	return out
}
