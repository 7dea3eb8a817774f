package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-builder/internal/domain"
)

// QuizLoader loads a quiz and its questions for the read-through caches.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, description, time_limit, passing_score, COALESCE(creator_id, 0),
		       is_active, password, created_at, updated_at
		FROM quizzes WHERE id = $1`, quizID).Scan(
		&quiz.ID, &quiz.Title, &quiz.Description, &quiz.TimeLimit, &quiz.PassingScore, &quiz.CreatorID,
		&quiz.IsActive, &quiz.Password, &quiz.CreatedAt, &quiz.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, quiz_id, text, options, correct_answer, created_at
		FROM questions WHERE quiz_id = $1 ORDER BY id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	quiz.Questions = []domain.Question{}
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &raw, &q.CorrectAnswer, &q.CreatedAt); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return domain.Quiz{}, fmt.Errorf("unmarshal options: %w", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}
