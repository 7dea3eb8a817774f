package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

const defaultAdminPassword = "admin123"

// NewSeedCmd creates the admin account and sample quizzes when absent.
func NewSeedCmd(configPath *string) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and sample quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured; the memory store seeds itself on start")
			}
			b, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()
			return seedData(cmd.Context(), newServices(cfg, b, log), password, log)
		},
	}
	cmd.Flags().StringVar(&password, "admin-password", defaultAdminPassword, "password for the admin account")
	return cmd
}

type sampleQuiz struct {
	input     app.QuizInput
	questions []domain.Question
}

var sampleQuizzes = []sampleQuiz{
	{
		input: app.QuizInput{Title: "Go Fundamentals", Description: "Types, goroutines and the standard toolchain.", TimeLimit: 30, PassingScore: 70},
		questions: []domain.Question{
			{Text: "What is the zero value of a map?", Options: []string{"An empty map", "nil", "A panic", "map[]{}"}, CorrectAnswer: 1},
			{Text: "Which keyword starts a goroutine?", Options: []string{"async", "spawn", "go", "thread"}, CorrectAnswer: 2},
			{Text: "Which command formats Go source?", Options: []string{"go vet", "go fmt", "go lint", "go tidy"}, CorrectAnswer: 1},
		},
	},
	{
		input: app.QuizInput{Title: "Relational Databases", TimeLimit: 25, PassingScore: 60},
		questions: []domain.Question{
			{Text: "Which statement removes rows from a table?", Options: []string{"DROP", "DELETE", "TRUNCATE COLUMN", "REMOVE"}, CorrectAnswer: 1},
			{Text: "What does a unique index guarantee?", Options: []string{"Faster inserts", "No duplicate keys", "Sorted storage", "Foreign key checks"}, CorrectAnswer: 1},
		},
	},
}

// seedData is idempotent: it skips the admin when the username exists and the quizzes when any quiz exists.
func seedData(ctx context.Context, svc services, password string, log logrus.FieldLogger) error {
	admin, err := svc.auth.CreateAdmin(ctx, "admin", password)
	switch {
	case errors.Is(err, domain.ErrConflict):
		log.Info("admin user already exists, skipping creation")
		session, loginErr := svc.auth.Login(ctx, "admin", password)
		if loginErr != nil {
			log.WithError(loginErr).Warn("existing admin uses another password; sample quizzes get no creator")
		} else {
			admin = session.User
		}
	case err != nil:
		return fmt.Errorf("create admin: %w", err)
	default:
		log.WithField("username", admin.Username).Info("admin user created")
	}

	existing, err := svc.quizzes.ListQuizzes(ctx, true)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("quizzes already present, skipping samples")
		return nil
	}
	for _, sample := range sampleQuizzes {
		quiz, err := svc.quizzes.CreateQuiz(ctx, admin.ID, sample.input)
		if err != nil {
			return fmt.Errorf("create quiz %q: %w", sample.input.Title, err)
		}
		questions := make([]domain.Question, len(sample.questions))
		copy(questions, sample.questions)
		if _, err := svc.quizzes.AddQuestions(ctx, quiz.ID, questions); err != nil {
			return fmt.Errorf("add questions to %q: %w", quiz.Title, err)
		}
		log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "questions": len(questions)}).Info("sample quiz created")
	}
	return nil
}
