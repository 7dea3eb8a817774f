package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-builder/internal/domain"
)

// QuizInput creates a quiz.
type QuizInput struct {
	Title        string
	Description  string
	TimeLimit    int
	PassingScore int
	IsActive     *bool
	Password     *string
}

// QuizPatch updates the fields that are set.
type QuizPatch struct {
	Title        *string
	Description  *string
	TimeLimit    *int
	PassingScore *int
	IsActive     *bool
	Password     *string
}

// QuestionPatch updates the fields that are set.
type QuestionPatch struct {
	Text          *string
	Options       []string
	CorrectAnswer *int
}

// QuizService is the admin authoring surface and the quiz query layer.
type QuizService struct {
	store QuizStore
	cache QuizRepository
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewQuizService(store QuizStore, cache QuizRepository, log logrus.FieldLogger) *QuizService {
	return &QuizService{store: store, cache: cache, log: log, now: time.Now}
}

// ListQuizzes returns quizzes newest first; inactive ones only when asked.
func (s *QuizService) ListQuizzes(ctx context.Context, includeInactive bool) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx, includeInactive)
}

// GetQuiz returns a quiz with its questions.
func (s *QuizService) GetQuiz(ctx context.Context, id int64, includeInactive bool) (domain.Quiz, error) {
	return s.store.GetQuiz(ctx, id, includeInactive)
}

// CreateQuiz stores a new quiz owned by creatorID.
func (s *QuizService) CreateQuiz(ctx context.Context, creatorID int64, in QuizInput) (domain.Quiz, error) {
	passing := in.PassingScore
	if passing == 0 {
		passing = domain.DefaultPassingScore
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	now := s.now().UTC()
	quiz := domain.Quiz{
		Title:        in.Title,
		Description:  in.Description,
		TimeLimit:    in.TimeLimit,
		PassingScore: passing,
		CreatorID:    creatorID,
		IsActive:     active,
		Password:     in.Password,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	created, err := s.store.CreateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.WithFields(logrus.Fields{"quiz_id": created.ID, "creator_id": creatorID}).Info("quiz created")
	return created, nil
}

// UpdateQuiz applies a partial update.
func (s *QuizService) UpdateQuiz(ctx context.Context, id int64, patch QuizPatch) (domain.Quiz, error) {
	quiz, err := s.store.GetQuiz(ctx, id, true)
	if err != nil {
		return domain.Quiz{}, err
	}
	if patch.Title != nil {
		quiz.Title = *patch.Title
	}
	if patch.Description != nil {
		quiz.Description = *patch.Description
	}
	if patch.TimeLimit != nil {
		quiz.TimeLimit = *patch.TimeLimit
	}
	if patch.PassingScore != nil {
		quiz.PassingScore = *patch.PassingScore
	}
	if patch.IsActive != nil {
		quiz.IsActive = *patch.IsActive
	}
	if patch.Password != nil {
		quiz.Password = patch.Password
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	quiz.UpdatedAt = s.now().UTC()

	updated, err := s.store.UpdateQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// DeleteQuiz soft-deletes a quiz; it stops accepting submissions.
func (s *QuizService) DeleteQuiz(ctx context.Context, id int64) error {
	if err := s.store.DeactivateQuiz(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.WithField("quiz_id", id).Info("quiz deactivated")
	return nil
}

// ListQuestions returns the questions of a quiz.
func (s *QuizService) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	return s.store.ListQuestions(ctx, quizID)
}

// CreateQuestion adds one question to an existing quiz.
func (s *QuizService) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	created, err := s.AddQuestions(ctx, q.QuizID, []domain.Question{q})
	if err != nil {
		return domain.Question{}, err
	}
	return created[0], nil
}

// AddQuestions appends questions to a quiz.
func (s *QuizService) AddQuestions(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	if err := s.prepareQuestions(ctx, quizID, questions); err != nil {
		return nil, err
	}
	created, err := s.store.CreateQuestions(ctx, quizID, questions)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, quizID)
	return created, nil
}

// ReplaceQuestions drops every question of a quiz and stores the given set.
func (s *QuizService) ReplaceQuestions(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error) {
	if err := s.prepareQuestions(ctx, quizID, questions); err != nil {
		return nil, err
	}
	replaced, err := s.store.ReplaceQuestions(ctx, quizID, questions)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, quizID)
	s.log.WithFields(logrus.Fields{"quiz_id": quizID, "questions": len(replaced)}).Info("questions replaced")
	return replaced, nil
}

// UpdateQuestion applies a partial update and revalidates the question.
func (s *QuizService) UpdateQuestion(ctx context.Context, id int64, patch QuestionPatch) (domain.Question, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if patch.Text != nil {
		q.Text = *patch.Text
	}
	if patch.Options != nil {
		q.Options = patch.Options
	}
	if patch.CorrectAnswer != nil {
		q.CorrectAnswer = *patch.CorrectAnswer
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	updated, err := s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx, q.QuizID)
	return updated, nil
}

// DeleteQuestion hard-deletes a question.
func (s *QuizService) DeleteQuestion(ctx context.Context, id int64) error {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, q.QuizID)
	return nil
}

func (s *QuizService) prepareQuestions(ctx context.Context, quizID int64, questions []domain.Question) error {
	if _, err := s.store.GetQuiz(ctx, quizID, true); err != nil {
		return err
	}
	now := s.now().UTC()
	for i := range questions {
		questions[i].QuizID = quizID
		questions[i].CreatedAt = now
		if err := questions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *QuizService) invalidate(ctx context.Context, quizID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		s.log.WithError(err).WithField("quiz_id", quizID).Warn("quiz cache invalidation failed")
	}
}
