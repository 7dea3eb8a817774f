package app

import (
	"context"

	"quiz-builder/internal/domain"
)

// ParticipantRepository persists participants. CreateParticipant returns an error wrapping
// domain.ErrConflict when the roll number is already registered.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
	GetParticipant(ctx context.Context, id int64) (domain.Participant, error)
	GetParticipantByRoll(ctx context.Context, rollNumber string) (domain.Participant, error)
}

// QuizStore is the authoring side of quiz storage. Reads return quizzes with their questions.
type QuizStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	GetQuiz(ctx context.Context, id int64, includeInactive bool) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, includeInactive bool) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeactivateQuiz(ctx context.Context, id int64) error

	ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	CreateQuestions(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error)
	ReplaceQuestions(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error)
	UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error
}

// QuizRepository is the cached read path for quiz content, active or not.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID int64) error
}

// AttemptPlan is what an AttemptDecider wants persisted.
type AttemptPlan struct {
	Result domain.Result
	// ConsumeGrant is the id of a prior result whose retake grant is spent by this attempt; 0 for none.
	ConsumeGrant int64
}

// AttemptDecider inspects the prior results of a (participant, quiz) pair and either returns
// the attempt to persist or an error rejecting it.
type AttemptDecider func(previous []domain.Result) (AttemptPlan, error)

// ResultSort selects the ordering of result listings.
type ResultSort string

const (
	SortByDate  ResultSort = "date"
	SortByScore ResultSort = "score"
	SortByTime  ResultSort = "time"
)

// ResultQuery filters and pages result listings.
type ResultQuery struct {
	SortBy ResultSort
	QuizID int64
	Offset int
	Limit  int
}

// ResultRepository persists results.
//
// CreateAttempt must run decide and the writes it implies atomically with respect to other
// CreateAttempt calls for the same pair: two concurrent submissions can never both observe
// "no previous result", and a retake grant can be consumed at most once.
type ResultRepository interface {
	CreateAttempt(ctx context.Context, participantID, quizID int64, decide AttemptDecider) (domain.Result, error)
	GetResult(ctx context.Context, id int64) (domain.Result, error)
	ListResultsByParticipant(ctx context.Context, participantID int64) ([]domain.Result, error)
	ListResultSummaries(ctx context.Context, q ResultQuery) ([]domain.ResultSummary, int, error)
	SetCanRetake(ctx context.Context, id int64, canRetake bool) (domain.Result, error)
}

// UserRepository persists admin accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
}

// FeedPublisher fans result events out to live subscribers.
type FeedPublisher interface {
	Publish(ctx context.Context, event domain.ResultEvent) error
}

// FeedSubscriber hands out live result event streams. The caller must invoke cancel.
type FeedSubscriber interface {
	Subscribe(ctx context.Context) (<-chan domain.ResultEvent, func(), error)
}
