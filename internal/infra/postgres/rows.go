package postgres

import (
	"time"

	"github.com/uptrace/bun"
	"quiz-builder/internal/domain"
)

type participantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID         int64     `bun:"id,pk,autoincrement"`
	FullName   string    `bun:"full_name,notnull"`
	RollNumber string    `bun:"roll_number,notnull"`
	Class      string    `bun:"class,notnull"`
	Department string    `bun:"department,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (r participantRow) toDomain() domain.Participant {
	return domain.Participant{
		ID:         r.ID,
		FullName:   r.FullName,
		RollNumber: r.RollNumber,
		Class:      r.Class,
		Department: r.Department,
		CreatedAt:  r.CreatedAt,
	}
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Title        string    `bun:"title,notnull"`
	Description  string    `bun:"description,notnull"`
	TimeLimit    int       `bun:"time_limit,notnull"`
	PassingScore int       `bun:"passing_score,notnull"`
	CreatorID    int64     `bun:"creator_id,nullzero"`
	IsActive     bool      `bun:"is_active,notnull"`
	Password     *string   `bun:"password"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func newQuizRow(q domain.Quiz) quizRow {
	return quizRow{
		ID:           q.ID,
		Title:        q.Title,
		Description:  q.Description,
		TimeLimit:    q.TimeLimit,
		PassingScore: q.PassingScore,
		CreatorID:    q.CreatorID,
		IsActive:     q.IsActive,
		Password:     q.Password,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		TimeLimit:    r.TimeLimit,
		PassingScore: r.PassingScore,
		CreatorID:    r.CreatorID,
		IsActive:     r.IsActive,
		Password:     r.Password,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Questions:    []domain.Question{},
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qs"`

	ID            int64     `bun:"id,pk,autoincrement"`
	QuizID        int64     `bun:"quiz_id,notnull"`
	Text          string    `bun:"text,notnull"`
	Options       []string  `bun:"options,type:jsonb,notnull"`
	CorrectAnswer int       `bun:"correct_answer,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func newQuestionRow(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		QuizID:        q.QuizID,
		Text:          q.Text,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		CreatedAt:     q.CreatedAt,
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Text:          r.Text,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		CreatedAt:     r.CreatedAt,
	}
}

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID             int64           `bun:"id,pk,autoincrement"`
	ParticipantID  int64           `bun:"participant_id,notnull"`
	QuizID         int64           `bun:"quiz_id,notnull"`
	Attempt        int             `bun:"attempt,notnull"`
	Score          int             `bun:"score,notnull"`
	TotalQuestions int             `bun:"total_questions,notnull"`
	TimeTaken      int             `bun:"time_taken,notnull"`
	Answers        []domain.Answer `bun:"answers,type:jsonb,notnull"`
	CanRetake      bool            `bun:"can_retake,notnull"`
	IPAddress      string          `bun:"ip_address,notnull"`
	SubmittedAt    time.Time       `bun:"submitted_at,notnull,default:current_timestamp"`

	Participant *participantRow `bun:"rel:belongs-to,join:participant_id=id"`
	Quiz        *quizRow        `bun:"rel:belongs-to,join:quiz_id=id"`
}

func newResultRow(r domain.Result) resultRow {
	answers := r.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return resultRow{
		ID:             r.ID,
		ParticipantID:  r.ParticipantID,
		QuizID:         r.QuizID,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		TimeTaken:      r.TimeTaken,
		Answers:        answers,
		CanRetake:      r.CanRetake,
		IPAddress:      r.IPAddress,
		SubmittedAt:    r.SubmittedAt,
	}
}

func (r resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:             r.ID,
		ParticipantID:  r.ParticipantID,
		QuizID:         r.QuizID,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		TimeTaken:      r.TimeTaken,
		Answers:        r.Answers,
		CanRetake:      r.CanRetake,
		IPAddress:      r.IPAddress,
		SubmittedAt:    r.SubmittedAt,
	}
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull"`
	Password  string    `bun:"password,notnull"`
	IsAdmin   bool      `bun:"is_admin,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:        r.ID,
		Username:  r.Username,
		Password:  r.Password,
		IsAdmin:   r.IsAdmin,
		CreatedAt: r.CreatedAt,
	}
}
