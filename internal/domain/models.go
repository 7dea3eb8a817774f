package domain

import "time"

// Participant is a quiz-taker identified by a unique roll number.
type Participant struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"fullName"`
	RollNumber string    `json:"rollNumber"`
	Class      string    `json:"class"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            int64     `json:"id"`
	QuizID        int64     `json:"quizId"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectAnswer int       `json:"correctAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Quiz is an admin-authored collection of questions.
type Quiz struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	TimeLimit    int        `json:"timeLimit"` // minutes
	PassingScore int        `json:"passingScore"`
	CreatorID    int64      `json:"creatorId"`
	IsActive     bool       `json:"isActive"`
	Password     *string    `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Questions    []Question `json:"questions"`
}

// TimeLimitSeconds returns the attempt duration in seconds.
func (q Quiz) TimeLimitSeconds() int {
	return q.TimeLimit * 60
}

// Answer is one recorded selection. Unanswered questions are simply absent.
type Answer struct {
	QuestionID     int64 `json:"questionId"`
	SelectedAnswer int   `json:"selectedAnswer"`
}

// Submission is the payload a client sends for one finished attempt. Score is advisory;
// the server recomputes it from Answers.
type Submission struct {
	ParticipantID  int64    `json:"participantId"`
	QuizID         int64    `json:"quizId"`
	Score          int      `json:"score"`
	TotalQuestions int      `json:"totalQuestions"`
	TimeTaken      int      `json:"timeTaken"`
	Answers        []Answer `json:"answers"`
}

// Result is the persisted record of one completed quiz attempt.
type Result struct {
	ID             int64     `json:"id"`
	ParticipantID  int64     `json:"participantId"`
	QuizID         int64     `json:"quizId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	TimeTaken      int       `json:"timeTaken"` // seconds
	Answers        []Answer  `json:"answers"`
	CanRetake      bool      `json:"canRetake"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// ResultDetails is a result joined with its participant, quiz and the quiz's questions.
type ResultDetails struct {
	Result
	Participant Participant `json:"participant"`
	Quiz        Quiz        `json:"quiz"`
	Questions   []Question  `json:"questions"`
	Percentage  int         `json:"percentage"`
	Passed      bool        `json:"passed"`
}

// ResultSummary is the list view of a result used by the admin results table.
type ResultSummary struct {
	Result
	Participant Participant `json:"participant"`
	Quiz        Quiz        `json:"quiz"`
	Percentage  int         `json:"percentage"`
	Passed      bool        `json:"passed"`
}

// Eligibility answers whether a participant may start a quiz.
type Eligibility struct {
	HasTakenQuiz bool `json:"hasTakenQuiz"`
	CanRetake    bool `json:"canRetake"`
}

// User is an authenticated account. Every account is an administrator.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResultEventType names what happened to a result on the live feed.
type ResultEventType string

const (
	ResultSubmitted ResultEventType = "submitted"
	ResultRetake    ResultEventType = "retake"
)

// ResultEvent is published on the live results feed.
type ResultEvent struct {
	Type   ResultEventType `json:"type"`
	Result Result          `json:"result"`
	At     time.Time       `json:"at"`
}
