package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

type quizRequest struct {
	Title        string  `json:"title" validate:"required,min=3"`
	Description  string  `json:"description"`
	TimeLimit    int     `json:"timeLimit" validate:"gt=0"`
	PassingScore int     `json:"passingScore" validate:"omitempty,min=1,max=100"`
	IsActive     *bool   `json:"isActive"`
	Password     *string `json:"password"`
}

type quizPatchRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=3"`
	Description  *string `json:"description"`
	TimeLimit    *int    `json:"timeLimit" validate:"omitempty,gt=0"`
	PassingScore *int    `json:"passingScore" validate:"omitempty,min=1,max=100"`
	IsActive     *bool   `json:"isActive"`
	Password     *string `json:"password"`
}

type questionRequest struct {
	QuizID        int64    `json:"quizId"`
	Text          string   `json:"text" validate:"required,min=3"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswer *int     `json:"correctAnswer" validate:"required,gte=0"`
}

func (q questionRequest) toDomain() domain.Question {
	return domain.Question{QuizID: q.QuizID, Text: q.Text, Options: q.Options, CorrectAnswer: *q.CorrectAnswer}
}

type questionPatchRequest struct {
	Text          *string  `json:"text" validate:"omitempty,min=3"`
	Options       []string `json:"options" validate:"omitempty,min=2,dive,required"`
	CorrectAnswer *int     `json:"correctAnswer" validate:"omitempty,gte=0"`
}

// questionsRequest is the bare JSON array accepted by the bulk endpoints.
type questionsRequest []questionRequest

func (q questionsRequest) validate() error {
	if len(q) == 0 {
		return domain.NewValidationError("questions", "at least one question required")
	}
	for i := range q {
		if err := validate.Struct(q[i]); err != nil {
			verr := validationError(err)
			prefixed := &domain.ValidationError{Fields: make(map[string]string, len(verr.Fields))}
			for field, msg := range verr.Fields {
				prefixed.Fields[fmt.Sprintf("[%d].%s", i, field)] = msg
			}
			return prefixed
		}
	}
	return nil
}

func (q questionsRequest) toDomain() []domain.Question {
	out := make([]domain.Question, 0, len(q))
	for _, item := range q {
		out = append(out, item.toDomain())
	}
	return out
}

// adminQuiz adds the stored password, which participant views omit.
type adminQuiz struct {
	domain.Quiz
	Password *string `json:"password,omitempty"`
}

func adminView(q domain.Quiz) adminQuiz {
	return adminQuiz{Quiz: q, Password: q.Password}
}

// listQuizzes shows inactive quizzes only to admins that ask for them.
func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	_, admin := viewerFor(r)
	include, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))
	quizzes, err := h.svc.Quizzes.ListQuizzes(r.Context(), admin && include)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if !admin {
		if quizzes == nil {
			quizzes = []domain.Quiz{}
		}
		writeJSON(w, http.StatusOK, quizzes)
		return
	}
	views := make([]adminQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		views = append(views, adminView(q))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	_, admin := viewerFor(r)
	quiz, err := h.svc.Quizzes.GetQuiz(r.Context(), id, admin)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if admin {
		writeJSON(w, http.StatusOK, adminView(quiz))
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	user, _ := currentUser(r)
	quiz, err := h.svc.Quizzes.CreateQuiz(r.Context(), user.ID, app.QuizInput{
		Title:        req.Title,
		Description:  req.Description,
		TimeLimit:    req.TimeLimit,
		PassingScore: req.PassingScore,
		IsActive:     req.IsActive,
		Password:     req.Password,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, adminView(quiz))
}

func (h *Handler) updateQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req quizPatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	quiz, err := h.svc.Quizzes.UpdateQuiz(r.Context(), id, app.QuizPatch{
		Title:        req.Title,
		Description:  req.Description,
		TimeLimit:    req.TimeLimit,
		PassingScore: req.PassingScore,
		IsActive:     req.IsActive,
		Password:     req.Password,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, adminView(quiz))
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Quizzes.DeleteQuiz(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	questions, err := h.svc.Quizzes.ListQuestions(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) bulkQuestions(w http.ResponseWriter, r *http.Request) {
	h.writeQuestions(w, r, h.svc.Quizzes.AddQuestions, http.StatusCreated)
}

func (h *Handler) replaceQuestions(w http.ResponseWriter, r *http.Request) {
	h.writeQuestions(w, r, h.svc.Quizzes.ReplaceQuestions, http.StatusOK)
}

type questionsWriter func(ctx context.Context, quizID int64, questions []domain.Question) ([]domain.Question, error)

func (h *Handler) writeQuestions(w http.ResponseWriter, r *http.Request, write questionsWriter, status int) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req questionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	questions, err := write(r.Context(), id, req.toDomain())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, status, questions)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if req.QuizID <= 0 {
		writeError(w, r, h.log, domain.NewValidationError("quizId", "is required"))
		return
	}
	q, err := h.svc.Quizzes.CreateQuestion(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req questionPatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	q, err := h.svc.Quizzes.UpdateQuestion(r.Context(), id, app.QuestionPatch{
		Text:          req.Text,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Quizzes.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
