package http

import (
	"net/http"

	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

// submitRequest is the attempt payload. Score and totalQuestions are accepted but ignored.
type submitRequest struct {
	ParticipantID  int64           `json:"participantId" validate:"gt=0"`
	QuizID         int64           `json:"quizId" validate:"gt=0"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	TimeTaken      int             `json:"timeTaken" validate:"gte=0"`
	Answers        []answerRequest `json:"answers" validate:"dive"`
}

// answerRequest fields are pointers so a missing key is rejected instead of read as 0.
type answerRequest struct {
	QuestionID     *int64 `json:"questionId" validate:"required,gt=0"`
	SelectedAnswer *int   `json:"selectedAnswer" validate:"required,gte=0"`
}

type retakeRequest struct {
	CanRetake *bool `json:"canRetake" validate:"required"`
}

func (h *Handler) submitResult(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.Answer{QuestionID: *a.QuestionID, SelectedAnswer: *a.SelectedAnswer})
	}
	result, err := h.svc.Results.SubmitResult(r.Context(), app.SubmitInput{
		ParticipantID: req.ParticipantID,
		QuizID:        req.QuizID,
		Answers:       answers,
		TimeTaken:     req.TimeTaken,
		IPAddress:     clientIP(r),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) checkEligibility(w http.ResponseWriter, r *http.Request) {
	participantID, err := queryID(r, "participantId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	quizID, err := queryID(r, "quizId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if participantID == 0 || quizID == 0 {
		writeError(w, r, h.log, domain.NewValidationError("query", "participantId and quizId are required"))
		return
	}
	out, err := h.svc.Results.CheckEligibility(r.Context(), participantID, quizID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// getResult serves admins, or a participant that names itself with ?participantId=.
func (h *Handler) getResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	viewer, admin := viewerFor(r)
	if !admin {
		participantID, err := queryID(r, "participantId")
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		if participantID == 0 {
			writeError(w, r, h.log, domain.ErrForbidden)
			return
		}
		viewer = domain.ParticipantViewer(participantID)
	}
	details, err := h.svc.Results.GetResultForViewer(r.Context(), id, viewer)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) setRetake(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req retakeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	result, err := h.svc.Results.SetRetakeEligibility(r.Context(), id, *req.CanRetake)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	quizID, err := queryID(r, "quizId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	paging := app.ResolvePaging(queryInt(r, "page"), queryInt(r, "perPage"))
	page, err := h.svc.Results.ListResults(r.Context(), app.ResultSort(r.URL.Query().Get("sortBy")), quizID, paging)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if page.Items == nil {
		page.Items = []domain.ResultSummary{}
	}
	writeJSON(w, http.StatusOK, page)
}
