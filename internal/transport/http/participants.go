package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

type participantRequest struct {
	FullName   string `json:"fullName" validate:"required,min=2"`
	RollNumber string `json:"rollNumber" validate:"required"`
	Class      string `json:"class" validate:"required"`
	Department string `json:"department" validate:"required"`
}

// registerParticipant is lookup-or-create on the roll number: 201 when created, 200 otherwise.
func (h *Handler) registerParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, created, err := h.svc.Participants.Register(r.Context(), app.ParticipantInput{
		FullName:   strings.TrimSpace(req.FullName),
		RollNumber: req.RollNumber,
		Class:      strings.TrimSpace(req.Class),
		Department: strings.TrimSpace(req.Department),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, p)
}

func (h *Handler) participantByRoll(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Participants.GetByRoll(r.Context(), mux.Vars(r)["rollNumber"])
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.svc.Participants.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) participantResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	results, err := h.svc.Results.ListParticipantResults(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if results == nil {
		results = []domain.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}
