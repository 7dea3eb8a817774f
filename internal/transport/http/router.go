package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Participants *app.ParticipantService
	Quizzes      *app.QuizService
	Results      *app.ResultService
	Auth         *app.AuthService
	Feed         app.FeedSubscriber
}

// Handler serves the REST API and the live results feed.
type Handler struct {
	svc          Services
	log          logrus.FieldLogger
	feed         *FeedHandler
	secureCookie bool
}

type Option func(*Handler)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) { h.secureCookie = secure }
}

// NewRouter builds the HTTP handler tree.
func NewRouter(svc Services, log logrus.FieldLogger, opts ...Option) http.Handler {
	h := &Handler{svc: svc, log: log}
	for _, opt := range opts {
		opt(h)
	}
	if svc.Feed != nil {
		h.feed = NewFeedHandler(svc.Feed, log)
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware(log), recoverMiddleware(log), authMiddleware(svc.Auth))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "route not found"})
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	api.Handle("/user", h.requireAdmin(h.showUser)).Methods(http.MethodGet)

	api.HandleFunc("/participants", h.registerParticipant).Methods(http.MethodPost)
	api.HandleFunc("/participants/roll/{rollNumber}", h.participantByRoll).Methods(http.MethodGet)
	api.HandleFunc("/participants/{id:[0-9]+}", h.getParticipant).Methods(http.MethodGet)
	api.HandleFunc("/participants/{id:[0-9]+}/results", h.participantResults).Methods(http.MethodGet)

	api.HandleFunc("/quizzes", h.listQuizzes).Methods(http.MethodGet)
	api.Handle("/quizzes", h.requireAdmin(h.createQuiz)).Methods(http.MethodPost)
	api.HandleFunc("/quizzes/{id:[0-9]+}", h.getQuiz).Methods(http.MethodGet)
	api.Handle("/quizzes/{id:[0-9]+}", h.requireAdmin(h.updateQuiz)).Methods(http.MethodPut)
	api.Handle("/quizzes/{id:[0-9]+}", h.requireAdmin(h.deleteQuiz)).Methods(http.MethodDelete)
	api.HandleFunc("/quizzes/{id:[0-9]+}/questions", h.listQuestions).Methods(http.MethodGet)
	api.Handle("/quizzes/{id:[0-9]+}/questions", h.requireAdmin(h.replaceQuestions)).Methods(http.MethodPut)
	api.Handle("/quizzes/{id:[0-9]+}/questions/bulk", h.requireAdmin(h.bulkQuestions)).Methods(http.MethodPost)

	api.Handle("/questions", h.requireAdmin(h.createQuestion)).Methods(http.MethodPost)
	api.Handle("/questions/{id:[0-9]+}", h.requireAdmin(h.updateQuestion)).Methods(http.MethodPut)
	api.Handle("/questions/{id:[0-9]+}", h.requireAdmin(h.deleteQuestion)).Methods(http.MethodDelete)

	api.HandleFunc("/results", h.submitResult).Methods(http.MethodPost)
	api.Handle("/results", h.requireAdmin(h.listResults)).Methods(http.MethodGet)
	api.HandleFunc("/results/check", h.checkEligibility).Methods(http.MethodGet)
	api.HandleFunc("/results/{id:[0-9]+}", h.getResult).Methods(http.MethodGet)
	api.Handle("/results/{id:[0-9]+}/retake", h.requireAdmin(h.setRetake)).Methods(http.MethodPut)

	if h.feed != nil {
		r.Handle("/ws/results", h.requireAdmin(h.feed.ServeWS))
	}
	return r
}

// NewServer wraps the router with the process timeouts.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "invalid id")
	}
	return id, nil
}

// queryID parses an optional positive id; missing values return 0.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive id")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
