package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-builder/internal/domain"
)

func TestSubmitResultPostsPayload(t *testing.T) {
	var got domain.Submission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/results" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Result{ID: 9, Score: 1, TotalQuestions: 2})
	}))
	defer server.Close()

	client := New(server.URL)
	result, err := client.SubmitResult(context.Background(), domain.Submission{
		ParticipantID: 1, QuizID: 2, TimeTaken: 30,
		Answers: []domain.Answer{{QuestionID: 5, SelectedAnswer: 1}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.ID != 9 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got.ParticipantID != 1 || got.QuizID != 2 || len(got.Answers) != 1 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestStatusCodesMapToDomainErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrValidation},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusConflict, domain.ErrConflict},
		{http.StatusBadGateway, domain.ErrTransient},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"nope","errors":{"quizId":"bad"}}`))
		}))
		_, err := New(server.URL).SubmitResult(context.Background(), domain.Submission{ParticipantID: 1, QuizID: 1})
		server.Close()

		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "nope" || apiErr.Fields["quizId"] != "bad" {
			t.Fatalf("status %d: expected decoded api error, got %#v", tc.status, err)
		}
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).SubmitResult(context.Background(), domain.Submission{ParticipantID: 1, QuizID: 1})
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestLoginKeepsToken(t *testing.T) {
	var authHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok-1", "user": map[string]any{"id": 3, "username": "admin"}})
	})
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if r.URL.Query().Get("sortBy") != "score" || r.URL.Query().Get("quizId") != "4" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[],"pagination":{"page":1,"perPage":20,"total":0,"totalPages":1}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL)
	session, err := client.Login(context.Background(), "admin", "secret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.User.ID != 3 || client.Token() != "tok-1" {
		t.Fatalf("unexpected session %+v", session)
	}
	page, err := client.ListResults(context.Background(), ResultsQuery{SortBy: "score", QuizID: 4})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if authHeader != "Bearer tok-1" || page.Pagination.Page != 1 {
		t.Fatalf("expected bearer token, got %q", authHeader)
	}
}

func TestGetResultSendsParticipantID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/results/12" || r.URL.Query().Get("participantId") != "5" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_ = json.NewEncoder(w).Encode(domain.ResultDetails{Result: domain.Result{ID: 12, ParticipantID: 5}, Percentage: 50})
	}))
	defer server.Close()

	details, err := New(server.URL).GetResult(context.Background(), 12, 5)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if details.ID != 12 || details.Percentage != 50 {
		t.Fatalf("unexpected details %+v", details)
	}
}
