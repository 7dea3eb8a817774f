package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

// APIError is a non-2xx response. It unwraps to the domain error root for its status code.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusBadRequest:
		return domain.ErrValidation
	case e.Status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return domain.ErrForbidden
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrConflict
	case e.Status >= 500:
		return domain.ErrTransient
	default:
		return nil
	}
}

// Client talks to the quiz REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 15s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken authenticates requests as an admin.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use, if any.
func (c *Client) Token() string { return c.token }

// ParticipantRequest registers or looks up a participant by roll number.
type ParticipantRequest struct {
	FullName   string `json:"fullName"`
	RollNumber string `json:"rollNumber"`
	Class      string `json:"class"`
	Department string `json:"department"`
}

// RegisterParticipant returns the participant for the roll number, creating it when new.
func (c *Client) RegisterParticipant(ctx context.Context, req ParticipantRequest) (domain.Participant, error) {
	var out domain.Participant
	err := c.do(ctx, http.MethodPost, "/api/participants", nil, req, &out)
	return out, err
}

func (c *Client) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var out domain.Quiz
	err := c.do(ctx, http.MethodGet, "/api/quizzes/"+strconv.FormatInt(quizID, 10), nil, nil, &out)
	return out, err
}

func (c *Client) CheckEligibility(ctx context.Context, participantID, quizID int64) (domain.Eligibility, error) {
	q := url.Values{}
	q.Set("participantId", strconv.FormatInt(participantID, 10))
	q.Set("quizId", strconv.FormatInt(quizID, 10))
	var out domain.Eligibility
	err := c.do(ctx, http.MethodGet, "/api/results/check", q, nil, &out)
	return out, err
}

// SubmitResult posts a finished attempt. It satisfies session.Submitter.
func (c *Client) SubmitResult(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	if sub.Answers == nil {
		sub.Answers = []domain.Answer{}
	}
	var out domain.Result
	err := c.do(ctx, http.MethodPost, "/api/results", nil, sub, &out)
	return out, err
}

// GetResult reads a result. participantID proves ownership when the client is not an admin.
func (c *Client) GetResult(ctx context.Context, resultID, participantID int64) (domain.ResultDetails, error) {
	var q url.Values
	if participantID > 0 {
		q = url.Values{}
		q.Set("participantId", strconv.FormatInt(participantID, 10))
	}
	var out domain.ResultDetails
	err := c.do(ctx, http.MethodGet, "/api/results/"+strconv.FormatInt(resultID, 10), q, nil, &out)
	return out, err
}

// Login authenticates an admin and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (app.Session, error) {
	body := map[string]string{"username": username, "password": password}
	var out app.Session
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, body, &out); err != nil {
		return app.Session{}, err
	}
	c.token = out.Token
	return out, nil
}

// ResultsQuery filters the admin results listing.
type ResultsQuery struct {
	SortBy  string
	QuizID  int64
	Page    int
	PerPage int
}

func (c *Client) ListResults(ctx context.Context, rq ResultsQuery) (app.ResultPage, error) {
	q := url.Values{}
	if rq.SortBy != "" {
		q.Set("sortBy", rq.SortBy)
	}
	if rq.QuizID > 0 {
		q.Set("quizId", strconv.FormatInt(rq.QuizID, 10))
	}
	if rq.Page > 0 {
		q.Set("page", strconv.Itoa(rq.Page))
	}
	if rq.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(rq.PerPage))
	}
	var out app.ResultPage
	err := c.do(ctx, http.MethodGet, "/api/results", q, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.Fields = body.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
