package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"quiz-builder/internal/config"
	"quiz-builder/internal/domain"
	"quiz-builder/internal/session"
	transport "quiz-builder/internal/transport/http"
)

func newTestServer(t *testing.T) (string, services) {
	t.Helper()
	color.NoColor = true

	cfg := config.Default()
	cfg.Auth.SessionSecret = "cli-test-secret"
	cfg.Auth.AdminSecret = "cli-test-admin"
	log, _ := logtest.NewNullLogger()
	ctx := context.Background()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(b.Close)
	if !b.memory {
		t.Fatalf("expected the memory backend without postgres configured")
	}

	svc := newServices(cfg, b, log)
	if err := seedData(ctx, svc, defaultAdminPassword, log); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := httptest.NewServer(transport.NewRouter(transport.Services{
		Participants: svc.participants,
		Quizzes:      svc.quizzes,
		Results:      svc.results,
		Auth:         svc.auth,
		Feed:         b.feed,
	}, log))
	t.Cleanup(srv.Close)
	return srv.URL, svc
}

func quizID(t *testing.T, svc services, title string) int64 {
	t.Helper()
	quizzes, err := svc.quizzes.ListQuizzes(context.Background(), false)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	for _, q := range quizzes {
		if q.Title == title {
			return q.ID
		}
	}
	t.Fatalf("quiz %q not seeded", title)
	return 0
}

func TestSeedIsIdempotent(t *testing.T) {
	_, svc := newTestServer(t)
	log, _ := logtest.NewNullLogger()
	if err := seedData(context.Background(), svc, defaultAdminPassword, log); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	quizzes, err := svc.quizzes.ListQuizzes(context.Background(), true)
	if err != nil {
		t.Fatalf("list quizzes: %v", err)
	}
	if len(quizzes) != len(sampleQuizzes) {
		t.Fatalf("expected %d quizzes after reseeding, got %d", len(sampleQuizzes), len(quizzes))
	}
}

func TestTakeSubmitsAndPrintsResult(t *testing.T) {
	url, svc := newTestServer(t)
	opts := takeOptions{
		server:     url,
		name:       "Ada Lovelace",
		roll:       "T-1",
		class:      "X",
		department: "CS",
		quizID:     quizID(t, svc, "Go Fundamentals"),
	}

	// nil, go, go vet: the last one is wrong.
	input := "2\nn\n3\nn\n1\ns\ny\n"
	var out bytes.Buffer
	if err := runTake(context.Background(), opts, strings.NewReader(input), &out); err != nil {
		t.Fatalf("take: %v\n%s", err, out.String())
	}
	got := out.String()
	for _, want := range []string{"Full-window mode was denied", "Submit now?", "Quiz submitted successfully.", "Score 2/3 (67%)", "FAILED", "hidden"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}

	out.Reset()
	if err := runTake(context.Background(), opts, strings.NewReader(""), &out); err != nil {
		t.Fatalf("second take: %v", err)
	}
	if !strings.Contains(out.String(), "already completed") {
		t.Fatalf("expected the retake refusal, got:\n%s", out.String())
	}
}

func TestTakeCancelKeepsAttemptOpen(t *testing.T) {
	url, svc := newTestServer(t)
	opts := takeOptions{
		server:     url,
		name:       "Alan Turing",
		roll:       "T-2",
		class:      "X",
		department: "CS",
		quizID:     quizID(t, svc, "Relational Databases"),
	}

	var out bytes.Buffer
	err := runTake(context.Background(), opts, strings.NewReader("2\ns\nn\n9\n"), &out)
	if err == nil || !strings.Contains(err.Error(), "input closed") {
		t.Fatalf("expected the attempt to stay unsubmitted, got err=%v", err)
	}
	if !strings.Contains(out.String(), "Unknown command.") {
		t.Fatalf("expected out-of-range option to be rejected, got:\n%s", out.String())
	}
}

func TestResultsTable(t *testing.T) {
	url, svc := newTestServer(t)
	take := takeOptions{
		server:     url,
		name:       "Grace Hopper",
		roll:       "T-3",
		class:      "Y",
		department: "Math",
		quizID:     quizID(t, svc, "Relational Databases"),
	}
	var sink bytes.Buffer
	if err := runTake(context.Background(), take, strings.NewReader("2\nn\n2\ns\ny\n"), &sink); err != nil {
		t.Fatalf("take: %v\n%s", err, sink.String())
	}

	var out bytes.Buffer
	err := runResults(context.Background(), resultsOptions{
		server:   url,
		username: "admin",
		password: defaultAdminPassword,
		sortBy:   "score",
		page:     1,
		perPage:  10,
	}, &out)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	got := out.String()
	for _, want := range []string{"GRACE HOPPER", "T-3", "RELATIONAL DATABASES", "2/2", "PASSED", "Page 1 of 1, 1 results"} {
		if !strings.Contains(strings.ToUpper(got), strings.ToUpper(want)) {
			t.Fatalf("expected table to contain %q, got:\n%s", want, got)
		}
	}

	err = runResults(context.Background(), resultsOptions{server: url, username: "admin", password: "wrong-password"}, &out)
	if err == nil {
		t.Fatalf("expected login failure")
	}
}

func TestEngineOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Quiz.AutoSubmitDelay = "5s"
	cfg.Quiz.MaxFullscreenExits = 3
	opts := engineOptions(cfg)
	if opts.AutoSubmitDelay != 5*time.Second || opts.MaxFullscreenExits != 3 || opts.LowTimeThreshold != 300 {
		t.Fatalf("unexpected engine options %+v", opts)
	}
	if got := formatDuration(125); got != "2:05" {
		t.Fatalf("formatDuration(125) = %q", got)
	}
}

type chunkWriter struct {
	mu     sync.Mutex
	chunks []string
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks = append(w.chunks, string(p))
	return len(p), nil
}

type nopSubmitter struct{}

func (nopSubmitter) SubmitResult(context.Context, domain.Submission) (domain.Result, error) {
	return domain.Result{}, nil
}

func TestTerminalNoticesDoNotSplitRedraw(t *testing.T) {
	color.NoColor = true
	w := &chunkWriter{}
	term := newTerminal(w, nil, 1)
	quiz := domain.Quiz{ID: 1, Title: "Q", TimeLimit: 1, Questions: []domain.Question{
		{ID: 1, Text: "Pick one", Options: []string{"a", "b"}},
	}}
	engine, err := session.NewEngine(quiz, 1, nopSubmitter{}, term, session.Options{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	term.engine = engine

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			term.render()
		}()
		go func() {
			defer wg.Done()
			term.Notify(session.Notice{Kind: session.NoticeLowTime, Message: "Five minutes left."})
		}()
	}
	wg.Wait()

	if len(w.chunks) != 40 {
		t.Fatalf("expected one write per redraw or notice, got %d", len(w.chunks))
	}
	for _, c := range w.chunks {
		redraw := strings.Contains(c, "Time left")
		if redraw && (!strings.Contains(c, "f full window") || strings.Contains(c, "Five minutes left.")) {
			t.Fatalf("redraw was split or interleaved:\n%s", c)
		}
		if !redraw && c != "Five minutes left.\n" {
			t.Fatalf("unexpected chunk %q", c)
		}
	}
}
