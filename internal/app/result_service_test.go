package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
	"quiz-builder/internal/infra/memory"
)

type fixture struct {
	store        *memory.Store
	feed         *memory.Feed
	results      *app.ResultService
	quizzes      *app.QuizService
	participants *app.ParticipantService
	hook         *logtest.Hook

	participantID int64
	quiz          domain.Quiz
}

// newFixture seeds a one-minute quiz with two questions whose answer key is [0, 1].
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := memory.NewStore()
	cache := memory.NewQuizCache(store, time.Minute)
	feed := memory.NewFeed(8)

	f := &fixture{
		store:        store,
		feed:         feed,
		results:      app.NewResultService(store, cache, store, feed, logger),
		quizzes:      app.NewQuizService(store, cache, logger),
		participants: app.NewParticipantService(store),
		hook:         hook,
	}

	quiz, err := f.quizzes.CreateQuiz(ctx, 1, app.QuizInput{Title: "Basics", TimeLimit: 1})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	questions, err := f.quizzes.AddQuestions(ctx, quiz.ID, []domain.Question{
		{Text: "First question", Options: []string{"a", "b"}, CorrectAnswer: 0},
		{Text: "Second question", Options: []string{"a", "b", "c"}, CorrectAnswer: 1},
	})
	if err != nil {
		t.Fatalf("add questions: %v", err)
	}
	quiz.Questions = questions
	f.quiz = quiz

	p, _, err := f.participants.Register(ctx, app.ParticipantInput{
		FullName: "Asha Rao", RollNumber: "CS-001", Class: "3", Department: "CS",
	})
	if err != nil {
		t.Fatalf("register participant: %v", err)
	}
	f.participantID = p.ID
	return f
}

func (f *fixture) submit(answers ...int) (domain.Result, error) {
	in := app.SubmitInput{
		ParticipantID: f.participantID,
		QuizID:        f.quiz.ID,
		TimeTaken:     42,
		IPAddress:     "10.0.0.1",
	}
	for i, choice := range answers {
		in.Answers = append(in.Answers, domain.Answer{QuestionID: f.quiz.Questions[i].ID, SelectedAnswer: choice})
	}
	return f.results.SubmitResult(context.Background(), in)
}

func TestFreshAttemptThenConflict(t *testing.T) {
	f := newFixture(t)

	result, err := f.submit(0, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 2 || result.TotalQuestions != 2 {
		t.Fatalf("expected 2/2, got %d/%d", result.Score, result.TotalQuestions)
	}
	if result.CanRetake {
		t.Fatalf("new results must not carry a retake grant")
	}

	_, err = f.submit(0, 1)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on second attempt, got %v", err)
	}
}

func TestRetakeGrantIsConsumedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.submit(0, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.results.SetRetakeEligibility(ctx, first.ID, true); err != nil {
		t.Fatalf("grant retake: %v", err)
	}

	second, err := f.submit(1, 0)
	if err != nil {
		t.Fatalf("retake submit: %v", err)
	}
	if second.Score != 0 || second.CanRetake {
		t.Fatalf("unexpected retake result %+v", second)
	}

	original, err := f.store.GetResult(ctx, first.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.CanRetake {
		t.Fatalf("expected original grant consumed")
	}

	if _, err := f.submit(0, 1); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected conflict after grant consumed, got %v", err)
	}
}

func TestUnansweredQuestionsNeverScore(t *testing.T) {
	f := newFixture(t)

	result, err := f.submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 0 || result.TotalQuestions != 2 {
		t.Fatalf("expected 0/2, got %d/%d", result.Score, result.TotalQuestions)
	}
}

func TestScoreIgnoresUnknownQuestionsAndClampsTime(t *testing.T) {
	f := newFixture(t)

	result, err := f.results.SubmitResult(context.Background(), app.SubmitInput{
		ParticipantID: f.participantID,
		QuizID:        f.quiz.ID,
		TimeTaken:     9999,
		Answers: []domain.Answer{
			{QuestionID: f.quiz.Questions[1].ID, SelectedAnswer: 1},
			{QuestionID: 987654, SelectedAnswer: 0},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 1 {
		t.Fatalf("expected score 1, got %d", result.Score)
	}
	if result.TimeTaken != 60 {
		t.Fatalf("expected timeTaken clamped to 60, got %d", result.TimeTaken)
	}
	if result.IPAddress != "unknown" {
		t.Fatalf("expected unknown ip, got %q", result.IPAddress)
	}
}

func TestSubmitRejectsUnknownOrInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.results.SubmitResult(ctx, app.SubmitInput{ParticipantID: 999, QuizID: f.quiz.ID})
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant not found, got %v", err)
	}
	_, err = f.results.SubmitResult(ctx, app.SubmitInput{ParticipantID: f.participantID, QuizID: 999})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}

	if err := f.quizzes.DeleteQuiz(ctx, f.quiz.ID); err != nil {
		t.Fatalf("delete quiz: %v", err)
	}
	if _, err := f.submit(0, 1); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected inactive quiz rejected, got %v", err)
	}
}

func TestSubmitValidatesPayload(t *testing.T) {
	f := newFixture(t)
	qid := f.quiz.Questions[0].ID

	cases := []app.SubmitInput{
		{ParticipantID: 0, QuizID: f.quiz.ID},
		{ParticipantID: f.participantID, QuizID: f.quiz.ID, TimeTaken: -1},
		{ParticipantID: f.participantID, QuizID: f.quiz.ID, Answers: []domain.Answer{{QuestionID: qid, SelectedAnswer: -2}}},
		{ParticipantID: f.participantID, QuizID: f.quiz.ID, Answers: []domain.Answer{{SelectedAnswer: 0}}},
		{ParticipantID: f.participantID, QuizID: f.quiz.ID, Answers: []domain.Answer{
			{QuestionID: qid, SelectedAnswer: 0},
			{QuestionID: qid, SelectedAnswer: 1},
		}},
	}
	for i, in := range cases {
		_, err := f.results.SubmitResult(context.Background(), in)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestConcurrentDuplicateSubmissionsAcceptOne(t *testing.T) {
	f := newFixture(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.submit(0, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	if accepted != 1 || conflicts != 15 {
		t.Fatalf("expected 1 accepted and 15 conflicts, got %d and %d", accepted, conflicts)
	}
}

func TestGetResultForViewerRedactsAndChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.submit(0, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	own, err := f.results.GetResultForViewer(ctx, result.ID, domain.ParticipantViewer(f.participantID))
	if err != nil {
		t.Fatalf("owner view: %v", err)
	}
	for _, q := range own.Questions {
		if q.CorrectAnswer != domain.HiddenAnswer {
			t.Fatalf("expected redacted answer key, got %d", q.CorrectAnswer)
		}
	}
	if own.Percentage != 50 || own.Passed {
		t.Fatalf("expected 50%% failing, got %d passed=%v", own.Percentage, own.Passed)
	}

	admin, err := f.results.GetResultForViewer(ctx, result.ID, domain.AdminViewer())
	if err != nil {
		t.Fatalf("admin view: %v", err)
	}
	for i, q := range admin.Questions {
		if q.CorrectAnswer != f.quiz.Questions[i].CorrectAnswer {
			t.Fatalf("admin must see the true answer key, got %d", q.CorrectAnswer)
		}
	}

	for _, other := range []int64{0, f.participantID + 1, 12345} {
		_, err := f.results.GetResultForViewer(ctx, result.ID, domain.ParticipantViewer(other))
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("participant %d: expected forbidden, got %v", other, err)
		}
	}

	if _, err := f.results.GetResultForViewer(ctx, 999, domain.AdminViewer()); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
}

func TestCheckEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.results.CheckEligibility(ctx, f.participantID, f.quiz.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.HasTakenQuiz || !got.CanRetake {
		t.Fatalf("fresh participant should be eligible, got %+v", got)
	}

	result, _ := f.submit(0, 1)
	got, _ = f.results.CheckEligibility(ctx, f.participantID, f.quiz.ID)
	if !got.HasTakenQuiz || got.CanRetake {
		t.Fatalf("expected taken and not retakable, got %+v", got)
	}

	_, _ = f.results.SetRetakeEligibility(ctx, result.ID, true)
	got, _ = f.results.CheckEligibility(ctx, f.participantID, f.quiz.ID)
	if !got.HasTakenQuiz || !got.CanRetake {
		t.Fatalf("expected retake allowed, got %+v", got)
	}
}

func TestSubmissionPublishesFeedEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, cancel, err := f.feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	result, err := f.submit(0, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.results.SetRetakeEligibility(ctx, result.ID, true); err != nil {
		t.Fatalf("grant: %v", err)
	}

	for _, want := range []domain.ResultEventType{domain.ResultSubmitted, domain.ResultRetake} {
		select {
		case ev := <-ch:
			if ev.Type != want || ev.Result.ID != result.ID {
				t.Fatalf("expected %s for %d, got %+v", want, result.ID, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s event", want)
		}
	}

	var accepted bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Message == "submission accepted" && entry.Data["result_id"] == result.ID {
			accepted = true
		}
	}
	if !accepted {
		t.Fatalf("expected submission to be logged")
	}
}

func TestListResultsPagesAndComputesPassed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.submit(0, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	other, _, _ := f.participants.Register(ctx, app.ParticipantInput{FullName: "Ben", RollNumber: "CS-002"})
	if _, err := f.results.SubmitResult(ctx, app.SubmitInput{ParticipantID: other.ID, QuizID: f.quiz.ID}); err != nil {
		t.Fatalf("submit other: %v", err)
	}

	page, err := f.results.ListResults(ctx, app.SortByScore, 0, app.ResolvePaging(1, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Pagination.Total != 2 || !page.Pagination.HasNext {
		t.Fatalf("unexpected page %+v", page.Pagination)
	}
	top := page.Items[0]
	if top.Score != 2 || top.Percentage != 100 || !top.Passed || top.Participant.RollNumber != "CS-001" {
		t.Fatalf("unexpected top result %+v", top)
	}

	page, _ = f.results.ListResults(ctx, "bogus", f.quiz.ID+100, app.ResolvePaging(1, 10))
	if len(page.Items) != 0 || page.Pagination.Total != 0 {
		t.Fatalf("expected empty page for unknown quiz, got %+v", page)
	}
}
