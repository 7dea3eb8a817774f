package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-builder/internal/domain"
)

// SubmitInput is a validated submission. A client-reported score is never part of it.
type SubmitInput struct {
	ParticipantID int64
	QuizID        int64
	Answers       []domain.Answer
	TimeTaken     int
	IPAddress     string
}

// ResultPage is one page of result summaries.
type ResultPage struct {
	Items      []domain.ResultSummary `json:"items"`
	Pagination Pagination             `json:"pagination"`
}

// ResultService is the sole authority on whether a submission is accepted and on its score.
type ResultService struct {
	participants ParticipantRepository
	quizzes      QuizRepository
	results      ResultRepository
	feed         FeedPublisher
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewResultService(participants ParticipantRepository, quizzes QuizRepository, results ResultRepository, feed FeedPublisher, log logrus.FieldLogger) *ResultService {
	return &ResultService{
		participants: participants,
		quizzes:      quizzes,
		results:      results,
		feed:         feed,
		log:          log,
		now:          time.Now,
	}
}

// SubmitResult validates eligibility, scores the answers against the quiz's questions and
// persists the attempt. A prior retake grant on the same pair is consumed.
func (s *ResultService) SubmitResult(ctx context.Context, in SubmitInput) (domain.Result, error) {
	if err := validateSubmission(in); err != nil {
		return domain.Result{}, err
	}
	if _, err := s.participants.GetParticipant(ctx, in.ParticipantID); err != nil {
		return domain.Result{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, in.QuizID)
	if err != nil {
		return domain.Result{}, err
	}
	if !quiz.IsActive {
		return domain.Result{}, domain.ErrQuizNotFound
	}

	ip := in.IPAddress
	if ip == "" {
		ip = "unknown"
	}
	draft := domain.Result{
		ParticipantID:  in.ParticipantID,
		QuizID:         in.QuizID,
		Score:          domain.Score(quiz.Questions, in.Answers),
		TotalQuestions: len(quiz.Questions),
		TimeTaken:      domain.ClampTimeTaken(in.TimeTaken, quiz.TimeLimitSeconds()),
		Answers:        append([]domain.Answer{}, in.Answers...),
		CanRetake:      false,
		IPAddress:      ip,
		SubmittedAt:    s.now().UTC(),
	}

	result, err := s.results.CreateAttempt(ctx, in.ParticipantID, in.QuizID, func(previous []domain.Result) (AttemptPlan, error) {
		return planAttempt(previous, draft)
	})
	fields := logrus.Fields{"participant_id": in.ParticipantID, "quiz_id": in.QuizID}
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log.WithFields(fields).Info("submission rejected: already completed")
		}
		return domain.Result{}, err
	}

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"result_id": result.ID,
		"score":     result.Score,
		"total":     result.TotalQuestions,
	}).Info("submission accepted")
	s.publish(ctx, domain.ResultSubmitted, result)
	return result, nil
}

// planAttempt applies the one-attempt-per-grant rule.
func planAttempt(previous []domain.Result, draft domain.Result) (AttemptPlan, error) {
	if len(previous) == 0 {
		return AttemptPlan{Result: draft}, nil
	}
	for _, r := range previous {
		if r.CanRetake {
			return AttemptPlan{Result: draft, ConsumeGrant: r.ID}, nil
		}
	}
	return AttemptPlan{}, domain.ErrAlreadyCompleted
}

func validateSubmission(in SubmitInput) error {
	if in.ParticipantID <= 0 {
		return domain.NewValidationError("participantId", "must be a positive id")
	}
	if in.QuizID <= 0 {
		return domain.NewValidationError("quizId", "must be a positive id")
	}
	if in.TimeTaken < 0 {
		return domain.NewValidationError("timeTaken", "must not be negative")
	}
	seen := make(map[int64]struct{}, len(in.Answers))
	for i, a := range in.Answers {
		field := fmt.Sprintf("answers[%d]", i)
		if a.QuestionID <= 0 {
			return domain.NewValidationError(field+".questionId", "must be a positive id")
		}
		if a.SelectedAnswer < 0 {
			return domain.NewValidationError(field+".selectedAnswer", "must not be negative")
		}
		if _, dup := seen[a.QuestionID]; dup {
			return domain.NewValidationError(field+".questionId", "duplicate answer for question")
		}
		seen[a.QuestionID] = struct{}{}
	}
	return nil
}

// GetResultForViewer loads a result with its participant, quiz and questions. Participants may
// only read their own results and never see the answer key.
func (s *ResultService) GetResultForViewer(ctx context.Context, resultID int64, viewer domain.Viewer) (domain.ResultDetails, error) {
	result, err := s.results.GetResult(ctx, resultID)
	if err != nil {
		return domain.ResultDetails{}, err
	}
	if !viewer.IsAdmin() && result.ParticipantID != viewer.ParticipantID {
		return domain.ResultDetails{}, domain.ErrNotOwner
	}

	participant, err := s.participants.GetParticipant(ctx, result.ParticipantID)
	if err != nil {
		return domain.ResultDetails{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, result.QuizID)
	if err != nil {
		return domain.ResultDetails{}, err
	}

	questions := quiz.Questions
	if !viewer.IsAdmin() {
		questions = domain.Redacted(questions)
	}
	quiz.Questions = nil

	pct := domain.Percentage(result.Score, result.TotalQuestions)
	return domain.ResultDetails{
		Result:      result,
		Participant: participant,
		Quiz:        quiz,
		Questions:   questions,
		Percentage:  pct,
		Passed:      domain.Passed(pct, quiz.PassingScore),
	}, nil
}

// SetRetakeEligibility sets the retake flag on a result.
func (s *ResultService) SetRetakeEligibility(ctx context.Context, resultID int64, canRetake bool) (domain.Result, error) {
	result, err := s.results.SetCanRetake(ctx, resultID, canRetake)
	if err != nil {
		return domain.Result{}, err
	}
	s.log.WithFields(logrus.Fields{
		"result_id":  resultID,
		"can_retake": canRetake,
	}).Info("retake eligibility updated")
	s.publish(ctx, domain.ResultRetake, result)
	return result, nil
}

// CheckEligibility reports whether a participant has taken a quiz and may take it again.
func (s *ResultService) CheckEligibility(ctx context.Context, participantID, quizID int64) (domain.Eligibility, error) {
	results, err := s.results.ListResultsByParticipant(ctx, participantID)
	if err != nil {
		return domain.Eligibility{}, err
	}
	out := domain.Eligibility{CanRetake: true}
	anyGrant := false
	for _, r := range results {
		if r.QuizID != quizID {
			continue
		}
		out.HasTakenQuiz = true
		if r.CanRetake {
			anyGrant = true
		}
	}
	if out.HasTakenQuiz {
		out.CanRetake = anyGrant
	}
	return out, nil
}

// ListParticipantResults returns a participant's results, newest first.
func (s *ResultService) ListParticipantResults(ctx context.Context, participantID int64) ([]domain.Result, error) {
	return s.results.ListResultsByParticipant(ctx, participantID)
}

// ListResults returns one page of results joined with participant and quiz.
func (s *ResultService) ListResults(ctx context.Context, sortBy ResultSort, quizID int64, paging Paging) (ResultPage, error) {
	switch sortBy {
	case SortByScore, SortByTime:
	default:
		sortBy = SortByDate
	}
	items, total, err := s.results.ListResultSummaries(ctx, ResultQuery{
		SortBy: sortBy,
		QuizID: quizID,
		Offset: paging.Offset,
		Limit:  paging.Limit,
	})
	if err != nil {
		return ResultPage{}, err
	}
	for i := range items {
		items[i].Percentage = domain.Percentage(items[i].Score, items[i].TotalQuestions)
		items[i].Passed = domain.Passed(items[i].Percentage, items[i].Quiz.PassingScore)
		items[i].Quiz.Questions = nil
	}
	return ResultPage{Items: items, Pagination: BuildPagination(total, paging, len(items))}, nil
}

func (s *ResultService) publish(ctx context.Context, typ domain.ResultEventType, result domain.Result) {
	if s.feed == nil {
		return
	}
	event := domain.ResultEvent{Type: typ, Result: result, At: s.now().UTC()}
	if err := s.feed.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("result_id", result.ID).Warn("result feed publish failed")
	}
}
