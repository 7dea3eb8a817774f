package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"quiz-builder/internal/domain"
)

const (
	DefaultLowTimeThreshold = 300
	DefaultAutoSubmitDelay  = 2000 * time.Millisecond
)

var (
	ErrNoQuestions       = errors.New("session: quiz has no questions")
	ErrAlreadyStarted    = errors.New("session: already started")
	ErrInvalidTransition = errors.New("session: action not allowed in current phase")
	ErrUnknownQuestion   = errors.New("session: question is not part of this quiz")
	ErrInvalidOption     = errors.New("session: option index out of range")
	ErrNotRetryable      = errors.New("session: submission was rejected and cannot be retried")
)

// Phase is the lifecycle stage of an attempt.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseSubmitConfirmPending
	PhaseTimeExpired
	PhaseSubmitting
	PhaseSubmitted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseSubmitConfirmPending:
		return "submit_confirm_pending"
	case PhaseTimeExpired:
		return "time_expired"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Submitter delivers a finished attempt to the scoring service.
type Submitter interface {
	SubmitResult(ctx context.Context, sub domain.Submission) (domain.Result, error)
}

// Presenter controls exclusive full-window presentation.
type Presenter interface {
	RequestFullscreen() error
	ExitFullscreen()
}

// Host renders notices and performs navigation on behalf of the engine.
// Calls are made without the engine lock held, so a host may query the engine.
type Host interface {
	Notify(n Notice)
	ShowResult(resultID int64)
	ReturnHome(reason error)
}

// NoticeKind classifies a user-facing message.
type NoticeKind string

const (
	NoticeLowTime               NoticeKind = "low_time"
	NoticeTimeUp                NoticeKind = "time_up"
	NoticeConfirmSubmit         NoticeKind = "confirm_submit"
	NoticeFullscreenUnavailable NoticeKind = "fullscreen_unavailable"
	NoticeFullscreenExit        NoticeKind = "fullscreen_exit"
	NoticeSubmitted             NoticeKind = "submitted"
	NoticeSubmitFailed          NoticeKind = "submit_failed"
	NoticeSubmitRejected        NoticeKind = "submit_rejected"
)

// Notice is one message for the host. Retryable is set on submit failures that Retry can resume.
type Notice struct {
	Kind      NoticeKind
	Message   string
	Summary   Summary
	Retryable bool
	Err       error
}

// Summary is shown in the submit confirmation.
type Summary struct {
	Total      int
	Answered   int
	Unanswered int
}

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	LowTimeThreshold int
	AutoSubmitDelay  time.Duration
	// MaxFullscreenExits auto-submits the attempt on that many full-window exits; 0 disables it.
	MaxFullscreenExits int
	Clock              Clock
	Presenter          Presenter
	Logger             logrus.FieldLogger
}

// Snapshot is a consistent copy of the engine state for rendering.
type Snapshot struct {
	Phase         Phase
	QuestionIndex int
	Question      domain.Question
	Total         int
	TimeLeft      int
	Clock         string
	Band          domain.TimerBand
	Answers       map[int64]int
	Summary       Summary
	Fullscreen    bool
	FullscreenOff int
	Result        domain.Result
	Err           error
}

// Engine runs one quiz attempt: answers, navigation, countdown, fullscreen monitoring and
// the single submission. All methods are safe for concurrent use.
type Engine struct {
	quiz          domain.Quiz
	participantID int64
	submitter     Submitter
	host          Host
	opts          Options
	log           logrus.FieldLogger

	mu         sync.Mutex
	ctx        context.Context
	started    bool
	phase      Phase
	index      int
	answers    map[int64]int
	timeLeft   int
	warned     bool
	ticker     Ticker
	stopTicks  chan struct{}
	grace      Timer
	fullscreen bool
	exitWarned bool
	exits      int
	result     domain.Result
	lastErr    error
	terminal   bool
}

// NewEngine prepares an attempt of quiz by participantID. The quiz must have questions.
func NewEngine(quiz domain.Quiz, participantID int64, submitter Submitter, host Host, opts Options) (*Engine, error) {
	if len(quiz.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if opts.LowTimeThreshold <= 0 {
		opts.LowTimeThreshold = DefaultLowTimeThreshold
	}
	if opts.AutoSubmitDelay <= 0 {
		opts.AutoSubmitDelay = DefaultAutoSubmitDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Engine{
		quiz:          quiz,
		participantID: participantID,
		submitter:     submitter,
		host:          host,
		opts:          opts,
		log:           log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "participant_id": participantID}),
		ctx:           context.Background(),
		phase:         PhaseActive,
		answers:       make(map[int64]int),
		timeLeft:      quiz.TimeLimitSeconds(),
	}, nil
}

// Start begins the countdown and asks for full-window mode. Failing to get it is not fatal.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.ctx = ctx
	e.ticker = e.opts.Clock.NewTicker(time.Second)
	e.stopTicks = make(chan struct{})
	go e.run(ctx, e.ticker, e.stopTicks)
	e.mu.Unlock()

	e.log.WithField("time_left", e.quiz.TimeLimitSeconds()).Debug("attempt started")

	if e.opts.Presenter == nil {
		e.host.Notify(Notice{Kind: NoticeFullscreenUnavailable, Message: "Full-window mode is not supported; continuing in a normal window."})
		return nil
	}
	if err := e.opts.Presenter.RequestFullscreen(); err != nil {
		e.log.WithError(err).Debug("fullscreen denied")
		e.host.Notify(Notice{Kind: NoticeFullscreenUnavailable, Message: "Full-window mode was denied; continuing in a normal window.", Err: err})
		return nil
	}
	e.FullscreenChanged(true)
	return nil
}

func (e *Engine) run(ctx context.Context, t Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-t.C():
			e.Tick()
		case <-stop:
			return
		case <-ctx.Done():
			e.mu.Lock()
			if e.ticker == t {
				e.stopTickerLocked()
			}
			e.mu.Unlock()
			return
		}
	}
}

// Close stops every timer without submitting.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimersLocked()
}

// SelectAnswer records optionIndex for questionID, replacing any earlier choice.
func (e *Engine) SelectAnswer(questionID int64, optionIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseActive {
		return ErrInvalidTransition
	}
	q, ok := e.questionLocked(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return ErrInvalidOption
	}
	e.answers[questionID] = optionIndex
	return nil
}

// Navigate moves the current question by delta, clamped to the quiz bounds.
func (e *Engine) Navigate(delta int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseActive {
		return e.index, ErrInvalidTransition
	}
	next := e.index + delta
	if next < 0 {
		next = 0
	}
	if last := len(e.quiz.Questions) - 1; next > last {
		next = last
	}
	e.index = next
	return e.index, nil
}

// Tick advances the countdown by one second.
func (e *Engine) Tick() {
	var notices []Notice

	e.mu.Lock()
	if (e.phase != PhaseActive && e.phase != PhaseSubmitConfirmPending) || e.timeLeft <= 0 {
		e.mu.Unlock()
		return
	}
	e.timeLeft--
	if !e.warned && e.timeLeft <= e.opts.LowTimeThreshold {
		e.warned = true
		notices = append(notices, Notice{
			Kind:    NoticeLowTime,
			Message: fmt.Sprintf("Only %s left.", domain.FormatClock(e.timeLeft)),
		})
	}
	if e.timeLeft == 0 {
		e.phase = PhaseTimeExpired
		e.stopTickerLocked()
		e.grace = e.opts.Clock.AfterFunc(e.opts.AutoSubmitDelay, e.autoSubmit)
		notices = append(notices, Notice{
			Kind:    NoticeTimeUp,
			Message: "Time's up! Your answers will be submitted automatically.",
			Summary: e.summaryLocked(),
		})
		e.log.Info("time expired")
	}
	e.mu.Unlock()

	for _, n := range notices {
		e.host.Notify(n)
	}
}

func (e *Engine) autoSubmit() {
	_ = e.submit(PhaseTimeExpired)
}

// RequestSubmit opens the confirmation step and reports answered and unanswered counts.
func (e *Engine) RequestSubmit() (Summary, error) {
	e.mu.Lock()
	if e.phase != PhaseActive {
		e.mu.Unlock()
		return Summary{}, ErrInvalidTransition
	}
	e.phase = PhaseSubmitConfirmPending
	summary := e.summaryLocked()
	e.mu.Unlock()

	e.host.Notify(Notice{
		Kind:    NoticeConfirmSubmit,
		Message: fmt.Sprintf("You answered %d of %d questions; %d unanswered.", summary.Answered, summary.Total, summary.Unanswered),
		Summary: summary,
	})
	return summary, nil
}

// CancelSubmit returns from the confirmation step to the quiz.
func (e *Engine) CancelSubmit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseSubmitConfirmPending {
		return ErrInvalidTransition
	}
	e.phase = PhaseActive
	return nil
}

// ConfirmSubmit submits the attempt after the confirmation step.
func (e *Engine) ConfirmSubmit() error {
	return e.submit(PhaseSubmitConfirmPending)
}

// Retry resubmits after a retryable failure. Answers are never discarded.
func (e *Engine) Retry() error {
	e.mu.Lock()
	terminal := e.phase == PhaseError && e.terminal
	e.mu.Unlock()
	if terminal {
		return ErrNotRetryable
	}
	return e.submit(PhaseError)
}

// submit moves into SUBMITTING at most once per allowed source phase and calls the Submitter.
func (e *Engine) submit(from ...Phase) error {
	e.mu.Lock()
	allowed := false
	for _, p := range from {
		if e.phase == p {
			allowed = true
			break
		}
	}
	if !allowed {
		e.mu.Unlock()
		return ErrInvalidTransition
	}
	source := e.phase
	e.phase = PhaseSubmitting
	e.stopTimersLocked()
	payload := e.payloadLocked()
	ctx := e.ctx
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"from":       source.String(),
		"answered":   len(payload.Answers),
		"time_taken": payload.TimeTaken,
	}).Info("submitting attempt")

	result, err := e.submitter.SubmitResult(ctx, payload)
	if err != nil {
		return e.fail(err)
	}

	e.mu.Lock()
	e.phase = PhaseSubmitted
	e.result = result
	e.lastErr = nil
	e.mu.Unlock()

	if e.opts.Presenter != nil {
		e.opts.Presenter.ExitFullscreen()
	}
	e.host.Notify(Notice{Kind: NoticeSubmitted, Message: "Quiz submitted successfully."})
	e.host.ShowResult(result.ID)
	return nil
}

func (e *Engine) fail(err error) error {
	terminal := IsTerminal(err)

	e.mu.Lock()
	e.phase = PhaseError
	e.lastErr = err
	e.terminal = terminal
	e.mu.Unlock()

	e.log.WithError(err).WithField("terminal", terminal).Warn("submission failed")
	if terminal {
		e.host.Notify(Notice{Kind: NoticeSubmitRejected, Message: rejectionMessage(err), Err: err})
		e.host.ReturnHome(err)
		return err
	}
	e.host.Notify(Notice{
		Kind:      NoticeSubmitFailed,
		Message:   "Failed to submit your quiz. Your answers are kept; please try again.",
		Retryable: true,
		Err:       err,
	})
	return err
}

// IsTerminal reports whether a submission error must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden)
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "You have already completed this quiz and a retake is not allowed."
	case errors.Is(err, domain.ErrNotFound):
		return "This quiz is no longer available."
	default:
		return "The submission was rejected."
	}
}

// FullscreenChanged reports the presentation state. Each exit warns once until full-window
// mode is re-entered.
func (e *Engine) FullscreenChanged(active bool) {
	e.mu.Lock()
	if active {
		e.fullscreen = true
		e.exitWarned = false
		e.mu.Unlock()
		return
	}
	wasFull := e.fullscreen
	e.fullscreen = false
	monitored := e.phase == PhaseActive || e.phase == PhaseSubmitConfirmPending
	if !wasFull || !monitored || e.exitWarned {
		e.mu.Unlock()
		return
	}
	e.exitWarned = true
	e.exits++
	exits := e.exits
	limit := e.opts.MaxFullscreenExits
	e.mu.Unlock()

	msg := "You left full-window mode. Return to it to continue your quiz."
	if limit > 0 {
		msg = fmt.Sprintf("You left full-window mode (%d of %d). The quiz is submitted automatically at %d.", exits, limit, limit)
	}
	e.host.Notify(Notice{Kind: NoticeFullscreenExit, Message: msg})

	if limit > 0 && exits >= limit {
		e.log.WithField("exits", exits).Info("fullscreen exit limit reached")
		_ = e.submit(PhaseActive, PhaseSubmitConfirmPending)
	}
}

// ReenterFullscreen is the one-click action offered with an exit warning.
func (e *Engine) ReenterFullscreen() error {
	if e.opts.Presenter == nil {
		return errors.New("session: fullscreen not supported")
	}
	if err := e.opts.Presenter.RequestFullscreen(); err != nil {
		return err
	}
	e.FullscreenChanged(true)
	return nil
}

// ShouldConfirmLeave reports whether leaving now would lose an unsubmitted attempt.
func (e *Engine) ShouldConfirmLeave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.phase {
	case PhaseActive, PhaseSubmitConfirmPending, PhaseTimeExpired:
		return true
	case PhaseError:
		return !e.terminal
	default:
		return false
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Snapshot returns a copy of the state for rendering.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	answers := make(map[int64]int, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	limit := e.quiz.TimeLimitSeconds()
	return Snapshot{
		Phase:         e.phase,
		QuestionIndex: e.index,
		Question:      e.quiz.Questions[e.index],
		Total:         len(e.quiz.Questions),
		TimeLeft:      e.timeLeft,
		Clock:         domain.FormatClock(e.timeLeft),
		Band:          domain.BandFor(domain.RemainingPercent(e.timeLeft, limit)),
		Answers:       answers,
		Summary:       e.summaryLocked(),
		Fullscreen:    e.fullscreen,
		FullscreenOff: e.exits,
		Result:        e.result,
		Err:           e.lastErr,
	}
}

// LocalScore is the score shown to the participant; the server computes the authoritative one.
func (e *Engine) LocalScore() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Score(e.quiz.Questions, e.answerListLocked())
}

func (e *Engine) payloadLocked() domain.Submission {
	answers := e.answerListLocked()
	limit := e.quiz.TimeLimitSeconds()
	return domain.Submission{
		ParticipantID:  e.participantID,
		QuizID:         e.quiz.ID,
		Score:          domain.Score(e.quiz.Questions, answers),
		TotalQuestions: len(e.quiz.Questions),
		TimeTaken:      domain.ClampTimeTaken(limit-e.timeLeft, limit),
		Answers:        answers,
	}
}

// answerListLocked lists recorded answers in question order; unanswered questions are absent.
func (e *Engine) answerListLocked() []domain.Answer {
	out := make([]domain.Answer, 0, len(e.answers))
	for _, q := range e.quiz.Questions {
		if choice, ok := e.answers[q.ID]; ok {
			out = append(out, domain.Answer{QuestionID: q.ID, SelectedAnswer: choice})
		}
	}
	return out
}

func (e *Engine) summaryLocked() Summary {
	total := len(e.quiz.Questions)
	answered := len(e.answerListLocked())
	return Summary{Total: total, Answered: answered, Unanswered: total - answered}
}

func (e *Engine) questionLocked(id int64) (domain.Question, bool) {
	for _, q := range e.quiz.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (e *Engine) stopTickerLocked() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.stopTicks)
	e.ticker = nil
}

func (e *Engine) stopTimersLocked() {
	e.stopTickerLocked()
	if e.grace != nil {
		e.grace.Stop()
		e.grace = nil
	}
}
