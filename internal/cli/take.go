package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"quiz-builder/internal/apiclient"
	"quiz-builder/internal/config"
	"quiz-builder/internal/domain"
	"quiz-builder/internal/session"
)

const leaveWindow = 3 * time.Second

type takeOptions struct {
	server     string
	name       string
	roll       string
	class      string
	department string
	quizID     int64
	maxExits   int
	verbose    bool
	engine     session.Options
}

func engineOptions(cfg config.Config) session.Options {
	return session.Options{
		LowTimeThreshold:   cfg.Quiz.LowTimeWarning,
		AutoSubmitDelay:    config.TTLDuration(cfg.Quiz.AutoSubmitDelay, session.DefaultAutoSubmitDelay),
		MaxFullscreenExits: cfg.Quiz.MaxFullscreenExits,
	}
}

// NewTakeCmd runs one quiz attempt in the terminal. Engine tuning comes from the quiz
// section of the config; --max-exits overrides the exit limit.
func NewTakeCmd(configPath *string) *cobra.Command {
	var opts takeOptions
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			opts.engine = engineOptions(cfg)
			if cmd.Flags().Changed("max-exits") {
				opts.engine.MaxFullscreenExits = opts.maxExits
			}
			return runTake(cmd.Context(), opts, os.Stdin, os.Stdout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "quiz server base URL")
	f.StringVar(&opts.name, "name", "", "full name")
	f.StringVar(&opts.roll, "roll", "", "roll number")
	f.StringVar(&opts.class, "class", "", "class")
	f.StringVar(&opts.department, "department", "", "department")
	f.Int64Var(&opts.quizID, "quiz", 0, "quiz id")
	f.IntVar(&opts.maxExits, "max-exits", 0, "auto-submit after this many full-window exits, 0 disables (default from config)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine events to stderr")
	for _, name := range []string{"name", "roll", "class", "department", "quiz"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runTake(ctx context.Context, opts takeOptions, in io.Reader, out io.Writer) error {
	client := apiclient.New(opts.server)

	participant, err := client.RegisterParticipant(ctx, apiclient.ParticipantRequest{
		FullName:   opts.name,
		RollNumber: opts.roll,
		Class:      opts.class,
		Department: opts.department,
	})
	if err != nil {
		return fmt.Errorf("register participant: %w", err)
	}
	elig, err := client.CheckEligibility(ctx, participant.ID, opts.quizID)
	if err != nil {
		return fmt.Errorf("check eligibility: %w", err)
	}
	if elig.HasTakenQuiz && !elig.CanRetake {
		color.New(color.FgRed).Fprintln(out, "You have already completed this quiz and a retake is not allowed.")
		return nil
	}
	quiz, err := client.GetQuiz(ctx, opts.quizID)
	if err != nil {
		return fmt.Errorf("load quiz: %w", err)
	}

	log := newLogger("warn", "text")
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	term := newTerminal(out, client, participant.ID)
	engineOpts := opts.engine
	engineOpts.Presenter = term
	engineOpts.Logger = log
	engine, err := session.NewEngine(quiz, participant.ID, client, term, engineOpts)
	if err != nil {
		return err
	}
	term.engine = engine

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Close()
	term.render()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	var lastInterrupt time.Time

	for {
		select {
		case <-term.done:
			term.ExitFullscreen()
			return term.outcome()
		case <-interrupts:
			if !engine.ShouldConfirmLeave() || time.Since(lastInterrupt) < leaveWindow {
				term.ExitFullscreen()
				return errors.New("quiz abandoned")
			}
			lastInterrupt = time.Now()
			term.warn("Your answers are not submitted yet. Press Ctrl-C again to leave anyway.")
		case line, ok := <-lines:
			if !ok {
				term.ExitFullscreen()
				select {
				case <-term.done:
					return term.outcome()
				default:
					return errors.New("input closed before the quiz was submitted")
				}
			}
			term.handle(line)
		}
	}
}

// terminal is the session host and presenter for an ANSI terminal. The alternate screen
// buffer stands in for full-window mode.
type terminal struct {
	out           io.Writer
	client        *apiclient.Client
	participantID int64
	engine        *session.Engine
	tty           bool

	outMu sync.Mutex

	mu     sync.Mutex
	full   bool
	done   chan struct{}
	once   sync.Once
	result *domain.ResultDetails
	err    error
}

func newTerminal(out io.Writer, client *apiclient.Client, participantID int64) *terminal {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &terminal{out: out, client: client, participantID: participantID, tty: tty, done: make(chan struct{})}
}

func (t *terminal) RequestFullscreen() error {
	if !t.tty {
		return errors.New("output is not a terminal")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		t.write(func(w io.Writer) { fmt.Fprint(w, "\x1b[?1049h\x1b[H") })
		t.full = true
	}
	return nil
}

func (t *terminal) ExitFullscreen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		t.write(func(w io.Writer) { fmt.Fprint(w, "\x1b[?1049l") })
		t.full = false
	}
}

func (t *terminal) Notify(n session.Notice) {
	t.write(func(w io.Writer) {
		switch n.Kind {
		case session.NoticeLowTime, session.NoticeFullscreenExit, session.NoticeFullscreenUnavailable:
			color.New(color.FgYellow).Fprintln(w, n.Message)
		case session.NoticeTimeUp, session.NoticeSubmitRejected:
			color.New(color.FgRed, color.Bold).Fprintln(w, n.Message)
		case session.NoticeConfirmSubmit:
			color.New(color.FgCyan).Fprintln(w, n.Message)
			fmt.Fprint(w, "Submit now? [y/N] ")
		case session.NoticeSubmitFailed:
			color.New(color.FgRed).Fprintln(w, n.Message)
			fmt.Fprintln(w, "Type r to retry.")
		case session.NoticeSubmitted:
			color.New(color.FgGreen).Fprintln(w, n.Message)
		default:
			fmt.Fprintln(w, n.Message)
		}
	})
}

func (t *terminal) ShowResult(resultID int64) {
	details, err := t.client.GetResult(context.Background(), resultID, t.participantID)
	t.mu.Lock()
	if err != nil {
		t.err = fmt.Errorf("submitted as result %d but could not load it: %w", resultID, err)
	} else {
		t.result = &details
	}
	t.mu.Unlock()
	t.finish()
}

func (t *terminal) ReturnHome(reason error) {
	t.mu.Lock()
	t.err = reason
	t.mu.Unlock()
	t.finish()
}

func (t *terminal) finish() {
	t.once.Do(func() { close(t.done) })
}

// outcome prints the result once the alternate screen is gone.
func (t *terminal) outcome() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	if t.result != nil {
		details := *t.result
		t.write(func(w io.Writer) { printResult(w, details) })
	}
	return nil
}

func (t *terminal) warn(msg string) {
	t.write(func(w io.Writer) { color.New(color.FgYellow).Fprintln(w, msg) })
}

// write buffers fn's output and flushes it in one locked write. Notices arrive from the
// clock goroutines and must not interleave with a redraw.
func (t *terminal) write(fn func(w io.Writer)) {
	var buf bytes.Buffer
	fn(&buf)
	t.outMu.Lock()
	defer t.outMu.Unlock()
	_, _ = t.out.Write(buf.Bytes())
}

func (t *terminal) handle(line string) {
	e := t.engine
	if e.Phase() == session.PhaseSubmitConfirmPending {
		if strings.EqualFold(line, "y") {
			_ = e.ConfirmSubmit()
			return
		}
		_ = e.CancelSubmit()
		t.render()
		return
	}

	switch strings.ToLower(line) {
	case "", "t":
	case "n":
		_, _ = e.Navigate(1)
	case "p":
		_, _ = e.Navigate(-1)
	case "s":
		if _, err := e.RequestSubmit(); err != nil {
			t.warn("Submitting is not possible right now.")
		}
		return
	case "r":
		if err := e.Retry(); errors.Is(err, session.ErrInvalidTransition) {
			t.warn("Nothing to retry.")
		}
		return
	case "w":
		t.ExitFullscreen()
		e.FullscreenChanged(false)
		return
	case "f":
		if err := e.ReenterFullscreen(); err != nil {
			t.warn("Full-window mode is not available: " + err.Error())
		}
	default:
		choice, err := strconv.Atoi(line)
		snap := e.Snapshot()
		if err != nil || choice < 1 || choice > len(snap.Question.Options) {
			t.warn("Unknown command.")
			return
		}
		if err := e.SelectAnswer(snap.Question.ID, choice-1); err != nil {
			t.warn(err.Error())
			return
		}
	}
	t.render()
}

func (t *terminal) render() {
	snap := t.engine.Snapshot()
	t.write(func(w io.Writer) {
		if t.tty {
			fmt.Fprint(w, "\x1b[H\x1b[2J")
		}

		clock := color.New(color.FgGreen)
		switch snap.Band {
		case domain.TimerWarning:
			clock = color.New(color.FgYellow)
		case domain.TimerCritical:
			clock = color.New(color.FgRed, color.Bold)
		}
		clock.Fprintf(w, "Time left %s", snap.Clock)
		fmt.Fprintf(w, "   Question %d/%d   Answered %d\n\n", snap.QuestionIndex+1, snap.Total, snap.Summary.Answered)

		color.New(color.Bold).Fprintln(w, snap.Question.Text)
		selected, answered := snap.Answers[snap.Question.ID]
		for i, opt := range snap.Question.Options {
			marker := "  "
			if answered && selected == i {
				marker = color.CyanString("> ")
			}
			fmt.Fprintf(w, "%s%d) %s\n", marker, i+1, opt)
		}
		fmt.Fprintln(w, "\n[1-9] answer  n next  p previous  s submit  t time  w leave full window  f full window")
	})
}
