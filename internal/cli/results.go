package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"quiz-builder/internal/apiclient"
	"quiz-builder/internal/app"
	"quiz-builder/internal/domain"
)

type resultsOptions struct {
	server   string
	username string
	password string
	quizID   int64
	sortBy   string
	page     int
	perPage  int
	watch    bool
}

// NewResultsCmd lists submitted results for an administrator.
func NewResultsCmd() *cobra.Command {
	var opts resultsOptions
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List quiz results (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("QUIZ_ADMIN_PASSWORD")
			}
			return runResults(cmd.Context(), opts, os.Stdout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "quiz server base URL")
	f.StringVarP(&opts.username, "username", "u", "admin", "admin username")
	f.StringVarP(&opts.password, "password", "p", "", "admin password (default $QUIZ_ADMIN_PASSWORD)")
	f.Int64Var(&opts.quizID, "quiz", 0, "only results for this quiz")
	f.StringVar(&opts.sortBy, "sort", string(app.SortByDate), "order by date, score or time")
	f.IntVar(&opts.page, "page", 1, "page number")
	f.IntVar(&opts.perPage, "per-page", 10, "results per page")
	f.BoolVarP(&opts.watch, "watch", "w", false, "stream new results after listing")
	return cmd
}

func runResults(ctx context.Context, opts resultsOptions, out io.Writer) error {
	client := apiclient.New(opts.server)
	if _, err := client.Login(ctx, opts.username, opts.password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	page, err := client.ListResults(ctx, apiclient.ResultsQuery{
		SortBy:  opts.sortBy,
		QuizID:  opts.quizID,
		Page:    opts.page,
		PerPage: opts.perPage,
	})
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}
	renderResults(out, page)

	if !opts.watch {
		return nil
	}
	color.New(color.FgCyan).Fprintln(out, "Watching for new results, Ctrl-C to stop.")
	return client.WatchResults(ctx, func(ev domain.ResultEvent) {
		r := ev.Result
		verb := "submitted"
		if ev.Type == domain.ResultRetake {
			verb = "retake changed"
		}
		fmt.Fprintf(out, "%s  result %d %s  participant %d  quiz %d  score %d/%d  retake %t\n",
			ev.At.Local().Format(time.TimeOnly), r.ID, verb, r.ParticipantID, r.QuizID,
			r.Score, r.TotalQuestions, r.CanRetake)
	})
}

func renderResults(out io.Writer, page app.ResultPage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Participant", "Roll", "Quiz", "Score", "%", "Status", "Time", "Submitted", "Retake"})
	table.SetAutoWrapText(false)
	for _, item := range page.Items {
		table.Append([]string{
			strconv.FormatInt(item.ID, 10),
			item.Participant.FullName,
			item.Participant.RollNumber,
			item.Quiz.Title,
			fmt.Sprintf("%d/%d", item.Score, item.TotalQuestions),
			strconv.Itoa(item.Percentage),
			passLabel(item.Passed),
			formatDuration(item.TimeTaken),
			item.SubmittedAt.Local().Format("2006-01-02 15:04"),
			yesNo(item.CanRetake),
		})
	}
	table.Render()

	p := page.Pagination
	fmt.Fprintf(out, "Page %d of %d, %d results\n", p.Page, p.TotalPages, p.Total)
}

// printResult shows a participant their own result after submitting.
func printResult(out io.Writer, details domain.ResultDetails) {
	color.New(color.Bold).Fprintf(out, "%s\n", details.Quiz.Title)
	fmt.Fprintf(out, "Score %d/%d (%d%%)  %s  Time %s\n\n",
		details.Score, details.TotalQuestions, details.Percentage,
		passLabel(details.Passed), formatDuration(details.TimeTaken))

	chosen := make(map[int64]int, len(details.Answers))
	for _, a := range details.Answers {
		chosen[a.QuestionID] = a.SelectedAnswer
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Question", "Your answer", "Correct"})
	table.SetAutoWrapText(false)
	for i, q := range details.Questions {
		answer := "-"
		if idx, ok := chosen[q.ID]; ok && idx >= 0 && idx < len(q.Options) {
			answer = q.Options[idx]
		}
		correct := "hidden"
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			correct = q.Options[q.CorrectAnswer]
			if answer == correct {
				answer = color.GreenString(answer)
			} else {
				answer = color.RedString(answer)
			}
		}
		table.Append([]string{strconv.Itoa(i + 1), q.Text, answer, correct})
	}
	table.Render()
}

func passLabel(passed bool) string {
	if passed {
		return color.GreenString("PASSED")
	}
	return color.RedString("FAILED")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// formatDuration renders seconds as m:ss.
func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
