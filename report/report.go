// Package report renders run summaries for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bassamadnan/mailsched/ledger"
	"github.com/bassamadnan/mailsched/workflow"
)

const (
	subjectWidth = 40
	fromWidth    = 28
	detailWidth  = 48
)

// Render draws one run's outcomes as a table followed by a status line.
func Render(s *workflow.Summary) string {
	title := "mailsched run"
	if s.DryRun {
		title += " (dry run)"
	}

	if len(s.Outcomes) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			TitleStyle.Render(title),
			StatusNormalStyle.Render("No unread messages."),
		)
	}

	rows := make([][]string, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		rows = append(rows, []string{
			o.ID,
			truncate(shortFrom(o.From), fromWidth),
			truncate(subjectOrPlaceholder(o.Subject), subjectWidth),
			string(o.State),
			actionLabel(o),
			truncate(detail(o), detailWidth),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		Headers("ID", "FROM", "SUBJECT", "STATE", "ACTION", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			if col == 5 && s.Outcomes[row].Failed() {
				return ErrorTextStyle
			}
			if col == 0 || col == 3 {
				return SecondaryStyle
			}
			return CellStyle
		})

	return lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), t.Render(), statusLine(s))
}

// RenderRuns draws recorded runs, newest first.
func RenderRuns(runs []ledger.Run) string {
	if len(runs) == 0 {
		return StatusNormalStyle.Render("No runs recorded.")
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			truncate(r.ID, 8),
			formatTime(r.StartedAt),
			formatDuration(r),
			fmt.Sprint(r.Processed),
			fmt.Sprint(r.Scheduled),
			fmt.Sprint(r.Clarified),
			fmt.Sprint(r.Failed),
			fmt.Sprint(r.Skipped),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(BorderStyle).
		Headers("RUN", "STARTED", "TOOK", "MSGS", "EVENTS", "REPLIES", "FAILED", "FILTERED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})
	return t.Render()
}

func statusLine(s *workflow.Summary) string {
	c := s.Counts()
	text := fmt.Sprintf("%d processed, %d scheduled, %d replied, %d failed, %d filtered",
		c.Processed, c.Scheduled, c.Clarified, c.Failed, c.Skipped)
	if c.Failed > 0 {
		return StatusErrorStyle.Render(text)
	}
	return StatusSuccessStyle.Render(text)
}

func actionLabel(o workflow.Outcome) string {
	if o.Action == "" {
		return "-"
	}
	return string(o.Action)
}

func detail(o workflow.Outcome) string {
	if o.Err != nil {
		kind := "recovered"
		if o.Err.Fatal {
			kind = "fatal"
		}
		return fmt.Sprintf("%s %s: %v", kind, o.Err.Step, o.Err.Err)
	}
	if o.DryRun && (o.Action == workflow.ActionEvent || o.Action == workflow.ActionReply) {
		return "dry run"
	}
	return o.Detail
}

func subjectOrPlaceholder(subject string) string {
	if subject == "" {
		return "(No Subject)"
	}
	return subject
}

// shortFrom drops the address from a "Name <addr>" sender when a name is present.
func shortFrom(from string) string {
	if idx := strings.Index(from, "<"); idx > 0 {
		from = strings.TrimSpace(from[:idx])
	}
	if from == "" {
		return "(Unknown Sender)"
	}
	return strings.Trim(from, `"`)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "???"
	}
	return t.Local().Format("Jan02 15:04")
}

func formatDuration(r ledger.Run) string {
	if r.FinishedAt.IsZero() {
		return "unfinished"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
