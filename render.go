package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/model"
	"github.com/marketing-analytics-team/server/internal/chart"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4F46E5"))
	tagStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	optionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// printTurn writes the assistant messages added since history index from.
func printTurn(w io.Writer, st *model.ConversationState, from int) {
	if from > len(st.History) {
		from = 0
	}
	for _, m := range st.History[from:] {
		if m.Role != schema.Assistant {
			continue
		}
		fmt.Fprintln(w, tagStyle.Render(m.Handler.Tag()))
		switch m.Kind {
		case model.KindError:
			fmt.Fprintln(w, errorStyle.Render(m.Content))
		default:
			fmt.Fprintln(w, m.Content)
		}
		if m.Payload != nil && m.Payload.Chart != nil {
			fmt.Fprintln(w, chart.Text(m.Payload.Chart, 30))
		}
		if m.Kind == model.KindClarification && m.Payload != nil {
			printOptions(w, m.Payload.Options)
		}
		fmt.Fprintln(w)
	}

	footer := fmt.Sprintf("conversation %s · %s · steps %d · $%.4f",
		st.ConversationID, st.Status, st.StepCount, st.UsageCostUSD)
	fmt.Fprintln(w, mutedStyle.Render(footer))
}

func printOptions(w io.Writer, options []string) {
	for i, o := range options {
		fmt.Fprintln(w, optionStyle.Render(fmt.Sprintf("  %d. %s", i+1, o)))
	}
}
