package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sbenjam1n/autopilot/internal/automation"
	"github.com/sbenjam1n/autopilot/internal/engine"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	priorityStyles = map[automation.Priority]lipgloss.Style{
		automation.PriorityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		automation.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		automation.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
	logStyles = map[automation.LogType]lipgloss.Style{
		automation.LogSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		automation.LogWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		automation.LogInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
)

const timeLayout = "2006-01-02 15:04"

func renderPlans(w io.Writer, plans []automation.Plan) {
	fmt.Fprintln(w, headerStyle.Render("Plans"))
	var category automation.Category
	for _, p := range plans {
		if p.Category != category {
			category = p.Category
			fmt.Fprintf(w, "\n%s\n", dimStyle.Render(string(category)))
		}
		state := enabledStyle.Render("on ")
		if !p.Enabled {
			state = disabledStyle.Render("off")
		}
		last := "never"
		if p.LastTriggered != nil {
			last = p.LastTriggered.Format(timeLayout)
		}
		fmt.Fprintf(w, "  [%s] %-14s %s\n", state, p.ID, p.Name)
		fmt.Fprintf(w, "        %s · triggered %d× · last %s\n",
			dimStyle.Render(p.TriggerCondition), p.TriggerCount, last)
	}
}

func renderSuggestions(w io.Writer, items []automation.Suggestion) {
	fmt.Fprintln(w, headerStyle.Render("Pending suggestions"))
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, s := range items {
		fmt.Fprintf(w, "  %s %s  %s\n", priorityLabel(s.Priority), s.Title, dimStyle.Render(s.ID))
		fmt.Fprintf(w, "      %s\n", s.Message)
		meta := "plan=" + s.PlanID
		if s.ExpiresAt != nil {
			meta += " expires=" + s.ExpiresAt.Format(timeLayout)
		}
		if s.ActionLabel != "" {
			meta += " action=" + s.ActionLabel
		}
		fmt.Fprintf(w, "      %s\n", dimStyle.Render(meta))
	}
}

func renderLog(w io.Writer, entries []automation.LogEntry) {
	fmt.Fprintln(w, headerStyle.Render("Activity log"))
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, e := range entries {
		style, ok := logStyles[e.Type]
		if !ok {
			style = dimStyle
		}
		fmt.Fprintf(w, "  %s %s %-26s %s\n",
			dimStyle.Render(e.Timestamp.Format(timeLayout)),
			style.Render(fmt.Sprintf("%-7s", e.Type)),
			e.PlanName,
			e.Message,
		)
	}
}

func renderStatus(w io.Writer, st automation.Status, now time.Time) {
	state := "idle"
	if st.IsRunning {
		state = "running"
	}
	last := "never"
	if st.LastRunAt != nil {
		last = fmt.Sprintf("%s (%s ago)", st.LastRunAt.Format(timeLayout), now.Sub(*st.LastRunAt).Round(time.Second))
	}
	fmt.Fprintf(w, "Engine: %s\nLast cycle: %s\n", state, last)
}

func renderReport(w io.Writer, r engine.CycleReport) {
	fmt.Fprintf(w, "Cycle at %s: %d created, %d deduplicated, %d expired, %d failure(s)\n",
		r.StartedAt.Format(timeLayout), len(r.Created), r.Deduped, len(r.Expired), r.Failures)
	if r.TimedOut {
		fmt.Fprintln(w, priorityStyles[automation.PriorityHigh].Render("  cycle stopped at its deadline"))
	}
	for _, s := range r.Created {
		fmt.Fprintf(w, "  + %s %s\n", priorityLabel(s.Priority), s.Title)
	}
}

func priorityLabel(p automation.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		style = dimStyle
	}
	return style.Render(fmt.Sprintf("[%s]", p))
}
