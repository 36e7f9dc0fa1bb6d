package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sbenjam1n/autopilot/internal/automation"
	"github.com/sbenjam1n/autopilot/internal/engine"
	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

const dashboardRefresh = 5 * time.Second

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i", "dashboard"},
	Short:   "Live dashboard for suggestions, plans, and the activity log",
	Long: `Browse the engine state and act on it. By default actions are sent to
the running engine over the command stream and the view follows the stored
snapshot. With --direct the dashboard owns the snapshot itself and runs
cycles in-process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")
		fixturePath, _ := cmd.Flags().GetString("fixture")
		ctx := context.Background()

		var source engine.ContextSource = emptySource{}
		if direct {
			src, closeSource, err := resolveSource(ctx, fixturePath)
			if err != nil {
				return err
			}
			defer closeSource()
			source = src
		}

		eng, cleanup, err := openWithSource(ctx, source)
		if err != nil {
			return err
		}
		defer cleanup()

		handle := commandHandler(eng)
		if !direct {
			handle = func(ctx context.Context, c queue.Command) error {
				_, err := sendCommand(ctx, c)
				return err
			}
		}

		m := newDashboardModel(engineLoader(eng), handle, clock)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

// --- Data ---

type dashboardData struct {
	plans       []automation.Plan
	suggestions []automation.Suggestion
	log         []automation.LogEntry
	status      automation.Status
	err         error
}

// engineLoader re-reads the stored snapshot before every refresh so the view
// follows a daemon writing the same store.
func engineLoader(eng *engine.Engine) func() dashboardData {
	return func() dashboardData {
		err := eng.Load(context.Background())
		return dashboardData{
			plans:       eng.ListPlans(),
			suggestions: eng.ListSuggestions(),
			log:         eng.ListLog(0),
			status:      eng.Status(),
			err:         err,
		}
	}
}

type dataMsg dashboardData

type refreshTickMsg struct{}

type actionMsg struct {
	note string
	err  error
}

// --- Styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236")).Foreground(lipgloss.Color("15"))
	tabStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// --- Tabs and keys ---

type dashboardTab int

const (
	tabSuggestions dashboardTab = iota
	tabPlans
	tabLog
)

var tabNames = []string{"1:Suggestions", "2:Plans", "3:Log"}

type dashboardKeys struct {
	Up      key.Binding
	Down    key.Binding
	Tab     key.Binding
	Dismiss key.Binding
	Toggle  key.Binding
	Run     key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func newDashboardKeys() dashboardKeys {
	return dashboardKeys{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Tab:     key.NewBinding(key.WithKeys("tab", "1", "2", "3"), key.WithHelp("tab/1-3", "switch view")),
		Dismiss: key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "dismiss")),
		Toggle:  key.NewBinding(key.WithKeys("t", " "), key.WithHelp("t", "toggle plan")),
		Run:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run cycle")),
		Refresh: key.NewBinding(key.WithKeys("R", "ctrl+r"), key.WithHelp("R", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k dashboardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Tab, k.Dismiss, k.Toggle, k.Run, k.Quit}
}

func (k dashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Refresh}}
}

// --- Model ---

type dashboardModel struct {
	load   func() dashboardData
	handle queue.CommandHandler
	now    func() time.Time

	data   dashboardData
	tab    dashboardTab
	cursor int
	width  int
	height int
	note   string

	keys dashboardKeys
	help help.Model
}

func newDashboardModel(load func() dashboardData, handle queue.CommandHandler, now func() time.Time) dashboardModel {
	return dashboardModel{
		load:   load,
		handle: handle,
		now:    now,
		width:  80,
		height: 24,
		keys:   newDashboardKeys(),
		help:   help.New(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), scheduleRefresh())
}

func (m dashboardModel) fetch() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		return dataMsg(load())
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m dashboardModel) send(c queue.Command, note string) tea.Cmd {
	handle := m.handle
	return func() tea.Msg {
		if err := handle(context.Background(), c); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{note: note}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.fetch(), scheduleRefresh())

	case dataMsg:
		m.data = dashboardData(msg)
		m.cursor = min(m.cursor, max(m.rows()-1, 0))
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.note = "error: " + msg.err.Error()
		} else {
			m.note = msg.note
		}
		return m, m.fetch()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Down):
			if m.cursor < m.rows()-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Tab):
			switch msg.String() {
			case "1":
				m.tab = tabSuggestions
			case "2":
				m.tab = tabPlans
			case "3":
				m.tab = tabLog
			default:
				m.tab = (m.tab + 1) % dashboardTab(len(tabNames))
			}
			m.cursor = 0
		case key.Matches(msg, m.keys.Dismiss):
			if m.tab == tabSuggestions && m.cursor < len(m.data.suggestions) {
				s := m.data.suggestions[m.cursor]
				return m, m.send(queue.Command{Kind: queue.CommandDismissSuggestion, Target: s.ID}, "dismissed "+s.Title)
			}
		case key.Matches(msg, m.keys.Toggle):
			if m.tab == tabPlans && m.cursor < len(m.data.plans) {
				p := m.data.plans[m.cursor]
				return m, m.send(queue.Command{Kind: queue.CommandTogglePlan, Target: p.ID}, "toggled "+p.ID)
			}
		case key.Matches(msg, m.keys.Run):
			return m, m.send(queue.Command{Kind: queue.CommandRunCycle}, "cycle requested")
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		}
	}
	return m, nil
}

func (m dashboardModel) rows() int {
	switch m.tab {
	case tabPlans:
		return len(m.data.plans)
	case tabLog:
		return len(m.data.log)
	default:
		return len(m.data.suggestions)
	}
}

func (m dashboardModel) View() string {
	var b strings.Builder

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if dashboardTab(i) == m.tab {
			tabs[i] = tabStyle.Render("[" + name + "]")
		} else {
			tabs[i] = dimStyle.Render(name)
		}
	}
	b.WriteString(titleStyle.Render("autopilot") + "  " + strings.Join(tabs, " ") + "\n")
	b.WriteString(m.statusLine() + "\n")
	b.WriteString(strings.Repeat("─", min(m.width, 80)) + "\n")

	contentHeight := max(m.height-6, 1)
	switch m.tab {
	case tabSuggestions:
		m.renderSuggestionRows(&b, contentHeight)
	case tabPlans:
		m.renderPlanRows(&b, contentHeight)
	case tabLog:
		m.renderLogRows(&b, contentHeight)
	}

	if m.data.err != nil {
		b.WriteString("\n" + warnStyle.Render("⚠ "+m.data.err.Error()))
	} else if m.note != "" {
		b.WriteString("\n" + dimStyle.Render(m.note))
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m dashboardModel) statusLine() string {
	st := m.data.status
	state := "idle"
	if st.IsRunning {
		state = "running"
	}
	last := "never"
	if st.LastRunAt != nil {
		last = fmt.Sprintf("%s (%s ago)", st.LastRunAt.Format(timeLayout), m.now().Sub(*st.LastRunAt).Round(time.Second))
	}
	return dimStyle.Render(fmt.Sprintf("engine %s · last cycle %s · %d pending", state, last, len(m.data.suggestions)))
}

// window returns the slice bounds that keep the cursor visible.
func (m dashboardModel) window(total, maxLines int) (int, int) {
	start := 0
	if m.cursor >= maxLines {
		start = m.cursor - maxLines + 1
	}
	return start, min(total, start+maxLines)
}

func (m dashboardModel) writeRow(b *strings.Builder, i int, line string) {
	if i == m.cursor {
		b.WriteString(selectedStyle.Render(line) + "\n")
	} else {
		b.WriteString(line + "\n")
	}
}

func (m dashboardModel) renderSuggestionRows(b *strings.Builder, maxLines int) {
	if len(m.data.suggestions) == 0 {
		b.WriteString(dimStyle.Render("  No pending suggestions") + "\n")
		return
	}
	start, end := m.window(len(m.data.suggestions), maxLines)
	for i := start; i < end; i++ {
		s := m.data.suggestions[i]
		line := fmt.Sprintf("  %s %s  %s", priorityLabel(s.Priority), s.Title, dimStyle.Render(s.Message))
		m.writeRow(b, i, line)
	}
}

func (m dashboardModel) renderPlanRows(b *strings.Builder, maxLines int) {
	start, end := m.window(len(m.data.plans), maxLines)
	for i := start; i < end; i++ {
		p := m.data.plans[i]
		state := enabledStyle.Render("●")
		if !p.Enabled {
			state = disabledStyle.Render("○")
		}
		line := fmt.Sprintf("  %s %-14s %-32s %s", state, p.ID, p.Name, dimStyle.Render(fmt.Sprintf("%d×", p.TriggerCount)))
		m.writeRow(b, i, line)
	}
}

func (m dashboardModel) renderLogRows(b *strings.Builder, maxLines int) {
	if len(m.data.log) == 0 {
		b.WriteString(dimStyle.Render("  Activity log is empty") + "\n")
		return
	}
	start, end := m.window(len(m.data.log), maxLines)
	for i := start; i < end; i++ {
		e := m.data.log[i]
		style, ok := logStyles[e.Type]
		if !ok {
			style = dimStyle
		}
		line := fmt.Sprintf("  %s %s %s", dimStyle.Render(e.Timestamp.Format(timeLayout)), style.Render(fmt.Sprintf("%-7s", e.Type)), e.Message)
		m.writeRow(b, i, line)
	}
}

func init() {
	interactiveCmd.Flags().Bool("direct", false, "Own the stored snapshot and run cycles in this process")
	interactiveCmd.Flags().String("fixture", "", "With --direct, read member context from a YAML fixture")
	rootCmd.AddCommand(interactiveCmd)
}
