package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sentinel/internal/logtail"
)

// loadActivity reads the tail of the log file off the update loop.
func (m Model) loadActivity() tea.Cmd {
	path := m.logPath
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, activityLines)
		return activityMsg{entries: entries, err: err}
	}
}

func (m *Model) handleActivity(msg activityMsg) {
	if msg.err != nil {
		m.setStatus("activity: "+msg.err.Error(), true)
		return
	}
	m.activityEntries = msg.entries
	m.refreshActivity()
}

// refreshActivity re-renders the entries into the viewport.
func (m *Model) refreshActivity() {
	if !m.ready {
		return
	}
	styles := m.panelStyles(true)
	clip := lipgloss.NewStyle().MaxWidth(maxInt(m.activity.Width, 1))
	lines := make([]string, len(m.activityEntries))
	for i, e := range m.activityEntries {
		lines[i] = clip.Render(m.formatEntry(e, styles))
	}
	m.activity.SetContent(strings.Join(lines, "\n"))
	if m.activityFollow {
		m.activity.GotoBottom()
	}
}

func (m *Model) resizeActivity() {
	m.activity.Width = maxInt(m.width-2, 1)
	m.activity.Height = maxInt(m.bodyHeight()-2, 1)
	m.refreshActivity()
}

// formatEntry renders one log record as "time LEVEL message key=value...".
func (m Model) formatEntry(e logtail.Entry, styles Styles) string {
	if e.Msg == "" && e.Level == "" {
		return styles.MutedText.Render(e.Raw)
	}
	bg := NewBgStyle(m.theme.FocusBg)
	level := strings.ToUpper(e.Level)
	levelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(styles.StatusColor(strings.ToLower(level)))).Bold(true)

	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(bg.Render(e.Time.Local().Format("15:04:05"), styles.FaintText))
		b.WriteString(bg.Space())
	}
	b.WriteString(bg.Render(padRight(level, 5), levelStyle))
	b.WriteString(bg.Space())
	b.WriteString(bg.Render(e.Msg, styles.Text))
	for _, a := range e.Attrs {
		b.WriteString(bg.Space())
		b.WriteString(bg.Render(a.Key+"=", styles.MutedText))
		b.WriteString(bg.Render(a.Value, styles.AccentText))
	}
	return b.String()
}

// handleActivityKey processes keyboard input for the activity view.
func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.activityFollow = !m.activityFollow
		if m.activityFollow {
			m.activity.GotoBottom()
		}
	case key.Matches(msg, m.keys.Up):
		m.activityFollow = false
		m.activity.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.activity.ScrollDown(1)
	case key.Matches(msg, m.keys.PrevPage):
		m.activityFollow = false
		m.activity.PageUp()
	case key.Matches(msg, m.keys.NextPage):
		m.activity.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.activityFollow = false
		m.activity.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.activity.GotoBottom()
	}
	return m, nil
}

func (m Model) renderActivity() string {
	title := "Activity"
	if m.logPath != "" {
		title += " · " + truncateMiddle(m.logPath, 50)
	}
	if !m.activityFollow {
		title += " · paused"
	}

	var content string
	switch {
	case m.logPath == "":
		content = m.panelStyles(true).MutedText.Render("Logging to stderr; no log file to show")
	case len(m.activityEntries) == 0:
		content = m.panelStyles(true).MutedText.Render("No log entries yet")
	default:
		content = m.activity.View()
	}
	return m.renderTitledBox(title, content, m.width, m.bodyHeight(), true)
}
