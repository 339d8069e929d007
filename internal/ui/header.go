package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/sentinel/internal/live"
	"github.com/five82/sentinel/internal/state"
)

// renderHeader renders the status bar: connection badge, counters, and the
// time of the last update.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < 100

	parts := []string{
		bg.Render("sentinel", styles.Logo),
		styles.StatusStyle(m.connState.String()).Render(connLabel(m.connState)),
	}

	if m.emailSnap.HasStats() {
		phishingStyle := styles.MutedText
		if m.emailSnap.Stats.PhishingEmails > 0 {
			phishingStyle = styles.DangerText
		}
		parts = append(parts,
			bg.Render(ternary(compact, "E:", "Emails:"), styles.MutedText)+bg.Space()+
				bg.Render(formatCount(m.emailSnap.Stats.TotalEmails), styles.Text)+bg.Space()+
				bg.Render("/", styles.FaintText)+bg.Space()+
				bg.Render(formatCount(m.emailSnap.Stats.PhishingEmails), phishingStyle)+
				bg.Render(ternary(compact, "", " phishing"), styles.MutedText))
	}
	if m.networkSnap.HasStats() {
		maliciousStyle := styles.MutedText
		if m.networkSnap.Stats.MaliciousFlows > 0 {
			maliciousStyle = styles.DangerText
		}
		parts = append(parts,
			bg.Render(ternary(compact, "N:", "Flows:"), styles.MutedText)+bg.Space()+
				bg.Render(formatCount(m.networkSnap.Stats.TotalFlows), styles.Text)+bg.Space()+
				bg.Render("/", styles.FaintText)+bg.Space()+
				bg.Render(formatCount(m.networkSnap.Stats.MaliciousFlows), maliciousStyle)+
				bg.Render(ternary(compact, "", " malicious"), styles.MutedText))
	}

	if ts := formatTimestamp(m.lastUpdated, time.Now()); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if m.connState != live.Open && m.conn != nil && !compact {
		parts = append(parts, bg.Render(truncateMiddle(m.conn.URL(), 40), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func connLabel(s live.ConnectionState) string {
	switch s {
	case live.Open:
		return "● LIVE"
	case live.Connecting:
		return "◌ CONNECTING"
	case live.Reconnecting:
		return "↻ RECONNECTING"
	case live.Closed:
		return "● OFFLINE"
	default:
		return "○ IDLE"
	}
}

// formatTimestamp formats the last update time with a relative indicator.
func formatTimestamp(last, now time.Time) string {
	if last.IsZero() {
		return ""
	}
	since := now.Sub(last)
	ts := last.Format("15:04:05")
	switch {
	case since < time.Minute:
		ts += " (now)"
	case since < time.Hour:
		ts += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	case since < 24*time.Hour:
		ts += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return ts
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewEmails, ViewFlows:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"[/]", "Page"},
			{helpKeys(m.keys.GoToPage), "Go to"},
			{helpKeys(m.keys.Refresh), "Reload"},
		}
		if m.currentView == ViewFlows {
			commands = append(commands, cmd{helpKeys(m.keys.Filter), m.filterLabel()})
		}
	case ViewActivity:
		commands = []cmd{
			{"Space", ternary(m.activityFollow, "Pause", "Follow")},
			{"j/k", "Scroll"},
		}
	}
	commands = append(commands,
		cmd{"o/m/n/a", "Views"},
		cmd{"?", "More"},
	)

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	if m.status != "" {
		statusStyle := styles.InfoText
		if m.statusErr {
			statusStyle = styles.DangerText
		}
		segments = append(segments, bg.Render(truncate(m.status, 60), statusStyle))
	}

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

func (m Model) filterLabel() string {
	if m.networkSnap.Table.Filter == state.FilterMalicious {
		return "All flows"
	}
	return "Malicious only"
}
