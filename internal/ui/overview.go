package ui

import (
	"strings"

	"github.com/five82/sentinel/internal/api"
)

// panelStyles returns the theme styles with the background of a panel.
func (m Model) panelStyles(focused bool) Styles {
	bg := m.theme.SurfaceAlt
	if focused {
		bg = m.theme.FocusBg
	}
	return m.theme.Styles().WithBackground(bg)
}

const labelWidth = 12

func (m Model) label(bg BgStyle, styles Styles, name string) string {
	return bg.Render(padRight(name, labelWidth), styles.MutedText)
}

func (m Model) field(bg BgStyle, styles Styles, name, value string) string {
	return m.label(bg, styles, name) + bg.Render(value, styles.Text)
}

// renderOverview renders the stat cards and the most recent detections.
func (m Model) renderOverview() string {
	width, height := m.width, m.bodyHeight()
	leftW := width / 2
	rightW := width - leftW
	cardH := minInt(cardHeight, height/2)
	detailH := height - cardH

	cards := joinColumns(
		m.renderTitledBox("Email", m.renderEmailCard(), leftW, cardH, false),
		m.renderTitledBox("Network", m.renderNetworkCard(), rightW, cardH, false),
	)
	if detailH < 3 {
		return cards
	}
	details := joinColumns(
		m.renderTitledBox("Last phishing email", m.renderLastPhishing(leftW-2), leftW, detailH, false),
		m.renderTitledBox("Last malicious flow", m.renderLastMalicious(rightW-2), rightW, detailH, false),
	)
	return cards + "\n" + details
}

func (m Model) renderEmailCard() string {
	styles := m.panelStyles(false)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	if !m.emailSnap.HasStats() {
		return m.spinner.View() + bg.Space() + bg.Render("Waiting for email stats...", styles.MutedText)
	}
	s := m.emailSnap.Stats
	phishingStyle := styles.Text
	if s.PhishingEmails > 0 {
		phishingStyle = styles.DangerText
	}
	return strings.Join([]string{
		m.field(bg, styles, "Total", formatCount(s.TotalEmails)),
		m.label(bg, styles, "Phishing") + bg.Render(formatCount(s.PhishingEmails), phishingStyle) +
			bg.Spaces(2) + bg.Render("("+formatRate(s.PhishingEmails, s.TotalEmails)+")", styles.MutedText),
		m.field(bg, styles, "Last seen", formatAgo(s.LastPhishingTime)),
		m.label(bg, styles, "Updated") + bg.Render(formatClock(m.emailSnap.UpdatedAt), styles.FaintText),
	}, "\n")
}

func (m Model) renderNetworkCard() string {
	styles := m.panelStyles(false)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	if !m.networkSnap.HasStats() {
		return m.spinner.View() + bg.Space() + bg.Render("Waiting for network stats...", styles.MutedText)
	}
	s := m.networkSnap.Stats
	maliciousStyle := styles.Text
	if s.MaliciousFlows > 0 {
		maliciousStyle = styles.DangerText
	}
	return strings.Join([]string{
		m.field(bg, styles, "Flows", formatCount(s.TotalFlows)),
		m.label(bg, styles, "Malicious") + bg.Render(formatCount(s.MaliciousFlows), maliciousStyle) +
			bg.Spaces(2) + bg.Render("("+formatRate(s.MaliciousFlows, s.TotalFlows)+")", styles.MutedText),
		m.field(bg, styles, "Last seen", formatAgo(s.LastMaliciousTime)),
		m.label(bg, styles, "Updated") + bg.Render(formatClock(m.networkSnap.UpdatedAt), styles.FaintText),
	}, "\n")
}

func (m Model) renderLastPhishing(width int) string {
	styles := m.panelStyles(false)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	if !m.emailSnap.HasStats() {
		return ""
	}
	e := m.emailSnap.Stats.LastPhishingEmail
	if e == (api.PhishingDetail{}) {
		return bg.Render("No phishing email reported", styles.MutedText)
	}
	valueW := maxInt(width-labelWidth, 8)
	lines := []string{
		m.field(bg, styles, "Subject", truncate(singleLine(e.Subject), valueW)),
		m.field(bg, styles, "From", truncate(orDash(e.Sender), valueW)),
		m.field(bg, styles, "To", truncate(orDash(e.Recipient), valueW)),
		m.field(bg, styles, "Return-Path", truncate(orDash(e.ReturnPath), valueW)),
		m.label(bg, styles, "Auth") + authBadge(bg, styles, "DKIM", e.DKIM) + bg.Spaces(2) + authBadge(bg, styles, "SPF", e.SPF),
		m.field(bg, styles, "Received", formatClock(api.ParseTime(e.Timestamp))),
		m.field(bg, styles, "Message-ID", truncateMiddle(orDash(e.MessageID), valueW)),
		"",
	}
	for _, line := range wrap(singleLine(e.Body), width, 6) {
		lines = append(lines, bg.Render(line, styles.FaintText))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLastMalicious(width int) string {
	styles := m.panelStyles(false)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	if !m.networkSnap.HasStats() {
		return ""
	}
	f := m.networkSnap.Stats.LastMaliciousFlow
	if f == (api.FlowDetail{}) {
		return bg.Render("No malicious flow reported", styles.MutedText)
	}
	valueW := maxInt(width-labelWidth, 8)
	riskStyle := styles.WarningText
	if f.RiskScore >= 0.8 {
		riskStyle = styles.DangerText
	}
	return strings.Join([]string{
		m.field(bg, styles, "Flow", truncateMiddle(orDash(f.FlowID), valueW)),
		m.field(bg, styles, "Source", orDash(f.SrcIP)),
		m.field(bg, styles, "Destination", orDash(f.DstIP)),
		m.field(bg, styles, "Protocol", orDash(f.Protocol.String())),
		m.label(bg, styles, "Risk") + bg.Render(riskBar(f.RiskScore, 10), riskStyle) + bg.Space() +
			bg.Render(formatPercent(f.RiskScore)+"%", riskStyle),
		m.field(bg, styles, "Seen", formatClock(api.ParseTime(f.Timestamp))),
	}, "\n")
}

func authBadge(bg BgStyle, styles Styles, name, result string) string {
	style := styles.WarningText
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "pass":
		style = styles.SuccessText
	case "fail", "softfail", "permerror":
		style = styles.DangerText
	}
	return bg.Render(name, styles.MutedText) + bg.Space() + bg.Render(orDash(result), style)
}

// riskBar draws a 0-1 score as a bar of width cells.
func riskBar(score float64, width int) string {
	if score > 1 {
		score /= 100
	}
	filled := int(score*float64(width) + 0.5)
	filled = maxInt(0, minInt(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// wrap breaks text into at most maxLines lines of width runes.
func wrap(text string, width, maxLines int) []string {
	if width <= 0 || text == "" {
		return nil
	}
	var lines []string
	var line []rune
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		if len(line) > 0 && len(line)+1+len(w) > width {
			lines = append(lines, string(line))
			line = line[:0]
			if len(lines) == maxLines {
				break
			}
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, w...)
	}
	if len(line) > 0 && len(lines) < maxLines {
		lines = append(lines, string(line))
	}
	for i, l := range lines {
		lines[i] = truncate(l, width)
	}
	return lines
}

// joinColumns places two rendered boxes side by side.
func joinColumns(left, right string) string {
	l := strings.Split(left, "\n")
	r := strings.Split(right, "\n")
	n := maxInt(len(l), len(r))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		var a, b string
		if i < len(l) {
			a = l[i]
		}
		if i < len(r) {
			b = r[i]
		}
		out[i] = a + b
	}
	return strings.Join(out, "\n")
}
