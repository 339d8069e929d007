package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sentinel/internal/api"
	"github.com/five82/sentinel/internal/state"
)

// pageInfo is the type-independent part of a table page.
type pageInfo struct {
	page       int
	totalCount int
	pageSize   int
	totalPages int
	rows       int
	loading    bool
	filter     state.PageFilter
	err        error
}

func infoOf[R any](p state.Page[R]) pageInfo {
	return pageInfo{
		page:       p.Page,
		totalCount: p.TotalCount,
		pageSize:   p.PageSize,
		totalPages: p.TotalPages(),
		rows:       len(p.Items),
		loading:    p.IsLoading,
		filter:     p.Filter,
		err:        p.LastError,
	}
}

func (m Model) tableInfo(v View) pageInfo {
	if v == ViewFlows {
		return infoOf(m.networkSnap.Table)
	}
	return infoOf(m.emailSnap.Table)
}

func (m *Model) table(v View) *tableState {
	if v == ViewFlows {
		return &m.flowTable
	}
	return &m.emailTable
}

// handleTableKey processes keyboard input for the email and flow tables.
func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.currentView
	info := m.tableInfo(view)
	t := m.table(view)

	switch {
	case key.Matches(msg, m.keys.Up):
		t.move(-1, info.rows)
	case key.Matches(msg, m.keys.Down):
		t.move(1, info.rows)
	case key.Matches(msg, m.keys.Top):
		t.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		t.selected = maxInt(info.rows-1, 0)
	case key.Matches(msg, m.keys.PrevPage):
		return m.stepPage(-1)
	case key.Matches(msg, m.keys.NextPage):
		return m.stepPage(1)
	case key.Matches(msg, m.keys.GoToPage):
		m.gotoActive = true
		m.gotoInput.SetValue("")
		return m, m.gotoInput.Focus()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchPage(view, maxInt(info.page, 1))
	case key.Matches(msg, m.keys.Filter):
		if view == ViewFlows {
			return m.toggleMaliciousFilter()
		}
	}
	return m, nil
}

// handleGotoKey feeds the go-to-page input until it is confirmed or dismissed.
func (m Model) handleGotoKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.gotoActive = false
		m.gotoInput.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		m.gotoActive = false
		m.gotoInput.Blur()
		info := m.tableInfo(m.currentView)
		target, err := parsePageInput(m.gotoInput.Value(), info.totalCount, info.pageSize)
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.status = ""
		m.table(m.currentView).selected = 0
		return m, m.fetchPage(m.currentView, target)
	}

	var cmd tea.Cmd
	m.gotoInput, cmd = m.gotoInput.Update(msg)
	return m, cmd
}

// stepPage moves one page back or forward, refusing to leave the table.
func (m Model) stepPage(delta int) (tea.Model, tea.Cmd) {
	info := m.tableInfo(m.currentView)
	target, ok := pageStep(info.page, delta, info.totalCount, info.pageSize)
	if !ok {
		m.setStatus(ternary(delta < 0, "already on the first page", "already on the last page"), false)
		return m, nil
	}
	m.status = ""
	m.table(m.currentView).selected = 0
	return m, m.fetchPage(m.currentView, target)
}

// pageStep returns current+delta and whether that page exists.
func pageStep(current, delta, total, size int) (int, bool) {
	target := current + delta
	return target, state.CanGoTo(target, total, size)
}

// parsePageInput validates a typed page number against the table bounds.
func parsePageInput(input string, total, size int) (int, error) {
	input = strings.TrimSpace(input)
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("not a page number: %q", input)
	}
	if !state.CanGoTo(n, total, size) {
		return 0, fmt.Errorf("page %d out of range (1-%d)", n, state.TotalPages(total, size))
	}
	return n, nil
}

func (m Model) toggleMaliciousFilter() (tea.Model, tea.Cmd) {
	if m.network == nil {
		return m, nil
	}
	filter := state.FilterMalicious
	if m.networkSnap.Table.Filter == state.FilterMalicious {
		filter = state.FilterAll
	}
	m.flowTable.selected = 0
	ctx, store := m.ctx, m.network
	return m, func() tea.Msg {
		return pageResultMsg{view: ViewFlows, page: 1, err: store.SetFilter(ctx, filter)}
	}
}

// fetchPage loads page of the table behind v. Results arrive through the
// store subscription; the returned message only carries the error.
func (m Model) fetchPage(v View, page int) tea.Cmd {
	ctx := m.ctx
	size := m.tableInfo(v).pageSize
	if size <= 0 {
		size = m.pageSize
	}
	switch v {
	case ViewEmails:
		if store := m.email; store != nil {
			return func() tea.Msg {
				return pageResultMsg{view: v, page: page, err: store.FetchPage(ctx, page, size)}
			}
		}
	case ViewFlows:
		if store := m.network; store != nil {
			return func() tea.Msg {
				return pageResultMsg{view: v, page: page, err: store.FetchPage(ctx, page, size)}
			}
		}
	}
	return nil
}

// refreshFirstPage reloads the first page after a stats push so new rows
// show up. Other pages stay put while the user is reading them.
func (m Model) refreshFirstPage(v View) tea.Cmd {
	info := m.tableInfo(v)
	fetched := m.emailSnap.Table.FetchedAt
	if v == ViewFlows {
		fetched = m.networkSnap.Table.FetchedAt
	}
	if info.page != 1 || info.loading || fetched.IsZero() {
		return nil
	}
	return m.fetchPage(v, 1)
}

// renderEmails renders the email table and the selected email.
func (m Model) renderEmails() string {
	page := m.emailSnap.Table
	width, height := m.width, m.bodyHeight()
	detailH := minInt(detailHeight, height/2)
	tableH := height - detailH

	styles := m.panelStyles(true)
	header := padRight("Received", colTime) + " " +
		padRight("Verdict", colVerdict) + " " +
		padRight("Risk", colRisk) + " " +
		padRight("Sender", colSender) + " " +
		"Subject"

	rows := make([]tableRow, len(page.Items))
	for i, e := range page.Items {
		verdict, verdictStyle := "legit", styles.SuccessText
		if e.IsPhishing() {
			verdict, verdictStyle = "PHISHING", styles.DangerText
		}
		rows[i] = tableRow{
			cells: []tableCell{
				{padRight(formatClock(e.ParsedDate()), colTime), styles.MutedText},
				{padRight(verdict, colVerdict), verdictStyle},
				{padRight(fmt.Sprintf("%.2f", e.RiskScore), colRisk), styles.Text},
				{padRight(e.Sender, colSender), styles.Text},
				{singleLine(e.Subject), styles.Text},
			},
		}
	}

	content := m.renderTable(header, rows, &m.emailTable, infoOf(page), width-2, tableH-2)
	title := tableTitle("Emails", infoOf(page))

	var detail string
	if sel := m.emailTable.selected; sel < len(page.Items) {
		detail = m.renderEmailDetail(page.Items[sel])
	} else {
		detail = m.panelStyles(false).MutedText.Render("No email selected")
	}
	return m.renderTitledBox(title, content, width, tableH, true) + "\n" +
		m.renderTitledBox("Selected email", detail, width, detailH, false)
}

// renderFlows renders the flow table and the selected flow.
func (m Model) renderFlows() string {
	page := m.networkSnap.Table
	width, height := m.width, m.bodyHeight()
	detailH := minInt(detailHeight, height/2)
	tableH := height - detailH

	styles := m.panelStyles(true)
	header := padRight("Time", colTime) + " " +
		padRight("Verdict", colVerdict) + " " +
		padRight("Risk", colRisk) + " " +
		padRight("Proto", colProto) + " " +
		padRight("Source", colAddr) + " " +
		padRight("Destination", colAddr) + " " +
		"Bytes/s"

	rows := make([]tableRow, len(page.Items))
	for i, p := range page.Items {
		verdict, verdictStyle := "benign", styles.SuccessText
		if p.IsMalicious() {
			verdict, verdictStyle = "MALICIOUS", styles.DangerText
		}
		rows[i] = tableRow{
			cells: []tableCell{
				{padRight(formatClock(p.ParsedTimestamp()), colTime), styles.MutedText},
				{padRight(verdict, colVerdict), verdictStyle},
				{padRight(fmt.Sprintf("%.2f", p.RiskScore), colRisk), styles.Text},
				{padRight(orDash(p.Protocol.String()), colProto), styles.Text},
				{padRight(endpoint(p.SrcIP, p.SrcPort), colAddr), styles.Text},
				{padRight(endpoint(p.DstIP, p.DstPort), colAddr), styles.Text},
				{formatBytesRate(p.BytesPerSecond), styles.MutedText},
			},
		}
	}

	content := m.renderTable(header, rows, &m.flowTable, infoOf(page), width-2, tableH-2)
	title := tableTitle("Network flows", infoOf(page))

	var detail string
	if sel := m.flowTable.selected; sel < len(page.Items) {
		detail = m.renderFlowDetail(page.Items[sel])
	} else {
		detail = m.panelStyles(false).MutedText.Render("No flow selected")
	}
	return m.renderTitledBox(title, content, width, tableH, true) + "\n" +
		m.renderTitledBox("Selected flow", detail, width, detailH, false)
}

type tableCell struct {
	text  string
	style lipgloss.Style
}

type tableRow struct {
	cells []tableCell
}

func (r tableRow) plain() string {
	parts := make([]string, len(r.cells))
	for i, c := range r.cells {
		parts[i] = c.text
	}
	return strings.Join(parts, " ")
}

// renderTable lays out the header, a window of rows around the cursor, and a
// footer with the pager, load state and go-to input.
func (m Model) renderTable(header string, rows []tableRow, t *tableState, info pageInfo, width, height int) string {
	styles := m.panelStyles(true)
	bg := NewBgStyle(m.theme.FocusBg)

	lines := []string{styles.MutedText.Bold(true).Render(truncate(header, width))}
	visible := maxInt(height-3, 1)

	switch {
	case len(rows) == 0 && info.loading:
		lines = append(lines, m.spinner.View()+bg.Space()+styles.MutedText.Render("Loading..."))
	case len(rows) == 0 && info.err != nil:
		lines = append(lines, styles.DangerText.Render(truncate("Load failed: "+info.err.Error(), width)))
	case len(rows) == 0:
		lines = append(lines, styles.MutedText.Render("No rows"))
	default:
		start := 0
		if t.selected >= visible {
			start = t.selected - visible + 1
		}
		end := minInt(start+visible, len(rows))
		for i := start; i < end; i++ {
			if i == t.selected {
				lines = append(lines, m.theme.Styles().Selected.Width(width).Render(truncate(rows[i].plain(), width)))
				continue
			}
			var b strings.Builder
			for j, c := range rows[i].cells {
				if j > 0 {
					b.WriteString(bg.Space())
				}
				b.WriteString(bg.Render(c.text, c.style))
			}
			lines = append(lines, lipgloss.NewStyle().MaxWidth(width).Render(b.String()))
		}
	}

	for len(lines) < height-1 {
		lines = append(lines, "")
	}
	lines = append(lines, m.renderTableFooter(t, info, width))
	return strings.Join(lines, "\n")
}

func (m Model) renderTableFooter(t *tableState, info pageInfo, width int) string {
	styles := m.panelStyles(true)
	bg := NewBgStyle(m.theme.FocusBg)

	if m.gotoActive {
		return m.gotoInput.View() + bg.Spaces(2) +
			bg.Render(fmt.Sprintf("(1-%d, enter to load, esc to cancel)", info.totalPages), styles.FaintText)
	}

	parts := []string{
		bg.Render("Page", styles.MutedText) + bg.Space() + bg.Render(t.paginator.View(), styles.Text),
		bg.Render(formatCount(info.totalCount)+" rows", styles.MutedText),
	}
	if info.filter == state.FilterMalicious {
		parts = append(parts, bg.Render("malicious only", styles.WarningText))
	}
	if info.loading {
		parts = append(parts, m.spinner.View()+bg.Space()+bg.Render("loading", styles.InfoText))
	}
	if info.err != nil && info.rows > 0 {
		parts = append(parts, bg.Render(truncate("stale: "+info.err.Error(), width/2), styles.DangerText))
	}
	return bg.Join(parts, "  ")
}

func tableTitle(name string, info pageInfo) string {
	title := fmt.Sprintf("%s · page %d of %d", name, maxInt(info.page, 1), info.totalPages)
	if info.filter == state.FilterMalicious {
		title += " · malicious"
	}
	return title
}

func (m Model) renderEmailDetail(e api.EmailRow) string {
	styles := m.panelStyles(false)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	width := m.width - 14

	verdict := bg.Render("legit", styles.SuccessText)
	if e.IsPhishing() {
		verdict = bg.Render("PHISHING", styles.DangerText)
	}
	headers := bg.Render("valid", styles.SuccessText)
	if !e.HeaderValid {
		headers = bg.Render("invalid", styles.WarningText)
	}
	triggers := strings.Join(e.TopTriggerWords(8), ", ")

	return strings.Join([]string{
		m.field(bg, styles, "Subject", truncate(singleLine(e.Subject), width)),
		m.field(bg, styles, "From", truncate(e.Sender, width)),
		m.field(bg, styles, "Message-ID", truncateMiddle(e.MessageID, width)),
		m.label(bg, styles, "Verdict") + verdict + bg.Spaces(2) +
			bg.Render(fmt.Sprintf("confidence %s%%", formatPercent(e.WinnerProbability)), styles.MutedText) + bg.Spaces(2) +
			bg.Render(fmt.Sprintf("risk %.2f", e.RiskScore), styles.Text) + bg.Spaces(2) +
			bg.Render("headers", styles.MutedText) + bg.Space() + headers,
		m.field(bg, styles, "Triggers", truncate(orDash(triggers), width)),
		m.field(bg, styles, "Body", truncate(singleLine(e.Body), width)),
	}, "\n")
}

func (m Model) renderFlowDetail(p api.PacketRow) string {
	styles := m.panelStyles(false)
	bg := NewBgStyle(m.theme.SurfaceAlt)

	verdict := bg.Render("benign", styles.SuccessText)
	if p.IsMalicious() {
		verdict = bg.Render("MALICIOUS", styles.DangerText)
	}

	return strings.Join([]string{
		m.field(bg, styles, "Flow", orDash(p.FlowID)),
		m.field(bg, styles, "Source", endpoint(p.SrcIP, p.SrcPort)),
		m.field(bg, styles, "Destination", endpoint(p.DstIP, p.DstPort)),
		m.field(bg, styles, "Protocol", orDash(p.Protocol.String())+"   duration "+fmt.Sprintf("%.0f µs", p.FlowDuration)),
		m.field(bg, styles, "Packets", fmt.Sprintf("%s fwd / %s bwd   %s   %.1f pkt/s",
			formatCount(p.TotalFwdPackets), formatCount(p.TotalBwdPackets), formatBytesRate(p.BytesPerSecond), p.PacketsPerSecond)),
		m.label(bg, styles, "Verdict") + verdict + bg.Spaces(2) + bg.Render(fmt.Sprintf("risk %.2f", p.RiskScore), styles.Text),
		m.field(bg, styles, "Seen", formatClock(p.ParsedTimestamp())),
	}, "\n")
}

// endpoint joins an address and port, omitting a zero port.
func endpoint(ip string, port int) string {
	if ip == "" {
		return "-"
	}
	if port <= 0 {
		return ip
	}
	if strings.Contains(ip, ":") {
		return "[" + ip + "]:" + strconv.Itoa(port)
	}
	return ip + ":" + strconv.Itoa(port)
}

// formatPercent renders a 0-1 probability as a percentage figure.
func formatPercent(p float64) string {
	if p <= 1 {
		p *= 100
	}
	return strconv.FormatFloat(p, 'f', 1, 64)
}
