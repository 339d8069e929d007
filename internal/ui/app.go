package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/sentinel/internal/live"
	"github.com/five82/sentinel/internal/logtail"
	"github.com/five82/sentinel/internal/prefs"
	"github.com/five82/sentinel/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewOverview View = iota
	ViewEmails
	ViewFlows
	ViewActivity
)

var viewNames = []string{"overview", "emails", "flows", "activity"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return viewNames[0]
	}
	return viewNames[v]
}

// ParseView maps a saved view name back to a View, defaulting to overview.
func ParseView(name string) View {
	for i, n := range viewNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return View(i)
		}
	}
	return ViewOverview
}

func (v View) next() View { return View((int(v) + 1) % len(viewNames)) }

func (v View) prev() View { return View((int(v) + len(viewNames) - 1) % len(viewNames)) }

// ConnectionSource is the live connection the header reports on.
type ConnectionSource interface {
	State() live.ConnectionState
	SubscribeState(func(live.ConnectionState)) func()
	URL() string
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Email     *state.EmailStore
	Network   *state.NetworkStore
	Conn      ConnectionSource
	LogPath   string
	PageSize  int
	ThemeName string
	View      string
	PrefsPath string
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	email     *state.EmailStore
	network   *state.NetworkStore
	conn      ConnectionSource
	logPath   string
	pageSize  int
	prefsPath string
	logger    *slog.Logger
	feed      *feed

	// UI state
	theme       Theme
	keys        keyMap
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	status      string
	statusErr   bool

	// Data state
	emailSnap   state.EmailSnapshot
	networkSnap state.NetworkSnapshot
	connState   live.ConnectionState
	lastUpdated time.Time

	spinner spinner.Model

	// Table state
	emailTable tableState
	flowTable  tableState
	gotoInput  textinput.Model
	gotoActive bool

	// Activity state
	activity        viewport.Model
	activityEntries []logtail.Entry
	activityFollow  bool
}

// tableState holds the cursor and pager for one paginated table.
type tableState struct {
	selected  int
	paginator paginator.Model
}

func newTableState() tableState {
	p := paginator.New()
	p.Type = paginator.Arabic
	return tableState{paginator: p}
}

// sync points the pager at the page the store currently holds and keeps the
// cursor inside the visible rows.
func (t *tableState) sync(page, pageSize, totalPages, rows int) {
	t.paginator.PerPage = maxInt(pageSize, 1)
	t.paginator.TotalPages = totalPages
	t.paginator.Page = maxInt(page-1, 0)
	if t.selected >= rows {
		t.selected = rows - 1
	}
	if t.selected < 0 {
		t.selected = 0
	}
}

func (t *tableState) move(delta, rows int) {
	if rows == 0 {
		t.selected = 0
		return
	}
	t.selected = maxInt(0, minInt(rows-1, t.selected+delta))
}

// feed turns store and connection callbacks into coalesced wake-ups. Listener
// callbacks never block; the model re-reads the current value when it wakes.
type feed struct {
	email       chan struct{}
	network     chan struct{}
	conn        chan struct{}
	unsubscribe []func()
}

func newFeed() *feed {
	return &feed{
		email:   make(chan struct{}, 1),
		network: make(chan struct{}, 1),
		conn:    make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (f *feed) close() {
	for _, fn := range f.unsubscribe {
		fn()
	}
	f.unsubscribe = nil
}

// New creates a new Bubble Tea model and subscribes it to the stores and the
// connection. Call Close when the program exits.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.Defaults().Theme
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	input := textinput.New()
	input.Prompt = "Go to page: "
	input.Placeholder = "1"
	input.CharLimit = 6
	input.Width = 8

	f := newFeed()
	m := Model{
		ctx:            ctx,
		email:          opts.Email,
		network:        opts.Network,
		conn:           opts.Conn,
		logPath:        opts.LogPath,
		pageSize:       opts.PageSize,
		prefsPath:      prefsPath,
		logger:         logger.With("component", "ui"),
		feed:           f,
		theme:          GetTheme(themeName),
		keys:           DefaultKeyMap(),
		currentView:    ParseView(opts.View),
		spinner:        sp,
		emailTable:     newTableState(),
		flowTable:      newTableState(),
		gotoInput:      input,
		activityFollow: true,
	}

	if m.email != nil {
		m.emailSnap = m.email.Snapshot()
		f.unsubscribe = append(f.unsubscribe, m.email.Subscribe(func(state.EmailSnapshot) { notify(f.email) }))
	}
	if m.network != nil {
		m.networkSnap = m.network.Snapshot()
		f.unsubscribe = append(f.unsubscribe, m.network.Subscribe(func(state.NetworkSnapshot) { notify(f.network) }))
	}
	if m.conn != nil {
		m.connState = m.conn.State()
		f.unsubscribe = append(f.unsubscribe, m.conn.SubscribeState(func(live.ConnectionState) { notify(f.conn) }))
	}
	if m.pageSize <= 0 {
		m.pageSize = m.emailSnap.Table.PageSize
	}
	m.syncTables()
	return m
}

// Close detaches the model from the stores and the connection.
func (m Model) Close() {
	if m.feed != nil {
		m.feed.close()
	}
}

// Run starts the TUI and blocks until the user quits or the context ends.
func Run(opts Options) error {
	m := New(opts)
	defer m.Close()

	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		programOpts = append(programOpts, tea.WithContext(opts.Context))
	}
	_, err := tea.NewProgram(m, programOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(),
		m.spinner.Tick,
		m.waitForEmail(),
		m.waitForNetwork(),
		m.waitForConn(),
	}
	cmds = append(cmds, m.enterView(m.currentView)...)
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.activity = viewport.New(maxInt(m.width-2, 1), maxInt(m.bodyHeight()-2, 1))
		}
		m.ready = true
		m.resizeActivity()
		return m, nil

	case tickMsg:
		// The tick keeps relative timestamps fresh and tails the log.
		cmds := []tea.Cmd{tickCmd()}
		if m.currentView == ViewActivity {
			cmds = append(cmds, m.loadActivity())
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case emailMsg:
		prev := m.emailSnap.Version
		m.emailSnap = state.EmailSnapshot(msg)
		m.lastUpdated = time.Now()
		m.syncTables()
		cmds := []tea.Cmd{m.waitForEmail()}
		if m.emailSnap.Version != prev && m.currentView == ViewEmails {
			cmds = append(cmds, m.refreshFirstPage(ViewEmails))
		}
		return m, tea.Batch(cmds...)

	case networkMsg:
		prev := m.networkSnap.Version
		m.networkSnap = state.NetworkSnapshot(msg)
		m.lastUpdated = time.Now()
		m.syncTables()
		cmds := []tea.Cmd{m.waitForNetwork()}
		if m.networkSnap.Version != prev && m.currentView == ViewFlows {
			cmds = append(cmds, m.refreshFirstPage(ViewFlows))
		}
		return m, tea.Batch(cmds...)

	case connMsg:
		m.connState = live.ConnectionState(msg)
		return m, m.waitForConn()

	case pageResultMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.setStatus(fmt.Sprintf("page %d: %v", msg.page, msg.err), true)
		}
		return m, nil

	case activityMsg:
		m.handleActivity(msg)
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.logger.Warn("save preferences failed", "error", msg.err)
			m.setStatus("prefs: "+msg.err.Error(), true)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.gotoActive {
		return m.handleGotoKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		return m, m.savePrefs()

	case key.Matches(msg, m.keys.Tab):
		return m.switchView(m.currentView.next())

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(m.currentView.prev())

	case key.Matches(msg, m.keys.ViewOverview), key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewOverview)

	case key.Matches(msg, m.keys.ViewEmails):
		return m.switchView(ViewEmails)

	case key.Matches(msg, m.keys.ViewFlows):
		return m.switchView(ViewFlows)

	case key.Matches(msg, m.keys.ViewActivity):
		return m.switchView(ViewActivity)
	}

	switch m.currentView {
	case ViewEmails, ViewFlows:
		return m.handleTableKey(msg)
	case ViewActivity:
		return m.handleActivityKey(msg)
	}
	return m, nil
}

// switchView activates v and persists it as the start-up view.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	if v == m.currentView {
		return m, nil
	}
	m.currentView = v
	m.status = ""
	cmds := append(m.enterView(v), m.savePrefs())
	return m, tea.Batch(cmds...)
}

// enterView returns the loads a view needs the first time it is shown.
func (m Model) enterView(v View) []tea.Cmd {
	switch v {
	case ViewEmails:
		if m.email != nil && m.emailSnap.Table.FetchedAt.IsZero() && !m.emailSnap.Table.IsLoading {
			return []tea.Cmd{m.fetchPage(ViewEmails, 1)}
		}
	case ViewFlows:
		if m.network != nil && m.networkSnap.Table.FetchedAt.IsZero() && !m.networkSnap.Table.IsLoading {
			return []tea.Cmd{m.fetchPage(ViewFlows, 1)}
		}
	case ViewActivity:
		return []tea.Cmd{m.loadActivity()}
	}
	return nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) syncTables() {
	et := m.emailSnap.Table
	m.emailTable.sync(et.Page, et.PageSize, et.TotalPages(), len(et.Items))
	nt := m.networkSnap.Table
	m.flowTable.sync(nt.Page, nt.PageSize, nt.TotalPages(), len(nt.Items))
}

// bodyHeight is the space below the header and command bar.
func (m Model) bodyHeight() int {
	return maxInt(m.height-chromeHeight, 0)
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewEmails:
		return m.renderEmails()
	case ViewFlows:
		return m.renderFlows()
	case ViewActivity:
		return m.renderActivity()
	default:
		return m.renderOverview()
	}
}

func (m Model) savePrefs() tea.Cmd {
	path := m.prefsPath
	p := prefs.Prefs{Theme: m.theme.Name, View: m.currentView.String()}
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.Save(path, p)}
	}
}

// Messages

type tickMsg time.Time

type emailMsg state.EmailSnapshot

type networkMsg state.NetworkSnapshot

type connMsg live.ConnectionState

type pageResultMsg struct {
	view View
	page int
	err  error
}

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

type prefsSavedMsg struct {
	err error
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForEmail() tea.Cmd {
	if m.email == nil {
		return nil
	}
	ctx, ch, store := m.ctx, m.feed.email, m.email
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			return emailMsg(store.Snapshot())
		}
	}
}

func (m Model) waitForNetwork() tea.Cmd {
	if m.network == nil {
		return nil
	}
	ctx, ch, store := m.ctx, m.feed.network, m.network
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			return networkMsg(store.Snapshot())
		}
	}
}

func (m Model) waitForConn() tea.Cmd {
	if m.conn == nil {
		return nil
	}
	ctx, ch, conn := m.ctx, m.feed.conn, m.conn
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			return connMsg(conn.State())
		}
	}
}
