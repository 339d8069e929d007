package ui

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/sentinel/internal/api"
	"github.com/five82/sentinel/internal/live"
	"github.com/five82/sentinel/internal/prefs"
	"github.com/five82/sentinel/internal/state"
)

type fakeEmails struct {
	mu      sync.Mutex
	total   int
	queries []api.PageQuery
}

func (f *fakeEmails) FetchEmails(_ context.Context, q api.PageQuery) (api.PageResponse[api.EmailRow], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return api.PageResponse[api.EmailRow]{
		Items:    []api.EmailRow{{ID: 1, Subject: "Invoice overdue", Sender: "billing@example.com", Prediction: 1}, {ID: 2, Subject: "Lunch"}},
		Total:    f.total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

func (f *fakeEmails) last() api.PageQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type fakePackets struct {
	mu      sync.Mutex
	queries []api.PageQuery
}

func (f *fakePackets) FetchPackets(_ context.Context, q api.PageQuery) (api.PageResponse[api.PacketRow], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return api.PageResponse[api.PacketRow]{
		Items: []api.PacketRow{{FlowID: "f-1", SrcIP: "10.0.0.5", SrcPort: 5555, DstIP: "1.2.3.4", DstPort: 443, Prediction: 1}},
		Total: 1, Page: q.Page, PageSize: q.PageSize,
	}, nil
}

type fakeConn struct {
	mu       sync.Mutex
	state    live.ConnectionState
	listener func(live.ConnectionState)
}

func (c *fakeConn) State() live.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) SubscribeState(fn func(live.ConnectionState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listener = nil
	}
}

func (c *fakeConn) URL() string { return "ws://backend/ws" }

func (c *fakeConn) set(s live.ConnectionState) {
	c.mu.Lock()
	c.state = s
	fn := c.listener
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

type fixture struct {
	emails  *fakeEmails
	packets *fakePackets
	conn    *fakeConn
	email   *state.EmailStore
	network *state.NetworkStore
	prefs   string
}

func newFixture(t *testing.T, total int) *fixture {
	t.Helper()
	f := &fixture{
		emails:  &fakeEmails{total: total},
		packets: &fakePackets{},
		conn:    &fakeConn{},
		prefs:   filepath.Join(t.TempDir(), "prefs.toml"),
	}
	f.email = state.NewEmailStore(f.emails)
	f.network = state.NewNetworkStore(f.packets)
	return f
}

func (f *fixture) model(t *testing.T, view string) Model {
	t.Helper()
	m := New(Options{
		Email:     f.email,
		Network:   f.network,
		Conn:      f.conn,
		PageSize:  10,
		View:      view,
		PrefsPath: f.prefs,
	})
	t.Cleanup(m.Close)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestParseView(t *testing.T) {
	cases := map[string]View{
		"":          ViewOverview,
		"emails":    ViewEmails,
		" Flows ":   ViewFlows,
		"activity":  ViewActivity,
		"somewhere": ViewOverview,
	}
	for in, want := range cases {
		if got := ParseView(in); got != want {
			t.Errorf("ParseView(%q) = %v, want %v", in, got, want)
		}
	}
	if ViewActivity.next() != ViewOverview || ViewOverview.prev() != ViewActivity {
		t.Fatalf("view cycling does not wrap")
	}
}

func TestPageStepBounds(t *testing.T) {
	if _, ok := pageStep(1, -1, 25, 10); ok {
		t.Fatalf("stepping before page 1 allowed")
	}
	if got, ok := pageStep(2, 1, 25, 10); !ok || got != 3 {
		t.Fatalf("pageStep(2,+1) = %d, %v; want 3, true", got, ok)
	}
	if _, ok := pageStep(3, 1, 25, 10); ok {
		t.Fatalf("stepping past page 3 of 25/10 allowed")
	}
}

func TestParsePageInput(t *testing.T) {
	if got, err := parsePageInput(" 3 ", 25, 10); err != nil || got != 3 {
		t.Fatalf("parsePageInput(3) = %d, %v", got, err)
	}
	for _, in := range []string{"4", "0", "-1", "abc", ""} {
		if _, err := parsePageInput(in, 25, 10); err == nil {
			t.Errorf("parsePageInput(%q) accepted", in)
		}
	}
	_, err := parsePageInput("4", 25, 10)
	if err == nil || !strings.Contains(err.Error(), "1-3") {
		t.Fatalf("out of range error = %v, want range 1-3", err)
	}
}

func TestNextPageLoadsFollowingPage(t *testing.T) {
	f := newFixture(t, 25)
	if err := f.email.FetchPage(context.Background(), 1, 10); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	m := f.model(t, "emails")

	m, cmd := press(t, m, runes("]"))
	if cmd == nil {
		t.Fatalf("next page returned no command")
	}
	msg, ok := cmd().(pageResultMsg)
	if !ok || msg.err != nil || msg.page != 2 {
		t.Fatalf("page result = %#v", msg)
	}
	if q := f.emails.last(); q.Page != 2 || q.PageSize != 10 {
		t.Fatalf("query = %+v, want page 2 size 10", q)
	}
	if m.status != "" {
		t.Fatalf("status = %q, want empty", m.status)
	}
}

func TestNextPageStopsAtLastPage(t *testing.T) {
	f := newFixture(t, 25)
	if err := f.email.FetchPage(context.Background(), 3, 10); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	m := f.model(t, "emails")

	m, cmd := press(t, m, runes("]"))
	if cmd != nil {
		t.Fatalf("next page past the end returned a command")
	}
	if m.status != "already on the last page" {
		t.Fatalf("status = %q", m.status)
	}
}

func TestGoToPage(t *testing.T) {
	f := newFixture(t, 25)
	if err := f.email.FetchPage(context.Background(), 1, 10); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	m := f.model(t, "emails")

	m, _ = press(t, m, runes("g"))
	if !m.gotoActive {
		t.Fatalf("go-to input not active")
	}
	m, _ = press(t, m, runes("3"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.gotoActive {
		t.Fatalf("go-to input still active after enter")
	}
	if cmd == nil {
		t.Fatalf("enter returned no command")
	}
	cmd()
	if q := f.emails.last(); q.Page != 3 {
		t.Fatalf("query page = %d, want 3", q.Page)
	}

	m, _ = press(t, m, runes("g"))
	m, _ = press(t, m, runes("9"))
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("out of range page returned a command")
	}
	if !m.statusErr || !strings.Contains(m.status, "out of range") {
		t.Fatalf("status = %q, want out of range error", m.status)
	}
}

func TestGoToPageEscapeCancels(t *testing.T) {
	f := newFixture(t, 25)
	m := f.model(t, "emails")

	m, _ = press(t, m, runes("g"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.gotoActive || cmd != nil {
		t.Fatalf("escape did not cancel go-to input")
	}
	if m.currentView != ViewEmails {
		t.Fatalf("escape in go-to input changed view to %v", m.currentView)
	}
}

func TestFilterToggleReloadsMaliciousFlows(t *testing.T) {
	f := newFixture(t, 0)
	m := f.model(t, "flows")

	_, cmd := press(t, m, runes("f"))
	if cmd == nil {
		t.Fatalf("filter toggle returned no command")
	}
	cmd()

	if got := f.network.Snapshot().Table.Filter; got != state.FilterMalicious {
		t.Fatalf("filter = %q, want malicious", got)
	}
	f.packets.mu.Lock()
	q := f.packets.queries[len(f.packets.queries)-1]
	f.packets.mu.Unlock()
	if !q.MaliciousOnly || q.Page != 1 {
		t.Fatalf("query = %+v, want malicious page 1", q)
	}
}

func TestStoreUpdateReachesModel(t *testing.T) {
	f := newFixture(t, 0)
	m := f.model(t, "overview")

	if err := f.email.ReplaceSnapshot(json.RawMessage(`{"total_emails":42,"phishing_emails":3}`)); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}
	msg := m.waitForEmail()()
	snap, ok := msg.(emailMsg)
	if !ok {
		t.Fatalf("message = %T, want emailMsg", msg)
	}
	next, _ := m.Update(snap)
	m = next.(Model)
	if m.emailSnap.Stats.TotalEmails != 42 || m.emailSnap.Stats.PhishingEmails != 3 {
		t.Fatalf("model stats = %+v", m.emailSnap.Stats)
	}
	if !strings.Contains(m.View(), "42") {
		t.Fatalf("view does not show the updated total")
	}
}

func TestConnectionStateReachesModel(t *testing.T) {
	f := newFixture(t, 0)
	m := f.model(t, "overview")

	f.conn.set(live.Reconnecting)
	msg := m.waitForConn()()
	next, _ := m.Update(msg)
	m = next.(Model)
	if m.connState != live.Reconnecting {
		t.Fatalf("connState = %v, want reconnecting", m.connState)
	}
	if !strings.Contains(m.View(), "RECONNECTING") {
		t.Fatalf("header does not show reconnecting badge")
	}
}

func TestCloseDetachesListeners(t *testing.T) {
	f := newFixture(t, 0)
	m := f.model(t, "overview")
	m.Close()

	if err := f.email.ReplaceSnapshot(json.RawMessage(`{"total_emails":1}`)); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}
	if len(m.feed.email) != 0 {
		t.Fatalf("listener still attached after Close")
	}
	f.conn.mu.Lock()
	defer f.conn.mu.Unlock()
	if f.conn.listener != nil {
		t.Fatalf("state listener still attached after Close")
	}
}

func TestThemeCycleSavesPrefs(t *testing.T) {
	f := newFixture(t, 0)
	m := f.model(t, "flows")

	m, cmd := press(t, m, runes("T"))
	if m.theme.Name != "Slate" {
		t.Fatalf("theme = %q, want Slate", m.theme.Name)
	}
	saved, ok := cmd().(prefsSavedMsg)
	if !ok || saved.err != nil {
		t.Fatalf("save result = %#v", saved)
	}
	p, err := prefs.Load(f.prefs)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if p.Theme != "Slate" || p.View != "flows" {
		t.Fatalf("prefs = %+v, want Slate/flows", p)
	}
}

func TestEveryViewRenders(t *testing.T) {
	f := newFixture(t, 2)
	if err := f.email.FetchPage(context.Background(), 1, 10); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if err := f.network.FetchPage(context.Background(), 1, 10); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	for _, view := range []string{"overview", "emails", "flows", "activity"} {
		t.Run(view, func(t *testing.T) {
			m := f.model(t, view)
			out := m.View()
			if !strings.Contains(out, "sentinel") {
				t.Fatalf("view %s missing header", view)
			}
			switch view {
			case "emails":
				if !strings.Contains(out, "Invoice overdue") {
					t.Fatalf("emails view missing row")
				}
			case "flows":
				if !strings.Contains(out, "10.0.0.5:5555") {
					t.Fatalf("flows view missing row")
				}
			}
		})
	}
}
