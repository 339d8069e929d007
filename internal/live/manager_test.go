package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/sentinel/internal/api"
	"github.com/five82/sentinel/internal/state"
)

// streamServer is a websocket endpoint that hands each accepted connection to
// the test.
type streamServer struct {
	*httptest.Server
	dials atomic.Int32
	conns chan *websocket.Conn
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultStreamPath {
			http.NotFound(w, r)
			return
		}
		s.dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatalf("no stream connection accepted")
		return nil
	}
}

// countingFetch returns payload and counts calls.
type countingFetch struct {
	calls   atomic.Int32
	payload string
	err     error
}

func (f *countingFetch) Fetch(ctx context.Context) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.payload), ctx.Err()
}

type noPages struct{}

func (noPages) FetchEmails(context.Context, api.PageQuery) (api.PageResponse[api.EmailRow], error) {
	return api.PageResponse[api.EmailRow]{}, nil
}

func (noPages) FetchPackets(context.Context, api.PageQuery) (api.PageResponse[api.PacketRow], error) {
	return api.PageResponse[api.PacketRow]{}, nil
}

type stateLog struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (l *stateLog) record(s ConnectionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) snapshot() []ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConnectionState(nil), l.states...)
}

type fixture struct {
	manager      *Manager
	email        *state.EmailStore
	network      *state.NetworkStore
	emailFetch   *countingFetch
	networkFetch *countingFetch
	states       *stateLog
}

func newFixture(t *testing.T, baseURL string, delay time.Duration) *fixture {
	t.Helper()
	m, err := New(Config{BaseURL: baseURL, ReconnectDelay: delay})
	require.NoError(t, err)

	f := &fixture{
		manager:      m,
		email:        state.NewEmailStore(noPages{}),
		network:      state.NewNetworkStore(noPages{}),
		emailFetch:   &countingFetch{payload: `{"total_emails":42,"phishing_emails":3}`},
		networkFetch: &countingFetch{payload: `{"total_flows":10,"malicious_flows":1}`},
		states:       &stateLog{},
	}
	m.Register(Domain{Kind: KindEmailStats, Name: "email", Fetch: f.emailFetch.Fetch, Store: f.email})
	m.Register(Domain{Kind: KindNetworkStats, Name: "network", Fetch: f.networkFetch.Fetch, Store: f.network})
	m.SubscribeState(f.states.record)
	t.Cleanup(m.Stop)
	return f
}

func TestStreamURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":  "ws://localhost:8080/ws",
		"https://example.com/x":  "wss://example.com/ws",
		"example.com:9000":       "ws://example.com:9000/ws",
		"":                       "ws://localhost:8080/ws",
	}
	for in, want := range cases {
		got, err := StreamURL(in, "")
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestHandleMessage_DispatchesKnownKindOnce(t *testing.T) {
	f := newFixture(t, "http://localhost:1", time.Hour)

	var emailCalls, networkCalls int
	f.email.Subscribe(func(state.EmailSnapshot) { emailCalls++ })
	f.network.Subscribe(func(state.NetworkSnapshot) { networkCalls++ })

	f.manager.HandleMessage([]byte(`{"type":"NETWORK_DASHBOARD_STATS","payload":{"total_flows":100,"malicious_flows":5}}`))

	assert.Equal(t, 0, emailCalls)
	assert.Equal(t, 1, networkCalls)
	stats := f.network.Snapshot().Stats
	assert.Equal(t, 100, stats.TotalFlows)
	assert.Equal(t, 5, stats.MaliciousFlows)
}

func TestHandleMessage_DropsUnknownAndMalformedFrames(t *testing.T) {
	f := newFixture(t, "http://localhost:1", time.Hour)

	frames := []string{
		`{"type":"SOMETHING_ELSE","payload":{"total_emails":9}}`,
		`not json`,
		`{"payload":{}}`,
		`[1,2,3]`,
		`{"type":"EMAIL_DASHBOARD_STATS","payload":[1]}`,
	}
	for _, frame := range frames {
		assert.NotPanics(t, func() { f.manager.HandleMessage([]byte(frame)) }, frame)
	}

	assert.Zero(t, f.email.Version())
	assert.Zero(t, f.network.Version())
}

func TestDecodeMessage_ProtocolError(t *testing.T) {
	_, err := DecodeMessage([]byte(`{`))
	var protoErr *ProtocolError
	require.True(t, errors.As(err, &protoErr))

	msg, err := DecodeMessage([]byte(`{"type":"EMAIL_DASHBOARD_STATS"}`))
	require.NoError(t, err)
	assert.Equal(t, KindEmailStats, msg.Kind)
	assert.Nil(t, msg.Payload)
}

func TestStart_SeedsStoresAndAppliesPushes(t *testing.T) {
	server := newStreamServer(t)
	f := newFixture(t, server.URL, time.Hour)

	require.NoError(t, f.manager.Start(context.Background()))
	conn := server.accept(t)

	require.Eventually(t, func() bool { return f.email.Version() == 1 && f.network.Version() == 1 },
		2*time.Second, 10*time.Millisecond)
	emailStats := f.email.Snapshot().Stats
	assert.Equal(t, 42, emailStats.TotalEmails)
	assert.Equal(t, 3, emailStats.PhishingEmails)

	require.Eventually(t, func() bool { return f.manager.State() == Open }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"NETWORK_DASHBOARD_STATS","payload":{"total_flows":100,"malicious_flows":5}}`)))

	require.Eventually(t, func() bool { return f.network.Snapshot().Stats.TotalFlows == 100 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, f.network.Snapshot().Stats.MaliciousFlows)
	assert.Equal(t, 42, f.email.Snapshot().Stats.TotalEmails, "email store must be untouched by a network frame")
}

func TestStart_IsIdempotent(t *testing.T) {
	server := newStreamServer(t)
	f := newFixture(t, server.URL, time.Hour)

	require.NoError(t, f.manager.Start(context.Background()))
	require.NoError(t, f.manager.Start(context.Background()))
	server.accept(t)

	require.Eventually(t, func() bool { return f.manager.State() == Open }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, server.dials.Load())
	assert.EqualValues(t, 1, f.emailFetch.calls.Load())
	assert.EqualValues(t, 1, f.networkFetch.calls.Load())
}

func TestReconnect_AfterDropWithoutRefetch(t *testing.T) {
	server := newStreamServer(t)
	f := newFixture(t, server.URL, 50*time.Millisecond)

	require.NoError(t, f.manager.Start(context.Background()))
	first := server.accept(t)
	require.Eventually(t, func() bool { return f.manager.State() == Open }, 2*time.Second, 10*time.Millisecond)

	_ = first.Close()
	server.accept(t)

	require.Eventually(t, func() bool {
		states := f.states.snapshot()
		return len(states) >= 6 && states[len(states)-1] == Open
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []ConnectionState{Connecting, Open, Closed, Reconnecting, Connecting, Open}, f.states.snapshot())
	assert.EqualValues(t, 1, f.emailFetch.calls.Load(), "reconnect must not re-run the bulk fetch")
	assert.EqualValues(t, 1, f.networkFetch.calls.Load())
}

func TestStop_CancelsPendingReconnect(t *testing.T) {
	server := newStreamServer(t)
	f := newFixture(t, server.URL, 100*time.Millisecond)

	require.NoError(t, f.manager.Start(context.Background()))
	conn := server.accept(t)
	require.Eventually(t, func() bool { return f.manager.State() == Open }, 2*time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return f.manager.State() == Reconnecting }, 2*time.Second, 5*time.Millisecond)

	f.manager.Stop()
	f.manager.Stop()
	time.Sleep(250 * time.Millisecond)

	assert.EqualValues(t, 1, server.dials.Load(), "no attempt may follow Stop")
	assert.Equal(t, Closed, f.manager.State())
	assert.ErrorIs(t, f.manager.Start(context.Background()), ErrStopped)
}

func TestDialFailure_SchedulesReconnect(t *testing.T) {
	// Nothing listens on the stream path; the handshake fails with 404.
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	f := newFixture(t, server.URL, time.Hour)

	require.NoError(t, f.manager.Start(context.Background()))
	require.Eventually(t, func() bool { return f.manager.State() == Reconnecting }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []ConnectionState{Connecting, Closed, Reconnecting}, f.states.snapshot())
}

func TestSeed_DoesNotOverwriteNewerPush(t *testing.T) {
	release := make(chan struct{})
	m, err := New(Config{BaseURL: "http://127.0.0.1:1", ReconnectDelay: time.Hour})
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	email := state.NewEmailStore(noPages{})
	m.Register(Domain{
		Kind: KindEmailStats,
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return json.RawMessage(`{"total_emails":1}`), nil
		},
		Store: email,
	})

	require.NoError(t, m.Start(context.Background()))
	m.HandleMessage([]byte(`{"type":"EMAIL_DASHBOARD_STATS","payload":{"total_emails":99}}`))
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 99, email.Snapshot().Stats.TotalEmails)
	assert.EqualValues(t, 1, email.Version())
}

func TestSeed_FailureLeavesStoreAtDefaults(t *testing.T) {
	m, err := New(Config{BaseURL: "http://127.0.0.1:1", ReconnectDelay: time.Hour})
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	email := state.NewEmailStore(noPages{})
	fetch := &countingFetch{err: errors.New("backend down")}
	m.Register(Domain{Kind: KindEmailStats, Fetch: fetch.Fetch, Store: email})

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return fetch.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, email.Snapshot().HasStats())
}

func TestStop_BeforeStartIsSafe(t *testing.T) {
	m, err := New(Config{})
	require.NoError(t, err)
	assert.NotPanics(t, m.Stop)
	assert.Equal(t, Closed, m.State())
	assert.Equal(t, DefaultReconnectDelay, m.ReconnectDelay())
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}
