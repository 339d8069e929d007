package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/five82/sentinel/internal/api"
)

const (
	// DefaultReconnectDelay is the fixed wait between a drop and the next
	// connection attempt.
	DefaultReconnectDelay = 10 * time.Second
	// DefaultStreamPath is appended to the base URL to reach the stream.
	DefaultStreamPath = "/ws"

	handshakeTimeout = 10 * time.Second
	closeWait        = time.Second
	maxFrameBytes    = 1 << 20
)

// Config describes where the stream lives and how to recover from drops.
type Config struct {
	BaseURL        string
	ReconnectDelay time.Duration
	StreamPath     string
}

// Replacer is the store side of a domain. Replace swaps in a full snapshot
// from a raw payload; Version reports how many replacements have been applied.
type Replacer interface {
	Replace(payload json.RawMessage) error
	Version() uint64
}

// Domain binds a frame kind to its bulk fetch and its store.
type Domain struct {
	Kind  string
	Name  string
	Fetch func(ctx context.Context) (json.RawMessage, error)
	Store Replacer
}

// Dialer opens the stream connection. *websocket.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Observer receives connection and frame events, typically for metrics.
type Observer interface {
	StateChanged(state ConnectionState)
	FrameReceived(kind string)
	FrameDropped(reason string)
	ReconnectScheduled()
	BulkFetchFailed(domain string)
}

type nopObserver struct{}

func (nopObserver) StateChanged(ConnectionState) {}
func (nopObserver) FrameReceived(string)         {}
func (nopObserver) FrameDropped(string)          {}
func (nopObserver) ReconnectScheduled()          {}
func (nopObserver) BulkFetchFailed(string)       {}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// Manager owns the single stream connection for a session. It seeds every
// registered store with one bulk fetch, dispatches pushed frames by kind and
// reconnects after a fixed delay when the connection drops.
type Manager struct {
	cfg       Config
	streamURL string
	sessionID string
	dialer    Dialer
	logger    *slog.Logger
	observer  Observer

	// state is written under mu and read lock-free by State.
	state atomic.Int32

	mu        sync.Mutex
	domains   map[string]Domain
	order     []string
	listeners map[int]func(ConnectionState)
	nextID    int
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	ctx       context.Context
	conn      *websocket.Conn
	gen       uint64
	reconnect *reconnectTimer

	// dispatchMu orders store replacements between the reader and seeding.
	dispatchMu sync.Mutex
	wg         sync.WaitGroup
}

// New constructs a Manager. It does not connect until Start.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = DefaultStreamPath
	}
	streamURL, err := StreamURL(cfg.BaseURL, cfg.StreamPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		streamURL: streamURL,
		sessionID: uuid.NewString(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger:    slog.Default(),
		observer:  nopObserver{},
		domains:   make(map[string]Domain),
		listeners: make(map[int]func(ConnectionState)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "live", "session", m.sessionID)
	return m, nil
}

// StreamURL derives the stream endpoint from a REST base URL: http becomes
// ws and https becomes wss.
func StreamURL(baseURL, path string) (string, error) {
	u, err := api.ParseBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if path == "" {
		path = DefaultStreamPath
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse stream path: %w", err)
	}
	return u.ResolveReference(ref).String(), nil
}

// SessionID identifies this manager in logs.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// URL returns the stream endpoint.
func (m *Manager) URL() string {
	return m.streamURL
}

// ReconnectDelay returns the fixed reconnect delay in effect.
func (m *Manager) ReconnectDelay() time.Duration {
	return m.cfg.ReconnectDelay
}

// Register adds a domain. Registering a kind twice replaces the earlier
// domain. Domains registered after Start are dispatched to but not seeded.
func (m *Manager) Register(d Domain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.domains[d.Kind]; !exists {
		m.order = append(m.order, d.Kind)
	}
	if d.Name == "" {
		d.Name = d.Kind
	}
	m.domains[d.Kind] = d
}

// Domains returns the registered domains in registration order.
func (m *Manager) Domains() []Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Domain, 0, len(m.order))
	for _, kind := range m.order {
		out = append(out, m.domains[kind])
	}
	return out
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	return ConnectionState(m.state.Load())
}

// SubscribeState registers a listener for state transitions. Listeners run
// synchronously, in transition order, while the manager's lock is held; they
// must not call Start, Stop, Register or SubscribeState.
func (m *Manager) SubscribeState(listener func(ConnectionState)) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Start seeds every registered store with a bulk fetch and opens the stream
// connection. It returns immediately; fetches and the connection proceed in
// the background. Calling Start again while running is a no-op. Cancelling
// ctx has the same effect as Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	domains := make([]Domain, 0, len(m.order))
	for _, kind := range m.order {
		domains = append(domains, m.domains[kind])
	}
	runCtx := m.ctx
	m.wg.Add(1)
	go m.seed(runCtx, domains)
	m.connectLocked()
	m.mu.Unlock()

	go func() {
		<-runCtx.Done()
		m.Stop()
	}()

	m.logger.Info("live sync started", "url", m.streamURL, "domains", len(domains), "reconnect_delay", m.cfg.ReconnectDelay)
	return nil
}

// Stop closes the connection, cancels any pending reconnect and ignores
// in-flight bulk fetch results. It blocks until background goroutines exit.
// Stop is safe to call repeatedly and before Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.reconnect.cancel()
	m.reconnect = nil
	if m.cancel != nil {
		m.cancel()
	}
	conn := m.conn
	m.conn = nil
	m.setStateLocked(Closed)
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(closeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client stopping"), deadline)
		_ = conn.Close()
	}
	m.wg.Wait()
	m.logger.Info("live sync stopped")
}

// HandleMessage dispatches one raw frame to the store registered for its
// kind. Malformed frames, unknown kinds and rejected payloads are logged and
// dropped; nothing is returned to the caller.
func (m *Manager) HandleMessage(raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "error", err, "bytes", len(raw))
		m.observer.FrameDropped("malformed")
		return
	}

	m.mu.Lock()
	domain, ok := m.domains[msg.Kind]
	stopped := m.stopped
	m.mu.Unlock()

	if stopped {
		return
	}
	if !ok || domain.Store == nil {
		m.logger.Warn("dropping frame with unknown type", "type", msg.Kind)
		m.observer.FrameDropped("unknown_kind")
		return
	}

	m.dispatchMu.Lock()
	err = domain.Store.Replace(msg.Payload)
	m.dispatchMu.Unlock()
	if err != nil {
		m.logger.Warn("dropping frame", "error", &ProtocolError{Kind: msg.Kind, Err: err})
		m.observer.FrameDropped("invalid_payload")
		return
	}
	m.observer.FrameReceived(msg.Kind)
	m.logger.Debug("frame applied", "type", msg.Kind, "domain", domain.Name)
}

func (m *Manager) seed(ctx context.Context, domains []Domain) {
	defer m.wg.Done()

	var g errgroup.Group
	for _, d := range domains {
		if d.Fetch == nil || d.Store == nil {
			continue
		}
		g.Go(func() error {
			return m.seedDomain(ctx, d)
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Debug("bulk fetch finished with errors", "error", err)
	}
}

func (m *Manager) seedDomain(ctx context.Context, d Domain) error {
	logger := m.logger.With("domain", d.Name)
	payload, err := d.Fetch(ctx)
	if m.isStopped() || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		logger.Warn("bulk fetch failed", "error", err)
		m.observer.BulkFetchFailed(d.Name)
		return fmt.Errorf("bulk fetch %s: %w", d.Name, err)
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	// A pushed frame is newer than any bulk result still in flight.
	if d.Store.Version() > 0 {
		logger.Debug("skipping bulk result; store already updated")
		return nil
	}
	if err := d.Store.Replace(payload); err != nil {
		logger.Warn("bulk payload rejected", "error", err)
		m.observer.BulkFetchFailed(d.Name)
		return fmt.Errorf("bulk fetch %s: %w", d.Name, err)
	}
	logger.Debug("store seeded")
	return nil
}

func (m *Manager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// connectLocked starts a new connection attempt. Caller holds mu.
func (m *Manager) connectLocked() {
	if m.stopped {
		return
	}
	m.gen++
	m.setStateLocked(Connecting)
	m.wg.Add(1)
	go m.run(m.ctx, m.gen)
}

func (m *Manager) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	conn, _, err := m.dialer.DialContext(ctx, m.streamURL, nil)
	if err != nil {
		m.dropped(gen, &TransportError{Op: "dial", URL: m.streamURL, Err: err})
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	m.mu.Lock()
	if m.stopped || gen != m.gen {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.setStateLocked(Open)
	m.mu.Unlock()
	m.logger.Info("stream connected", "url", m.streamURL)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			m.dropped(gen, &TransportError{Op: "read", URL: m.streamURL, Err: err})
			return
		}
		m.HandleMessage(data)
	}
}

// dropped moves to Closed and arms the reconnect timer, unless the manager
// has been stopped or a newer attempt owns the connection.
func (m *Manager) dropped(gen uint64, err *TransportError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || gen != m.gen {
		return
	}
	m.conn = nil

	if websocket.IsCloseError(err.Err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info("stream closed by server", "retry_in", m.cfg.ReconnectDelay)
	} else {
		m.logger.Warn("stream disconnected", "error", err, "retry_in", m.cfg.ReconnectDelay)
	}
	m.setStateLocked(Closed)
	m.scheduleReconnectLocked(gen)
}

func (m *Manager) scheduleReconnectLocked(gen uint64) {
	if m.stopped || m.reconnect != nil {
		return
	}
	m.reconnect = newReconnectTimer(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stopped || gen != m.gen {
			return
		}
		m.reconnect = nil
		m.connectLocked()
	})
	m.setStateLocked(Reconnecting)
	m.observer.ReconnectScheduled()
}

// setStateLocked records s and notifies listeners. Caller holds mu.
func (m *Manager) setStateLocked(s ConnectionState) {
	if ConnectionState(m.state.Load()) == s {
		return
	}
	m.state.Store(int32(s))
	m.observer.StateChanged(s)
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			fn(s)
		}
	}
}

// reconnectTimer is the single pending reconnect attempt.
type reconnectTimer struct {
	timer *time.Timer
}

func newReconnectTimer(delay time.Duration, fire func()) *reconnectTimer {
	return &reconnectTimer{timer: time.AfterFunc(delay, fire)}
}

// cancel stops the timer if it has not fired. Safe on a nil receiver.
func (r *reconnectTimer) cancel() {
	if r == nil || r.timer == nil {
		return
	}
	r.timer.Stop()
}
