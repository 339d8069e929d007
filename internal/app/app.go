package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/five82/sentinel/internal/api"
	"github.com/five82/sentinel/internal/config"
	"github.com/five82/sentinel/internal/live"
	"github.com/five82/sentinel/internal/metrics"
	"github.com/five82/sentinel/internal/prefs"
	"github.com/five82/sentinel/internal/state"
	"github.com/five82/sentinel/internal/ui"
)

// Options configure a sentinel run.
type Options struct {
	Config    config.Config
	PrefsPath string // empty uses default ~/.config/sentinel/prefs.toml
	Logger    *slog.Logger
}

// Session is the set of collaborators for one run: one REST client, one
// store per domain, and exactly one connection manager shared by all views.
type Session struct {
	Config  config.Config
	Client  *api.Client
	Email   *state.EmailStore
	Network *state.NetworkStore
	Manager *live.Manager
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// NewSession wires a session from cfg. Nothing touches the network until
// Start.
func NewSession(cfg config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	recorder := metrics.New()

	client, err := api.NewClient(cfg.BaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithObserver(recorder),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}

	email := state.NewEmailStore(client, state.WithLogger(logger), state.WithPageSize(cfg.PageSize))
	network := state.NewNetworkStore(client, state.WithLogger(logger), state.WithPageSize(cfg.PageSize))

	manager, err := live.New(live.Config{
		BaseURL:        cfg.BaseURL,
		ReconnectDelay: cfg.ReconnectDelay,
	}, live.WithLogger(logger), live.WithObserver(recorder))
	if err != nil {
		return nil, fmt.Errorf("init live sync: %w", err)
	}
	manager.Register(live.Domain{
		Kind:  live.KindEmailStats,
		Name:  email.Name(),
		Fetch: client.FetchEmailStats,
		Store: email,
	})
	manager.Register(live.Domain{
		Kind:  live.KindNetworkStats,
		Name:  network.Name(),
		Fetch: client.FetchNetworkStats,
		Store: network,
	})

	return &Session{
		Config:  cfg,
		Client:  client,
		Email:   email,
		Network: network,
		Manager: manager,
		Metrics: recorder,
		Logger:  logger,
	}, nil
}

// Start begins live sync, the fallback poller and, when configured, the
// metrics endpoint. Everything stops when ctx is cancelled or Stop is called.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Manager.Start(ctx); err != nil {
		return fmt.Errorf("start live sync: %w", err)
	}
	StartFallbackPoller(ctx, s.Manager, s.Manager.Domains(), s.Config.FallbackPoll, s.Logger)

	if addr := s.Config.MetricsAddr; addr != "" {
		go func() {
			if err := s.Metrics.Serve(ctx, addr, s.Logger); err != nil {
				s.Logger.Error("metrics server failed", "component", "metrics", "error", err)
			}
		}()
	}
	return nil
}

// Stop tears down the connection manager.
func (s *Session) Stop() {
	s.Manager.Stop()
}

// Run boots the sentinel TUI until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	session, err := NewSession(opts.Config, opts.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop()

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	return ui.Run(ui.Options{
		Context:   ctx,
		Email:     session.Email,
		Network:   session.Network,
		Conn:      session.Manager,
		LogPath:   opts.Config.LogFile,
		PageSize:  opts.Config.PageSize,
		ThemeName: userPrefs.Theme,
		View:      userPrefs.View,
		PrefsPath: opts.PrefsPath,
		Logger:    session.Logger,
	})
}
