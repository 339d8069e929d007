package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/five82/sentinel/internal/app"
	"github.com/five82/sentinel/internal/config"
	"github.com/five82/sentinel/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath  string
	prefsPath   string
	baseURL     string
	metricsAddr string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "sentinel",
		Short: "Live dashboard for phishing and network intrusion detection",
		Long: `sentinel mirrors the detector backend's email and network dashboards.
It loads the current stats over REST, then follows the /ws push stream,
reconnecting on a fixed delay when the stream drops.

Without a subcommand it opens the dashboard when stdout is a terminal and
falls back to watch mode otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stdoutIsTerminal() {
				return runDash(cmd.Context(), flags)
			}
			return runWatch(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/sentinel/config.toml)")
	pf.StringVar(&flags.prefsPath, "prefs", "", "preferences file (default ~/.config/sentinel/prefs.toml)")
	pf.StringVar(&flags.baseURL, "base-url", "", "backend base URL, overrides base_url and "+config.EnvBaseURL)
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		&cobra.Command{
			Use:   "dash",
			Short: "Open the terminal dashboard",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runDash(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Log every stats update and connection change as structured lines",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWatch(cmd.Context(), flags, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the sentinel version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sentinel %s\n", version)
			},
		},
	)
	return root
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func loadConfig(flags globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Override(flags.baseURL, flags.metricsAddr, flags.logLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runDash logs to the configured file so log lines never land on the
// dashboard's screen.
func runDash(ctx context.Context, flags globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("sentinel starting", "mode", "dash", "version", version, "base_url", cfg.BaseURL, "config", cfg.Path)
	return app.Run(ctx, app.Options{Config: cfg, PrefsPath: flags.prefsPath, Logger: logger})
}

// runWatch sends diagnostics to stderr and the update stream to out.
func runWatch(ctx context.Context, flags globalFlags, out io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Setup(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("sentinel starting", "mode", "watch", "version", version, "base_url", cfg.BaseURL, "config", cfg.Path)
	return app.RunWatch(ctx, app.Options{Config: cfg, PrefsPath: flags.prefsPath, Logger: logger}, out)
}
