package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything sentinel needs to reach the backend and run.
type Config struct {
	BaseURL        string        `validate:"required,http_url"`
	ReconnectDelay time.Duration `validate:"gt=0"`
	FallbackPoll   time.Duration `validate:"gte=0"` // 0 disables polling
	PageSize       int           `validate:"min=1,max=100"`
	RequestTimeout time.Duration `validate:"gt=0"`
	LogLevel       string        `validate:"oneof=debug info warn error"`
	LogFile        string
	MetricsAddr    string `validate:"omitempty,hostname_port"`

	// Path is the config file that was read, or would have been.
	Path string `validate:"-"`
}

const (
	// EnvBaseURL overrides base_url from the config file.
	EnvBaseURL = "SENTINEL_BASE_URL"

	defaultConfigPath     = "~/.config/sentinel/config.toml"
	defaultLogFile        = "~/.local/state/sentinel/sentinel.log"
	defaultBaseURL        = "http://localhost:8080"
	defaultReconnectDelay = 10 * time.Second
	defaultFallbackPoll   = 15 * time.Second
	defaultPageSize       = 10
	defaultRequestTimeout = 5 * time.Second
	defaultLogLevel       = "info"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		ReconnectDelay: defaultReconnectDelay,
		FallbackPoll:   defaultFallbackPoll,
		PageSize:       defaultPageSize,
		RequestTimeout: defaultRequestTimeout,
		LogLevel:       defaultLogLevel,
		LogFile:        mustExpand(defaultLogFile),
	}
}

// Load locates and parses the sentinel config, falling back to defaults when
// the file is missing. SENTINEL_BASE_URL overrides base_url. The result is
// validated.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	cfg.Path = resolved

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.apply(bytes); err != nil {
			return Config{}, err
		}
	}

	if env := strings.TrimSpace(os.Getenv(EnvBaseURL)); env != "" {
		cfg.BaseURL = env
	}
	cfg.BaseURL = normalizeBaseURL(cfg.BaseURL)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(data []byte) error {
	var raw struct {
		BaseURL        string `toml:"base_url"`
		ReconnectDelay string `toml:"reconnect_delay"`
		FallbackPoll   string `toml:"fallback_poll"`
		PageSize       int    `toml:"page_size"`
		RequestTimeout string `toml:"request_timeout"`
		LogLevel       string `toml:"log_level"`
		LogFile        string `toml:"log_file"`
		MetricsAddr    string `toml:"metrics_addr"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		c.BaseURL = v
	}
	if err := parseDuration("reconnect_delay", raw.ReconnectDelay, &c.ReconnectDelay); err != nil {
		return err
	}
	if err := parseDuration("fallback_poll", raw.FallbackPoll, &c.FallbackPoll); err != nil {
		return err
	}
	if err := parseDuration("request_timeout", raw.RequestTimeout, &c.RequestTimeout); err != nil {
		return err
	}
	if raw.PageSize != 0 {
		c.PageSize = raw.PageSize
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	c.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	return nil
}

// Override applies command-line values on top of the loaded config. Empty
// values leave the field unchanged.
func (c *Config) Override(baseURL, metricsAddr, logLevel string) error {
	if v := strings.TrimSpace(baseURL); v != "" {
		c.BaseURL = normalizeBaseURL(v)
	}
	if v := strings.TrimSpace(metricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := strings.ToLower(strings.TrimSpace(logLevel)); v != "" {
		c.LogLevel = v
	}
	return c.Validate()
}

// normalizeBaseURL adds http:// to bare host:port values.
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

func parseDuration(key, value string, dest *time.Duration) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	*dest = d
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Call it again after applying flag
// overrides.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fieldKey(fe.Field()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

var fieldKeys = map[string]string{
	"BaseURL":        "base_url",
	"ReconnectDelay": "reconnect_delay",
	"FallbackPoll":   "fallback_poll",
	"PageSize":       "page_size",
	"RequestTimeout": "request_timeout",
	"LogLevel":       "log_level",
	"MetricsAddr":    "metrics_addr",
}

func fieldKey(field string) string {
	if key, ok := fieldKeys[field]; ok {
		return key
	}
	return field
}

// LogDir returns the directory holding the client log file.
func (c Config) LogDir() string {
	if strings.TrimSpace(c.LogFile) == "" {
		return filepath.Dir(mustExpand(defaultLogFile))
	}
	return filepath.Dir(c.LogFile)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
