// Package config loads sentinel's TOML configuration.
//
// # Overview
//
// The config tells sentinel where the monitoring backend lives and how the
// live sync behaves. Every field is optional; a missing file yields defaults.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/sentinel/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//  5. SENTINEL_BASE_URL, when set, replaces base_url
//  6. Command-line flags (Override) replace anything above
//
// # Fields
//
//	base_url        = "http://localhost:8080"  # REST base; the stream is <base>/ws
//	reconnect_delay = "10s"                    # fixed wait after a drop
//	fallback_poll   = "15s"                    # bulk refresh while disconnected; "0s" disables
//	page_size       = 10                       # table rows per page (1..100)
//	request_timeout = "5s"
//	log_level       = "info"                   # debug | info | warn | error
//	log_file        = "~/.local/state/sentinel/sentinel.log"
//	metrics_addr    = ""                       # e.g. "127.0.0.1:9464"; empty disables
//
// Durations use Go syntax ("500ms", "1m30s"). Bare host:port base URLs get
// an http:// prefix.
//
// # Validation
//
// Load and Override validate the result with struct tags
// (go-playground/validator). Errors name the TOML key:
//
//	invalid config: page_size failed "max" (value 500)
//
// # Path Expansion
//
// Paths starting with ~ are expanded to the user's home directory and made
// absolute.
package config
