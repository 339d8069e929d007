// Package app provides the orchestration layer for sentinel.
//
// # Overview
//
// This package wires configuration, the REST client, the per-domain stores,
// the connection manager, metrics and the UI into a running program. It is
// the composition root: every collaborator is constructed here once per
// session and handed to consumers by reference.
//
// # Components
//
//   - app.go: Session construction, Start/Stop, and Run for the TUI
//   - poller.go: fallback poller that refreshes stores while the stream is down
//   - watch.go: headless mode that logs every update
//
// # Data Flow
//
//	┌──────────────┐
//	│ NewSession() │
//	└──────┬───────┘
//	       ├─────> api.NewClient()        REST transport (rate limited, observed)
//	       ├─────> state.NewEmailStore()  email stats + email table
//	       ├─────> state.NewNetworkStore() network stats + flow table
//	       └─────> live.New()             one manager, both domains registered
//
//	┌──────────────┐
//	│  Start()     │
//	└──────┬───────┘
//	       ├─────> Manager.Start()        bulk fetch each domain, open /ws
//	       ├─────> StartFallbackPoller()  polls only while not Open
//	       └─────> Metrics.Serve()        when metrics_addr is set
//
// Run then blocks in ui.Run; RunWatch blocks until the context is cancelled.
//
// # Fallback Polling
//
// The stream is the primary update path. While the connection is anything
// other than Open, the fallback poller re-runs every domain's bulk fetch each
// fallback_poll interval and replaces the stores with the results. After
// consecutive failures the wait doubles, up to two minutes:
//
//	Failures | Wait (15s base)
//	---------|----------------
//	0        | 15s
//	1        | 30s
//	2        | 60s
//	3+       | 2m (capped)
//
// This backoff applies to polling only. Stream reconnects always wait the
// fixed reconnect_delay.
//
// # Lifecycle
//
// Cancelling the context passed to Start stops the manager, the poller and
// the metrics server. Session.Stop additionally blocks until the manager's
// goroutines have exited.
package app
