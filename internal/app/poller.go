package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/sentinel/internal/live"
)

const maxBackoff = 2 * time.Minute

// StateSource reports the stream connection state.
type StateSource interface {
	State() live.ConnectionState
}

// StartFallbackPoller refreshes every domain with its bulk fetch while the
// stream is not open, so the dashboards degrade to polling instead of going
// stale during an outage. Consecutive failures back off exponentially up to
// maxBackoff. A non-positive interval disables the poller. It returns
// immediately.
func StartFallbackPoller(ctx context.Context, conn StateSource, domains []live.Domain, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "fallback_poller")

	go func() {
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if conn.State() == live.Open {
				failures = 0
				timer.Reset(interval)
				continue
			}

			if err := refresh(ctx, domains); err != nil {
				failures++
				next := calculateBackoff(failures, interval)
				logger.Warn("fallback poll failed", "error", err, "failures", failures, "next_in", next)
				timer.Reset(next)
				continue
			}
			if failures > 0 {
				logger.Info("fallback poll recovered", "after_failures", failures)
			}
			failures = 0
			timer.Reset(interval)
		}
	}()
}

// versionedReplacer is implemented by stores that can refuse a snapshot
// when another update landed after version was read.
type versionedReplacer interface {
	ReplaceIfVersion(payload json.RawMessage, version uint64) (bool, error)
}

// refresh runs every domain's bulk fetch in parallel and replaces each store
// with the result. A result is discarded when a push updated the store while
// the fetch was in flight, since the push is newer.
func refresh(ctx context.Context, domains []live.Domain) error {
	var g errgroup.Group
	for _, d := range domains {
		if d.Fetch == nil || d.Store == nil {
			continue
		}
		g.Go(func() error {
			before := d.Store.Version()
			payload, err := d.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			if vr, ok := d.Store.(versionedReplacer); ok {
				_, err = vr.ReplaceIfVersion(payload, before)
			} else {
				err = d.Store.Replace(payload)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
