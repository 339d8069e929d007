// Package metrics exposes sentinel's sync health as Prometheus metrics on a
// private registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/five82/sentinel/internal/api"
	"github.com/five82/sentinel/internal/live"
)

const namespace = "sentinel"

// Recorder implements both the REST client observer and the connection
// manager observer.
type Recorder struct {
	registry *prometheus.Registry

	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	reconnects     prometheus.Counter
	connState      prometheus.Gauge
	bulkFailures   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	requestErrors  *prometheus.CounterVec
}

var (
	_ api.Observer  = (*Recorder)(nil)
	_ live.Observer = (*Recorder)(nil)
)

// New builds a Recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_received_total",
			Help:      "Stream frames applied to a store, by frame type.",
		}, []string{"type"}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_dropped_total",
			Help:      "Stream frames dropped, by reason.",
		}, []string{"reason"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_scheduled_total",
			Help:      "Reconnect timers armed after a drop or failed dial.",
		}),
		connState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connection_state",
			Help:      "Connection state: 0 idle, 1 connecting, 2 open, 3 closed, 4 reconnecting.",
		}),
		bulkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_fetch_failures_total",
			Help:      "Bulk fetches that failed or were rejected, by domain.",
		}, []string{"domain"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "REST request latency by endpoint and outcome.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint", "outcome"}),
		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_request_errors_total",
			Help:      "Failed REST requests by endpoint.",
		}, []string{"endpoint"}),
	}
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest records one REST request.
func (r *Recorder) ObserveRequest(endpoint string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		r.requestErrors.WithLabelValues(endpoint).Inc()
	}
	r.requestLatency.WithLabelValues(endpoint, outcome).Observe(elapsed.Seconds())
}

// StateChanged sets the connection state gauge. Recorder implements live.Observer.
func (r *Recorder) StateChanged(state live.ConnectionState) {
	r.connState.Set(float64(state))
}

// FrameReceived counts a decoded push frame by kind.
func (r *Recorder) FrameReceived(kind string) {
	r.framesReceived.WithLabelValues(kind).Inc()
}

// FrameDropped counts a frame discarded before dispatch, labelled by reason.
func (r *Recorder) FrameDropped(reason string) {
	r.framesDropped.WithLabelValues(reason).Inc()
}

// ReconnectScheduled counts a reconnect timer being armed.
func (r *Recorder) ReconnectScheduled() {
	r.reconnects.Inc()
}

// BulkFetchFailed counts a failed seeding fetch for domain.
func (r *Recorder) BulkFetchFailed(domain string) {
	r.bulkFailures.WithLabelValues(domain).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve listens on addr and serves /metrics until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "component", "metrics", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
