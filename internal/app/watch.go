package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/five82/sentinel/internal/live"
	"github.com/five82/sentinel/internal/logging"
	"github.com/five82/sentinel/internal/state"
)

// RunWatch starts a session without the TUI and writes one structured line
// to out for every store update and connection transition, until ctx is
// cancelled.
func RunWatch(ctx context.Context, opts Options, out io.Writer) error {
	session, err := NewSession(opts.Config, opts.Logger)
	if err != nil {
		return err
	}
	return Watch(ctx, session, logging.New(out, opts.Config.LogLevel))
}

// Watch subscribes to session's stores and connection, starts it and blocks
// until ctx is done.
func Watch(ctx context.Context, session *Session, out *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := []func(){
		session.Manager.SubscribeState(func(s live.ConnectionState) {
			out.Info("connection", "state", s.String(), "url", session.Manager.URL())
		}),
		session.Email.Subscribe(func(snap state.EmailSnapshot) {
			logEmail(out, snap)
		}),
		session.Network.Subscribe(func(snap state.NetworkSnapshot) {
			logNetwork(out, snap)
		}),
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop()

	<-ctx.Done()
	return nil
}

func logEmail(out *slog.Logger, snap state.EmailSnapshot) {
	s := snap.Stats
	attrs := []any{
		"total", humanize.Comma(int64(s.TotalEmails)),
		"phishing", humanize.Comma(int64(s.PhishingEmails)),
		"phishing_rate", rate(s.PhishingEmails, s.TotalEmails),
		"last_phishing", ago(s.LastPhishingTime),
	}
	if subject := s.LastPhishingEmail.Subject; subject != "" {
		attrs = append(attrs, "last_subject", subject, "last_sender", s.LastPhishingEmail.Sender)
	}
	out.Info("email stats", attrs...)
}

func logNetwork(out *slog.Logger, snap state.NetworkSnapshot) {
	s := snap.Stats
	attrs := []any{
		"total", humanize.Comma(int64(s.TotalFlows)),
		"malicious", humanize.Comma(int64(s.MaliciousFlows)),
		"malicious_rate", rate(s.MaliciousFlows, s.TotalFlows),
		"last_malicious", ago(s.LastMaliciousTime),
	}
	if flow := s.LastMaliciousFlow; flow.FlowID != "" {
		attrs = append(attrs, "last_flow", flow.FlowID, "src", flow.SrcIP, "dst", flow.DstIP)
	}
	out.Info("network stats", attrs...)
}

func rate(part, total int) string {
	if total <= 0 {
		return "0%"
	}
	return humanize.FtoaWithDigits(float64(part)*100/float64(total), 1) + "%"
}

func ago(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.Time(*t)
}
