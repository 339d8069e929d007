package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/five82/sentinel/internal/api"
)

// EmailStats is the email dashboard record. The zero value is the default
// shown before any update.
type EmailStats struct {
	TotalEmails       int
	PhishingEmails    int
	LastPhishingTime  *time.Time // nil when the backend has none
	LastPhishingEmail api.PhishingDetail
}

type (
	EmailSnapshot = Snapshot[EmailStats, api.EmailRow]
	EmailStore    = Store[EmailStats, api.EmailRow]
)

// EmailPager fetches pages of classified emails.
type EmailPager interface {
	FetchEmails(ctx context.Context, query api.PageQuery) (api.PageResponse[api.EmailRow], error)
}

// NewEmailStore returns the store for the email domain.
func NewEmailStore(pager EmailPager, opts ...Option) *EmailStore {
	return newStore("email", DecodeEmailStats, pager.FetchEmails, opts)
}

// DecodeEmailStats builds an EmailStats record from a raw payload, applying
// defaults to every field the payload omits.
func DecodeEmailStats(payload json.RawMessage) (EmailStats, error) {
	var wire api.EmailStats
	if err := decodeObject(payload, &wire); err != nil {
		return EmailStats{}, err
	}
	stats := EmailStats{
		TotalEmails:      nonNegative(wire.TotalEmails),
		PhishingEmails:   nonNegative(wire.PhishingEmails),
		LastPhishingTime: optionalTime(wire.LastPhishingTime),
	}
	if wire.LastPhishingEmail != nil {
		stats.LastPhishingEmail = *wire.LastPhishingEmail
	}
	return stats, nil
}
