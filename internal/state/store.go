package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/sentinel/internal/api"
)

// Snapshot is the latest data available to views for one domain.
type Snapshot[S any, R any] struct {
	Stats     S
	Table     Page[R]
	Version   uint64 // successful stats replacements
	UpdatedAt time.Time
}

// HasStats reports whether any stats update has been applied yet. Views show
// a loading placeholder until it is true.
func (s Snapshot[S, R]) HasStats() bool {
	return s.Version > 0
}

// DecodeFunc turns a raw stats payload into a fully defaulted stats record.
type DecodeFunc[S any] func(payload json.RawMessage) (S, error)

// PageFunc fetches one page of table rows.
type PageFunc[R any] func(ctx context.Context, query api.PageQuery) (api.PageResponse[R], error)

// Store coordinates concurrent updates to one domain snapshot. The zero value
// is not usable; construct stores with NewEmailStore or NewNetworkStore.
type Store[S any, R any] struct {
	name   string
	decode DecodeFunc[S]
	fetch  PageFunc[R]
	logger *slog.Logger

	// notifyMu serializes mutate+notify so listeners observe updates in order.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	snapshot Snapshot[S, R]
	pageSeq  uint64

	subs subscribers[Snapshot[S, R]]
}

// Option customizes a store.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	pageSize int
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPageSize sets the initial table page size.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

const defaultPageSize = 10

func newStore[S any, R any](name string, decode DecodeFunc[S], fetch PageFunc[R], opts []Option) *Store[S, R] {
	o := options{logger: slog.Default(), pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[S, R]{
		name:   name,
		decode: decode,
		fetch:  fetch,
		logger: o.logger.With("component", "store", "domain", name),
		snapshot: Snapshot[S, R]{
			Table: defaultPage[R](o.pageSize),
		},
	}
}

// Name returns the domain name.
func (s *Store[S, R]) Name() string {
	return s.name
}

// Snapshot returns a copy of the current snapshot.
func (s *Store[S, R]) Snapshot() Snapshot[S, R] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Version returns the number of stats replacements applied so far.
func (s *Store[S, R]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Version
}

// Subscribe registers a listener called synchronously after every successful
// mutation. Listeners must not mutate the store. The returned function
// removes the listener.
func (s *Store[S, R]) Subscribe(listener func(Snapshot[S, R])) (unsubscribe func()) {
	return s.subs.add(listener)
}

// Replace implements the dispatch target used by the connection manager.
func (s *Store[S, R]) Replace(payload json.RawMessage) error {
	return s.ReplaceSnapshot(payload)
}

// ReplaceSnapshot decodes payload into a fresh stats record and swaps it in
// whole. Fields missing from payload take their defaults; nothing is carried
// over from the previous record. A payload that is not a JSON object is
// rejected and leaves the snapshot untouched.
func (s *Store[S, R]) ReplaceSnapshot(payload json.RawMessage) error {
	stats, err := s.decode(payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", s.name, err)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.applyLocked(stats)
	return nil
}

// ReplaceIfVersion behaves like ReplaceSnapshot but only applies payload
// while the store is still at version. It reports whether the payload was
// applied. Callers read Version before starting a slow fetch so that a
// result cannot overwrite an update that landed in the meantime.
func (s *Store[S, R]) ReplaceIfVersion(payload json.RawMessage, version uint64) (bool, error) {
	stats, err := s.decode(payload)
	if err != nil {
		return false, fmt.Errorf("decode %s payload: %w", s.name, err)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.Version() != version {
		return false, nil
	}
	s.applyLocked(stats)
	return true, nil
}

// applyLocked swaps in stats and notifies. Callers hold notifyMu.
func (s *Store[S, R]) applyLocked(stats S) {
	s.mu.Lock()
	s.snapshot.Stats = stats
	s.snapshot.Version++
	s.snapshot.UpdatedAt = time.Now()
	snap := s.copyLocked()
	s.mu.Unlock()

	s.subs.notify(snap)
}

// FetchPage requests one table page. IsLoading is set while the request is
// in flight. On success the page fields are replaced; on failure prior items
// are kept and the error is recorded. Only the most recently started fetch
// may apply its result. The page number is not clamped against TotalCount;
// bound checks belong to the view.
func (s *Store[S, R]) FetchPage(ctx context.Context, page, pageSize int) error {
	if page < 1 {
		page = 1
	}

	s.notifyMu.Lock()
	s.mu.Lock()
	if pageSize < 1 {
		pageSize = s.snapshot.Table.PageSize
	}
	s.pageSeq++
	seq := s.pageSeq
	s.snapshot.Table.IsLoading = true
	query := api.PageQuery{
		Page:          page,
		PageSize:      pageSize,
		MaliciousOnly: s.snapshot.Table.Filter == FilterMalicious,
	}
	snap := s.copyLocked()
	s.mu.Unlock()
	s.subs.notify(snap)
	s.notifyMu.Unlock()

	resp, err := s.fetch(ctx, query)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if seq != s.pageSeq {
		// A newer fetch owns the table now.
		s.mu.Unlock()
		return err
	}
	table := &s.snapshot.Table
	table.IsLoading = false
	switch {
	case err != nil:
		table.LastError = err
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("page fetch failed", "page", page, "page_size", pageSize, "error", err)
		}
	case ctx.Err() != nil:
		// Resolved after teardown; keep what we had.
	default:
		var dropped int
		*table, dropped = pageFromResponse(resp, query, table.Filter)
		if dropped > 0 {
			s.logger.Debug("page response longer than page size; extra rows dropped",
				"page", table.Page, "page_size", table.PageSize, "dropped", dropped)
		}
	}
	snap = s.copyLocked()
	s.mu.Unlock()

	s.subs.notify(snap)
	return err
}

// SetFilter selects the table filter and reloads the first page.
func (s *Store[S, R]) SetFilter(ctx context.Context, filter PageFilter) error {
	s.mu.Lock()
	s.snapshot.Table.Filter = filter
	pageSize := s.snapshot.Table.PageSize
	s.mu.Unlock()
	return s.FetchPage(ctx, 1, pageSize)
}

func (s *Store[S, R]) copyLocked() Snapshot[S, R] {
	snap := s.snapshot
	snap.Table = s.snapshot.Table.clone()
	return snap
}

// decodeObject unmarshals a stats payload. Empty and null payloads decode to
// the zero value. A member whose JSON type does not fit its field is left at
// the field's default while the rest of the object still decodes.
func decodeObject(payload json.RawMessage, dest any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("payload is not an object")
	}
	err := json.Unmarshal(trimmed, dest)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func optionalTime(value string) *time.Time {
	t := api.ParseTime(value)
	if t.IsZero() {
		return nil
	}
	return &t
}
