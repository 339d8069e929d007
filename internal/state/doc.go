// Package state provides thread-safe stores for the live email and network
// dashboards.
//
// # Overview
//
// Each domain (email, network) owns one Store. A store holds the latest
// snapshot for its domain and is the coordination point where bulk fetches,
// pushed stream frames, page requests and the UI meet.
//
// # Architecture
//
//	Producers:                       Consumers:
//	┌──────────────────────┐        ┌─────────────────────┐
//	│ bulk fetch (REST)    │        │ Subscribe listeners │
//	│ stream frames (WS)   │──────→ │ (UI, watch output)  │
//	│ ReplaceSnapshot()    │ (lock) │                     │
//	├──────────────────────┤        │ Snapshot()          │
//	│ FetchPage()          │──────→ │                     │
//	└──────────────────────┘        └─────────────────────┘
//
// # Snapshot Shape
//
// A Snapshot has two halves that change independently:
//
//   - Stats: the dashboard record. ReplaceSnapshot swaps it whole. Fields the
//     payload omits take their defaults; nothing is merged from the previous
//     record. ReplaceSnapshot of an empty object yields the same Stats as a
//     freshly constructed store.
//   - Table: the paginated rows. Only FetchPage (and SetFilter) touch it, so a
//     pushed stats frame never erases the table the user is paging through.
//
// Version counts successful stats replacements. The connection manager uses
// it to avoid overwriting a pushed frame with an older bulk fetch result.
//
// # Update Semantics
//
//	// Pushed or fetched stats
//	store.ReplaceSnapshot(payload)
//	→ snapshot.Stats = decode(payload) with defaults
//	→ snapshot.Version++
//	→ listeners notified
//
//	// Page request, success
//	store.FetchPage(ctx, 2, 10)
//	→ Table.IsLoading = true, listeners notified
//	→ Table = {Items, TotalCount, Page, PageSize}, IsLoading = false
//
//	// Page request, failure
//	→ Table.Items unchanged, Table.LastError = err, IsLoading = false
//
// A payload that is not a JSON object (for example an array or a string) is
// rejected with an error and the snapshot is left untouched.
//
// # Notifications
//
// Listeners registered with Subscribe run synchronously, in registration
// order, after every mutation. Mutations and their notifications are
// serialized so listeners never see versions out of order. Listeners must not
// call mutating methods on the same store.
//
// # Defensive Copying
//
// Snapshot and every notification return copies; the Items slice is cloned.
// Callers may modify what they receive.
package state
