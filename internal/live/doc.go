// Package live keeps the dashboard stores in sync with the backend's
// WebSocket stream.
//
// A Manager is created once per session. Start runs one bulk fetch per
// registered Domain in parallel and opens a single connection to <base>/ws.
// Each inbound frame {"type": ..., "payload": {...}} is routed by type to
// exactly one store's Replace; frames of unknown type are logged and
// dropped.
//
// When the connection closes or a dial fails, the manager moves to Closed,
// arms one reconnect timer (Reconnecting) and, when it fires, tries again
// (Connecting). The delay is fixed; there is no backoff and no attempt cap.
// Reconnecting does not repeat the bulk fetch. Stop cancels the timer and the
// connection and makes the manager inert.
package live
