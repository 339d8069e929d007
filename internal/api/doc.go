// Package api provides an HTTP client for the monitoring backend's REST API.
//
// # Overview
//
// The backend classifies email (phishing) and network flows (malicious traffic)
// and exposes read-only JSON endpoints for dashboard stats and paginated tables.
// This package handles request construction, JSON decoding, and the typed
// representation of those payloads.
//
// # Client Usage
//
//	client, err := api.NewClient("http://localhost:8080")
//	if err != nil {
//		log.Fatalf("failed to create client: %v", err)
//	}
//
//	// Bulk stats are returned as raw JSON; the stores decode and default them.
//	raw, err := client.FetchEmailStats(ctx)
//
//	// Paginated tables are decoded into PageResponse values.
//	page, err := client.FetchPackets(ctx, api.PageQuery{Page: 2, PageSize: 10, MaliciousOnly: true})
//
// # API Endpoints
//
//   - GET /api/email-stats: email dashboard stats
//   - GET /api/network-stats: network dashboard stats
//   - GET /api/emails?page=&pageSize=: paginated email rows under "emails"
//   - GET /api/network-packets?page=&pageSize=: paginated flows under "packets"
//   - GET /api/malicious-packets?page=&pageSize=: same shape, malicious flows only
//
// Page responses report the page size as either "pageSize" or "page_size";
// both are accepted.
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation and timeout control
//   - Set Accept: application/json and User-Agent: sentinel/0.1
//   - Have a 5-second timeout (WithTimeout)
//   - Pass through a token-bucket limiter (WithRateLimit) so held paging keys
//     cannot flood the backend
//
// # Error Handling
//
// Every failure is returned as a *RequestError carrying the endpoint and, when a
// response arrived, its status code. Callers match it with errors.As.
//
// Example error messages:
//   - "execute request: dial tcp: connection refused"
//   - "api /api/email-stats returned status 500"
//   - "decode response: field total: json: cannot unmarshal string ..."
//
// # Thread Safety
//
// The Client is safe for concurrent use.
package api
