// Package logtail reads the tail of sentinel's own log file for the
// Activity view.
//
// # Reading
//
// Read returns the last maxLines of a file using a ring buffer, so memory
// stays O(maxLines) regardless of file size. A missing file yields no lines
// and no error.
//
// # Parsing
//
// The client logs with slog's text handler:
//
//	time=2025-12-13T10:11:12.000Z level=WARN msg="stream disconnected" component=live retry_in=10s
//
// Parse splits such a line into time, level, message and the remaining
// attributes. Quoted values are unquoted. Lines in any other format (a panic
// trace, say) are returned with Msg holding the whole line.
package logtail
