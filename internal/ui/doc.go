// Package ui implements the sentinel terminal dashboard with Bubble Tea.
//
// # Views
//
//   - Overview: email and network stat cards plus the most recent phishing
//     email and malicious flow
//   - Emails: paginated table of classified emails with a detail pane
//   - Network flows: paginated table of captured flows, optionally limited
//     to malicious ones
//   - Activity: tail of the sentinel log file
//
// # Data Flow
//
// The model never polls the stores. Store and connection listeners push a
// wake-up into a one-slot channel; a pending command blocks on that channel
// and, when woken, reads the current snapshot and delivers it as a message.
// Bursts of updates therefore collapse into one redraw, and listeners never
// block the goroutine that produced the update.
//
// Page loads run as commands. Their results reach the model through the same
// store subscription; the command's own message only reports errors.
//
// # Preferences
//
// Theme and the active view are saved to the prefs file whenever they change
// and restored on the next start.
package ui
