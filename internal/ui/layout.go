package ui

import "time"

const (
	// chromeHeight is the header plus the command bar.
	chromeHeight = 2

	refreshInterval = time.Second

	cardHeight   = 7
	detailHeight = 9

	// activityLines bounds how much of the log file the activity view reads.
	activityLines = 500

	// Table columns
	colTime    = 19
	colVerdict = 10
	colRisk    = 6
	colSender  = 28
	colProto   = 6
	colAddr    = 22
)
