package models

import "time"

// RateWindow is the fixed-window counter for one identifier
type RateWindow struct {
	Identifier  string
	WindowStart time.Time
	Count       int
}

// ResetAt returns when the window expires
func (w RateWindow) ResetAt(length time.Duration) time.Time {
	return w.WindowStart.Add(length)
}

// RateDecision is the outcome of a single rate limit check
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
