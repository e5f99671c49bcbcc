package models

import "time"

// GrabStatus is a point-in-time view of the grab loop, served by the status endpoint.
type GrabStatus struct {
	Channel        string     `json:"channel"`
	Live           bool       `json:"live"`
	TokenPresent   bool       `json:"token_present"`
	Marker         string     `json:"marker,omitempty"`
	LastPollAt     *time.Time `json:"last_poll_at,omitempty"`
	LastPollResult string     `json:"last_poll_result,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastCapture    *Capture   `json:"last_capture,omitempty"`
	Captures       int64      `json:"captures"`
	StartedAt      time.Time  `json:"started_at"`
}
