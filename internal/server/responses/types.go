// Package responses defines the JSON response types for the public HTTP surface.
package responses

import "time"

// StateResponse is the GET /state payload.
type StateResponse struct {
	Count       int64   `json:"count"`
	Target      int64   `json:"target"`
	CA          *string `json:"ca"`
	Launched    bool    `json:"launched"`
	Locked      bool    `json:"locked"`
	LockMsg     string  `json:"lock_msg"`
	Decree      string  `json:"decree"`
	TideWarning string  `json:"tide_warning"`
	Blessed     string  `json:"blessed"`
}

// PingResponse is the GET /ping payload.
type PingResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookAck is the immediate POST /webhook acknowledgement.
type WebhookAck struct {
	Status string `json:"status"`
}
