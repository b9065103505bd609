package ingest

import "time"

// Request represents a track request submitted over the API. Success and
// Value are pointers so validation can tell an absent field from a zero.
// Timestamp lets late reporters keep the original event time.
type Request struct {
	Kind          string         `json:"kind"`
	Name          string         `json:"name"`
	Step          string         `json:"step,omitempty"`
	Success       *bool          `json:"success,omitempty"`
	Value         *float64       `json:"value,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Timestamp     *time.Time     `json:"timestamp,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// Response acknowledges an accepted record.
type Response struct {
	Status        string `json:"status"` // "accepted"
	CorrelationID string `json:"correlationId"`
}

// StatusAccepted is the status returned for accepted records.
// Accepted means queued, not delivered.
const StatusAccepted = "accepted"
