// Package cloudevent builds and delivers CloudEvents 1.0 envelopes over HTTP.
package cloudevent

import "time"

// CloudEvent is a CloudEvents 1.0 envelope. The correlation id of the record
// being delivered rides along as the "correlationid" extension attribute so
// receivers can tie the event back to the originating request.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject,omitempty"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	CorrelationID   string         `json:"correlationid,omitempty"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// New builds a version 1.0 envelope stamped with the current time.
func New(eventType, source, subject, id string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Headers returns the binary-mode Ce-* header set for the envelope. The
// correlation extension is included only when present.
func (e *CloudEvent) Headers() map[string]string {
	h := map[string]string{
		"Ce-Specversion": e.SpecVersion,
		"Ce-Type":        e.Type,
		"Ce-Source":      e.Source,
		"Ce-Subject":     e.Subject,
		"Ce-Id":          e.ID,
		"Ce-Time":        e.Time.Format(time.RFC3339),
	}
	if e.CorrelationID != "" {
		h["Ce-Correlationid"] = e.CorrelationID
	}
	return h
}
