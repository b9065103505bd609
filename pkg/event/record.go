// Package event defines the records that flow through the delivery queue.
package event

import (
	"fmt"
	"time"
)

// Kind selects which subscriber track call delivers a record.
type Kind string

const (
	KindEvent      Kind = "event"       // plain named event
	KindFunnelStep Kind = "funnel_step" // step reached in a named funnel
	KindOutcome    Kind = "outcome"     // success or failure of a named operation
	KindValue      Kind = "value"       // numeric measurement
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEvent, KindFunnelStep, KindOutcome, KindValue:
		return true
	}
	return false
}

// Record is a single tracked event.
//
// Name is the event, outcome or measurement name; for funnel steps it names
// the funnel and Step names the step. Success is meaningful only for
// KindOutcome and Value only for KindValue.
type Record struct {
	Kind          Kind           `json:"kind"`
	Name          string         `json:"name"`
	Step          string         `json:"step,omitempty"`
	Success       bool           `json:"success,omitempty"`
	Value         float64        `json:"value,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// New creates a plain event record.
func New(name string, attrs map[string]any) Record {
	return Record{
		Kind:       KindEvent,
		Name:       name,
		Attributes: attrs,
		Timestamp:  time.Now().UTC(),
	}
}

// NewFunnelStep creates a funnel step record.
func NewFunnelStep(funnel, step string, attrs map[string]any) Record {
	return Record{
		Kind:       KindFunnelStep,
		Name:       funnel,
		Step:       step,
		Attributes: attrs,
		Timestamp:  time.Now().UTC(),
	}
}

// NewOutcome creates an outcome record.
func NewOutcome(name string, success bool, attrs map[string]any) Record {
	return Record{
		Kind:       KindOutcome,
		Name:       name,
		Success:    success,
		Attributes: attrs,
		Timestamp:  time.Now().UTC(),
	}
}

// NewValue creates a value record.
func NewValue(name string, value float64, attrs map[string]any) Record {
	return Record{
		Kind:       KindValue,
		Name:       name,
		Value:      value,
		Attributes: attrs,
		Timestamp:  time.Now().UTC(),
	}
}

// Validate checks structural validity: known kind, required names and
// scalar attribute values.
func (r Record) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Kind == KindFunnelStep && r.Step == "" {
		return fmt.Errorf("step is required for funnel_step records")
	}
	return ValidateAttributes(r.Attributes)
}

// ValidateAttributes checks that every attribute value is a scalar.
func ValidateAttributes(attrs map[string]any) error {
	for k, v := range attrs {
		if !scalar(v) {
			return fmt.Errorf("attribute %q: value must be a string, bool or number", k)
		}
	}
	return nil
}

// scalar reports whether v is an allowed attribute value. Attributes carry
// dimensions, not payloads, so nested structures are rejected.
func scalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
