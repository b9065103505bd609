// Package observability provides metrics, tracing, and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrSubscriber = "subscriber"
	attrReason     = "reason"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with IDs to reduce cardinality
	// /v1/subscribers/webhook/health -> /v1/subscribers/{subscriber}/health
	normalized := normalizePath(path)
	return attribute.String(attrPath, normalized)
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func subscriberAttr(subscriber string) attribute.KeyValue {
	return attribute.String(attrSubscriber, subscriber)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(attrReason, reason)
}

// normalizePath replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	const prefix = "/v1/subscribers/"
	if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
		rest := path[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return prefix + "{subscriber}" + rest[i:]
		}
		return prefix + "{subscriber}"
	}
	return path
}

// WithSubscriber returns a metric option with the subscriber attribute.
func WithSubscriber(subscriber string) metric.MeasurementOption {
	return metric.WithAttributes(subscriberAttr(subscriber))
}

// WithReason returns a metric option with the reason attribute.
func WithReason(reason string) metric.MeasurementOption {
	return metric.WithAttributes(reasonAttr(reason))
}
