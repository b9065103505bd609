package event

import "context"

type correlationKey struct{}

// ContextWithCorrelation returns a context carrying a correlation id.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationFromContext returns the correlation id carried by ctx, or an
// empty string.
func CorrelationFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
