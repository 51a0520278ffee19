package logger

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NoCorrelationID is logged when a request carried no correlation id.
const NoCorrelationID = "NO CORRELATION ID"

// Log field names.
const (
	FieldComponent     = "component"
	FieldCorrelationID = "correlationId"
)

var serviceName = "settings-service" //nolint:gochecknoglobals

type correlationKey struct{}

// For returns a logger tagged with the component and correlation id.
func For(component, correlationID string) zerolog.Logger {
	if correlationID == "" {
		correlationID = NoCorrelationID
	}

	return log.Logger.With().
		Str(FieldComponent, serviceName+"::"+component).
		Str(FieldCorrelationID, correlationID).
		Logger()
}

// NewContext stores the correlation id in ctx.
func NewContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationID returns the id stored by NewContext.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(correlationKey{}).(string)

	return id
}

// FromContext is For with the correlation id taken from ctx.
func FromContext(ctx context.Context, component string) *zerolog.Logger {
	l := For(component, CorrelationID(ctx))

	return &l
}
