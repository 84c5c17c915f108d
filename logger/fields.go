package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldContextID = "context"
	FieldInstance  = "instance"
	FieldPlugin    = "plugin"
	FieldEvent     = "event"
	FieldCallback  = "callback"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldMode      = "mode"
	FieldOrder     = "order"
	FieldFamilies  = "families"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldTimeout    = "timeout"

	// Errors
	FieldError = "error"

	// Status
	FieldSuccess = "success"

	// Configuration
	FieldLogLevel = "log_level"
	FieldPaths    = "paths"

	// Network
	FieldAddress = "address"

	// Files
	FieldFile = "file"
	FieldPath = "path"
)

type contextKey string

const methodKey contextKey = "logger_method"

// WithMethod adds the RPC method name to the context for logging
func WithMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey, method)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if method, ok := ctx.Value(methodKey).(string); ok && method != "" {
		fields = append(fields, FieldMethod, method)
	}

	return fields
}

// FromContext returns base enriched with the fields carried by ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	server := grpc.NewPipelineServer(registry, logger.ComponentLogger("rpc"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
