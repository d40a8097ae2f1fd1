package logging

import (
	"context"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	messageIDKey
	serviceNameKey
)

// Field names as they appear in log output.
const (
	TraceIDField     = "trace_id"
	MessageIDField   = "message_id"
	ServiceNameField = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

// WithServiceName overrides the logger's own service name for log lines
// emitted under this context.
func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, serviceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

func GetMessageID(ctx context.Context) string {
	v, _ := ctx.Value(messageIDKey).(string)
	return v
}

func GetServiceName(ctx context.Context) string {
	v, _ := ctx.Value(serviceNameKey).(string)
	return v
}

// GetLogFields returns the context correlation values as alternating
// key/value pairs ready to pass to a sugared logger.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, TraceIDField, traceID)
	}
	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, MessageIDField, messageID)
	}
	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, ServiceNameField, serviceName)
	}

	return fields
}
