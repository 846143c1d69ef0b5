package core

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

type taskIDKey struct{}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithTaskID adds the ID of the executing task to the context
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, taskID)
}

// GetTaskID retrieves the task ID from context
func GetTaskID(ctx context.Context) string {
	if id, ok := ctx.Value(taskIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateID generates a new random identifier for requests and tasks
func GenerateID() string {
	return uuid.New().String()
}
