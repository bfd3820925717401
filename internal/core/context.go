package core

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxKeyJobID    contextKey = "job_id"
	ctxKeyOperator contextKey = "operator"
)

// ContextWithJobID tags ctx with the id of the job it runs.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, id)
}

// NewJobContext tags ctx with a fresh job id and returns both.
func NewJobContext(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return ContextWithJobID(ctx, id), id
}

// JobIDFromContext extracts the job id, or "" when none was set.
func JobIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyJobID).(string); ok {
		return v
	}
	return ""
}

// ContextWithOperator records who triggered a job (client IP or CLI user).
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, ctxKeyOperator, operator)
}

// OperatorFromContext extracts the operator, or "" when none was set.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOperator).(string); ok {
		return v
	}
	return ""
}
