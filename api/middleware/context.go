package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxCoachID contextKey = "coach_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

// CoachIDFromContext returns the coach the caller acts as. Admin tokens usually carry none.
func CoachIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxCoachID).(uuid.UUID)
	if !ok || v == uuid.Nil {
		return uuid.Nil, false
	}
	return v, true
}

// WithIdentity seeds the caller identity; Auth uses it and tests call it directly.
func WithIdentity(ctx context.Context, userID string, role enums.Role, coachID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	if coachID != uuid.Nil {
		ctx = context.WithValue(ctx, ctxCoachID, coachID)
	}
	return ctx
}
