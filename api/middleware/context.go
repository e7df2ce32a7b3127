package middleware

import "context"

type contextKey string

const (
	ctxOperatorID contextKey = "operator_id"
	ctxRole       contextKey = "operator_role"
	ctxAgencyID   contextKey = "agency_id"
)

func OperatorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperatorID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// AgencyIDFromContext is empty for admins.
func AgencyIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAgencyID).(string); ok {
		return v
	}
	return ""
}

// WithOperator injects the operator identity, as Auth would.
func WithOperator(ctx context.Context, operatorID, role, agencyID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperatorID, operatorID)
	ctx = context.WithValue(ctx, ctxRole, role)
	if agencyID != "" {
		ctx = context.WithValue(ctx, ctxAgencyID, agencyID)
	}
	return ctx
}
