// Package domain provides core business types and context helpers for Skuld.
//
// Context helpers centralize request-scoped data access, making tenant isolation
// bugs harder to write and providing consistent patterns throughout the codebase.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// tenantContextKey stores the acting tenant ID in context.
	tenantContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// --- Tenant Context Helpers ---

// NewContextWithTenantID returns a new context with the tenant ID attached.
// The authorization collaborator resolves the acting tenant at the boundary;
// everything below this package sees only the explicit ID.
func NewContextWithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// TenantIDFromContext retrieves the tenant ID from context.
// Returns uuid.Nil if no tenant is present.
func TenantIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(tenantContextKey).(uuid.UUID)
	return id
}

// RequireTenantID retrieves the tenant ID from context.
// Returns ErrTenantRequired if no tenant is present; service and repository
// layers call this before touching any tenant-scoped data.
func RequireTenantID(ctx context.Context) (uuid.UUID, error) {
	id := TenantIDFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, ErrTenantRequired
	}
	return id, nil
}

// ErrTenantRequired indicates tenant context was expected but not found.
var ErrTenantRequired = &Error{
	Code:    EINTERNAL,
	Message: "Tenant context required but not found",
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
