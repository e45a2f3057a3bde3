package auth

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// Gate is the authorization gate consulted by the core before
// exposing admin-only aggregates versus self-scoped views. The policy
// lives here; the core only asks.
type Gate interface {
	IsAdmin(ctx context.Context) bool
	AuthorizeAs(ctx context.Context, userID uuid.UUID) bool
}

type identityKey struct{}

// WithIdentity attaches a verified identity to the context
func WithIdentity(ctx context.Context, payload domain.AuthPayload) context.Context {
	return context.WithValue(ctx, identityKey{}, payload)
}

// IdentityFrom retrieves the identity attached to the context, if any
func IdentityFrom(ctx context.Context) (domain.AuthPayload, bool) {
	payload, ok := ctx.Value(identityKey{}).(domain.AuthPayload)
	return payload, ok
}

var _ Gate = (*TokenGate)(nil)

// TokenGate derives authorization decisions from the identity carried
// by the request context. Admins are authorized everywhere;
// contestants only for their own user id.
type TokenGate struct{}

func NewTokenGate() *TokenGate {
	return &TokenGate{}
}

func (TokenGate) IsAdmin(ctx context.Context) bool {
	payload, ok := IdentityFrom(ctx)
	return ok && payload.Admin
}

func (g TokenGate) AuthorizeAs(ctx context.Context, userID uuid.UUID) bool {
	payload, ok := IdentityFrom(ctx)
	if !ok {
		return false
	}
	if payload.Admin {
		return true
	}
	return payload.UserID == userID.String()
}
