package auth

import (
	"context"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// RegisterInput describes a new account. Accounts are provisioned by
// admins before the contest; there is no self-service signup.
type RegisterInput struct {
	UserName    string
	DisplayName string
	Password    string
	IsAdmin     bool
}

type IAuthService interface {
	// Login verifies credentials and returns a signed token
	Login(ctx context.Context, userName, password string) (string, error)

	// Identity decodes and verifies a token into the identity it carries
	Identity(ctx context.Context, token string) (domain.AuthPayload, error)

	// Register creates an account, admin only
	Register(ctx context.Context, input RegisterInput) error

	// Profile returns the account of the authenticated caller
	Profile(ctx context.Context) (*domain.Users, error)
}
