package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

var _ IAuthService = &localAuthService{}

type localAuthService struct {
	userPort    secondary.UserPort
	jwtProvider primary.JWTService
	gate        Gate
}

func NewLocalAuthService(
	userPort secondary.UserPort,
	jwtProvider primary.JWTService,
	gate Gate,
) IAuthService {
	return &localAuthService{
		userPort:    userPort,
		jwtProvider: jwtProvider,
		gate:        gate,
	}
}

func (g localAuthService) Login(ctx context.Context, userName, password string) (string, error) {
	usr, err := g.userPort.GetByUserName(ctx, userName)
	if err != nil {
		return "", err
	}
	if usr == nil || usr.PasswordHash == nil {
		return "", errs.InvalidCredentials
	}
	valid, err := g.jwtProvider.VerifyPassword(ctx, *usr.PasswordHash, password)
	if err != nil || !valid {
		return "", errs.InvalidCredentials
	}

	payload := map[string]interface{}{
		"user_id":  usr.ID.String(),
		"username": usr.UserName,
		"admin":    usr.IsAdmin,
	}
	token, err := g.jwtProvider.GenerateTokenHMAC(ctx, jwt.SigningMethodHS256.Name, payload)
	if err != nil {
		return "", errs.GeneratingToken
	}
	return token, nil
}

func (g localAuthService) Identity(ctx context.Context, token string) (domain.AuthPayload, error) {
	valid, err := g.jwtProvider.VerifyTokenHMAC(ctx, token, jwt.SigningMethodHS256.Name)
	if err != nil || !valid {
		return domain.AuthPayload{}, errs.Unauthorized
	}
	return g.jwtProvider.DecodeTokenPayload(ctx, token)
}

func (g localAuthService) Register(ctx context.Context, input RegisterInput) error {
	if !g.gate.IsAdmin(ctx) {
		return errs.Unauthorized
	}
	existing, err := g.userPort.GetByUserName(ctx, input.UserName)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user '%s' already exists", input.UserName)
	}

	hash, err := g.jwtProvider.EncryptPassword(ctx, input.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user := &domain.Users{
		ID:           uuid.New(),
		UserName:     input.UserName,
		DisplayName:  input.DisplayName,
		PasswordHash: &hash,
		IsAdmin:      input.IsAdmin,
	}
	return g.userPort.Create(ctx, user)
}

func (g localAuthService) Profile(ctx context.Context) (*domain.Users, error) {
	payload, ok := IdentityFrom(ctx)
	if !ok {
		return nil, errs.Unauthorized
	}
	id, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, errs.Unauthorized
	}
	usr, err := g.userPort.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if usr == nil {
		return nil, errs.Unauthorized
	}
	// never hand the hash back out
	usr.PasswordHash = nil
	return usr, nil
}
