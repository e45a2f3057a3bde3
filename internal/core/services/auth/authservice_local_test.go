package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

type fakeUserPort struct {
	users map[string]*domain.Users
}

func newFakeUserPort() *fakeUserPort {
	return &fakeUserPort{users: make(map[string]*domain.Users)}
}

func (f *fakeUserPort) Create(ctx context.Context, user *domain.Users) error {
	if _, ok := f.users[user.UserName]; ok {
		return errors.New("duplicate user")
	}
	copy := *user
	f.users[user.UserName] = &copy
	return nil
}

func (f *fakeUserPort) GetByUserName(ctx context.Context, userName string) (*domain.Users, error) {
	return f.users[userName], nil
}

func (f *fakeUserPort) GetByID(ctx context.Context, id uuid.UUID) (*domain.Users, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

// fakeJWTProvider hashes and signs transparently so tests can assert
// on the plumbing without real crypto
type fakeJWTProvider struct{}

func (fakeJWTProvider) GenerateTokenHMAC(ctx context.Context, method string, claims map[string]interface{}) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return "header." + string(payload) + ".sig", nil
}

func (fakeJWTProvider) VerifyTokenHMAC(ctx context.Context, token string, method string) (bool, error) {
	return strings.HasPrefix(token, "header."), nil
}

func (fakeJWTProvider) DecodeTokenPayload(ctx context.Context, token string) (domain.AuthPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return domain.AuthPayload{}, errors.New("malformed token")
	}
	var payload domain.AuthPayload
	err := json.Unmarshal([]byte(parts[1]), &payload)
	return payload, err
}

func (fakeJWTProvider) EncryptPassword(ctx context.Context, password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeJWTProvider) VerifyPassword(ctx context.Context, passwordHash string, pwd string) (bool, error) {
	if passwordHash != "hashed:"+pwd {
		return false, fmt.Errorf("mismatch")
	}
	return true, nil
}

func adminCtx() context.Context {
	return WithIdentity(context.Background(), domain.AuthPayload{
		UserID: uuid.New().String(),
		Admin:  true,
	})
}

func newTestAuthService() (IAuthService, *fakeUserPort) {
	users := newFakeUserPort()
	return NewLocalAuthService(users, fakeJWTProvider{}, NewTokenGate()), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, users := newTestAuthService()

	err := svc.Register(adminCtx(), RegisterInput{
		UserName:    "alice",
		DisplayName: "Alice",
		Password:    "secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	if users.users["alice"] == nil {
		t.Fatal("user was not created")
	}

	token, err := svc.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}

	payload, err := svc.Identity(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if payload.Username != "alice" || payload.Admin {
		t.Errorf("unexpected identity: %+v", payload)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService()
	if err := svc.Register(adminCtx(), RegisterInput{UserName: "alice", Password: "secret"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, errs.InvalidCredentials) {
		t.Errorf("expected InvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "secret"); !errors.Is(err, errs.InvalidCredentials) {
		t.Errorf("expected InvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	svc, _ := newTestAuthService()

	contestant := WithIdentity(context.Background(), domain.AuthPayload{
		UserID: uuid.New().String(),
	})
	err := svc.Register(contestant, RegisterInput{UserName: "eve", Password: "x"})
	if !errors.Is(err, errs.Unauthorized) {
		t.Errorf("expected Unauthorized, got %v", err)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	svc, _ := newTestAuthService()
	if err := svc.Register(adminCtx(), RegisterInput{UserName: "alice", Password: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Register(adminCtx(), RegisterInput{UserName: "alice", Password: "b"}); err == nil {
		t.Error("duplicate registration succeeded")
	}
}

func TestProfile(t *testing.T) {
	svc, users := newTestAuthService()
	if err := svc.Register(adminCtx(), RegisterInput{UserName: "alice", Password: "a", DisplayName: "Alice"}); err != nil {
		t.Fatal(err)
	}

	self := WithIdentity(context.Background(), domain.AuthPayload{
		UserID:   users.users["alice"].ID.String(),
		Username: "alice",
	})
	profile, err := svc.Profile(self)
	if err != nil {
		t.Fatal(err)
	}
	if profile.DisplayName != "Alice" {
		t.Errorf("display name: got %q", profile.DisplayName)
	}
	if profile.PasswordHash != nil {
		t.Error("profile leaks the password hash")
	}

	if _, err := svc.Profile(context.Background()); !errors.Is(err, errs.Unauthorized) {
		t.Errorf("anonymous profile: expected Unauthorized, got %v", err)
	}
}
