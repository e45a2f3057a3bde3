package userrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
	querybuilder "gitlab.com/cgs-2025.net/internal/utils"
)

var _ secondary.UserPort = &userRepo{}

type userRepo struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

func New(db *sqlx.DB, logger primary.Logger, schema string) secondary.UserPort {
	return &userRepo{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

func (u *userRepo) Create(ctx context.Context, user *domain.Users) error {
	userTbl := domain.GetUserTable()
	query, args := querybuilder.NewQueryBuilder(u.schema).Insert(
		userTbl.ID, userTbl.UserName, userTbl.DisplayName,
		userTbl.PasswordHash, userTbl.IsAdmin,
	).
		Into(userTbl.GetTableName()).
		Values(
			user.ID, user.UserName, user.DisplayName,
			user.PasswordHash, user.IsAdmin,
		).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err := u.db.ExecContext(ctx, query, args...)
	if err != nil {
		u.logger.Error("Failed to create user", "user", user.UserName, "error", err)
		return fmt.Errorf("failed to create user '%s': %w", user.UserName, err)
	}
	return nil
}

func (u *userRepo) GetByUserName(ctx context.Context, userName string) (*domain.Users, error) {
	userTbl := domain.GetUserTable()
	query, args := querybuilder.NewQueryBuilder(u.schema).
		Select(
			userTbl.ID, userTbl.UserName, userTbl.DisplayName,
			userTbl.PasswordHash, userTbl.IsAdmin,
		).
		From(userTbl.GetTableName()).
		Where(fmt.Sprintf("%s = ?", userTbl.UserName), userName).
		Build()

	return u.get(ctx, query, args)
}

func (u *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Users, error) {
	userTbl := domain.GetUserTable()
	query, args := querybuilder.NewQueryBuilder(u.schema).
		Select(
			userTbl.ID, userTbl.UserName, userTbl.DisplayName,
			userTbl.PasswordHash, userTbl.IsAdmin,
		).
		From(userTbl.GetTableName()).
		Where(fmt.Sprintf("%s = ?", userTbl.ID), id).
		Build()

	return u.get(ctx, query, args)
}

func (u *userRepo) get(ctx context.Context, query string, args []interface{}) (*domain.Users, error) {
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var user domain.Users
	err := u.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		u.logger.Error("Failed to get user", "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
