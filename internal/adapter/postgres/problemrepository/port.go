package problemrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
)

var _ secondary.ProblemRepository = &problemRepo{}

type problemRepo struct {
	db     *sqlx.DB
	logger primary.Logger
}

func New(db *sqlx.DB, logger primary.Logger) secondary.ProblemRepository {
	return &problemRepo{
		db:     db,
		logger: logger,
	}
}

func (r *problemRepo) SaveProblem(ctx context.Context, problem *domain.Problem) error {
	query := `
		INSERT INTO problems (name, archive_integrity, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			archive_integrity = EXCLUDED.archive_integrity
	`
	_, err := r.db.ExecContext(ctx, query,
		problem.Name, problem.ArchiveIntegrity, problem.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to save problem", "problem", problem.Name, "error", err)
		return fmt.Errorf("failed to save problem '%s': %w", problem.Name, err)
	}
	return nil
}

func (r *problemRepo) GetProblem(ctx context.Context, name string) (*domain.Problem, error) {
	query := `
		SELECT name, archive_integrity, created_at
		FROM problems
		WHERE name = $1
	`
	var problem domain.Problem
	err := r.db.GetContext(ctx, &problem, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get problem", "problem", name, "error", err)
		return nil, fmt.Errorf("failed to get problem '%s': %w", name, err)
	}
	return &problem, nil
}

func (r *problemRepo) ListProblems(ctx context.Context) ([]*domain.Problem, error) {
	query := `
		SELECT name, archive_integrity, created_at
		FROM problems
		ORDER BY name ASC
	`
	var problems []*domain.Problem
	if err := r.db.SelectContext(ctx, &problems, query); err != nil {
		r.logger.Error("Failed to list problems", "error", err)
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	return problems, nil
}

func (r *problemRepo) DeleteProblem(ctx context.Context, name string) error {
	query := `DELETE FROM problems WHERE name = $1`
	_, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		r.logger.Error("Failed to delete problem", "problem", name, "error", err)
		return fmt.Errorf("failed to delete problem '%s': %w", name, err)
	}
	return nil
}
