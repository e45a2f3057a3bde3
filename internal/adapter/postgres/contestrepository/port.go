package contestrepository

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

var _ secondary.ContestRepository = &contestRepo{}

type contestRepo struct {
	db     *sqlx.DB
	logger primary.Logger
}

func New(db *sqlx.DB, logger primary.Logger) secondary.ContestRepository {
	return &contestRepo{
		db:     db,
		logger: logger,
	}
}

func (r *contestRepo) LoadContest(ctx context.Context) (*domain.Contest, error) {
	query := `
		SELECT id, archive_integrity, start_time, end_time
		FROM contest
		WHERE id = 0
	`
	var contest domain.Contest
	err := r.db.GetContext(ctx, &contest, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to load contest", "error", err)
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	return &contest, nil
}

func (r *contestRepo) InsertContest(ctx context.Context, contest *domain.Contest) error {
	query := `
		INSERT INTO contest (id, archive_integrity, start_time, end_time)
		VALUES (0, $1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query,
		contest.ArchiveIntegrity, contest.StartTime, contest.EndTime)
	if err != nil {
		r.logger.Error("Failed to insert contest", "error", err)
		return fmt.Errorf("failed to insert contest: %w", err)
	}
	return nil
}

func (r *contestRepo) UpdateContest(ctx context.Context, changeset *domain.ContestChangeset) error {
	query := `
		UPDATE contest SET
			archive_integrity = COALESCE($1, archive_integrity),
			start_time = COALESCE($2, start_time),
			end_time = COALESCE($3, end_time)
		WHERE id = 0
	`
	result, err := r.db.ExecContext(ctx, query,
		changeset.ArchiveIntegrity, changeset.StartTime, changeset.EndTime)
	if err != nil {
		r.logger.Error("Failed to update contest", "error", err)
		return fmt.Errorf("failed to update contest: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("contest is not initialized")
	}
	return nil
}
