package submissionrepository

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
)

var _ secondary.SubmissionRepository = &submissionRepo{}

type submissionRepo struct {
	db     *sqlx.DB
	logger primary.Logger
}

func New(db *sqlx.DB, logger primary.Logger) secondary.SubmissionRepository {
	return &submissionRepo{
		db:     db,
		logger: logger,
	}
}

func (r *submissionRepo) SaveSubmission(ctx context.Context, submission *domain.Submission) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO submissions (id, user_id, problem_name, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.ExecContext(ctx, query,
		submission.ID, submission.UserID, submission.ProblemName, submission.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to save submission", "submission", submission.ID, "error", err)
		return fmt.Errorf("failed to save submission: %w", err)
	}

	fileQuery := `
		INSERT INTO submission_files (submission_id, field_name, file_name, content)
		VALUES ($1, $2, $3, $4)
	`
	for _, file := range submission.Files {
		_, err = tx.ExecContext(ctx, fileQuery,
			submission.ID, file.FieldName, file.FileName, file.Content)
		if err != nil {
			r.logger.Error("Failed to save submission file",
				"submission", submission.ID, "field", file.FieldName, "error", err)
			return fmt.Errorf("failed to save submission file '%s': %w", file.FieldName, err)
		}
	}

	return tx.Commit()
}

func (r *submissionRepo) GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, user_id, problem_name, created_at
		FROM submissions
		WHERE id = $1
	`
	var submission domain.Submission
	err := r.db.GetContext(ctx, &submission, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get submission", "submission", id, "error", err)
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	if err := r.loadFiles(ctx, &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) ListForUserProblem(ctx context.Context, userID uuid.UUID, problemName string) ([]*domain.Submission, error) {
	query := `
		SELECT id, user_id, problem_name, created_at
		FROM submissions
		WHERE user_id = $1 AND problem_name = $2
		ORDER BY created_at ASC
	`
	var submissions []*domain.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, userID, problemName); err != nil {
		r.logger.Error("Failed to list submissions", "error", err)
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (r *submissionRepo) ListSubmissions(ctx context.Context) ([]*domain.Submission, error) {
	query := `
		SELECT id, user_id, problem_name, created_at
		FROM submissions
		ORDER BY created_at ASC
	`
	var submissions []*domain.Submission
	if err := r.db.SelectContext(ctx, &submissions, query); err != nil {
		r.logger.Error("Failed to list submissions", "error", err)
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// loadFiles hydrates the file list of a single submission. Listings
// return bare rows; file content is only needed when re-evaluating.
func (r *submissionRepo) loadFiles(ctx context.Context, submission *domain.Submission) error {
	query := `
		SELECT field_name, file_name, content
		FROM submission_files
		WHERE submission_id = $1
		ORDER BY field_name ASC
	`
	var files []domain.SubmissionFile
	if err := r.db.SelectContext(ctx, &files, query, submission.ID); err != nil {
		r.logger.Error("Failed to load submission files", "submission", submission.ID, "error", err)
		return fmt.Errorf("failed to load submission files: %w", err)
	}
	submission.Files = files
	return nil
}
