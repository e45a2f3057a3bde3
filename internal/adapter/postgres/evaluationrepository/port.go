package evaluationrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
)

var _ secondary.EvaluationRepository = &evaluationRepo{}

type evaluationRepo struct {
	db     *sqlx.DB
	logger primary.Logger
}

func New(db *sqlx.DB, logger primary.Logger) secondary.EvaluationRepository {
	return &evaluationRepo{
		db:     db,
		logger: logger,
	}
}

func (r *evaluationRepo) SaveEvaluation(ctx context.Context, evaluation *domain.Evaluation) error {
	query := `
		INSERT INTO evaluations (id, submission_id, status, reason, created_at, sealed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		evaluation.ID, evaluation.SubmissionID, evaluation.Status,
		evaluation.Reason, evaluation.CreatedAt, evaluation.SealedAt)
	if err != nil {
		r.logger.Error("Failed to save evaluation", "evaluation", evaluation.ID, "error", err)
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}

// SealEvaluation records the terminal status of an evaluation. The
// guard on the current status makes sealing idempotent: a terminal
// row never transitions again.
func (r *evaluationRepo) SealEvaluation(ctx context.Context, id uuid.UUID, status domain.EvaluationStatus, reason domain.FailureReason) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot seal evaluation with non-terminal status '%s'", status)
	}
	query := `
		UPDATE evaluations
		SET status = $2, reason = $3, sealed_at = $4
		WHERE id = $1 AND status NOT IN ($5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, status, reason, time.Now(),
		domain.EvaluationSucceeded, domain.EvaluationFailed)
	if err != nil {
		r.logger.Error("Failed to seal evaluation", "evaluation", id, "error", err)
		return fmt.Errorf("failed to seal evaluation: %w", err)
	}
	return nil
}

func (r *evaluationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EvaluationStatus) error {
	if status.Terminal() {
		return fmt.Errorf("terminal status '%s' must be sealed, not updated", status)
	}
	query := `
		UPDATE evaluations
		SET status = $2
		WHERE id = $1 AND status NOT IN ($3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, status, domain.EvaluationSucceeded, domain.EvaluationFailed)
	if err != nil {
		r.logger.Error("Failed to update evaluation status", "evaluation", id, "error", err)
		return fmt.Errorf("failed to update evaluation status: %w", err)
	}
	return nil
}

func (r *evaluationRepo) AppendEvent(ctx context.Context, id uuid.UUID, seq int, event *domain.EvaluationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation event: %w", err)
	}
	query := `
		INSERT INTO evaluation_events (evaluation_id, seq, kind, payload, emitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query, id, seq, event.Kind, payload, event.EmittedAt)
	if err != nil {
		r.logger.Error("Failed to append evaluation event",
			"evaluation", id, "seq", seq, "error", err)
		return fmt.Errorf("failed to append evaluation event: %w", err)
	}
	return nil
}

func (r *evaluationRepo) ListEvents(ctx context.Context, id uuid.UUID) ([]*domain.EvaluationEvent, error) {
	query := `
		SELECT payload
		FROM evaluation_events
		WHERE evaluation_id = $1
		ORDER BY seq ASC
	`
	var payloads [][]byte
	if err := r.db.SelectContext(ctx, &payloads, query, id); err != nil {
		r.logger.Error("Failed to list evaluation events", "evaluation", id, "error", err)
		return nil, fmt.Errorf("failed to list evaluation events: %w", err)
	}

	events := make([]*domain.EvaluationEvent, 0, len(payloads))
	for _, payload := range payloads {
		var event domain.EvaluationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

func (r *evaluationRepo) GetLatestFor(ctx context.Context, submissionID uuid.UUID) (*domain.Evaluation, error) {
	query := `
		SELECT id, submission_id, status, reason, created_at, sealed_at
		FROM evaluations
		WHERE submission_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var evaluation domain.Evaluation
	err := r.db.GetContext(ctx, &evaluation, query, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get latest evaluation", "submission", submissionID, "error", err)
		return nil, fmt.Errorf("failed to get latest evaluation: %w", err)
	}
	return &evaluation, nil
}
