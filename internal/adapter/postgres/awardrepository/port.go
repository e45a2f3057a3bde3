// package postgres contains PostgreSQL implementations of repositories
package awardrepository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
	querybuilder "gitlab.com/cgs-2025.net/internal/utils"
)

var _ secondary.AwardRepository = &awardRepo{}

type awardRepo struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

func New(db *sqlx.DB, logger primary.Logger, schema string) secondary.AwardRepository {
	return &awardRepo{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

// awardRow is the flattened storage shape of an award value
type awardRow struct {
	UserID      uuid.UUID `db:"user_id"`
	ProblemName string    `db:"problem_name"`
	Criterion   string    `db:"criterion"`
	Kind        string    `db:"kind"`
	Score       *string   `db:"score"`
	Badge       *bool     `db:"badge"`
}

func flatten(award *domain.Award) (*awardRow, error) {
	if err := award.Value.Validate(); err != nil {
		return nil, err
	}
	row := &awardRow{
		UserID:      award.UserID,
		ProblemName: award.ProblemName,
		Criterion:   string(award.Criterion),
		Kind:        string(award.Value.Kind),
	}
	switch award.Value.Kind {
	case domain.AwardKindScore:
		s := award.Value.Score.Score.String()
		row.Score = &s
	case domain.AwardKindBadge:
		b := award.Value.Badge.Badge
		row.Badge = &b
	}
	return row, nil
}

func (r awardRow) toDomain() (*domain.Award, error) {
	award := &domain.Award{
		UserID:      r.UserID,
		ProblemName: r.ProblemName,
		Criterion:   domain.AwardName(r.Criterion),
	}
	switch domain.AwardKind(r.Kind) {
	case domain.AwardKindScore:
		if r.Score == nil {
			return nil, fmt.Errorf("award row %s/%s has no score", r.ProblemName, r.Criterion)
		}
		score, err := domain.NewScoreFromString(*r.Score)
		if err != nil {
			return nil, fmt.Errorf("award row %s/%s: %w", r.ProblemName, r.Criterion, err)
		}
		award.Value = domain.NewScoreValue(score)
	case domain.AwardKindBadge:
		if r.Badge == nil {
			return nil, fmt.Errorf("award row %s/%s has no badge", r.ProblemName, r.Criterion)
		}
		award.Value = domain.NewBadgeValue(*r.Badge)
	default:
		return nil, fmt.Errorf("award row %s/%s has unknown kind '%s'", r.ProblemName, r.Criterion, r.Kind)
	}
	return award, nil
}

func (r *awardRepo) SaveAward(ctx context.Context, award *domain.Award) error {
	return r.SaveAwardBatch(ctx, []*domain.Award{award})
}

func (r *awardRepo) SaveAwardBatch(ctx context.Context, awards []*domain.Award) error {
	if len(awards) == 0 {
		return nil
	}
	awardTbl := domain.GetAwardTable()
	builder := querybuilder.NewQueryBuilder(r.schema).Insert(
		awardTbl.UserID, awardTbl.ProblemName, awardTbl.Criterion,
		awardTbl.Kind, awardTbl.Score, awardTbl.Badge, awardTbl.UpdatedAt,
	).Into(awardTbl.TableName())

	now := time.Now()
	for _, award := range awards {
		row, err := flatten(award)
		if err != nil {
			return fmt.Errorf("failed to encode award: %w", err)
		}
		builder = builder.Values(
			row.UserID, row.ProblemName, row.Criterion,
			row.Kind, row.Score, row.Badge, now,
		)
	}

	query, args := builder.
		OnConflict(awardTbl.UserID, awardTbl.ProblemName, awardTbl.Criterion).
		DoUpdateExclude(awardTbl.UserID, awardTbl.ProblemName, awardTbl.Criterion).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to save awards", "error", err)
		return fmt.Errorf("failed to save awards: %w", err)
	}
	return nil
}

func (r *awardRepo) ListForUserProblem(ctx context.Context, userID uuid.UUID, problemName string) ([]*domain.Award, error) {
	awardTbl := domain.GetAwardTable()
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Select(
			awardTbl.UserID, awardTbl.ProblemName, awardTbl.Criterion,
			awardTbl.Kind, awardTbl.Score, awardTbl.Badge,
		).
		From(awardTbl.TableName()).
		Where(fmt.Sprintf("%s = ?", awardTbl.UserID), userID).
		And(fmt.Sprintf("%s = ?", awardTbl.ProblemName), problemName).
		OrderBy(awardTbl.Criterion, true).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var rows []awardRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("Failed to list awards", "error", err)
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}

	awards := make([]*domain.Award, 0, len(rows))
	for _, row := range rows {
		award, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		awards = append(awards, award)
	}
	return awards, nil
}
