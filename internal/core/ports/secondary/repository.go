package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
)

type ContestRepository interface {
	// LoadContest retrieves the singleton contest row, nil if absent
	LoadContest(ctx context.Context) (*domain.Contest, error)

	// InsertContest creates the singleton contest row
	InsertContest(ctx context.Context, contest *domain.Contest) error

	// UpdateContest applies a partial changeset to the contest row
	UpdateContest(ctx context.Context, changeset *domain.ContestChangeset) error
}

type ProblemRepository interface {
	// SaveProblem inserts a problem or replaces its archive reference
	SaveProblem(ctx context.Context, problem *domain.Problem) error

	// GetProblem retrieves a problem by name, nil if unknown
	GetProblem(ctx context.Context, name string) (*domain.Problem, error)

	// ListProblems retrieves all problems ordered by name
	ListProblems(ctx context.Context) ([]*domain.Problem, error)

	// DeleteProblem removes a problem by name
	DeleteProblem(ctx context.Context, name string) error
}

type SubmissionRepository interface {
	// SaveSubmission persists a submission together with its files
	SaveSubmission(ctx context.Context, submission *domain.Submission) error

	// GetSubmission retrieves a submission with its files, nil if unknown
	GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// ListForUserProblem retrieves a user's submissions for one problem
	ListForUserProblem(ctx context.Context, userID uuid.UUID, problemName string) ([]*domain.Submission, error)

	// ListSubmissions retrieves all submissions, admin view
	ListSubmissions(ctx context.Context) ([]*domain.Submission, error)
}

type AwardRepository interface {
	// SaveAward upserts the current award for one (user, problem, criterion) key.
	// This single write is the unit of durability of the fold loop.
	SaveAward(ctx context.Context, award *domain.Award) error

	// SaveAwardBatch inserts several awards in one statement
	SaveAwardBatch(ctx context.Context, awards []*domain.Award) error

	// ListForUserProblem retrieves the current awards of a user on a problem
	ListForUserProblem(ctx context.Context, userID uuid.UUID, problemName string) ([]*domain.Award, error)
}

type EvaluationRepository interface {
	// SaveEvaluation inserts a new evaluation record
	SaveEvaluation(ctx context.Context, evaluation *domain.Evaluation) error

	// SealEvaluation records a terminal status. Once an evaluation is
	// sealed its status never changes; sealing again is a no-op.
	SealEvaluation(ctx context.Context, id uuid.UUID, status domain.EvaluationStatus, reason domain.FailureReason) error

	// UpdateStatus records a non-terminal status transition
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EvaluationStatus) error

	// AppendEvent appends one event to the evaluation's ordered sequence
	AppendEvent(ctx context.Context, id uuid.UUID, seq int, event *domain.EvaluationEvent) error

	// ListEvents retrieves an evaluation's events in emission order
	ListEvents(ctx context.Context, id uuid.UUID) ([]*domain.EvaluationEvent, error)

	// GetLatestFor retrieves the most recent evaluation of a submission,
	// nil if the submission was never evaluated
	GetLatestFor(ctx context.Context, submissionID uuid.UUID) (*domain.Evaluation, error)
}

type UserPort interface {
	Create(ctx context.Context, user *domain.Users) error
	GetByUserName(ctx context.Context, userName string) (*domain.Users, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Users, error)
}
