package contest

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// ContestUpdateInput is a partial update of the contest
// configuration; nil fields are left unchanged. Times are RFC3339.
type ContestUpdateInput struct {
	ArchiveContent []byte
	StartTime      *string
	EndTime        *string
}

type IContestService interface {
	// Current returns the singleton contest configuration
	Current(ctx context.Context) (*domain.Contest, error)

	// Init creates the singleton contest row: a four hour window
	// starting now, with the given contest-wide archive
	Init(ctx context.Context, archive []byte) error

	// Insert creates the contest with an explicit configuration
	Insert(ctx context.Context, archive []byte, startTime, endTime string) error

	// Update applies a partial changeset, admin only
	Update(ctx context.Context, input ContestUpdateInput) error

	// Status derives the contest lifecycle state from the clock
	Status(ctx context.Context) (domain.ContestStatus, error)

	// Material reads the contest presentation material from the archive
	Material(ctx context.Context) (*domain.ContestMaterial, error)

	// ScoreRange is the range of the contest total, the aggregate of
	// every problem's range
	ScoreRange(ctx context.Context) (domain.ScoreRange, error)

	// ScoreDomain wraps the contest score range, admin only
	ScoreDomain(ctx context.Context) (domain.ScoreAwardDomain, error)

	// Problems lists all problems, admin only
	Problems(ctx context.Context) ([]*domain.Problem, error)

	// AddProblem stores the archive and creates the problem, admin only
	AddProblem(ctx context.Context, name string, archive []byte) error

	// RemoveProblem deletes a problem, admin only
	RemoveProblem(ctx context.Context, name string) error

	// ReplaceProblemArchive replaces a problem's archive, admin only
	ReplaceProblemArchive(ctx context.Context, name string, archive []byte) error

	// ProblemMaterial loads the declared scoring structure of a problem
	ProblemMaterial(ctx context.Context, name string) (*domain.ProblemMaterial, error)

	// View returns the contest as visible to the given user, or to an
	// anonymous visitor when userID is nil
	View(ctx context.Context, userID *uuid.UUID) (*ContestView, error)

	// Submissions lists all submissions, admin only
	Submissions(ctx context.Context) ([]*domain.Submission, error)

	// Submission retrieves one submission; only its owner and admins
	// are authorized
	Submission(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// Submit records an attempt and starts its evaluation
	Submit(ctx context.Context, userID uuid.UUID, problemName string, files []domain.SubmissionFile) (*domain.Submission, error)
}
