package evaluation

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
)

type IEvaluationService interface {
	// Start runs one submission's judgment end to end. It validates
	// that the contest is open and the problem archive resolvable,
	// launches the judge and returns a handle over the in-flight
	// evaluation. At most one non-terminal evaluation exists per
	// submission at a time.
	Start(ctx context.Context, submission *domain.Submission) (*Handle, error)

	// Lookup returns the handle of an in-flight evaluation for a
	// submission, nil if none is running
	Lookup(submissionID uuid.UUID) *Handle

	// Report returns the latest evaluation of a submission together
	// with its persisted event sequence. The evaluation is nil when
	// the submission was never evaluated.
	Report(ctx context.Context, submissionID uuid.UUID) (*domain.Evaluation, []*domain.EvaluationEvent, error)
}
