package domain

import (
	"time"

	"github.com/google/uuid"
)

// EvaluationStatus represents the state of one judging run.
// Succeeded and Failed are terminal: once reached they never change.
type EvaluationStatus string

const (
	EvaluationPending   EvaluationStatus = "PENDING"
	EvaluationRunning   EvaluationStatus = "RUNNING"
	EvaluationSucceeded EvaluationStatus = "SUCCEEDED"
	EvaluationFailed    EvaluationStatus = "FAILED"
)

// Terminal reports whether the status admits no further transition
func (s EvaluationStatus) Terminal() bool {
	return s == EvaluationSucceeded || s == EvaluationFailed
}

// FailureReason qualifies a failed evaluation
type FailureReason string

const (
	ReasonCancelled  FailureReason = "CANCELLED"
	ReasonJudgeCrash FailureReason = "JUDGE_CRASHED"
	ReasonTimeout    FailureReason = "TIMEOUT"
	ReasonInternal   FailureReason = "INTERNAL_ERROR"
)

// Evaluation is the record of judging one submission: a sequence of
// timestamped events and a terminal status. Owned by exactly one
// submission; appended to as events arrive, sealed at completion.
type Evaluation struct {
	ID           uuid.UUID        `db:"id"`
	SubmissionID uuid.UUID        `db:"submission_id"`
	Status       EvaluationStatus `db:"status"`
	// Set only when Status is FAILED
	Reason    FailureReason `db:"reason"`
	CreatedAt time.Time     `db:"created_at"`
	SealedAt  *time.Time    `db:"sealed_at"`
}

// NewEvaluation creates a pending evaluation for a submission
func NewEvaluation(submissionID uuid.UUID) *Evaluation {
	return &Evaluation{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		Status:       EvaluationPending,
		CreatedAt:    time.Now(),
	}
}
