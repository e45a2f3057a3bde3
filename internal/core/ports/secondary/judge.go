package secondary

import (
	"context"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// JudgeConfig bounds one judge run
type JudgeConfig struct {
	// Hard wall-clock limit for the whole run
	TimeoutSeconds int
	MemoryLimitMB  int
}

// JudgeBackend launches the external judging backend against a
// materialized problem pack. The returned channel is an ordered,
// finite stream of events: it is closed when judging completes or
// after a fatal error event. The backend honors ctx cancellation
// within a bounded grace period.
type JudgeBackend interface {
	Run(ctx context.Context, packPath string, files []domain.SubmissionFile, cfg JudgeConfig) (<-chan domain.EvaluationEvent, error)
}
