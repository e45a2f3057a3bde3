package secondary

import (
	"context"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// EventBus publishes evaluation events for live consumption by the
// API layer. Publishing is best effort and never blocks grading.
type EventBus interface {
	Publish(ctx context.Context, event domain.EvaluationEvent) error
}
