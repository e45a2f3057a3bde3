package evaluation

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// Handle exposes one in-flight evaluation to its caller: the live
// event feed, the current status and cooperative cancellation.
type Handle struct {
	evaluationID uuid.UUID
	submissionID uuid.UUID

	// live feed of folded events. The durable, complete sequence is
	// the evaluation record; this channel is closed when the
	// evaluation is sealed.
	events chan domain.EvaluationEvent

	cancel context.CancelFunc

	mu     sync.Mutex
	status domain.EvaluationStatus
	reason domain.FailureReason
	// reason requested by Cancel, applied when the fold loop
	// observes the cancellation
	requestedReason domain.FailureReason

	done chan struct{}
}

func newHandle(evaluationID, submissionID uuid.UUID, buffer int, cancel context.CancelFunc) *Handle {
	return &Handle{
		evaluationID: evaluationID,
		submissionID: submissionID,
		events:       make(chan domain.EvaluationEvent, buffer),
		cancel:       cancel,
		status:       domain.EvaluationPending,
		done:         make(chan struct{}),
	}
}

func (h *Handle) EvaluationID() uuid.UUID { return h.evaluationID }
func (h *Handle) SubmissionID() uuid.UUID { return h.submissionID }

// Events is the ordered live feed of this evaluation's events.
// Closed once the evaluation reaches a terminal status.
func (h *Handle) Events() <-chan domain.EvaluationEvent { return h.events }

// Done is closed when the evaluation reaches a terminal status
func (h *Handle) Done() <-chan struct{} { return h.done }

// Status returns the current status and, for failures, the reason
func (h *Handle) Status() (domain.EvaluationStatus, domain.FailureReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.reason
}

// Cancel requests cooperative cancellation of a running evaluation.
// Awards already folded are retained. No-op once terminal.
func (h *Handle) Cancel() {
	h.requestStop(domain.ReasonCancelled)
}

func (h *Handle) requestStop(reason domain.FailureReason) {
	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		return
	}
	if h.requestedReason == "" {
		h.requestedReason = reason
	}
	h.mu.Unlock()
	h.cancel()
}

// Wait blocks until the evaluation is terminal or the context expires
func (h *Handle) Wait(ctx context.Context) (domain.EvaluationStatus, error) {
	select {
	case <-h.done:
		status, _ := h.Status()
		return status, nil
	case <-ctx.Done():
		return domain.EvaluationRunning, ctx.Err()
	}
}

func (h *Handle) setStatus(status domain.EvaluationStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.status.Terminal() {
		h.status = status
	}
}

// stopReason resolves the failure reason for an observed context
// cancellation: an explicit request wins, a missed deadline is a
// timeout.
func (h *Handle) stopReason(ctxErr error) domain.FailureReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.requestedReason != "" {
		return h.requestedReason
	}
	if ctxErr == context.DeadlineExceeded {
		return domain.ReasonTimeout
	}
	return domain.ReasonCancelled
}

func (h *Handle) seal(status domain.EvaluationStatus, reason domain.FailureReason) {
	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		return
	}
	h.status = status
	h.reason = reason
	h.mu.Unlock()
	close(h.events)
	close(h.done)
}

// publish forwards one event to the live feed without ever blocking
// the fold loop: if the subscriber stopped draining, the event is
// dropped from the feed only. The durable sequence is unaffected.
func (h *Handle) publish(event domain.EvaluationEvent) bool {
	select {
	case h.events <- event:
		return true
	default:
		return false
	}
}
