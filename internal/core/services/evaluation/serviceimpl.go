package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/contentstore"
	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

const problemCacheNamespace = "problems"

var _ IEvaluationService = (*EvaluationService)(nil)

// Config bounds every evaluation run by this service
type Config struct {
	// Wall-clock deadline of one evaluation; exceeding it takes the
	// cancellation path with reason TIMEOUT
	Deadline time.Duration
	// Capacity of the live feed buffer per handle
	EventBuffer int
	// Limits handed to the judge backend
	JudgeTimeoutSeconds int
	JudgeMemoryLimitMB  int
}

// EvaluationService runs one pipeline per in-flight evaluation. Every
// evaluation is an independent goroutine consuming the judge's event
// stream, folding each event into the persisted award state.
type EvaluationService struct {
	contestRepo    secondary.ContestRepository
	problemRepo    secondary.ProblemRepository
	evaluationRepo secondary.EvaluationRepository
	awardRepo      secondary.AwardRepository
	store          *contentstore.Store
	judge          secondary.JudgeBackend
	bus            secondary.EventBus
	logger         primary.Logger
	cfg            Config

	// guards running; enforces the at-most-one non-terminal
	// evaluation per submission invariant
	mu      sync.Mutex
	running map[uuid.UUID]*Handle
}

// NewEvaluationService creates a new evaluation service
func NewEvaluationService(
	contestRepo secondary.ContestRepository,
	problemRepo secondary.ProblemRepository,
	evaluationRepo secondary.EvaluationRepository,
	awardRepo secondary.AwardRepository,
	store *contentstore.Store,
	judge secondary.JudgeBackend,
	bus secondary.EventBus,
	logger primary.Logger,
	cfg Config,
) *EvaluationService {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 10 * time.Minute
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	return &EvaluationService{
		contestRepo:    contestRepo,
		problemRepo:    problemRepo,
		evaluationRepo: evaluationRepo,
		awardRepo:      awardRepo,
		store:          store,
		judge:          judge,
		bus:            bus,
		logger:         logger,
		cfg:            cfg,
		running:        make(map[uuid.UUID]*Handle),
	}
}

// Start validates the submission, resolves the problem pack, launches
// the judge and spawns the fold loop
func (s *EvaluationService) Start(ctx context.Context, submission *domain.Submission) (*Handle, error) {
	contest, err := s.contestRepo.LoadContest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	if contest == nil {
		return nil, errs.ContestNotFound
	}
	if contest.StatusAt(time.Now()) == domain.ContestNotStarted {
		return nil, errs.ContestNotOpen
	}

	problem, err := s.problemRepo.GetProblem(ctx, submission.ProblemName)
	if err != nil {
		return nil, fmt.Errorf("failed to load problem: %w", err)
	}
	if problem == nil {
		return nil, fmt.Errorf("%w: %s", errs.ProblemNotFound, submission.ProblemName)
	}

	// Reserve the submission slot before any slow work so concurrent
	// Start calls for the same submission cannot both proceed
	eval := domain.NewEvaluation(submission.ID)
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Deadline)
	handle := newHandle(eval.ID, submission.ID, s.cfg.EventBuffer, cancel)

	s.mu.Lock()
	if _, inFlight := s.running[submission.ID]; inFlight {
		s.mu.Unlock()
		cancel()
		return nil, errs.AlreadyEvaluating
	}
	s.running[submission.ID] = handle
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.running, submission.ID)
		s.mu.Unlock()
		cancel()
	}

	packPath, err := s.store.Resolve(ctx, contentstore.BlobRef(problem.ArchiveIntegrity), problemCacheNamespace)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to resolve problem archive: %w", err)
	}

	if err := s.evaluationRepo.SaveEvaluation(ctx, eval); err != nil {
		release()
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}

	events, err := s.judge.Run(runCtx, packPath, submission.Files, secondary.JudgeConfig{
		TimeoutSeconds: s.cfg.JudgeTimeoutSeconds,
		MemoryLimitMB:  s.cfg.JudgeMemoryLimitMB,
	})
	if err != nil {
		s.logger.Error("Failed to launch judge", "evaluationId", eval.ID, "error", err)
		s.seal(context.Background(), handle, domain.EvaluationFailed, domain.ReasonJudgeCrash)
		return nil, fmt.Errorf("%w: %v", errs.JudgeCrashed, err)
	}

	if err := s.evaluationRepo.UpdateStatus(ctx, eval.ID, domain.EvaluationRunning); err != nil {
		s.logger.Error("Failed to mark evaluation running", "evaluationId", eval.ID, "error", err)
	}
	handle.setStatus(domain.EvaluationRunning)
	s.logger.Info("Evaluation started",
		"evaluationId", eval.ID,
		"submissionId", submission.ID,
		"problem", submission.ProblemName)

	go s.foldLoop(runCtx, handle, submission, events)

	return handle, nil
}

// Lookup returns the in-flight handle for a submission, nil if none
func (s *EvaluationService) Lookup(submissionID uuid.UUID) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[submissionID]
}

func (s *EvaluationService) Report(ctx context.Context, submissionID uuid.UUID) (*domain.Evaluation, []*domain.EvaluationEvent, error) {
	eval, err := s.evaluationRepo.GetLatestFor(ctx, submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load evaluation: %w", err)
	}
	if eval == nil {
		return nil, nil, nil
	}
	events, err := s.evaluationRepo.ListEvents(ctx, eval.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load evaluation events: %w", err)
	}
	return eval, events, nil
}

// foldLoop consumes the judge's ordered event stream, folding each
// event into the current award state. The award write is the unit of
// durability: an event counts as processed only once its award is
// persisted, so a crash between events loses at most the in-flight
// one.
func (s *EvaluationService) foldLoop(ctx context.Context, handle *Handle, submission *domain.Submission, events <-chan domain.EvaluationEvent) {
	// Persistence must outlive the run context so that the final
	// seal is recorded even on timeout or cancellation
	storeCtx := context.Background()
	seq := 0

	for {
		select {
		case <-ctx.Done():
			reason := handle.stopReason(ctx.Err())
			s.logger.Info("Evaluation stopped",
				"evaluationId", handle.EvaluationID(),
				"reason", reason,
				"eventsFolded", seq)
			s.seal(storeCtx, handle, domain.EvaluationFailed, reason)
			drainEvents(events)
			return

		case event, ok := <-events:
			if !ok {
				s.seal(storeCtx, handle, domain.EvaluationSucceeded, "")
				s.logger.Info("Evaluation succeeded",
					"evaluationId", handle.EvaluationID(),
					"eventsFolded", seq)
				return
			}
			event.EvaluationID = handle.EvaluationID()

			if err := s.fold(storeCtx, submission, event); err != nil {
				s.logger.Error("Failed to fold event",
					"evaluationId", handle.EvaluationID(),
					"error", err)
				s.seal(storeCtx, handle, domain.EvaluationFailed, domain.ReasonInternal)
				drainEvents(events)
				return
			}

			if err := s.evaluationRepo.AppendEvent(storeCtx, handle.EvaluationID(), seq, &event); err != nil {
				s.logger.Error("Failed to append event",
					"evaluationId", handle.EvaluationID(),
					"error", err)
				s.seal(storeCtx, handle, domain.EvaluationFailed, domain.ReasonInternal)
				drainEvents(events)
				return
			}
			seq++

			if !handle.publish(event) {
				s.logger.Warn("Live feed full, event dropped from feed",
					"evaluationId", handle.EvaluationID())
			}
			if err := s.bus.Publish(storeCtx, event); err != nil {
				s.logger.Warn("Failed to publish event",
					"evaluationId", handle.EvaluationID(),
					"error", err)
			}

			if event.Kind == domain.EventKindError {
				s.logger.Error("Judge reported fatal error",
					"evaluationId", handle.EvaluationID(),
					"message", event.Error.Message)
				s.seal(storeCtx, handle, domain.EvaluationFailed, domain.ReasonJudgeCrash)
				drainEvents(events)
				return
			}
		}
	}
}

// drainEvents releases a judge backend that is blocked sending on the
// stream after the fold loop has stopped consuming it. seal has
// already cancelled the run context by the time this is called, so
// the backend closes the channel shortly and the drain goroutine
// exits with it.
func drainEvents(events <-chan domain.EvaluationEvent) {
	go func() {
		for range events {
		}
	}()
}

// fold applies one event to the current award state. Awards are keyed
// by (user, problem, criterion); a later event for the same key
// overwrites the award entirely, never merges.
func (s *EvaluationService) fold(ctx context.Context, submission *domain.Submission, event domain.EvaluationEvent) error {
	switch event.Kind {
	case domain.EventKindScore:
		award := &domain.Award{
			UserID:      submission.UserID,
			ProblemName: submission.ProblemName,
			Criterion:   event.Score.Criterion,
			Value:       domain.NewScoreValue(event.Score.Score),
		}
		if err := s.awardRepo.SaveAward(ctx, award); err != nil {
			return fmt.Errorf("failed to save score award: %w", err)
		}
	case domain.EventKindBadge:
		award := &domain.Award{
			UserID:      submission.UserID,
			ProblemName: submission.ProblemName,
			Criterion:   event.Badge.Criterion,
			Value:       domain.NewBadgeValue(event.Badge.Badge),
		}
		if err := s.awardRepo.SaveAward(ctx, award); err != nil {
			return fmt.Errorf("failed to save badge award: %w", err)
		}
	case domain.EventKindMessage:
		// feedback only, nothing to fold
	case domain.EventKindError:
		// terminal, handled by the fold loop after recording
	default:
		return fmt.Errorf("unknown event kind '%s'", event.Kind)
	}
	return nil
}

// seal records the terminal status. Terminal states are frozen: the
// repository keeps the first terminal write, and the handle ignores
// later transitions.
func (s *EvaluationService) seal(ctx context.Context, handle *Handle, status domain.EvaluationStatus, reason domain.FailureReason) {
	if err := s.evaluationRepo.SealEvaluation(ctx, handle.EvaluationID(), status, reason); err != nil {
		s.logger.Error("Failed to seal evaluation",
			"evaluationId", handle.EvaluationID(),
			"error", err)
	}
	handle.seal(status, reason)

	s.mu.Lock()
	delete(s.running, handle.SubmissionID())
	s.mu.Unlock()
	handle.cancel()
}
