package evaluations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/services/contest"
	"gitlab.com/cgs-2025.net/internal/core/services/evaluation"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/handlers/response"
)

// LiveFeed streams the live events of one in-flight evaluation
type LiveFeed interface {
	Subscribe(ctx context.Context, evaluationID string) (<-chan domain.EvaluationEvent, error)
}

type Handler struct {
	contestService    contest.IContestService
	evaluationService evaluation.IEvaluationService
	feed              LiveFeed
	logger            primary.Logger
}

func NewHandler(
	contestService contest.IContestService,
	evaluationService evaluation.IEvaluationService,
	feed LiveFeed,
	logger primary.Logger,
) *Handler {
	return &Handler{
		contestService:    contestService,
		evaluationService: evaluationService,
		feed:              feed,
		logger:            logger,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/submissions/{id}/evaluation", h.GetEvaluation).Methods("GET")
	router.HandleFunc("/submissions/{id}/evaluation/live", h.StreamEvaluation).Methods("GET")
	router.HandleFunc("/submissions/{id}/evaluation", h.CancelEvaluation).Methods("DELETE")
}

type evaluationResponse struct {
	Evaluation *domain.Evaluation        `json:"evaluation"`
	Events     []*domain.EvaluationEvent `json:"events"`
}

// authorize resolves the submission while enforcing that only its
// owner or an admin can see its evaluation
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*domain.Submission, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid submission id",
			StatusCode: http.StatusBadRequest,
		})
		return nil, false
	}

	submission, err := h.contestService.Submission(r.Context(), id)
	if err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Forbidden",
			StatusCode: http.StatusForbidden,
		})
		return nil, false
	}
	if submission == nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Submission not found",
			StatusCode: http.StatusNotFound,
		})
		return nil, false
	}
	return submission, true
}

func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	submission, ok := h.authorize(w, r)
	if !ok {
		return
	}

	eval, events, err := h.evaluationService.Report(r.Context(), submission.ID)
	if err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    err.Error(),
			StatusCode: http.StatusInternalServerError,
		})
		return
	}
	if eval == nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Submission was never evaluated",
			StatusCode: http.StatusNotFound,
		})
		return
	}
	response.WriteSuccess(w, evaluationResponse{Evaluation: eval, Events: events})
}

// StreamEvaluation serves the live event feed of an in-flight
// evaluation as server-sent events. The feed is best effort; the
// durable record is served by GetEvaluation.
func (h *Handler) StreamEvaluation(w http.ResponseWriter, r *http.Request) {
	submission, ok := h.authorize(w, r)
	if !ok {
		return
	}

	handle := h.evaluationService.Lookup(submission.ID)
	if handle == nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "No evaluation in flight",
			StatusCode: http.StatusNotFound,
		})
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Streaming unsupported",
			StatusCode: http.StatusInternalServerError,
		})
		return
	}

	events, err := h.feed.Subscribe(r.Context(), handle.EvaluationID().String())
	if err != nil {
		h.logger.Error("Failed to subscribe to live feed", "error", err)
		response.WriteError(w, response.ErrorMessage{
			Message:    "Failed to subscribe",
			StatusCode: http.StatusInternalServerError,
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-handle.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// CancelEvaluation stops an in-flight evaluation. Awards folded so
// far are kept.
func (h *Handler) CancelEvaluation(w http.ResponseWriter, r *http.Request) {
	submission, ok := h.authorize(w, r)
	if !ok {
		return
	}

	handle := h.evaluationService.Lookup(submission.ID)
	if handle == nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "No evaluation in flight",
			StatusCode: http.StatusNotFound,
		})
		return
	}
	handle.Cancel()
	w.WriteHeader(http.StatusAccepted)
}
