package contest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/services/auth"
	"gitlab.com/cgs-2025.net/internal/core/services/contest"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/handlers/response"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

// Handler serves the contest surface: configuration, the role-gated
// contest view, problem management and submissions
type Handler struct {
	contestService contest.IContestService
	logger         primary.Logger
}

func NewHandler(contestService contest.IContestService, logger primary.Logger) *Handler {
	return &Handler{
		contestService: contestService,
		logger:         logger,
	}
}

// RegisterRoutes mounts the contest routes. Routes that serve both
// anonymous visitors and contestants go on optional; the rest require
// a token.
func (h *Handler) RegisterRoutes(router *mux.Router, optional, required mux.MiddlewareFunc) {
	open := router.NewRoute().Subrouter()
	open.Use(optional)
	open.HandleFunc("/contest", h.GetContest).Methods("GET")
	open.HandleFunc("/contest/view", h.GetView).Methods("GET")

	authed := router.NewRoute().Subrouter()
	authed.Use(required)
	authed.HandleFunc("/contest", h.InsertContest).Methods("POST")
	authed.HandleFunc("/contest", h.UpdateContest).Methods("PATCH")
	authed.HandleFunc("/problems", h.ListProblems).Methods("GET")
	authed.HandleFunc("/problems", h.AddProblem).Methods("POST")
	authed.HandleFunc("/problems/{name}/archive", h.ReplaceProblemArchive).Methods("PUT")
	authed.HandleFunc("/problems/{name}", h.RemoveProblem).Methods("DELETE")
	authed.HandleFunc("/problems/{name}/submit", h.Submit).Methods("POST")
	authed.HandleFunc("/submissions", h.ListSubmissions).Methods("GET")
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.Unauthorized):
		status = http.StatusForbidden
	case errors.Is(err, errs.ContestNotFound),
		errors.Is(err, errs.ProblemNotFound),
		errors.Is(err, errs.BlobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.MalformedTime),
		errors.Is(err, errs.CorruptArchive):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ContestNotOpen):
		status = http.StatusConflict
	case errors.Is(err, errs.AlreadyEvaluating):
		status = http.StatusConflict
	}
	response.WriteError(w, response.ErrorMessage{
		Message:    err.Error(),
		StatusCode: status,
	})
}

type contestResponse struct {
	Status    domain.ContestStatus    `json:"status"`
	StartTime time.Time               `json:"start_time"`
	EndTime   time.Time               `json:"end_time"`
	Material  *domain.ContestMaterial `json:"material,omitempty"`
}

func (h *Handler) GetContest(w http.ResponseWriter, r *http.Request) {
	current, err := h.contestService.Current(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := contestResponse{
		Status:    current.StatusAt(time.Now()),
		StartTime: current.StartTime,
		EndTime:   current.EndTime,
	}
	material, err := h.contestService.Material(r.Context())
	if err != nil {
		h.logger.Warn("Failed to load contest material", "error", err)
	} else {
		resp.Material = material
	}
	response.WriteSuccess(w, resp)
}

type problemTacklingResponse struct {
	Grade       domain.ScoreAwardGrade `json:"grade"`
	Badges      []*domain.Award        `json:"badges"`
	Submissions []*domain.Submission   `json:"submissions"`
	CanSubmit   bool                   `json:"can_submit"`
}

type problemViewResponse struct {
	Name     string                   `json:"name"`
	Material *domain.ProblemMaterial  `json:"material"`
	Tackling *problemTacklingResponse `json:"tackling,omitempty"`
}

type problemSetResponse struct {
	Grading  domain.ScoreAwardGrading `json:"grading"`
	Problems []problemViewResponse    `json:"problems"`
}

type contestViewResponse struct {
	Status     domain.ContestStatus `json:"status"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    time.Time            `json:"end_time"`
	ProblemSet *problemSetResponse  `json:"problem_set,omitempty"`
}

func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var userID *uuid.UUID
	if payload, ok := auth.IdentityFrom(ctx); ok {
		id, err := uuid.Parse(payload.UserID)
		if err == nil {
			userID = &id
		}
	}

	view, err := h.contestService.View(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := contestViewResponse{
		Status:    view.Status(),
		StartTime: view.StartTime(),
		EndTime:   view.EndTime(),
	}

	setView := view.ProblemSetView()
	if setView != nil {
		grading, err := setView.Grading(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		problemViews, err := setView.ProblemViews(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		set := &problemSetResponse{Grading: grading}
		for _, pv := range problemViews {
			material, err := pv.Material(ctx)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			pr := problemViewResponse{Name: pv.Name(), Material: material}
			if tackling := pv.Tackling(); tackling != nil {
				grade, err := tackling.Grade(ctx)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				badges, err := tackling.Badges(ctx)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				submissions, err := tackling.Submissions(ctx)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				pr.Tackling = &problemTacklingResponse{
					Grade:       grade,
					Badges:      badges,
					Submissions: submissions,
					CanSubmit:   tackling.CanSubmit(),
				}
			}
			set.Problems = append(set.Problems, pr)
		}
		resp.ProblemSet = set
	}

	response.WriteSuccess(w, resp)
}

type insertContestRequest struct {
	Archive   []byte  `json:"archive"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

func (h *Handler) InsertContest(w http.ResponseWriter, r *http.Request) {
	var req insertContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	var err error
	if req.StartTime != nil && req.EndTime != nil {
		err = h.contestService.Insert(r.Context(), req.Archive, *req.StartTime, *req.EndTime)
	} else {
		err = h.contestService.Init(r.Context(), req.Archive)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) UpdateContest(w http.ResponseWriter, r *http.Request) {
	var req insertContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	input := contest.ContestUpdateInput{
		ArchiveContent: req.Archive,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}
	if err := h.contestService.Update(r.Context(), input); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.contestService.Problems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteSuccess(w, problems)
}

type addProblemRequest struct {
	Name    string `json:"name"`
	Archive []byte `json:"archive"`
}

func (h *Handler) AddProblem(w http.ResponseWriter, r *http.Request) {
	var req addProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	if err := h.contestService.AddProblem(r.Context(), req.Name, req.Archive); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) ReplaceProblemArchive(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req addProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	if err := h.contestService.ReplaceProblemArchive(r.Context(), name, req.Archive); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveProblem(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.contestService.RemoveProblem(r.Context(), name); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Files []domain.SubmissionFile `json:"files"`
}

type submitResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	payload, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Authentication required",
			StatusCode: http.StatusUnauthorized,
		})
		return
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid token identity",
			StatusCode: http.StatusUnauthorized,
		})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Files) == 0 {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	submission, err := h.contestService.Submit(r.Context(), userID, name, req.Files)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteSuccess(w, submitResponse{SubmissionID: submission.ID})
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.contestService.Submissions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteSuccess(w, submissions)
}
