package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/services/auth"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/handlers/response"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

type Handler struct {
	authService auth.IAuthService
	logger      primary.Logger
}

func NewHandler(authService auth.IAuthService, logger primary.Logger) *Handler {
	return &Handler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes mounts login openly and the account routes behind
// the token middleware
func (h *Handler) RegisterRoutes(router *mux.Router, required mux.MiddlewareFunc) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")

	authed := router.NewRoute().Subrouter()
	authed.Use(required)
	authed.HandleFunc("/users", h.Register).Methods("POST")
	authed.HandleFunc("/users/me", h.Profile).Methods("GET")
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.InvalidCredentials) {
			status = http.StatusUnauthorized
		}
		h.logger.Warn("Login failed", "user", req.Username, "error", err)
		response.WriteError(w, response.ErrorMessage{
			Message:    "Login failed",
			StatusCode: status,
		})
		return
	}

	response.WriteSuccess(w, domain.LoginResponse{Token: token})
}

type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Admin       bool   `json:"admin"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Invalid request",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	err := h.authService.Register(r.Context(), auth.RegisterInput{
		UserName:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		IsAdmin:     req.Admin,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.Unauthorized) {
			status = http.StatusForbidden
		}
		response.WriteError(w, response.ErrorMessage{
			Message:    err.Error(),
			StatusCode: status,
		})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Profile(r.Context())
	if err != nil {
		response.WriteError(w, response.ErrorMessage{
			Message:    "Unauthorized",
			StatusCode: http.StatusUnauthorized,
		})
		return
	}
	response.WriteSuccess(w, user)
}
