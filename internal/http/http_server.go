package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	auth2 "gitlab.com/cgs-2025.net/internal/core/services/auth"
	contestsvc "gitlab.com/cgs-2025.net/internal/core/services/contest"
	"gitlab.com/cgs-2025.net/internal/core/services/evaluation"
	"gitlab.com/cgs-2025.net/internal/handlers"
	"gitlab.com/cgs-2025.net/internal/handlers/auth"
	"gitlab.com/cgs-2025.net/internal/handlers/contest"
	"gitlab.com/cgs-2025.net/internal/handlers/evaluations"
)

type ServiceProvider struct {
	contestService    contestsvc.IContestService
	evaluationService evaluation.IEvaluationService
	authService       auth2.IAuthService
	liveFeed          evaluations.LiveFeed
}

func NewServiceProvider(
	contestService contestsvc.IContestService,
	evaluationService evaluation.IEvaluationService,
	authService auth2.IAuthService,
	liveFeed evaluations.LiveFeed,
) *ServiceProvider {
	return &ServiceProvider{
		contestService:    contestService,
		evaluationService: evaluationService,
		authService:       authService,
		liveFeed:          liveFeed,
	}
}

type Server struct {
	router          *mux.Router
	srv             *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	middleware := handlers.New(s.ServiceProvider.authService)

	auth.NewHandler(s.ServiceProvider.authService, s.logger).
		RegisterRoutes(r, middleware.JWTMiddleware)
	contest.NewHandler(s.ServiceProvider.contestService, s.logger).
		RegisterRoutes(r, middleware.OptionalJWTMiddleware, middleware.JWTMiddleware)

	evals := r.NewRoute().Subrouter()
	evals.Use(middleware.JWTMiddleware)
	evaluations.NewHandler(
		s.ServiceProvider.contestService,
		s.ServiceProvider.evaluationService,
		s.ServiceProvider.liveFeed,
		s.logger,
	).RegisterRoutes(evals)

	s.router = r
	return nil
}

func (s *Server) Start(ctx context.Context) {
	// Set up server
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the live evaluation feed holds its
		// response open for the whole judging run
		IdleTimeout: 60 * time.Second,
	}
	s.srv = srv

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
}

func (s *Server) Stop() {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Graceful shutdown failed", "error", err)
	}
}
