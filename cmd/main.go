package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gitlab.com/cgs-2025.net/internal/adapter/crypto"
	"gitlab.com/cgs-2025.net/internal/adapter/judge"
	"gitlab.com/cgs-2025.net/internal/adapter/postgres/awardrepository"
	"gitlab.com/cgs-2025.net/internal/adapter/postgres/contestrepository"
	"gitlab.com/cgs-2025.net/internal/adapter/postgres/evaluationrepository"
	"gitlab.com/cgs-2025.net/internal/adapter/postgres/problemrepository"
	"gitlab.com/cgs-2025.net/internal/adapter/postgres/submissionrepository"
	"gitlab.com/cgs-2025.net/internal/adapter/postgres/userrepository"
	"gitlab.com/cgs-2025.net/internal/adapter/redis/eventbus"
	"gitlab.com/cgs-2025.net/internal/config"
	"gitlab.com/cgs-2025.net/internal/contentstore"
	auth2 "gitlab.com/cgs-2025.net/internal/core/services/auth"
	contestsvc "gitlab.com/cgs-2025.net/internal/core/services/contest"
	"gitlab.com/cgs-2025.net/internal/core/services/evaluation"
	logger2 "gitlab.com/cgs-2025.net/internal/global/logger"
	http2 "gitlab.com/cgs-2025.net/internal/http"
)

func main() {
	InitReader()
	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	logger2.Info("Starting contest evaluation service")

	logger := logger2.Logger

	sysCfg := config.NewSystemConfig()

	db, err := setupDatabase(sysCfg.PostgresConfig)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     sysCfg.RedisConfig.Url,
		Password: sysCfg.RedisConfig.Password,
		DB:       sysCfg.RedisConfig.DB,
	})
	defer redisClient.Close()

	store, err := contentstore.NewStore(sysCfg.StoreConfig.Root, logger)
	if err != nil {
		panic(err)
	}

	// SECONDARY PORTS
	contestRepo := contestrepository.New(db, logger)
	problemRepo := problemrepository.New(db, logger)
	submissionRepo := submissionrepository.New(db, logger)
	awardRepo := awardrepository.New(db, logger, sysCfg.PostgresConfig.Schema)
	evaluationRepo := evaluationrepository.New(db, logger)
	userPort := userrepository.New(db, logger, sysCfg.PostgresConfig.Schema)
	bus := eventbus.New(redisClient, logger)
	judgeBackend := judge.New(
		sysCfg.EvaluationConfig.JudgeBinary,
		sysCfg.EvaluationConfig.JudgeWorkDir,
		logger,
	)

	// primary ports
	jwtProvider := crypto.NewJWTService(sysCfg.JwtConfig)

	// services
	gate := auth2.NewTokenGate()
	localAuth := auth2.NewLocalAuthService(userPort, jwtProvider, gate)
	evaluationSvc := evaluation.NewEvaluationService(
		contestRepo, problemRepo, evaluationRepo, awardRepo,
		store, judgeBackend, bus, logger,
		evaluation.Config{
			Deadline:            sysCfg.EvaluationConfig.Deadline,
			JudgeTimeoutSeconds: sysCfg.EvaluationConfig.JudgeTimeoutSeconds,
			JudgeMemoryLimitMB:  sysCfg.EvaluationConfig.JudgeMemoryLimitMB,
		},
	)
	contestService := contestsvc.NewContestService(
		contestRepo, problemRepo, submissionRepo, awardRepo,
		store, gate, evaluationSvc, logger,
	)
	serviceProvider := http2.NewServiceProvider(contestService, evaluationSvc, localAuth, bus)

	// server
	httpServer := http2.NewServer(8082, "contestEvaluation", *serviceProvider, logger)
	if err := httpServer.Init(); err != nil {
		panic(err)
	}
	ctxBg := context.Background()
	httpServer.Start(ctxBg)

	<-quit
	logger.Info("Shutting down server...")
	httpServer.Stop()
	logger.Info("successfully shutdown server")
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Url)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func InitReader() {
	environment := ""
	if len(os.Args) < 2 {
		log.Fatalf("Env not supplied in argument")
	} else {
		environment = os.Args[1]
	}

	err := godotenv.Load(environment + ".env")
	if err != nil {
		log.Fatalf("Error loading %s.env file", environment)
	}
}
