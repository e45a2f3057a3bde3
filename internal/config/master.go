package config

import "os"

type AppConfig struct {
	DebugMode        bool
	RedisConfig      *RedisConfig
	PostgresConfig   *PostgresConfig
	JwtConfig        *JwtConfig
	StoreConfig      *StoreConfig
	EvaluationConfig *EvaluationConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:        os.Getenv("DEBUG_MODE") == "true",
		RedisConfig:      NewRedisConfig(),
		PostgresConfig:   NewPostgresConfig(),
		JwtConfig:        NewJwtConfig(),
		StoreConfig:      NewStoreConfig(),
		EvaluationConfig: NewEvaluationConfig(),
	}
}
