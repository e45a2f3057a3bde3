package config

import (
	"os"
	"strconv"
	"time"
)

type JwtConfig struct {
	Secret   string
	TokenTTL time.Duration
}

func NewJwtConfig() *JwtConfig {
	ttlHours, err := strconv.Atoi(os.Getenv("JWT_TTL_HOURS"))
	if err != nil {
		ttlHours = 1
	}
	return &JwtConfig{
		Secret:   os.Getenv("JWT_SECRET"),
		TokenTTL: time.Duration(ttlHours) * time.Hour,
	}
}
