package config

import (
	"os"
	"strconv"
	"time"
)

type EvaluationConfig struct {
	// Wall-clock limit of one whole evaluation
	Deadline time.Duration
	// Per-run resource limits handed to the judge
	JudgeTimeoutSeconds int
	JudgeMemoryLimitMB  int
	JudgeBinary         string
	JudgeWorkDir        string
}

func NewEvaluationConfig() *EvaluationConfig {
	deadlineSec, err := strconv.Atoi(os.Getenv("EVALUATION_DEADLINE_SEC"))
	if err != nil {
		deadlineSec = 600
	}
	timeoutSec, err := strconv.Atoi(os.Getenv("JUDGE_TIMEOUT_SEC"))
	if err != nil {
		timeoutSec = 30
	}
	memoryMB, err := strconv.Atoi(os.Getenv("JUDGE_MEMORY_LIMIT_MB"))
	if err != nil {
		memoryMB = 256
	}
	binary := os.Getenv("JUDGE_BINARY")
	if binary == "" {
		binary = "/usr/local/bin/contest-judge"
	}
	return &EvaluationConfig{
		Deadline:            time.Duration(deadlineSec) * time.Second,
		JudgeTimeoutSeconds: timeoutSec,
		JudgeMemoryLimitMB:  memoryMB,
		JudgeBinary:         binary,
		JudgeWorkDir:        os.Getenv("JUDGE_WORK_DIR"),
	}
}
