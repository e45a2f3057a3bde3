// package judge runs the external judge process and turns its output
// into an event stream.
package judge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

const killGracePeriod = 5 * time.Second

var _ secondary.JudgeBackend = &ExecBackend{}

// ExecBackend evaluates submissions by spawning an external judge
// binary. The judge receives the unpacked problem directory and a
// directory with the submitted files, and prints one JSON event per
// line on stdout.
type ExecBackend struct {
	binary  string
	workDir string
	logger  primary.Logger
}

func New(binary, workDir string, logger primary.Logger) *ExecBackend {
	return &ExecBackend{
		binary:  binary,
		workDir: workDir,
		logger:  logger,
	}
}

func (b *ExecBackend) Run(ctx context.Context, packPath string, files []domain.SubmissionFile, cfg secondary.JudgeConfig) (<-chan domain.EvaluationEvent, error) {
	submissionDir, err := b.writeSubmission(files)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stage submission: %v", errs.IoError, err)
	}

	cmd := exec.Command(b.binary,
		"--pack", packPath,
		"--submission", submissionDir,
		"--time-limit", strconv.Itoa(cfg.TimeoutSeconds),
		"--memory-limit", strconv.Itoa(cfg.MemoryLimitMB),
	)
	cmd.Dir = submissionDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(submissionDir)
		return nil, fmt.Errorf("%w: %v", errs.JudgeCrashed, err)
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(submissionDir)
		return nil, fmt.Errorf("%w: failed to start judge: %v", errs.JudgeCrashed, err)
	}

	events := make(chan domain.EvaluationEvent)
	done := make(chan struct{})
	go b.supervise(ctx, cmd, done)
	go b.decode(ctx, cmd, stdout, submissionDir, events, done)
	return events, nil
}

// writeSubmission lays the submitted files out in a fresh directory.
// File names come from the submission field, never from the client
// file name, so the judge sees a predictable layout.
func (b *ExecBackend) writeSubmission(files []domain.SubmissionFile) (string, error) {
	dir, err := os.MkdirTemp(b.workDir, "submission-*")
	if err != nil {
		return "", err
	}
	for _, file := range files {
		path := filepath.Join(dir, file.FieldName)
		if err := os.WriteFile(path, file.Content, 0o644); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	return dir, nil
}

// supervise stops the judge when the evaluation context ends.
// Interrupt first so it can clean up, kill after the grace period.
func (b *ExecBackend) supervise(ctx context.Context, cmd *exec.Cmd, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-done:
	case <-time.After(killGracePeriod):
		_ = cmd.Process.Kill()
	}
}

// decode turns the judge's stdout lines into events. The channel is
// unbuffered: a slow consumer backpressures the judge through the
// pipe instead of dropping events. Every send races the context so a
// cancelled evaluation never strands this goroutine; on cancellation
// decoding stops and the judge, already being stopped by supervise,
// is reaped below.
func (b *ExecBackend) decode(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, submissionDir string, events chan<- domain.EvaluationEvent, done chan<- struct{}) {
	defer os.RemoveAll(submissionDir)
	defer close(events)

	abandoned := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for !abandoned && scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event domain.EvaluationEvent
		if err := json.Unmarshal(line, &event); err != nil {
			b.logger.Warn("Dropping malformed judge output line", "error", err)
			continue
		}
		if event.EmittedAt.IsZero() {
			event.EmittedAt = time.Now()
		}
		if err := event.Validate(); err != nil {
			b.logger.Warn("Dropping invalid judge event", "error", err)
			continue
		}
		select {
		case events <- event:
		case <-ctx.Done():
			abandoned = true
		}
	}

	// Wait closes the stdout pipe, so it must come after the scan
	// loop. On the abandoned path it blocks until supervise has
	// stopped the process.
	err := cmd.Wait()
	close(done)
	if err != nil && !abandoned {
		b.logger.Error("Judge process exited abnormally", "error", err)
		select {
		case events <- domain.NewErrorEvent(fmt.Sprintf("judge exited abnormally: %v", err)):
		case <-ctx.Done():
		}
	}
}
