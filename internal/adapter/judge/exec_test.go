package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

// fakeJudge writes a shell script that plays the judge role
func fakeJudge(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "judge.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, events <-chan domain.EvaluationEvent) []domain.EvaluationEvent {
	t.Helper()
	var out []domain.EvaluationEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, open := <-events:
			if !open {
				return out
			}
			out = append(out, event)
		case <-deadline:
			t.Fatal("timed out waiting for judge events")
		}
	}
}

func TestRunDecodesEventLines(t *testing.T) {
	binary := fakeJudge(t, `
echo '{"kind":"SCORE","score":{"criterion":"correctness","score":"30"}}'
echo '{"kind":"BADGE","badge":{"criterion":"compiles","badge":true}}'
echo 'not json at all'
echo '{"kind":"MESSAGE","message":{"text":"done"}}'
`)
	backend := New(binary, t.TempDir(), nopLogger{})

	events, err := backend.Run(context.Background(), "/nonexistent/pack", nil, secondary.JudgeConfig{})
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, events)
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Kind != domain.EventKindScore || got[0].Score.Criterion != "correctness" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if !got[0].Score.Score.Equal(domain.NewScore(30)) {
		t.Errorf("score: got %s, want 30", got[0].Score.Score)
	}
	if got[1].Kind != domain.EventKindBadge || !got[1].Badge.Badge {
		t.Errorf("unexpected second event: %+v", got[1])
	}
	if got[2].Kind != domain.EventKindMessage || got[2].Message.Text != "done" {
		t.Errorf("unexpected third event: %+v", got[2])
	}
}

func TestRunStagesSubmissionFiles(t *testing.T) {
	binary := fakeJudge(t, `cat solution.py`)
	backend := New(binary, t.TempDir(), nopLogger{})

	files := []domain.SubmissionFile{
		{FieldName: "solution.py", FileName: "whatever-the-user-named-it.py", Content: []byte(`{"kind":"MESSAGE","message":{"text":"from file"}}`)},
	}
	events, err := backend.Run(context.Background(), "/nonexistent/pack", files, secondary.JudgeConfig{})
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, events)
	if len(got) != 1 || got[0].Message.Text != "from file" {
		t.Fatalf("staged file was not visible to the judge: %+v", got)
	}
}

func TestRunReportsAbnormalExit(t *testing.T) {
	binary := fakeJudge(t, `
echo '{"kind":"SCORE","score":{"criterion":"correctness","score":"10"}}'
exit 3
`)
	backend := New(binary, t.TempDir(), nopLogger{})

	events, err := backend.Run(context.Background(), "/nonexistent/pack", nil, secondary.JudgeConfig{})
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want score then error", len(got))
	}
	if got[1].Kind != domain.EventKindError {
		t.Errorf("last event: got kind %s, want %s", got[1].Kind, domain.EventKindError)
	}
}

func TestRunFailsWhenBinaryMissing(t *testing.T) {
	backend := New("/nonexistent/judge", t.TempDir(), nopLogger{})
	_, err := backend.Run(context.Background(), "/nonexistent/pack", nil, secondary.JudgeConfig{})
	if err == nil {
		t.Fatal("expected an error for a missing judge binary")
	}
}

func TestRunCleansUpWhenConsumerStopsReading(t *testing.T) {
	binary := fakeJudge(t, `
while true; do
  echo '{"kind":"MESSAGE","message":{"text":"tick"}}'
done
`)
	workDir := t.TempDir()
	backend := New(binary, workDir, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	files := []domain.SubmissionFile{
		{FieldName: "solution.py", FileName: "sol.py", Content: []byte("pass")},
	}
	events, err := backend.Run(ctx, "/nonexistent/pack", files, secondary.JudgeConfig{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("judge never started")
	}
	cancel()

	// No further receives. The staging directory disappearing proves
	// the decoder unblocked, reaped the judge and ran its cleanup even
	// though events were still in flight.
	deadline := time.Now().Add(10 * time.Second)
	for {
		entries, err := os.ReadDir(workDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("submission staging directory was not cleaned up after cancellation")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunKillsJudgeOnCancel(t *testing.T) {
	binary := fakeJudge(t, `
echo '{"kind":"MESSAGE","message":{"text":"started"}}'
exec sleep 60
`)
	backend := New(binary, t.TempDir(), nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := backend.Run(ctx, "/nonexistent/pack", nil, secondary.JudgeConfig{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("judge never started")
	}
	cancel()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, open := <-events:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("event stream did not close after cancellation")
		}
	}
}
