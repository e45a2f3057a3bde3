package evaluation

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/contentstore"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Warn(msg string, args ...interface{})  {}

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, event domain.EvaluationEvent) error { return nil }

type fakeContestRepo struct {
	contest *domain.Contest
}

func (f *fakeContestRepo) LoadContest(ctx context.Context) (*domain.Contest, error) {
	return f.contest, nil
}
func (f *fakeContestRepo) InsertContest(ctx context.Context, contest *domain.Contest) error {
	f.contest = contest
	return nil
}
func (f *fakeContestRepo) UpdateContest(ctx context.Context, changeset *domain.ContestChangeset) error {
	return nil
}

type fakeProblemRepo struct {
	problems map[string]*domain.Problem
}

func (f *fakeProblemRepo) SaveProblem(ctx context.Context, problem *domain.Problem) error {
	f.problems[problem.Name] = problem
	return nil
}
func (f *fakeProblemRepo) GetProblem(ctx context.Context, name string) (*domain.Problem, error) {
	return f.problems[name], nil
}
func (f *fakeProblemRepo) ListProblems(ctx context.Context) ([]*domain.Problem, error) {
	var out []*domain.Problem
	for _, p := range f.problems {
		out = append(out, p)
	}
	return out, nil
}
func (f *fakeProblemRepo) DeleteProblem(ctx context.Context, name string) error {
	delete(f.problems, name)
	return nil
}

type storedEvent struct {
	seq   int
	event domain.EvaluationEvent
}

type fakeEvaluationRepo struct {
	mu     sync.Mutex
	evals  map[uuid.UUID]*domain.Evaluation
	events map[uuid.UUID][]storedEvent
}

func newFakeEvaluationRepo() *fakeEvaluationRepo {
	return &fakeEvaluationRepo{
		evals:  make(map[uuid.UUID]*domain.Evaluation),
		events: make(map[uuid.UUID][]storedEvent),
	}
}

func (f *fakeEvaluationRepo) SaveEvaluation(ctx context.Context, evaluation *domain.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *evaluation
	f.evals[evaluation.ID] = &copy
	return nil
}

func (f *fakeEvaluationRepo) SealEvaluation(ctx context.Context, id uuid.UUID, status domain.EvaluationStatus, reason domain.FailureReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	eval, ok := f.evals[id]
	if !ok {
		return fmt.Errorf("unknown evaluation %s", id)
	}
	if eval.Status.Terminal() {
		return nil
	}
	now := time.Now()
	eval.Status = status
	eval.Reason = reason
	eval.SealedAt = &now
	return nil
}

func (f *fakeEvaluationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EvaluationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if eval, ok := f.evals[id]; ok && !eval.Status.Terminal() {
		eval.Status = status
	}
	return nil
}

func (f *fakeEvaluationRepo) AppendEvent(ctx context.Context, id uuid.UUID, seq int, event *domain.EvaluationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id] = append(f.events[id], storedEvent{seq: seq, event: *event})
	return nil
}

func (f *fakeEvaluationRepo) ListEvents(ctx context.Context, id uuid.UUID) ([]*domain.EvaluationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.EvaluationEvent
	for i := range f.events[id] {
		out = append(out, &f.events[id][i].event)
	}
	return out, nil
}

func (f *fakeEvaluationRepo) GetLatestFor(ctx context.Context, submissionID uuid.UUID) (*domain.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Evaluation
	for _, eval := range f.evals {
		if eval.SubmissionID != submissionID {
			continue
		}
		if latest == nil || eval.CreatedAt.After(latest.CreatedAt) {
			latest = eval
		}
	}
	return latest, nil
}

func (f *fakeEvaluationRepo) get(id uuid.UUID) *domain.Evaluation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals[id]
}

type awardKey struct {
	userID    uuid.UUID
	problem   string
	criterion domain.AwardName
}

type fakeAwardRepo struct {
	mu     sync.Mutex
	awards map[awardKey]*domain.Award
}

func newFakeAwardRepo() *fakeAwardRepo {
	return &fakeAwardRepo{awards: make(map[awardKey]*domain.Award)}
}

func (f *fakeAwardRepo) SaveAward(ctx context.Context, award *domain.Award) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *award
	f.awards[awardKey{award.UserID, award.ProblemName, award.Criterion}] = &copy
	return nil
}

func (f *fakeAwardRepo) SaveAwardBatch(ctx context.Context, awards []*domain.Award) error {
	for _, a := range awards {
		if err := f.SaveAward(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAwardRepo) ListForUserProblem(ctx context.Context, userID uuid.UUID, problemName string) ([]*domain.Award, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Award
	for key, award := range f.awards {
		if key.userID == userID && key.problem == problemName {
			out = append(out, award)
		}
	}
	return out, nil
}

func (f *fakeAwardRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.awards)
}

func (f *fakeAwardRepo) get(userID uuid.UUID, problem string, criterion domain.AwardName) *domain.Award {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awards[awardKey{userID, problem, criterion}]
}

// stubJudge hands the test-controlled stream straight to the pipeline
type stubJudge struct {
	stream  chan domain.EvaluationEvent
	runErr  error
	started chan struct{}
}

func newStubJudge() *stubJudge {
	return &stubJudge{
		stream:  make(chan domain.EvaluationEvent),
		started: make(chan struct{}, 1),
	}
}

func (j *stubJudge) Run(ctx context.Context, packPath string, files []domain.SubmissionFile, cfg secondary.JudgeConfig) (<-chan domain.EvaluationEvent, error) {
	if j.runErr != nil {
		return nil, j.runErr
	}
	select {
	case j.started <- struct{}{}:
	default:
	}
	return j.stream, nil
}

type fixture struct {
	svc        *EvaluationService
	judge      *stubJudge
	awards     *fakeAwardRepo
	evals      *fakeEvaluationRepo
	contest    *fakeContestRepo
	submission *domain.Submission
}

func problemArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := `{"criteria":[{"name":"A","kind":"SCORE","max":"50","precision":2,"allow_partial":true}]}`
	if err := tw.WriteHeader(&tar.Header{Name: "grading.json", Mode: 0o644, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := contentstore.NewStore(t.TempDir(), nopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	ref, err := store.Store(context.Background(), problemArchive(t))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	contest := &fakeContestRepo{contest: &domain.Contest{
		ArchiveIntegrity: string(ref),
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
	}}
	problems := &fakeProblemRepo{problems: map[string]*domain.Problem{
		"sum-of-two": {Name: "sum-of-two", ArchiveIntegrity: string(ref)},
	}}
	evals := newFakeEvaluationRepo()
	awards := newFakeAwardRepo()
	judge := newStubJudge()

	svc := NewEvaluationService(contest, problems, evals, awards, store, judge, nopBus{}, nopLogger{}, cfg)

	submission := domain.NewSubmission(uuid.New(), "sum-of-two", []domain.SubmissionFile{
		{FieldName: "solution", FileName: "solution.cpp", Content: []byte("int main() {}")},
	})

	return &fixture{
		svc:        svc,
		judge:      judge,
		awards:     awards,
		evals:      evals,
		contest:    contest,
		submission: submission,
	}
}

func waitEvent(t *testing.T, handle *Handle) domain.EvaluationEvent {
	t.Helper()
	select {
	case event := <-handle.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.EvaluationEvent{}
	}
}

func waitTerminal(t *testing.T, handle *Handle) domain.EvaluationStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := handle.Wait(ctx)
	if err != nil {
		t.Fatalf("evaluation did not terminate: %v", err)
	}
	return status
}

func TestFoldLastWriteWins(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(30))
	waitEvent(t, handle)
	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(45))
	waitEvent(t, handle)
	close(f.judge.stream)

	if status := waitTerminal(t, handle); status != domain.EvaluationSucceeded {
		t.Fatalf("status: got %s, want SUCCEEDED", status)
	}

	award := f.awards.get(f.submission.UserID, "sum-of-two", "A")
	if award == nil {
		t.Fatal("no award folded for criterion A")
	}
	if award.Value.Kind != domain.AwardKindScore {
		t.Fatalf("award kind: got %s", award.Value.Kind)
	}
	if !award.Value.Score.Score.Equal(domain.NewScore(45)) {
		t.Errorf("award score: got %s, want 45 (last write wins)", award.Value.Score.Score)
	}
	maxRange := domain.ScoreRange{Precision: 2, Max: domain.NewScore(50), AllowPartial: true}
	if !maxRange.Contains(award.Value.Score.Score) {
		t.Error("folded score exceeds the criterion range")
	}
	if f.awards.count() != 1 {
		t.Errorf("awards: got %d, want 1", f.awards.count())
	}
}

func TestStartRejectsConcurrentEvaluation(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Start(context.Background(), f.submission); !errors.Is(err, errs.AlreadyEvaluating) {
		t.Fatalf("expected AlreadyEvaluating, got %v", err)
	}

	close(f.judge.stream)
	waitTerminal(t, handle)

	// a new stream for the restarted evaluation
	f.judge.stream = make(chan domain.EvaluationEvent)
	handle2, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatalf("restart after terminal evaluation failed: %v", err)
	}
	close(f.judge.stream)
	waitTerminal(t, handle2)
}

func TestStartRejectsContestNotOpen(t *testing.T) {
	f := newFixture(t, Config{})
	now := time.Now()
	f.contest.contest.StartTime = now.Add(time.Hour)
	f.contest.contest.EndTime = now.Add(2 * time.Hour)

	if _, err := f.svc.Start(context.Background(), f.submission); !errors.Is(err, errs.ContestNotOpen) {
		t.Fatalf("expected ContestNotOpen, got %v", err)
	}
}

func TestStartAllowsEndedContest(t *testing.T) {
	f := newFixture(t, Config{})
	now := time.Now()
	f.contest.contest.StartTime = now.Add(-2 * time.Hour)
	f.contest.contest.EndTime = now.Add(-time.Hour)

	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatalf("evaluation must be possible after the contest ends: %v", err)
	}
	close(f.judge.stream)
	waitTerminal(t, handle)
}

func TestCancelRetainsFoldedAwards(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(30))
	waitEvent(t, handle)
	f.judge.stream <- domain.NewBadgeEvent("B", true)
	waitEvent(t, handle)

	handle.Cancel()

	if status := waitTerminal(t, handle); status != domain.EvaluationFailed {
		t.Fatalf("status: got %s, want FAILED", status)
	}
	_, reason := handle.Status()
	if reason != domain.ReasonCancelled {
		t.Fatalf("reason: got %s, want CANCELLED", reason)
	}

	if f.awards.count() != 2 {
		t.Fatalf("awards after cancel: got %d, want exactly 2", f.awards.count())
	}
	eval := f.evals.get(handle.EvaluationID())
	if eval.Status != domain.EvaluationFailed || eval.Reason != domain.ReasonCancelled {
		t.Errorf("persisted evaluation: got %s/%s", eval.Status, eval.Reason)
	}

	// no third award may appear later
	time.Sleep(50 * time.Millisecond)
	if f.awards.count() != 2 {
		t.Errorf("award appeared after cancellation: %d", f.awards.count())
	}
}

func TestCancelReleasesBlockedJudgeStream(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(30))
	waitEvent(t, handle)

	handle.Cancel()
	if status := waitTerminal(t, handle); status != domain.EvaluationFailed {
		t.Fatalf("status: got %s, want FAILED", status)
	}

	// A judge backend mid-send when the evaluation stops must not stay
	// parked on the stream forever; the pipeline keeps draining it
	// until the backend notices the cancellation and closes up.
	for i := 0; i < 3; i++ {
		select {
		case f.judge.stream <- domain.NewMessageEvent("info", "late"):
		case <-time.After(2 * time.Second):
			t.Fatal("judge stream blocked after cancellation")
		}
	}
	close(f.judge.stream)

	if f.awards.count() != 1 {
		t.Errorf("award folded after cancellation: got %d, want 1", f.awards.count())
	}
}

func TestDeadlineExceededFailsWithTimeout(t *testing.T) {
	f := newFixture(t, Config{Deadline: 50 * time.Millisecond})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	if status := waitTerminal(t, handle); status != domain.EvaluationFailed {
		t.Fatalf("status: got %s, want FAILED", status)
	}
	if _, reason := handle.Status(); reason != domain.ReasonTimeout {
		t.Errorf("reason: got %s, want TIMEOUT", reason)
	}
}

func TestJudgeFatalErrorFailsEvaluation(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(30))
	waitEvent(t, handle)
	f.judge.stream <- domain.NewErrorEvent("sandbox died")

	if status := waitTerminal(t, handle); status != domain.EvaluationFailed {
		t.Fatalf("status: got %s, want FAILED", status)
	}
	if _, reason := handle.Status(); reason != domain.ReasonJudgeCrash {
		t.Errorf("reason: got %s, want JUDGE_CRASHED", reason)
	}
	// awards folded before the fatal error are retained
	if f.awards.count() != 1 {
		t.Errorf("awards: got %d, want 1", f.awards.count())
	}
}

func TestEventsArePersistedInOrder(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	f.judge.stream <- domain.NewMessageEvent("info", "compiling")
	waitEvent(t, handle)
	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(45))
	waitEvent(t, handle)
	close(f.judge.stream)
	waitTerminal(t, handle)

	events, err := f.evals.ListEvents(context.Background(), handle.EvaluationID())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}
	if events[0].Kind != domain.EventKindMessage || events[1].Kind != domain.EventKindScore {
		t.Errorf("event order: got %s, %s", events[0].Kind, events[1].Kind)
	}
}

func TestStartFailsWhenJudgeCannotLaunch(t *testing.T) {
	f := newFixture(t, Config{})
	f.judge.runErr = errors.New("binary not found")

	_, err := f.svc.Start(context.Background(), f.submission)
	if !errors.Is(err, errs.JudgeCrashed) {
		t.Fatalf("expected JudgeCrashed, got %v", err)
	}

	// the failed launch must not hold the submission slot
	f.judge.runErr = nil
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatalf("restart after launch failure: %v", err)
	}
	close(f.judge.stream)
	waitTerminal(t, handle)
}

func TestReportReturnsSealedEvaluationWithEvents(t *testing.T) {
	f := newFixture(t, Config{})
	handle, err := f.svc.Start(context.Background(), f.submission)
	if err != nil {
		t.Fatal(err)
	}

	f.judge.stream <- domain.NewScoreEvent("A", domain.NewScore(45))
	waitEvent(t, handle)
	close(f.judge.stream)
	waitTerminal(t, handle)

	eval, events, err := f.svc.Report(context.Background(), f.submission.ID)
	if err != nil {
		t.Fatal(err)
	}
	if eval == nil {
		t.Fatal("no evaluation reported")
	}
	if eval.Status != domain.EvaluationSucceeded {
		t.Errorf("status: got %s, want %s", eval.Status, domain.EvaluationSucceeded)
	}
	if len(events) != 1 || events[0].Kind != domain.EventKindScore {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestReportUnknownSubmission(t *testing.T) {
	f := newFixture(t, Config{})
	eval, events, err := f.svc.Report(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if eval != nil || events != nil {
		t.Errorf("expected empty report, got %+v / %+v", eval, events)
	}
}
