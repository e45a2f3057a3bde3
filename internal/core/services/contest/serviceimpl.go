package contest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/contentstore"
	"gitlab.com/cgs-2025.net/internal/core/ports/primary"
	"gitlab.com/cgs-2025.net/internal/core/ports/secondary"
	"gitlab.com/cgs-2025.net/internal/core/services/auth"
	"gitlab.com/cgs-2025.net/internal/core/services/evaluation"
	"gitlab.com/cgs-2025.net/internal/domain"
	"gitlab.com/cgs-2025.net/internal/static/errs"
)

const (
	contestCacheNamespace = "contest"
	problemCacheNamespace = "problems"
	gradingFileName       = "grading.json"
)

var _ IContestService = (*ContestService)(nil)

// ContestService composes per-problem awards into contest-wide score
// domains, values and grades under the time-gated contest lifecycle
type ContestService struct {
	contestRepo    secondary.ContestRepository
	problemRepo    secondary.ProblemRepository
	submissionRepo secondary.SubmissionRepository
	awardRepo      secondary.AwardRepository
	store          *contentstore.Store
	gate           auth.Gate
	pipeline       evaluation.IEvaluationService
	logger         primary.Logger
}

// NewContestService creates a new contest service
func NewContestService(
	contestRepo secondary.ContestRepository,
	problemRepo secondary.ProblemRepository,
	submissionRepo secondary.SubmissionRepository,
	awardRepo secondary.AwardRepository,
	store *contentstore.Store,
	gate auth.Gate,
	pipeline evaluation.IEvaluationService,
	logger primary.Logger,
) *ContestService {
	return &ContestService{
		contestRepo:    contestRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		awardRepo:      awardRepo,
		store:          store,
		gate:           gate,
		pipeline:       pipeline,
		logger:         logger,
	}
}

func (s *ContestService) Current(ctx context.Context) (*domain.Contest, error) {
	contest, err := s.contestRepo.LoadContest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	if contest == nil {
		return nil, errs.ContestNotFound
	}
	return contest, nil
}

func (s *ContestService) Init(ctx context.Context, archive []byte) error {
	ref, err := s.store.Store(ctx, archive)
	if err != nil {
		return fmt.Errorf("failed to store contest archive: %w", err)
	}
	now := time.Now()
	contest := &domain.Contest{
		ArchiveIntegrity: string(ref),
		StartTime:        now,
		EndTime:          now.Add(4 * time.Hour),
	}
	if err := s.contestRepo.InsertContest(ctx, contest); err != nil {
		return fmt.Errorf("failed to insert contest: %w", err)
	}
	s.logger.Info("Contest initialized", "start", contest.StartTime, "end", contest.EndTime)
	return nil
}

func (s *ContestService) Insert(ctx context.Context, archive []byte, startTime, endTime string) error {
	start, err := domain.ParseContestTime(startTime)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.MalformedTime, err)
	}
	end, err := domain.ParseContestTime(endTime)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.MalformedTime, err)
	}
	ref, err := s.store.Store(ctx, archive)
	if err != nil {
		return fmt.Errorf("failed to store contest archive: %w", err)
	}
	contest := &domain.Contest{
		ArchiveIntegrity: string(ref),
		StartTime:        start,
		EndTime:          end,
	}
	if err := s.contestRepo.InsertContest(ctx, contest); err != nil {
		return fmt.Errorf("failed to insert contest: %w", err)
	}
	return nil
}

func (s *ContestService) Update(ctx context.Context, input ContestUpdateInput) error {
	if !s.gate.IsAdmin(ctx) {
		return errs.Unauthorized
	}
	changeset := &domain.ContestChangeset{}
	if input.ArchiveContent != nil {
		ref, err := s.store.Store(ctx, input.ArchiveContent)
		if err != nil {
			return fmt.Errorf("failed to store contest archive: %w", err)
		}
		integrity := string(ref)
		changeset.ArchiveIntegrity = &integrity
	}
	if input.StartTime != nil {
		start, err := domain.ParseContestTime(*input.StartTime)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.MalformedTime, err)
		}
		changeset.StartTime = &start
	}
	if input.EndTime != nil {
		end, err := domain.ParseContestTime(*input.EndTime)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.MalformedTime, err)
		}
		changeset.EndTime = &end
	}
	if err := s.contestRepo.UpdateContest(ctx, changeset); err != nil {
		return fmt.Errorf("failed to update contest: %w", err)
	}
	s.logger.Info("Contest updated")
	return nil
}

func (s *ContestService) Status(ctx context.Context) (domain.ContestStatus, error) {
	contest, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	return contest.StatusAt(time.Now()), nil
}

// Material reads title and description from the unpacked contest
// archive: title.txt holds the title, home.* holds the description
func (s *ContestService) Material(ctx context.Context) (*domain.ContestMaterial, error) {
	contest, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	path, err := s.store.Resolve(ctx, contentstore.BlobRef(contest.ArchiveIntegrity), contestCacheNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contest archive: %w", err)
	}

	material := &domain.ContestMaterial{}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading contest material: %v", errs.IoError, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		switch {
		case name == "title.txt":
			content, err := os.ReadFile(filepath.Join(path, name))
			if err != nil {
				return nil, fmt.Errorf("%w: reading title: %v", errs.IoError, err)
			}
			material.Title = strings.TrimSpace(string(content))
		case stem == "home":
			content, err := os.ReadFile(filepath.Join(path, name))
			if err != nil {
				return nil, fmt.Errorf("%w: reading description: %v", errs.IoError, err)
			}
			material.Description = string(content)
			material.DescriptionFile = name
		}
	}
	return material, nil
}

func (s *ContestService) ScoreRange(ctx context.Context) (domain.ScoreRange, error) {
	problems, err := s.problemRepo.ListProblems(ctx)
	if err != nil {
		return domain.ScoreRange{}, fmt.Errorf("failed to list problems: %w", err)
	}
	var ranges []domain.ScoreRange
	for _, problem := range problems {
		material, err := s.loadMaterial(ctx, problem)
		if err != nil {
			return domain.ScoreRange{}, err
		}
		r, err := material.ScoreRange()
		if err != nil {
			return domain.ScoreRange{}, err
		}
		ranges = append(ranges, r)
	}
	return domain.TotalRange(ranges), nil
}

func (s *ContestService) ScoreDomain(ctx context.Context) (domain.ScoreAwardDomain, error) {
	if !s.gate.IsAdmin(ctx) {
		return domain.ScoreAwardDomain{}, errs.Unauthorized
	}
	r, err := s.ScoreRange(ctx)
	if err != nil {
		return domain.ScoreAwardDomain{}, err
	}
	return domain.ScoreAwardDomain{Range: r}, nil
}

func (s *ContestService) Problems(ctx context.Context) ([]*domain.Problem, error) {
	// contestants see problems only through a view
	if !s.gate.IsAdmin(ctx) {
		return nil, errs.Unauthorized
	}
	return s.problemRepo.ListProblems(ctx)
}

func (s *ContestService) AddProblem(ctx context.Context, name string, archive []byte) error {
	if !s.gate.IsAdmin(ctx) {
		return errs.Unauthorized
	}
	ref, err := s.store.Store(ctx, archive)
	if err != nil {
		return fmt.Errorf("failed to store problem archive: %w", err)
	}
	problem := &domain.Problem{
		Name:             name,
		ArchiveIntegrity: string(ref),
		CreatedAt:        time.Now(),
	}
	if err := s.problemRepo.SaveProblem(ctx, problem); err != nil {
		return fmt.Errorf("failed to save problem: %w", err)
	}
	s.logger.Info("Problem added", "name", name, "ref", ref)
	return nil
}

func (s *ContestService) RemoveProblem(ctx context.Context, name string) error {
	if !s.gate.IsAdmin(ctx) {
		return errs.Unauthorized
	}
	if err := s.problemRepo.DeleteProblem(ctx, name); err != nil {
		return fmt.Errorf("failed to delete problem: %w", err)
	}
	s.logger.Info("Problem removed", "name", name)
	return nil
}

func (s *ContestService) ReplaceProblemArchive(ctx context.Context, name string, archive []byte) error {
	if !s.gate.IsAdmin(ctx) {
		return errs.Unauthorized
	}
	problem, err := s.problemRepo.GetProblem(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load problem: %w", err)
	}
	if problem == nil {
		return fmt.Errorf("%w: %s", errs.ProblemNotFound, name)
	}
	ref, err := s.store.Store(ctx, archive)
	if err != nil {
		return fmt.Errorf("failed to store problem archive: %w", err)
	}
	problem.ArchiveIntegrity = string(ref)
	if err := s.problemRepo.SaveProblem(ctx, problem); err != nil {
		return fmt.Errorf("failed to save problem: %w", err)
	}
	s.logger.Info("Problem archive replaced", "name", name, "ref", ref)
	return nil
}

func (s *ContestService) ProblemMaterial(ctx context.Context, name string) (*domain.ProblemMaterial, error) {
	problem, err := s.problemRepo.GetProblem(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load problem: %w", err)
	}
	if problem == nil {
		return nil, fmt.Errorf("%w: %s", errs.ProblemNotFound, name)
	}
	return s.loadMaterial(ctx, problem)
}

func (s *ContestService) View(ctx context.Context, userID *uuid.UUID) (*ContestView, error) {
	if userID != nil && !s.gate.AuthorizeAs(ctx, *userID) {
		return nil, errs.Unauthorized
	}
	contest, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &ContestView{svc: s, contest: contest, userID: userID}, nil
}

func (s *ContestService) Submissions(ctx context.Context) ([]*domain.Submission, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, errs.Unauthorized
	}
	return s.submissionRepo.ListSubmissions(ctx)
}

func (s *ContestService) Submission(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	submission, err := s.submissionRepo.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission == nil {
		return nil, nil
	}
	if !s.gate.AuthorizeAs(ctx, submission.UserID) {
		return nil, errs.Unauthorized
	}
	return submission, nil
}

// Submit records the attempt, then hands it to the pipeline. The
// submission stays valid even if the evaluation later fails; it can
// be re-evaluated by starting a new evaluation.
func (s *ContestService) Submit(ctx context.Context, userID uuid.UUID, problemName string, files []domain.SubmissionFile) (*domain.Submission, error) {
	if !s.gate.AuthorizeAs(ctx, userID) {
		return nil, errs.Unauthorized
	}
	submission := domain.NewSubmission(userID, problemName, files)
	if err := s.submissionRepo.SaveSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}
	if _, err := s.pipeline.Start(ctx, submission); err != nil {
		return nil, err
	}
	s.logger.Info("Submission received",
		"submissionId", submission.ID,
		"userId", userID,
		"problem", problemName)
	return submission, nil
}

// loadMaterial reads the grading configuration from the problem's
// resolved archive
func (s *ContestService) loadMaterial(ctx context.Context, problem *domain.Problem) (*domain.ProblemMaterial, error) {
	path, err := s.store.Resolve(ctx, contentstore.BlobRef(problem.ArchiveIntegrity), problemCacheNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive of problem '%s': %w", problem.Name, err)
	}
	content, err := os.ReadFile(filepath.Join(path, gradingFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: problem '%s' has no readable %s: %v", errs.CorruptArchive, problem.Name, gradingFileName, err)
	}
	var material domain.ProblemMaterial
	if err := json.Unmarshal(content, &material); err != nil {
		return nil, fmt.Errorf("%w: problem '%s' grading config: %v", errs.CorruptArchive, problem.Name, err)
	}
	return &material, nil
}
