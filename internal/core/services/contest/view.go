package contest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gitlab.com/cgs-2025.net/internal/domain"
)

// ContestView is the contest as visible to one user (or an anonymous
// visitor). The problem set is withheld entirely before the contest
// starts, so problem names never leak early.
type ContestView struct {
	svc     *ContestService
	contest *domain.Contest
	userID  *uuid.UUID
}

func (v *ContestView) Status() domain.ContestStatus {
	return v.contest.StatusAt(time.Now())
}

func (v *ContestView) StartTime() time.Time { return v.contest.StartTime }
func (v *ContestView) EndTime() time.Time   { return v.contest.EndTime }

// ProblemSet returns the active problem set, nil while the contest
// has not started
func (v *ContestView) ProblemSet() *ProblemSet {
	switch v.Status() {
	case domain.ContestNotStarted:
		return nil
	case domain.ContestRunning, domain.ContestEnded:
		return &ProblemSet{svc: v.svc, contest: v.contest}
	}
	return nil
}

// ProblemSetView is the problem set as visible to one user
func (v *ContestView) ProblemSetView() *ProblemSetView {
	set := v.ProblemSet()
	if set == nil {
		return nil
	}
	return &ProblemSetView{problemSet: set, userID: v.userID}
}

// ProblemSet is the set of problems currently active
type ProblemSet struct {
	svc     *ContestService
	contest *domain.Contest
}

func (p *ProblemSet) Problems(ctx context.Context) ([]*domain.Problem, error) {
	return p.svc.problemRepo.ListProblems(ctx)
}

// ScoreRange is the range of the total score, the sum of each
// problem's range
func (p *ProblemSet) ScoreRange(ctx context.Context) (domain.ScoreRange, error) {
	problems, err := p.Problems(ctx)
	if err != nil {
		return domain.ScoreRange{}, fmt.Errorf("failed to list problems: %w", err)
	}
	var ranges []domain.ScoreRange
	for _, problem := range problems {
		material, err := p.svc.loadMaterial(ctx, problem)
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

func (p *ProblemSet) ScoreDomain(ctx context.Context) (domain.ScoreAwardDomain, error) {
	r, err := p.ScoreRange(ctx)
	if err != nil {
		return domain.ScoreAwardDomain{}, err
	}
	return domain.ScoreAwardDomain{Range: r}, nil
}

// ProblemSetView is the problem set as visible to one user
type ProblemSetView struct {
	problemSet *ProblemSet
	userID     *uuid.UUID
}

// Tackling is the user's progress over the whole problem set, nil for
// anonymous visitors
func (v *ProblemSetView) Tackling() *ProblemSetTackling {
	if v.userID == nil {
		return nil
	}
	return &ProblemSetTackling{problemSet: v.problemSet, userID: *v.userID}
}

func (v *ProblemSetView) Grading(ctx context.Context) (domain.ScoreAwardGrading, error) {
	dom, err := v.problemSet.ScoreDomain(ctx)
	if err != nil {
		return domain.ScoreAwardGrading{}, err
	}
	grading := domain.ScoreAwardGrading{Domain: dom}
	if tackling := v.Tackling(); tackling != nil {
		grade, err := tackling.Grade(ctx)
		if err != nil {
			return domain.ScoreAwardGrading{}, err
		}
		grading.Grade = &grade
	}
	return grading, nil
}

func (v *ProblemSetView) ProblemViews(ctx context.Context) ([]*ProblemView, error) {
	problems, err := v.problemSet.Problems(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*ProblemView, 0, len(problems))
	for _, problem := range problems {
		views = append(views, &ProblemView{
			svc:     v.problemSet.svc,
			contest: v.problemSet.contest,
			problem: problem,
			userID:  v.userID,
		})
	}
	return views, nil
}

// ProblemSetTackling is one user's progress in solving the problems
type ProblemSetTackling struct {
	problemSet *ProblemSet
	userID     uuid.UUID
}

// Score is the total achieved score, the sum of each problem's score
func (t *ProblemSetTackling) Score(ctx context.Context) (domain.ScoreAwardValue, error) {
	problems, err := t.problemSet.Problems(ctx)
	if err != nil {
		return domain.ScoreAwardValue{}, err
	}
	var values []domain.ScoreAwardValue
	for _, problem := range problems {
		tackling := &ProblemTackling{
			svc:     t.problemSet.svc,
			contest: t.problemSet.contest,
			problem: problem,
			userID:  t.userID,
		}
		value, err := tackling.Score(ctx)
		if err != nil {
			return domain.ScoreAwardValue{}, err
		}
		values = append(values, value)
	}
	return domain.TotalValue(values), nil
}

func (t *ProblemSetTackling) Grade(ctx context.Context) (domain.ScoreAwardGrade, error) {
	dom, err := t.problemSet.ScoreDomain(ctx)
	if err != nil {
		return domain.ScoreAwardGrade{}, err
	}
	value, err := t.Score(ctx)
	if err != nil {
		return domain.ScoreAwardGrade{}, err
	}
	return domain.ScoreAwardGrade{Domain: dom, Value: value}, nil
}

// ProblemView is one problem as visible to one user
type ProblemView struct {
	svc     *ContestService
	contest *domain.Contest
	problem *domain.Problem
	userID  *uuid.UUID
}

func (v *ProblemView) Name() string { return v.problem.Name }

func (v *ProblemView) Material(ctx context.Context) (*domain.ProblemMaterial, error) {
	return v.svc.loadMaterial(ctx, v.problem)
}

// Tackling is the user's attempt state on this problem, nil for
// anonymous visitors
func (v *ProblemView) Tackling() *ProblemTackling {
	if v.userID == nil {
		return nil
	}
	return &ProblemTackling{svc: v.svc, contest: v.contest, problem: v.problem, userID: *v.userID}
}

// ProblemTackling is one user's attempts at one problem
type ProblemTackling struct {
	svc     *ContestService
	contest *domain.Contest
	problem *domain.Problem
	userID  uuid.UUID
}

// Score is the achieved score on this problem: the sum of the user's
// current score awards across its criteria
func (t *ProblemTackling) Score(ctx context.Context) (domain.ScoreAwardValue, error) {
	awards, err := t.svc.awardRepo.ListForUserProblem(ctx, t.userID, t.problem.Name)
	if err != nil {
		return domain.ScoreAwardValue{}, fmt.Errorf("failed to load awards: %w", err)
	}
	var values []domain.ScoreAwardValue
	for _, award := range awards {
		switch award.Value.Kind {
		case domain.AwardKindScore:
			values = append(values, *award.Value.Score)
		case domain.AwardKindBadge:
			// badges do not contribute to the score
		}
	}
	return domain.TotalValue(values), nil
}

// Badges is the user's current badge awards on this problem
func (t *ProblemTackling) Badges(ctx context.Context) ([]*domain.Award, error) {
	awards, err := t.svc.awardRepo.ListForUserProblem(ctx, t.userID, t.problem.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load awards: %w", err)
	}
	var badges []*domain.Award
	for _, award := range awards {
		if award.Value.Kind == domain.AwardKindBadge {
			badges = append(badges, award)
		}
	}
	return badges, nil
}

func (t *ProblemTackling) Grade(ctx context.Context) (domain.ScoreAwardGrade, error) {
	material, err := t.svc.loadMaterial(ctx, t.problem)
	if err != nil {
		return domain.ScoreAwardGrade{}, err
	}
	r, err := material.ScoreRange()
	if err != nil {
		return domain.ScoreAwardGrade{}, err
	}
	value, err := t.Score(ctx)
	if err != nil {
		return domain.ScoreAwardGrade{}, err
	}
	return domain.ScoreAwardGrade{
		Domain: domain.ScoreAwardDomain{Range: r},
		Value:  value,
	}, nil
}

func (t *ProblemTackling) Submissions(ctx context.Context) ([]*domain.Submission, error) {
	return t.svc.submissionRepo.ListForUserProblem(ctx, t.userID, t.problem.Name)
}

// CanSubmit reports whether the user may submit to this problem.
// Submitting is allowed while the contest is open; evaluations after
// the end remain possible for upsolving.
func (t *ProblemTackling) CanSubmit() bool {
	return t.contest.StatusAt(time.Now()) != domain.ContestNotStarted
}
