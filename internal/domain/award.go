package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// AwardKind discriminates the two natures an award can have
type AwardKind string

const (
	AwardKindScore AwardKind = "SCORE"
	AwardKindBadge AwardKind = "BADGE"
)

// AwardValue is the tagged union of the possible award outcomes.
// Exactly one of Score and Badge is set, according to Kind.
type AwardValue struct {
	Kind  AwardKind        `json:"kind"`
	Score *ScoreAwardValue `json:"score,omitempty"`
	Badge *BadgeAwardValue `json:"badge,omitempty"`
}

func NewScoreValue(score Score) AwardValue {
	return AwardValue{Kind: AwardKindScore, Score: &ScoreAwardValue{Score: score}}
}

func NewBadgeValue(badge bool) AwardValue {
	return AwardValue{Kind: AwardKindBadge, Badge: &BadgeAwardValue{Badge: badge}}
}

// Validate checks the union invariant
func (v AwardValue) Validate() error {
	switch v.Kind {
	case AwardKindScore:
		if v.Score == nil || v.Badge != nil {
			return fmt.Errorf("malformed score award value")
		}
	case AwardKindBadge:
		if v.Badge == nil || v.Score != nil {
			return fmt.Errorf("malformed badge award value")
		}
	default:
		return fmt.Errorf("unknown award kind '%s'", v.Kind)
	}
	return nil
}

// Award is the current outcome of one scoring criterion for one user
// on one problem. The current award for a key is the fold of all
// events with that key, last write wins.
type Award struct {
	UserID      uuid.UUID  `db:"user_id"`
	ProblemName string     `db:"problem_name"`
	Criterion   AwardName  `db:"criterion"`
	Value       AwardValue `db:"value"`
}

type AwardTable struct {
	UserID      string
	ProblemName string
	Criterion   string
	Kind        string
	Score       string
	Badge       string
	UpdatedAt   string
}

func GetAwardTable() AwardTable {
	return AwardTable{
		UserID:      "user_id",
		ProblemName: "problem_name",
		Criterion:   "criterion",
		Kind:        "kind",
		Score:       "score",
		Badge:       "badge",
		UpdatedAt:   "updated_at",
	}
}

func (AwardTable) TableName() string {
	return "awards"
}

// CriterionConfig declares one scoring criterion of a problem, as
// read from the problem archive grading configuration
type CriterionConfig struct {
	Name         AwardName `json:"name"`
	Kind         AwardKind `json:"kind"`
	Max          string    `json:"max,omitempty"`
	Precision    int32     `json:"precision,omitempty"`
	AllowPartial bool      `json:"allow_partial,omitempty"`
}

// Range builds the declared score range of a score criterion.
// Badge criteria have no range.
func (c CriterionConfig) Range() (ScoreRange, error) {
	if c.Kind != AwardKindScore {
		return ScoreRange{}, fmt.Errorf("criterion '%s' has no score range", c.Name)
	}
	max, err := NewScoreFromString(c.Max)
	if err != nil {
		return ScoreRange{}, fmt.Errorf("invalid max score for criterion '%s': %w", c.Name, err)
	}
	return ScoreRange{
		Precision:    c.Precision,
		Max:          max,
		AllowPartial: c.AllowPartial,
	}, nil
}
