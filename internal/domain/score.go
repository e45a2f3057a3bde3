package domain

import (
	"github.com/shopspring/decimal"
)

// Score wraps a decimal number that represents a score.
// Scores are exact decimal quantities; no rounding happens inside the
// scoring types. Precision is advisory, for display only.
type Score struct {
	Value decimal.Decimal
}

// NewScore creates a score from an integer amount
func NewScore(value int64) Score {
	return Score{Value: decimal.NewFromInt(value)}
}

// NewScoreFromString parses a score from its decimal string form
func NewScoreFromString(s string) (Score, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Score{}, err
	}
	return Score{Value: d}, nil
}

func (s Score) Add(other Score) Score {
	return Score{Value: s.Value.Add(other.Value)}
}

func (s Score) Equal(other Score) bool {
	return s.Value.Equal(other.Value)
}

func (s Score) IsZero() bool {
	return s.Value.IsZero()
}

func (s Score) String() string {
	return s.Value.String()
}

// MarshalJSON encodes the score as its bare decimal form
func (s Score) MarshalJSON() ([]byte, error) {
	return s.Value.MarshalJSON()
}

func (s *Score) UnmarshalJSON(data []byte) error {
	return s.Value.UnmarshalJSON(data)
}

// AwardName identifies one scoring criterion within a problem.
// Never shown to non-admin users.
type AwardName string

// ScoreRange describes the possible values of a score
type ScoreRange struct {
	// Number of significant decimal places, for display
	Precision int32 `json:"precision"`
	// Maximum score
	Max Score `json:"max"`
	// Whether partial scores are allowed. If false, a value assigned
	// within this range must be either zero or Max.
	AllowPartial bool `json:"allow_partial"`
}

// TotalRange aggregates ranges of individual items into the range of
// their sum. The aggregate of more than one all-or-nothing item can
// take intermediate values, so it allows partial scores.
func TotalRange(ranges []ScoreRange) ScoreRange {
	total := ScoreRange{
		Precision:    0,
		Max:          NewScore(0),
		AllowPartial: len(ranges) > 1,
	}
	for _, r := range ranges {
		if r.Precision > total.Precision {
			total.Precision = r.Precision
		}
		if r.AllowPartial {
			total.AllowPartial = true
		}
		total.Max = total.Max.Add(r.Max)
	}
	return total
}

// Contains reports whether a value is admissible for this range.
// Used as a sanity check at test boundaries only; the scoring types
// themselves never validate, since sums of already-validated parts
// are trusted.
func (r ScoreRange) Contains(value Score) bool {
	if value.Value.IsNegative() || value.Value.GreaterThan(r.Max.Value) {
		return false
	}
	if !r.AllowPartial && !value.IsZero() && !value.Equal(r.Max) {
		return false
	}
	return true
}

// ScoreAwardValue is the score actually achieved for a scored item
type ScoreAwardValue struct {
	Score Score `json:"score"`
}

// TotalValue sums achieved scores. No clamping happens here: callers
// must guarantee each component already satisfies its own range.
func TotalValue(values []ScoreAwardValue) ScoreAwardValue {
	total := NewScore(0)
	for _, v := range values {
		total = total.Add(v.Score)
	}
	return ScoreAwardValue{Score: total}
}

// BadgeAwardValue is the outcome of an award with only two possible
// states, success or fail. Badges have no numeric composition.
type BadgeAwardValue struct {
	Badge bool `json:"badge"`
}

// ScoreAwardDomain declares the bound of a scored item or aggregate
type ScoreAwardDomain struct {
	Range ScoreRange `json:"range"`
}

// ScoreAwardGrade pairs a domain with the value achieved in it
type ScoreAwardGrade struct {
	Domain ScoreAwardDomain `json:"domain"`
	Value  ScoreAwardValue  `json:"value"`
}

// ScoreAwardGrading is a domain together with the grade achieved in
// it, if any (no grade when the viewer is not tackling the item)
type ScoreAwardGrading struct {
	Domain ScoreAwardDomain `json:"domain"`
	Grade  *ScoreAwardGrade `json:"grade,omitempty"`
}
