package domain

import "time"

// Problem is one problem of the contest, identified by a unique name
// used as a stable identifier, similar to a package name. The name is
// never shown to non-admin users. A problem is immutable once created
// except for replacement of its archive reference.
type Problem struct {
	Name string `db:"name"`
	// Content hash of the blob holding statement, test data and
	// grading configuration
	ArchiveIntegrity string    `db:"archive_integrity"`
	CreatedAt        time.Time `db:"created_at"`
}

// ProblemMaterial is the declared scoring structure of a problem, read
// from the grading configuration inside the problem archive
type ProblemMaterial struct {
	Criteria []CriterionConfig `json:"criteria"`
}

// ScoreRange is the range of the problem total, the aggregate of the
// ranges of its score criteria
func (m *ProblemMaterial) ScoreRange() (ScoreRange, error) {
	var ranges []ScoreRange
	for _, c := range m.Criteria {
		if c.Kind != AwardKindScore {
			continue
		}
		r, err := c.Range()
		if err != nil {
			return ScoreRange{}, err
		}
		ranges = append(ranges, r)
	}
	return TotalRange(ranges), nil
}
