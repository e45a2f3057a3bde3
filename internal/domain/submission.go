package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionFile is one file submitted as part of a solution
type SubmissionFile struct {
	FieldName string `db:"field_name" json:"field_name"`
	FileName  string `db:"file_name" json:"file_name"`
	Content   []byte `db:"content" json:"content"`
}

// Submission is one attempt by one user at one problem. Submissions
// are created on submit and never mutated: a new attempt is a new
// submission.
type Submission struct {
	ID          uuid.UUID        `db:"id"`
	UserID      uuid.UUID        `db:"user_id"`
	ProblemName string           `db:"problem_name"`
	Files       []SubmissionFile `db:"-"`
	CreatedAt   time.Time        `db:"created_at"`
}

// NewSubmission creates a new submission
func NewSubmission(userID uuid.UUID, problemName string, files []SubmissionFile) *Submission {
	return &Submission{
		ID:          uuid.New(),
		UserID:      userID,
		ProblemName: problemName,
		Files:       files,
		CreatedAt:   time.Now(),
	}
}
