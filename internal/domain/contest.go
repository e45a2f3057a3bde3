package domain

import (
	"fmt"
	"time"
)

// ContestStatus represents the lifecycle state of the contest
type ContestStatus string

const (
	ContestNotStarted ContestStatus = "NOT_STARTED"
	ContestRunning    ContestStatus = "RUNNING"
	ContestEnded      ContestStatus = "ENDED"
)

// Contest is the singleton contest configuration. Exactly one row
// exists after initialization; it is updated via partial changesets
// and never deleted.
type Contest struct {
	// Primary key, always 0
	ID int `db:"id"`
	// Content hash of the blob holding contest-wide material
	ArchiveIntegrity string `db:"archive_integrity"`
	// Start time of the contest, stored as RFC3339
	StartTime time.Time `db:"start_time"`
	// End time of the contest, stored as RFC3339
	EndTime time.Time `db:"end_time"`
}

// StatusAt derives the lifecycle state at the given instant. There is
// no persisted state; the status is recomputed on every query. The
// contest is Running exactly at StartTime and Ended exactly at EndTime.
func (c *Contest) StatusAt(now time.Time) ContestStatus {
	if now.Before(c.StartTime) {
		return ContestNotStarted
	}
	if now.Before(c.EndTime) {
		return ContestRunning
	}
	return ContestEnded
}

// ContestChangeset is a partial update of the contest configuration.
// Nil fields are left unchanged.
type ContestChangeset struct {
	ArchiveIntegrity *string
	StartTime        *time.Time
	EndTime          *time.Time
}

// ContestMaterial is the contest-wide presentation material read from
// the unpacked contest archive
type ContestMaterial struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// Name of the file the description was read from
	DescriptionFile string `json:"description_file,omitempty"`
}

// ParseContestTime parses a stored contest timestamp. A malformed
// timestamp is a configuration error surfaced at load time, never a
// runtime state.
func ParseContestTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed contest time '%s': %w", value, err)
	}
	return t, nil
}
