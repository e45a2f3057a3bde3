package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the kinds of facts a judge can emit
type EventKind string

const (
	EventKindScore   EventKind = "SCORE"
	EventKindBadge   EventKind = "BADGE"
	EventKindMessage EventKind = "MESSAGE"
	EventKindError   EventKind = "ERROR"
)

// ScoreEvent assigns the score achieved for one criterion. A later
// score event for the same criterion supersedes this one entirely;
// judges emit final values per criterion, never deltas.
type ScoreEvent struct {
	Criterion AwardName `json:"criterion"`
	Score     Score     `json:"score"`
}

// BadgeEvent assigns the badge outcome for one criterion
type BadgeEvent struct {
	Criterion AwardName `json:"criterion"`
	Badge     bool      `json:"badge"`
}

// MessageEvent carries textual feedback from the judge
type MessageEvent struct {
	Severity string `json:"severity,omitempty"`
	Text     string `json:"text"`
}

// ErrorEvent reports a fatal judge error; it terminates the stream
type ErrorEvent struct {
	Message string `json:"message"`
}

// EvaluationEvent is one atomic fact emitted during judging, a tagged
// union over the event kinds. Exactly one variant field is set.
// Ordering within one evaluation's sequence is significant.
type EvaluationEvent struct {
	EvaluationID uuid.UUID     `json:"evaluation_id,omitempty"`
	Kind         EventKind     `json:"kind"`
	Score        *ScoreEvent   `json:"score,omitempty"`
	Badge        *BadgeEvent   `json:"badge,omitempty"`
	Message      *MessageEvent `json:"message,omitempty"`
	Error        *ErrorEvent   `json:"error,omitempty"`
	EmittedAt    time.Time     `json:"emitted_at"`
}

func NewScoreEvent(criterion AwardName, score Score) EvaluationEvent {
	return EvaluationEvent{
		Kind:      EventKindScore,
		Score:     &ScoreEvent{Criterion: criterion, Score: score},
		EmittedAt: time.Now(),
	}
}

func NewBadgeEvent(criterion AwardName, badge bool) EvaluationEvent {
	return EvaluationEvent{
		Kind:      EventKindBadge,
		Badge:     &BadgeEvent{Criterion: criterion, Badge: badge},
		EmittedAt: time.Now(),
	}
}

func NewMessageEvent(severity, text string) EvaluationEvent {
	return EvaluationEvent{
		Kind:      EventKindMessage,
		Message:   &MessageEvent{Severity: severity, Text: text},
		EmittedAt: time.Now(),
	}
}

func NewErrorEvent(message string) EvaluationEvent {
	return EvaluationEvent{
		Kind:      EventKindError,
		Error:     &ErrorEvent{Message: message},
		EmittedAt: time.Now(),
	}
}

// Validate checks the union invariant
func (e EvaluationEvent) Validate() error {
	switch e.Kind {
	case EventKindScore:
		if e.Score == nil {
			return fmt.Errorf("score event without score payload")
		}
	case EventKindBadge:
		if e.Badge == nil {
			return fmt.Errorf("badge event without badge payload")
		}
	case EventKindMessage:
		if e.Message == nil {
			return fmt.Errorf("message event without message payload")
		}
	case EventKindError:
		if e.Error == nil {
			return fmt.Errorf("error event without error payload")
		}
	default:
		return fmt.Errorf("unknown event kind '%s'", e.Kind)
	}
	return nil
}
