// Package types provides domain models shared across the experience engine.
//
// Zero-dependency design: types.go, experience.go and errors.go use only
// the standard library so the core packages (registry, rules, frequency,
// trace, bus, engine) can be embedded without pulling in storage or
// transport deps. ID utilities in ids.go import uuid but are isolated.
//
// Wire shape: JSON tags on Context, TraceStep and Decision are the stable
// analytics/logging contract. Renaming a tag is a breaking change; the
// golden file in internal/engine/testdata pins it.
package types

import (
	"fmt"
	"time"
)

// Context is the set of runtime facts an evaluation is performed against.
// Supplied by the host on every call; the engine never reads ambient state.
type Context struct {
	URL       string `json:"url" yaml:"url"`
	Referrer  string `json:"referrer,omitempty" yaml:"referrer,omitempty"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"` // unix milliseconds
}

// TraceStep is one stage of the decision pipeline.
// Append-only within one evaluation; slice order is execution order.
type TraceStep struct {
	Step     string `json:"step"`
	Input    any    `json:"input"`
	Output   any    `json:"output"`
	Passed   bool   `json:"passed"`
	Duration int64  `json:"duration"` // milliseconds
}

// DecisionMetadata carries timing and volume figures for one Decision.
type DecisionMetadata struct {
	TotalDuration        int64 `json:"totalDuration"`        // milliseconds
	ExperiencesEvaluated int   `json:"experiencesEvaluated"` // candidates inspected
	EvaluatedAt          int64 `json:"evaluatedAt"`          // unix milliseconds
}

// Decision is the engine's output for one evaluation.
// Value object: the engine does not retain it after returning.
type Decision struct {
	Show         bool             `json:"show"`
	ExperienceID string           `json:"experienceId,omitempty"`
	Reasons      []string         `json:"reasons"`
	Trace        []TraceStep      `json:"trace"`
	Context      Context          `json:"context"`
	Metadata     DecisionMetadata `json:"metadata"`
}

// EventType identifies a lifecycle event on the bus.
type EventType string

const (
	// EventShown fires when a winning experience is handed to the host.
	EventShown EventType = "shown"
	// EventAction is host-reported: the user interacted with the experience.
	EventAction EventType = "action"
	// EventDismissed is host-reported: the user closed the experience.
	EventDismissed EventType = "dismissed"
)

// TopicPrefix namespaces event types for analytics sinks.
const TopicPrefix = "experiences:"

// Topic returns the namespaced event name, e.g. "experiences:shown".
func (t EventType) Topic() string {
	return TopicPrefix + string(t)
}

// Valid reports whether t is one of the three lifecycle events.
func (t EventType) Valid() bool {
	switch t {
	case EventShown, EventAction, EventDismissed:
		return true
	default:
		return false
	}
}

// ParseEventType accepts both bare ("action") and namespaced
// ("experiences:action") names.
func ParseEventType(s string) (EventType, error) {
	if len(s) > len(TopicPrefix) && s[:len(TopicPrefix)] == TopicPrefix {
		s = s[len(TopicPrefix):]
	}
	t := EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return t, nil
}

// Event is a transient lifecycle notification.
// Delivered synchronously to subscribers; the engine does not store it.
type Event struct {
	ID             EventID        `json:"id"`
	Type           EventType      `json:"type"`
	ExperienceID   string         `json:"experienceId"`
	ExperienceType ExperienceType `json:"experienceType,omitempty"`
	Timestamp      int64          `json:"timestamp"` // unix milliseconds
	Payload        map[string]any `json:"payload,omitempty"`
}

// UnixMillis converts t to the millisecond integers used on the wire.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
