package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/experiences/internal/bus"
	"github.com/solatis/experiences/internal/types"
)

// DefaultRecentLimit is the number of events Recent returns for limit <= 0.
const DefaultRecentLimit = 5

// maxRecentLimit caps a single Recent call.
const maxRecentLimit = 1000

// Subscriber is the part of the engine EventLog attaches to.
type Subscriber interface {
	On(t types.EventType, h bus.Handler) bus.Subscription
}

// EventLog persists lifecycle events to the events table.
type EventLog struct {
	q       *Queries
	logger  *slog.Logger
	timeout time.Duration
}

// eventRow mirrors the events table.
type eventRow struct {
	ID             string `db:"event_id"`
	Type           string `db:"event_type"`
	ExperienceID   string `db:"experience_id"`
	ExperienceType string `db:"experience_type"`
	OccurredAt     int64  `db:"occurred_at"`
	Payload        string `db:"payload"`
}

// NewEventLog creates an event log over q. A nil logger uses slog.Default.
func NewEventLog(q *Queries, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{q: q, logger: logger, timeout: defaultStoreTimeout}
}

// Attach subscribes the log to every lifecycle event type on s.
// Cancel the returned subscriptions to detach.
func (l *EventLog) Attach(s Subscriber) []bus.Subscription {
	handler := func(ev types.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		return l.Record(ctx, ev)
	}
	return []bus.Subscription{
		s.On(types.EventShown, handler),
		s.On(types.EventAction, handler),
		s.On(types.EventDismissed, handler),
	}
}

// Record inserts one event. Events without an ID get a fresh UUIDv7;
// events without a timestamp take the one embedded in their ID.
func (l *EventLog) Record(ctx context.Context, ev types.Event) error {
	if ev.ID == "" {
		ev.ID = types.NewEventID()
	} else if _, err := types.ParseEventID(string(ev.ID)); err != nil {
		return fmt.Errorf("invalid event id %q: %w", ev.ID, err)
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = types.EventIDTime(ev.ID).UnixMilli()
	}
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	_, err = l.q.Exec(ctx, "event-insert",
		string(ev.ID),
		string(ev.Type),
		ev.Type.Topic(),
		ev.ExperienceID,
		string(ev.ExperienceType),
		ev.Timestamp,
		string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}

	l.logger.Debug("event recorded",
		"event_type", ev.Type.Topic(),
		"experience_id", ev.ExperienceID)
	return nil
}

// Recent returns up to limit events, newest first.
func (l *EventLog) Recent(ctx context.Context, limit int) ([]types.Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, maxRecentLimit)

	var rows []eventRow
	if err := l.q.Select(ctx, "event-list-recent", &rows, limit); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]types.Event, 0, len(rows))
	for _, r := range rows {
		ev := types.Event{
			ID:             types.EventID(r.ID),
			Type:           types.EventType(r.Type),
			ExperienceID:   r.ExperienceID,
			ExperienceType: types.ExperienceType(r.ExperienceType),
			Timestamp:      r.OccurredAt,
		}
		if r.Payload != "" && r.Payload != "{}" {
			if err := json.Unmarshal([]byte(r.Payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("corrupt payload for event %s: %w", r.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// Count returns the number of stored events.
func (l *EventLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.q.Get(ctx, "event-count", &n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
