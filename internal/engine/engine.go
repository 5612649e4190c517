package engine

import (
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/solatis/experiences/internal/bus"
	"github.com/solatis/experiences/internal/frequency"
	"github.com/solatis/experiences/internal/registry"
	"github.com/solatis/experiences/internal/types"
)

// Engine owns one registry, one frequency tracker and one event bus.
// Safe for concurrent use; see frequency.Tracker.OnShown for the
// best-effort counter semantics under concurrent callers.
type Engine struct {
	registry *registry.Registry
	tracker  *frequency.Tracker
	bus      *bus.Bus
	clock    Clock
	logger   *slog.Logger

	debug           bool
	consentRequired bool
	consentGranted  atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDebug logs every Decision at debug level.
func WithDebug(debug bool) Option {
	return func(e *Engine) {
		e.debug = debug
	}
}

// WithConsentRequired gates every evaluation on GrantConsent.
func WithConsentRequired(required bool) Option {
	return func(e *Engine) {
		e.consentRequired = required
	}
}

// New creates an engine over the given frequency store.
// A nil store disables frequency capping (every check is allowed).
func New(store frequency.KV, opts ...Option) *Engine {
	e := &Engine{
		registry: registry.New(),
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tracker = frequency.NewTracker(store, e.logger)
	e.bus = bus.New(e.logger)
	return e
}

// Register inserts or overwrites an experience.
// A configuration error disables the experience but still stores it; the
// error is logged and returned for the caller's information. Only an empty
// id stores nothing.
func (e *Engine) Register(id string, exp types.Experience) error {
	err := e.registry.Register(id, exp)
	if err != nil {
		e.logger.Warn("experience disabled",
			"experience_id", id,
			"err", err)
	}
	return err
}

// Unregister removes an experience. No-op when absent.
func (e *Engine) Unregister(id string) {
	e.registry.Unregister(id)
}

// Get returns the registry entry for id.
func (e *Engine) Get(id string) (*registry.Entry, bool) {
	return e.registry.Get(id)
}

// Experiences yields every registered experience in registration order.
func (e *Engine) Experiences() iter.Seq[*registry.Entry] {
	return e.registry.All()
}

// Frequency returns the stored counter for id.
func (e *Engine) Frequency(id string) (types.FrequencyRecord, bool) {
	return e.tracker.Record(id)
}

// ResetFrequency clears every window for id.
func (e *Engine) ResetFrequency(id string) {
	e.tracker.Reset(id)
}

// GrantConsent allows evaluations when consent is required.
func (e *Engine) GrantConsent() {
	e.consentGranted.Store(true)
}

// RevokeConsent blocks evaluations when consent is required.
func (e *Engine) RevokeConsent() {
	e.consentGranted.Store(false)
}

// ConsentRequired reports whether the engine was built with the consent gate.
func (e *Engine) ConsentRequired() bool {
	return e.consentRequired
}

// On subscribes h to events of type t.
func (e *Engine) On(t types.EventType, h bus.Handler) bus.Subscription {
	return e.bus.On(t, h)
}

// Off removes a subscription.
func (e *Engine) Off(sub bus.Subscription) {
	e.bus.Off(sub)
}

// Emit publishes a host-reported event for a registered experience.
// Only action and dismissed may be emitted; shown belongs to the engine.
func (e *Engine) Emit(t types.EventType, experienceID string, payload map[string]any) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownEvent, t)
	}
	if t == types.EventShown {
		return types.ErrReservedEvent
	}
	entry, ok := e.registry.Get(experienceID)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNotFound, experienceID)
	}

	e.bus.Publish(types.Event{
		ID:             types.NewEventID(),
		Type:           t,
		ExperienceID:   experienceID,
		ExperienceType: entry.Experience.Type,
		Timestamp:      types.UnixMillis(e.clock.Now()),
		Payload:        payload,
	})
	return nil
}

// publishShown emits the engine-owned shown event and, once delivered,
// records the impression.
func (e *Engine) publishShown(entry *registry.Entry, ctx types.Context) {
	exp := entry.Experience
	now := e.clock.Now()

	e.bus.Publish(types.Event{
		ID:             types.NewEventID(),
		Type:           types.EventShown,
		ExperienceID:   exp.ID,
		ExperienceType: exp.Type,
		Timestamp:      types.UnixMillis(now),
		Payload: map[string]any{
			"url":      ctx.URL,
			"priority": exp.Priority,
		},
	})
	e.tracker.OnShown(exp.ID, exp.Frequency, now)
}
