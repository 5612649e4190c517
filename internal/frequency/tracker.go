package frequency

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/experiences/internal/types"
)

// KeyPrefix namespaces frequency records in the shared KV.
const KeyPrefix = "experiences:frequency:"

// Key returns the storage key for an experience's counter.
func Key(experienceID string) string {
	return KeyPrefix + experienceID
}

// Check is the outcome of a frequency inspection.
type Check struct {
	Allowed     bool
	Current     int // impressions in the current window
	Max         int // 0 when uncapped
	Window      types.Window
	WindowKey   string
	WindowStart time.Time // zero when uncapped
	Err         error     // storage or decode failure; Allowed is true when set
}

// record is the stored JSON value.
type record struct {
	WindowKey string `json:"windowKey"`
	Count     int    `json:"count"`
}

// Tracker reads and writes impression counters through a KV.
// A nil store disables counting: every check is allowed and OnShown is a
// no-op.
type Tracker struct {
	store  KV
	logger *slog.Logger
}

// NewTracker creates a tracker over store. A nil logger uses slog.Default.
func NewTracker(store KV, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// CheckAndReserve reports whether id may be shown under rule at now.
// Inspection only; the count changes in OnShown once the experience is
// actually shown. A nil rule is always allowed.
func (t *Tracker) CheckAndReserve(id string, rule *types.FrequencyRule, now time.Time) Check {
	if rule == nil {
		return Check{Allowed: true}
	}

	check := Check{Max: rule.Max, Window: rule.Per}
	key, err := WindowKey(rule.Per, now)
	if err != nil {
		// Registration rejects bad windows; reaching here means a caller
		// bypassed the registry.
		check.Allowed = true
		check.Err = err
		return check
	}
	check.WindowKey = key
	check.WindowStart, _ = WindowStart(rule.Per, now)

	count, err := t.current(id, key)
	if err != nil {
		t.logger.Warn("frequency check failed open",
			"experience_id", id,
			"err", err)
		check.Allowed = true
		check.Err = err
		return check
	}

	check.Current = count
	check.Allowed = count < rule.Max
	return check
}

// OnShown increments id's counter for the window containing now, clamped at
// rule.Max. Best-effort: one read and one write, failures are logged.
func (t *Tracker) OnShown(id string, rule *types.FrequencyRule, now time.Time) {
	if rule == nil || t.store == nil {
		return
	}
	key, err := WindowKey(rule.Per, now)
	if err != nil {
		return
	}

	count, err := t.current(id, key)
	if err != nil {
		t.logger.Warn("frequency read failed, counter not incremented",
			"experience_id", id,
			"err", err)
		return
	}
	if count < rule.Max {
		count++
	}

	raw, err := json.Marshal(record{WindowKey: key, Count: count})
	if err != nil {
		t.logger.Warn("frequency encode failed", "experience_id", id, "err", err)
		return
	}
	if err := guard("set", func() error { return t.store.Set(Key(id), string(raw)) }); err != nil {
		t.logger.Warn("frequency write failed",
			"experience_id", id,
			"err", fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err))
	}
}

// Reset removes id's counter. Failures are logged.
func (t *Tracker) Reset(id string) {
	if t.store == nil {
		return
	}
	if err := guard("remove", func() error { return t.store.Remove(Key(id)) }); err != nil {
		t.logger.Warn("frequency reset failed",
			"experience_id", id,
			"err", fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err))
	}
}

// Record returns the stored counter for id, whatever its window.
// ok is false when nothing is stored or the value cannot be read.
func (t *Tracker) Record(id string) (types.FrequencyRecord, bool) {
	if t.store == nil {
		return types.FrequencyRecord{}, false
	}
	rec, ok, err := t.load(id)
	if err != nil || !ok {
		return types.FrequencyRecord{}, false
	}
	return types.FrequencyRecord{
		ExperienceID: id,
		WindowKey:    rec.WindowKey,
		Count:        rec.Count,
	}, true
}

// current returns the count for windowKey; a stale or missing record is 0.
func (t *Tracker) current(id, windowKey string) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	rec, ok, err := t.load(id)
	if err != nil {
		return 0, err
	}
	if !ok || rec.WindowKey != windowKey {
		return 0, nil
	}
	return rec.Count, nil
}

func (t *Tracker) load(id string) (record, bool, error) {
	var (
		raw string
		ok  bool
	)
	err := guard("get", func() (err error) {
		raw, ok, err = t.store.Get(Key(id))
		return err
	})
	if err != nil {
		return record{}, false, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}
	if !ok {
		return record{}, false, nil
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return record{}, false, fmt.Errorf("corrupt frequency record for %s: %w", id, err)
	}
	return rec, true, nil
}

// guard runs one store call and reports a panic as an error, so a
// misbehaving KV takes the same fail-open path as a failing one.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kv %s panicked: %v", op, r)
		}
	}()
	return fn()
}
