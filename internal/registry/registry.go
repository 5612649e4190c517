// Package registry is the in-memory keyed store of experience definitions.
//
// Register compiles targeting and validates the frequency rule once, so
// evaluation never sees a configuration error. An experience that fails
// validation is still stored, marked disabled with the reason, and the
// error is returned for the caller to log; one bad definition never blocks
// the rest of the registry.
//
// Order: entries iterate in first-registration order. Re-registering an id
// overwrites the definition in place and keeps its original slot, which is
// also the priority tie-break order.
package registry

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/solatis/experiences/internal/rules"
	"github.com/solatis/experiences/internal/types"
)

// Entry is one registered experience plus its compiled targeting.
type Entry struct {
	Experience types.Experience
	Targeting  *rules.CompiledTargeting // nil when disabled
	Seq        int                      // registration order, ascending
	Err        error                    // configuration error; non-nil means disabled
}

// Disabled reports whether the entry failed validation at registration.
func (e *Entry) Disabled() bool {
	return e.Err != nil
}

// Registry holds experiences keyed by id.
// Safe for concurrent use; reads take a shared lock.
type Registry struct {
	entries map[string]*Entry
	order   []string
	nextSeq int
	mu      sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Register inserts or overwrites the experience under id.
// Returns ErrEmptyID without storing anything when id is empty. Any other
// returned error is a *types.ConfigError and the entry is stored disabled.
func (r *Registry) Register(id string, exp types.Experience) error {
	if id == "" {
		return types.ErrEmptyID
	}
	if exp.ID == "" {
		exp.ID = id
	}

	entry := &Entry{Experience: exp}
	compiled, err := validate(id, exp)
	if err != nil {
		entry.Err = err
	} else {
		entry.Targeting = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[id]; ok {
		entry.Seq = existing.Seq
	} else {
		entry.Seq = r.nextSeq
		r.nextSeq++
		r.order = append(r.order, id)
	}
	r.entries[id] = entry

	return err
}

// Unregister removes id. No-op when absent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the entry for id, or false when not registered.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of registered experiences, disabled included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All yields every entry in registration order.
// Each range over the sequence takes a fresh snapshot, so it is restartable
// and unaffected by concurrent Register/Unregister calls.
func (r *Registry) All() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, entry := range r.snapshot() {
			if !yield(entry) {
				return
			}
		}
	}
}

// Entries returns a snapshot slice in registration order.
func (r *Registry) Entries() []*Entry {
	return r.snapshot()
}

func (r *Registry) snapshot() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// validate checks structural shape and compiles targeting.
func validate(id string, exp types.Experience) (*rules.CompiledTargeting, error) {
	if exp.ID != id {
		return nil, &types.ConfigError{
			ExperienceID: id,
			Field:        "id",
			Err:          fmt.Errorf("%w: %q", types.ErrIDMismatch, exp.ID),
		}
	}
	if !exp.Type.Valid() {
		return nil, &types.ConfigError{
			ExperienceID: id,
			Field:        "type",
			Err:          fmt.Errorf("%w: %q", types.ErrUnknownType, exp.Type),
		}
	}
	if f := exp.Frequency; f != nil {
		if f.Max <= 0 {
			return nil, &types.ConfigError{
				ExperienceID: id,
				Field:        "frequency.max",
				Err:          fmt.Errorf("%w: %d", types.ErrInvalidMax, f.Max),
			}
		}
		if !f.Per.Valid() {
			return nil, &types.ConfigError{
				ExperienceID: id,
				Field:        "frequency.per",
				Err:          fmt.Errorf("%w: %q", types.ErrInvalidWindow, f.Per),
			}
		}
	}

	compiled, err := rules.Compile(exp.Targeting)
	if err != nil {
		var ce *types.ConfigError
		if errors.As(err, &ce) {
			ce.ExperienceID = id
			return nil, ce
		}
		return nil, &types.ConfigError{ExperienceID: id, Field: "targeting", Err: err}
	}
	return compiled, nil
}
