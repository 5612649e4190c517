package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/experiences/internal/types"
)

func banner(id string) types.Experience {
	return types.Experience{
		ID:      id,
		Type:    types.TypeBanner,
		Content: map[string]any{"message": "hello " + id},
		Targeting: types.TargetingRule{
			URL: &types.URLRule{Contains: "/shop"},
		},
		Priority: 1,
	}
}

func ids(r *Registry) []string {
	var out []string
	for e := range r.All() {
		out = append(out, e.Experience.ID)
	}
	return out
}

func TestRegister_StoresAndGets(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("sale", banner("sale")))

	entry, ok := r.Get("sale")
	require.True(t, ok)
	assert.False(t, entry.Disabled())
	assert.Equal(t, "sale", entry.Experience.ID)
	assert.False(t, entry.Targeting.IsEmpty())
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegister_FillsMissingID(t *testing.T) {
	r := New()
	exp := banner("")
	require.NoError(t, r.Register("sale", exp))

	entry, ok := r.Get("sale")
	require.True(t, ok)
	assert.Equal(t, "sale", entry.Experience.ID)
}

func TestRegister_EmptyID(t *testing.T) {
	r := New()
	err := r.Register("", banner(""))
	assert.ErrorIs(t, err, types.ErrEmptyID)
	assert.Equal(t, 0, r.Len())
}

func TestRegister_PreservesOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(id, banner(id)))
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids(r))
}

func TestRegister_OverwriteKeepsSlot(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(id, banner(id)))
	}

	updated := banner("a")
	updated.Priority = 99
	updated.Type = types.TypeModal
	require.NoError(t, r.Register("a", updated))

	assert.Equal(t, []string{"a", "b", "c"}, ids(r))

	entry, _ := r.Get("a")
	assert.Equal(t, 99, entry.Experience.Priority)
	assert.Equal(t, types.TypeModal, entry.Experience.Type)
	assert.Equal(t, 0, entry.Seq)
}

func TestUnregister(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(id, banner(id)))
	}

	r.Unregister("b")
	r.Unregister("missing")

	assert.Equal(t, []string{"a", "c"}, ids(r))
	_, ok := r.Get("b")
	assert.False(t, ok)

	// Re-registering a removed id appends it at the end.
	require.NoError(t, r.Register("b", banner("b")))
	assert.Equal(t, []string{"a", "c", "b"}, ids(r))
}

func TestRegister_ConfigErrorsDisable(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Experience)
		field   string
		wantErr error
	}{
		{
			name:    "id mismatch",
			mutate:  func(e *types.Experience) { e.ID = "other" },
			field:   "id",
			wantErr: types.ErrIDMismatch,
		},
		{
			name:    "unknown type",
			mutate:  func(e *types.Experience) { e.Type = "popup" },
			field:   "type",
			wantErr: types.ErrUnknownType,
		},
		{
			name:    "zero max",
			mutate:  func(e *types.Experience) { e.Frequency = &types.FrequencyRule{Max: 0, Per: types.WindowDay} },
			field:   "frequency.max",
			wantErr: types.ErrInvalidMax,
		},
		{
			name:    "unknown window",
			mutate:  func(e *types.Experience) { e.Frequency = &types.FrequencyRule{Max: 3, Per: "month"} },
			field:   "frequency.per",
			wantErr: types.ErrInvalidWindow,
		},
		{
			name:    "invalid pattern",
			mutate:  func(e *types.Experience) { e.Targeting.URL.Matches = "([" },
			field:   "targeting.url.matches",
			wantErr: types.ErrInvalidPattern,
		},
		{
			name:    "invalid expression",
			mutate:  func(e *types.Experience) { e.Targeting.Expression = "url ==" },
			field:   "targeting.expression",
			wantErr: types.ErrInvalidExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			exp := banner("broken")
			exp.Targeting.URL = &types.URLRule{Contains: "/shop"}
			tt.mutate(&exp)

			err := r.Register("broken", exp)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var ce *types.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "broken", ce.ExperienceID)
			assert.Equal(t, tt.field, ce.Field)

			entry, ok := r.Get("broken")
			require.True(t, ok, "disabled entries are still stored")
			assert.True(t, entry.Disabled())
			assert.Nil(t, entry.Targeting)
		})
	}
}

func TestRegister_BadEntryDoesNotBlockOthers(t *testing.T) {
	r := New()
	bad := banner("bad")
	bad.Targeting.URL.Matches = "(("

	require.NoError(t, r.Register("a", banner("a")))
	require.Error(t, r.Register("bad", bad))
	require.NoError(t, r.Register("b", banner("b")))

	assert.Equal(t, []string{"a", "bad", "b"}, ids(r))

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.False(t, a.Disabled())
	assert.False(t, b.Disabled())
}

func TestAll_RestartableAndSnapshot(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("a", banner("a")))
	require.NoError(t, r.Register("b", banner("b")))

	seq := r.All()
	var first []string
	for e := range seq {
		first = append(first, e.Experience.ID)
		// Mutating during iteration does not affect this pass.
		_ = r.Register("c", banner("c"))
	}
	assert.Equal(t, []string{"a", "b"}, first)

	var second []string
	for e := range seq {
		second = append(second, e.Experience.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, second)
}

func TestAll_EarlyBreak(t *testing.T) {
	r := New()
	for i := range 5 {
		id := fmt.Sprintf("x%d", i)
		require.NoError(t, r.Register(id, banner(id)))
	}

	n := 0
	for range r.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

// Property-based test: registering the same id repeatedly never grows the
// registry and the last definition wins.
func TestRegister_PropertyIdempotentSlot(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("re-registration overwrites in place", prop.ForAll(
		func(priorities []int) bool {
			r := New()
			if err := r.Register("first", banner("first")); err != nil {
				return false
			}
			for _, p := range priorities {
				exp := banner("target")
				exp.Priority = p
				if err := r.Register("target", exp); err != nil {
					return false
				}
			}
			if err := r.Register("last", banner("last")); err != nil {
				return false
			}

			want := 2
			if len(priorities) > 0 {
				want = 3
			}
			if r.Len() != want {
				return false
			}
			if len(priorities) == 0 {
				return true
			}

			entry, ok := r.Get("target")
			if !ok || entry.Experience.Priority != priorities[len(priorities)-1] {
				return false
			}
			got := ids(r)
			return got[0] == "first" && got[1] == "target" && got[2] == "last"
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
	))

	properties.TestingRun(t)
}
