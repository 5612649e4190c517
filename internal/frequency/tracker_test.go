package frequency

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/experiences/internal/types"
)

var day = &types.FrequencyRule{Max: 3, Per: types.WindowDay}

// failingStore returns an error from every call.
type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingStore) Set(string, string) error         { return errors.New("disk gone") }
func (failingStore) Remove(string) error              { return errors.New("disk gone") }

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestTracker_CapsWithinWindow(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), nil)
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	for i := range 3 {
		check := tr.CheckAndReserve("sale", day, now)
		require.True(t, check.Allowed, "impression %d", i+1)
		assert.Equal(t, i, check.Current)
		tr.OnShown("sale", day, now)
	}

	check := tr.CheckAndReserve("sale", day, now)
	assert.False(t, check.Allowed)
	assert.Equal(t, 3, check.Current)
	assert.Equal(t, 3, check.Max)
	assert.Equal(t, "2025-03-14", check.WindowKey)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), check.WindowStart)
	assert.NoError(t, check.Err)
}

func TestTracker_NewWindowReadsZero(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(store, nil)
	now := time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)

	for range 3 {
		tr.OnShown("sale", day, now)
	}
	require.False(t, tr.CheckAndReserve("sale", day, now).Allowed)

	next := now.Add(2 * time.Hour)
	check := tr.CheckAndReserve("sale", day, next)
	assert.True(t, check.Allowed)
	assert.Equal(t, 0, check.Current)

	tr.OnShown("sale", day, next)
	rec, ok := tr.Record("sale")
	require.True(t, ok)
	assert.Equal(t, "2025-03-15", rec.WindowKey)
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, 1, store.Len(), "only the current window is stored")
}

func TestTracker_OnShownClampsAtMax(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), nil)
	now := time.Now()

	for range 10 {
		tr.OnShown("sale", day, now)
	}
	rec, ok := tr.Record("sale")
	require.True(t, ok)
	assert.Equal(t, 3, rec.Count)
}

func TestTracker_NilRuleAlwaysAllowed(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(store, nil)

	check := tr.CheckAndReserve("free", nil, time.Now())
	assert.True(t, check.Allowed)
	tr.OnShown("free", nil, time.Now())
	assert.Equal(t, 0, store.Len())
}

func TestTracker_Reset(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(store, nil)
	now := time.Now()

	for range 3 {
		tr.OnShown("sale", day, now)
	}
	require.False(t, tr.CheckAndReserve("sale", day, now).Allowed)

	tr.Reset("sale")
	assert.True(t, tr.CheckAndReserve("sale", day, now).Allowed)
	_, ok := tr.Record("sale")
	assert.False(t, ok)

	tr.Reset("never-shown")
}

func TestTracker_StorageFailureFailsOpen(t *testing.T) {
	var logs bytes.Buffer
	tr := NewTracker(failingStore{}, quietLogger(&logs))
	now := time.Now()

	check := tr.CheckAndReserve("sale", day, now)
	assert.True(t, check.Allowed)
	assert.ErrorIs(t, check.Err, types.ErrStorageUnavailable)

	tr.OnShown("sale", day, now)
	tr.Reset("sale")

	assert.Contains(t, logs.String(), "frequency check failed open")
	assert.Contains(t, logs.String(), "experience_id=sale")
}

func TestTracker_PanickingStoreFailsOpen(t *testing.T) {
	var logs bytes.Buffer
	tr := NewTracker(panickingStore{}, quietLogger(&logs))
	now := time.Now()

	var check Check
	require.NotPanics(t, func() {
		check = tr.CheckAndReserve("sale", day, now)
		tr.OnShown("sale", day, now)
		tr.Reset("sale")
	})
	assert.True(t, check.Allowed)
	assert.ErrorIs(t, check.Err, types.ErrStorageUnavailable)
	assert.ErrorContains(t, check.Err, "kv get panicked: kv exploded")

	_, ok := tr.Record("sale")
	assert.False(t, ok)

	assert.Contains(t, logs.String(), "frequency check failed open")
	assert.Contains(t, logs.String(), "frequency reset failed")
}

type panickingStore struct{}

func (panickingStore) Get(string) (string, bool, error) { panic("kv exploded") }
func (panickingStore) Set(string, string) error         { panic("kv exploded") }
func (panickingStore) Remove(string) error              { panic("kv exploded") }

func TestTracker_CorruptRecordFailsOpen(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(Key("sale"), "{not json"))

	var logs bytes.Buffer
	tr := NewTracker(store, quietLogger(&logs))

	check := tr.CheckAndReserve("sale", day, time.Now())
	assert.True(t, check.Allowed)
	assert.Error(t, check.Err)
	_, ok := tr.Record("sale")
	assert.False(t, ok)
}

func TestTracker_NilStore(t *testing.T) {
	tr := NewTracker(nil, nil)
	now := time.Now()

	for range 5 {
		tr.OnShown("sale", day, now)
	}
	assert.True(t, tr.CheckAndReserve("sale", day, now).Allowed)
	_, ok := tr.Record("sale")
	assert.False(t, ok)
	tr.Reset("sale")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "experiences:frequency:flash-sale", Key("flash-sale"))
}

// Property-based test: shown count never exceeds max within one window.
func TestTracker_PropertyNeverExceedsMax(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	properties.Property("gated impressions stay within max", prop.ForAll(
		func(limit, attempts int) bool {
			rule := &types.FrequencyRule{Max: limit, Per: types.WindowHour}
			tr := NewTracker(NewMemoryStore(), nil)

			shown := 0
			for range attempts {
				if tr.CheckAndReserve("x", rule, now).Allowed {
					tr.OnShown("x", rule, now)
					shown++
				}
			}
			rec, _ := tr.Record("x")
			want := min(limit, attempts)
			return shown == want && rec.Count == want
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
