package frequency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/experiences/internal/types"
)

func TestWindowKey(t *testing.T) {
	// Friday 2025-03-14 09:30 UTC, ISO week 11.
	at := time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC)

	tests := []struct {
		per  types.Window
		want string
	}{
		{types.WindowHour, "2025-03-14T09"},
		{types.WindowDay, "2025-03-14"},
		{types.WindowWeek, "2025-W11"},
	}

	for _, tt := range tests {
		t.Run(string(tt.per), func(t *testing.T) {
			got, err := WindowKey(tt.per, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindowKey_UsesUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	local := time.Date(2025, 3, 15, 1, 0, 0, 0, tokyo) // 2025-03-14 16:00 UTC

	got, err := WindowKey(types.WindowDay, local)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", got)
}

func TestWindowKey_WeekBoundary(t *testing.T) {
	sunday := time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC)
	monday := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)

	a, err := WindowKey(types.WindowWeek, sunday)
	require.NoError(t, err)
	b, err := WindowKey(types.WindowWeek, monday)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWindowKey_InvalidWindow(t *testing.T) {
	_, err := WindowKey("month", time.Now())
	assert.ErrorIs(t, err, types.ErrInvalidWindow)
}

func TestWindowStart(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		per  types.Window
		want time.Time
	}{
		{types.WindowHour, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)},
		{types.WindowDay, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{types.WindowWeek, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.per), func(t *testing.T) {
			got, err := WindowStart(tt.per, at)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}
