package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances by a fixed amount on every Now call.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestTracer_RecordsInOrder(t *testing.T) {
	tr := New(&stepClock{now: time.Unix(0, 0), step: 5 * time.Millisecond})

	tr.Begin("targeting", map[string]any{"url": "/shop"})
	tr.End(true, true)
	tr.Begin("frequency", "sale")
	tr.End("0/3", true)
	tr.Skip("priority", nil)

	steps, total := tr.Finish()
	require.Len(t, steps, 3)

	assert.Equal(t, "targeting", steps[0].Step)
	assert.Equal(t, true, steps[0].Output)
	assert.True(t, steps[0].Passed)
	assert.Equal(t, int64(5), steps[0].Duration)

	assert.Equal(t, "frequency", steps[1].Step)
	assert.Equal(t, "0/3", steps[1].Output)

	assert.Equal(t, "priority", steps[2].Step)
	assert.Equal(t, Skipped, steps[2].Output)
	assert.False(t, steps[2].Passed)
	assert.Equal(t, int64(0), steps[2].Duration)

	// New, then two Now calls per step: 5 ticks after start.
	assert.Equal(t, int64(25), total)
}

func TestTracer_Fail(t *testing.T) {
	tr := New(&stepClock{now: time.Unix(0, 0)})
	tr.Begin("frequency", "sale")
	tr.Fail(errors.New("storage down"))

	steps, _ := tr.Finish()
	require.Len(t, steps, 1)
	assert.False(t, steps[0].Passed)
	assert.Equal(t, "storage down", steps[0].Output)
}

func TestTracer_FinishClosesOpenStep(t *testing.T) {
	tr := New(&stepClock{now: time.Unix(0, 0)})
	tr.Begin("targeting", nil)

	steps, _ := tr.Finish()
	require.Len(t, steps, 1)
	assert.False(t, steps[0].Passed)
}

func TestTracer_BeginClosesPrevious(t *testing.T) {
	tr := New(&stepClock{now: time.Unix(0, 0)})
	tr.Begin("a", nil)
	tr.Begin("b", nil)
	tr.End("ok", true)

	steps, _ := tr.Finish()
	require.Len(t, steps, 2)
	assert.False(t, steps[0].Passed)
	assert.True(t, steps[1].Passed)
	assert.Equal(t, 2, tr.Len())
}

func TestTracer_EndWithoutBeginIsNoop(t *testing.T) {
	tr := New(&stepClock{now: time.Unix(0, 0)})
	tr.End("x", true)
	steps, total := tr.Finish()
	assert.Empty(t, steps)
	assert.Equal(t, int64(0), total)
}
