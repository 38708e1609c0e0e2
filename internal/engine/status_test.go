package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// steppingClock returns the queued times in order, repeating the last one.
type steppingClock struct {
	times []time.Time
}

func (c *steppingClock) now() time.Time {
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

func TestStatusTrackerDefaults(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewStatusTracker(func() time.Time { return start })

	st := tr.Read()
	assert.False(t, st.Fetched)
	assert.False(t, st.Ready)
	assert.False(t, st.InUse)
	assert.Equal(t, start, st.LastUpdated)
}

func TestStatusTrackerMergesSuppliedFields(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &steppingClock{times: []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second), base.Add(3 * time.Second)}}
	tr := NewStatusTracker(clock.now)

	st := tr.Update(StatusUpdate{Fetched: Flag(true), Ready: Flag(true)})
	assert.True(t, st.Fetched)
	assert.True(t, st.Ready)
	assert.False(t, st.InUse)
	assert.Equal(t, base.Add(time.Second), st.LastUpdated)

	st = tr.Update(StatusUpdate{InUse: Flag(true)})
	assert.True(t, st.Fetched, "unsupplied fields are kept")
	assert.True(t, st.Ready)
	assert.True(t, st.InUse)

	// an empty update still stamps
	st = tr.Update(StatusUpdate{})
	assert.Equal(t, base.Add(3*time.Second), st.LastUpdated)
	assert.Equal(t, st, tr.Read())
}

func TestStatusTrackerNeverGoesBackwards(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &steppingClock{times: []time.Time{
		base,
		base.Add(5 * time.Second),
		base.Add(-time.Hour), // wall clock stepped back
		base.Add(6 * time.Second),
	}}
	tr := NewStatusTracker(clock.now)

	prev := tr.Read().LastUpdated
	for i := 0; i < 3; i++ {
		st := tr.Update(StatusUpdate{Ready: Flag(true)})
		assert.False(t, st.LastUpdated.Before(prev), "update %d moved last_updated backwards", i)
		prev = st.LastUpdated
	}
	assert.Equal(t, base.Add(6*time.Second), prev)
}
