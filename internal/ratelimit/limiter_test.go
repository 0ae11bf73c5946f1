package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_CapWithinWindow(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(clk, Rule{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"), "request %d should pass", i)
	}
	assert.False(t, l.Allow("10.0.0.1"), "request over the cap should be rejected")

	// Independent key is unaffected.
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestLimiter_WindowResets(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(clk, Rule{Limit: 1, Window: time.Minute})

	require.True(t, l.Allow("addr"))
	require.False(t, l.Allow("addr"))

	clk.Advance(time.Minute)
	assert.True(t, l.Allow("addr"), "new window should admit again")
}

func TestLimiter_SweepStale(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(clk, Rule{Limit: 5, Window: time.Minute})

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.trackedKeys())

	clk.Advance(2 * time.Minute)
	l.SweepStale()
	assert.Zero(t, l.trackedKeys())
}

func TestPolicies_EleventhRoomCreateRejected(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := NewPolicies(clk)

	for i := 0; i < 10; i++ {
		require.True(t, p.AllowRoomCreate("10.0.0.9"), "create %d should pass", i)
	}
	assert.False(t, p.AllowRoomCreate("10.0.0.9"), "11th create within the hour must be rejected")

	clk.Advance(time.Hour)
	assert.True(t, p.AllowRoomCreate("10.0.0.9"))
}

func TestPolicies_SignalEventsKeyedPerEvent(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := NewPolicies(clk)

	for i := 0; i < signalEventsPerWindow; i++ {
		require.True(t, p.AllowSignalEvent("addr", "offer"))
	}
	assert.False(t, p.AllowSignalEvent("addr", "offer"))
	assert.True(t, p.AllowSignalEvent("addr", "answer"), "other event kinds keep their own budget")
}
