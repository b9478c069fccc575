package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	var at []time.Duration
	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
			at = append(at, c.Now().Sub(start))
		}
	}

	c.AfterFunc(5*time.Second, record("b"))
	c.AfterFunc(2*time.Second, record("a"))
	c.AfterFunc(5*time.Second, record("c"))

	c.Advance(4 * time.Second)
	require.Equal(t, []string{"a"}, fired)

	c.Advance(time.Second)
	require.Equal(t, []string{"a", "b", "c"}, fired)
	require.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second, 5 * time.Second}, at)
	require.Equal(t, 0, c.Pending())
}

func TestFakeChainedTimersInsideWindow(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	var fired []string
	c.AfterFunc(time.Second, func() {
		fired = append(fired, "first")
		c.AfterFunc(time.Second, func() { fired = append(fired, "second") })
	})

	c.Advance(3 * time.Second)
	require.Equal(t, []string{"first", "second"}, fired)
	require.Equal(t, time.Unix(3, 0), c.Now())
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	c.Advance(2 * time.Second)
	require.False(t, fired)
}
