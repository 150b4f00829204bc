package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogical(t *testing.T) {
	c := NewLogical()
	assert.Equal(t, int64(0), c.Current())

	prev := c.Now()
	for i := 0; i < 100; i++ {
		next := c.Now()
		assert.Greater(t, next, prev)
		prev = next
	}
	assert.Equal(t, prev, c.Current())
}

func TestMonotonic_ClampsBackwardSteps(t *testing.T) {
	base := time.Unix(1000, 0)
	steps := []time.Time{
		base,
		base.Add(time.Second),
		base.Add(-time.Hour), // wall clock jumped back
		base.Add(2 * time.Second),
	}
	i := 0
	c := &Monotonic{now: func() time.Time {
		t := steps[i]
		i++
		return t
	}}

	t1 := c.Now()
	t2 := c.Now()
	t3 := c.Now()
	t4 := c.Now()

	assert.Less(t, t1, t2)
	assert.Equal(t, t2, t3)
	assert.Less(t, t3, t4)
}

func TestMonotonic_Default(t *testing.T) {
	c := NewMonotonic()
	a := c.Now()
	b := c.Now()
	assert.GreaterOrEqual(t, b, a)
}
