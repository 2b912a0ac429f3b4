package memctl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestOverloadScenario mirrors spec.md S5: max_memory=1 KiB, warning=0.5,
// critical=0.9. Allocating 600 B crosses into Warning; a further 350 B
// (950 B total) crosses into Critical.
func TestOverloadScenario(t *testing.T) {
	c := New(1024, 0.5, 0.9)

	d := c.Allocate(600)
	assert.Equal(t, PressureWarning, d.Pressure)
	assert.Greater(t, d.Delay, time.Duration(0))
	assert.False(t, d.ShouldDrop)

	d = c.Allocate(350)
	assert.Equal(t, PressureCritical, d.Pressure)
	assert.GreaterOrEqual(t, d.Delay, time.Millisecond)
	assert.True(t, d.ShouldDrop)
}

func TestDelayMonotonicWithPressure(t *testing.T) {
	c := New(1000, 0.5, 0.9)

	none := c.Decision()
	assert.Equal(t, PressureNone, none.Pressure)

	c.Allocate(600)
	warning := c.Decision()

	c.Allocate(350)
	critical := c.Decision()

	assert.LessOrEqual(t, none.Delay, warning.Delay)
	assert.LessOrEqual(t, warning.Delay, critical.Delay)
}

func TestReleaseReducesOutstanding(t *testing.T) {
	c := New(1000, 0.5, 0.9)
	c.Allocate(900)
	assert.Equal(t, PressureCritical, c.Decision().Pressure)

	c.Release(900)
	assert.Equal(t, int64(0), c.Outstanding())
	assert.Equal(t, PressureNone, c.Decision().Pressure)
}

func TestExactDelayTable(t *testing.T) {
	c := New(100, 0.5, 0.9)

	assert.Equal(t, time.Duration(0), c.Decision().Delay)

	c.Allocate(60)
	assert.Equal(t, time.Millisecond, c.Decision().Delay)

	c.Allocate(40)
	assert.Equal(t, 10*time.Millisecond, c.Decision().Delay)
}
