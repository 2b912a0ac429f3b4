package sender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestExponentialSeriesNoJitter mirrors spec.md S6: base=100ms, max=30s,
// attempts 1-5 yield 100,200,400,800,1600ms.
func TestExponentialSeriesNoJitter(t *testing.T) {
	cfg := BackoffConfig{Base: 100 * time.Millisecond, Max: 30 * time.Second}
	want := []time.Duration{100, 200, 400, 800, 1600}
	for i, w := range want {
		got := ComputeDelay(i+1, cfg)
		assert.Equal(t, w*time.Millisecond, got)
	}
}

func TestBackoffCapAtFiveSeconds(t *testing.T) {
	cfg := BackoffConfig{Base: 100 * time.Millisecond, Max: 5 * time.Second}
	got := ComputeDelay(10, cfg)
	assert.Equal(t, 5*time.Second, got)
}

func TestFullJitterNeverExceedsDelay(t *testing.T) {
	cfg := BackoffConfig{Base: 100 * time.Millisecond, Max: 5 * time.Second, FullJitter: true}
	for attempt := 1; attempt <= 10; attempt++ {
		jittered := ComputeDelay(attempt, cfg)
		unjittered := ComputeDelay(attempt, BackoffConfig{Base: cfg.Base, Max: cfg.Max})
		assert.LessOrEqual(t, jittered, unjittered)
		assert.GreaterOrEqual(t, jittered, time.Duration(0))
	}
}

func TestShouldGiveUp(t *testing.T) {
	s := &RetryState{Attempts: 4}
	assert.False(t, s.ShouldGiveUp(5))
	s.Attempts = 5
	assert.True(t, s.ShouldGiveUp(5))
}
