// Package memctl tracks outstanding queue bytes against a configured memory
// budget and turns that into a BackpressureDecision. It is a pure
// value-returning controller, grounded on the level/threshold model of
// pkg/backpressure/manager.go, simplified from that file's five-level
// factor-reduction scheme down to the three-level None/Warning/Critical
// table spec.md §4.4 specifies, and cross-checked against
// buffer/memory.rs's MemoryManager in the original implementation.
package memctl

import (
	"sync/atomic"
	"time"
)

// Pressure is one of the three levels the controller can report.
type Pressure string

const (
	PressureNone     Pressure = "none"
	PressureWarning  Pressure = "warning"
	PressureCritical Pressure = "critical"
)

// Decision is the controller's verdict for a producer about to push.
type Decision struct {
	Pressure   Pressure
	Delay      time.Duration
	ShouldDrop bool
}

// Controller accounts outstanding bytes via an atomic counter and classifies
// pressure against warning/critical fractions of MaxMemory. It does not own
// the bytes it is told about — callers report allocations and releases
// explicitly.
type Controller struct {
	maxMemory         int64
	warningThreshold  float64
	criticalThreshold float64

	outstanding int64
}

// New builds a controller for maxMemory bytes, with warning/critical
// expressed as fractions of maxMemory (e.g. 0.5 and 0.9).
func New(maxMemory int64, warningThreshold, criticalThreshold float64) *Controller {
	return &Controller{
		maxMemory:         maxMemory,
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
	}
}

// Allocate records byteSize additional outstanding bytes and returns the
// resulting decision.
func (c *Controller) Allocate(byteSize int64) Decision {
	outstanding := atomic.AddInt64(&c.outstanding, byteSize)
	return c.decide(outstanding)
}

// Release records byteSize bytes no longer outstanding (an entry was
// dropped before enqueue, or popped off the queue).
func (c *Controller) Release(byteSize int64) {
	atomic.AddInt64(&c.outstanding, -byteSize)
}

// Outstanding reports the current tracked byte count.
func (c *Controller) Outstanding() int64 {
	return atomic.LoadInt64(&c.outstanding)
}

// Decision reports the current decision without mutating outstanding bytes.
func (c *Controller) Decision() Decision {
	return c.decide(atomic.LoadInt64(&c.outstanding))
}

func (c *Controller) decide(outstanding int64) Decision {
	if c.maxMemory <= 0 {
		return Decision{Pressure: PressureCritical, Delay: 10 * time.Millisecond, ShouldDrop: true}
	}
	fraction := float64(outstanding) / float64(c.maxMemory)

	switch {
	case fraction >= c.criticalThreshold:
		return Decision{Pressure: PressureCritical, Delay: 10 * time.Millisecond, ShouldDrop: true}
	case fraction >= c.warningThreshold:
		return Decision{Pressure: PressureWarning, Delay: 1 * time.Millisecond, ShouldDrop: false}
	default:
		return Decision{Pressure: PressureNone, Delay: 0, ShouldDrop: false}
	}
}
