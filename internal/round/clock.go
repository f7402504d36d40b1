// Package round implements the single authoritative event timer. The clock
// gates whether the ledger accepts trades: only the Running phase admits
// them. Remaining time is computed lazily on each read, so no background
// goroutine is needed for correctness.
package round

import (
	"sync"
	"time"

	"github.com/gameoftrades/engine/internal/model"
)

// Phase is the round lifecycle state.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhasePaused     Phase = "paused"
	PhaseEnded      Phase = "ended"
)

// Clock tracks one event round: NotStarted → Running ⇄ Paused → Ended.
// Ended is terminal until Reset. Operator calls from the wrong phase are
// no-ops; the transition simply does not happen.
type Clock struct {
	mu         sync.Mutex
	phase      Phase
	startedAt  time.Time
	pausedAt   time.Time
	accumPause time.Duration
	duration   time.Duration
	now        func() time.Time
}

// NewClock creates a clock in NotStarted with the given round duration.
func NewClock(duration time.Duration) *Clock {
	return &Clock{
		phase:    PhaseNotStarted,
		duration: duration,
		now:      time.Now,
	}
}

// SetNow overrides the time source. Test hook.
func (c *Clock) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Start begins the round. Valid only from NotStarted; calling it while
// already Running is idempotent.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseNotStarted {
		return
	}
	c.startedAt = c.now()
	c.accumPause = 0
	c.phase = PhaseRunning
}

// Pause suspends the countdown. Valid only from Running.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickLocked()
	if c.phase != PhaseRunning {
		return
	}
	c.pausedAt = c.now()
	c.phase = PhasePaused
}

// Resume continues a paused round, crediting the paused interval back to
// the countdown.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhasePaused {
		return
	}
	c.accumPause += c.now().Sub(c.pausedAt)
	c.phase = PhaseRunning
}

// Reset returns the clock to NotStarted, clearing all timestamps.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = PhaseNotStarted
	c.startedAt = time.Time{}
	c.pausedAt = time.Time{}
	c.accumPause = 0
}

// Phase returns the current phase, observing expiry first.
func (c *Clock) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickLocked()
	return c.phase
}

// Remaining returns the time left in the round, clamped to ≥ 0. Observing
// zero while Running transitions the phase to Ended.
func (c *Clock) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickLocked()
	return c.remainingLocked()
}

// Status returns phase and remaining time in one consistent snapshot.
func (c *Clock) Status() (Phase, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickLocked()
	return c.phase, c.remainingLocked()
}

// Gate returns nil when trading is admitted, model.ErrRoundNotActive
// otherwise. The ledger calls this before every trade.
func (c *Clock) Gate() error {
	if c.Phase() != PhaseRunning {
		return model.ErrRoundNotActive
	}
	return nil
}

func (c *Clock) remainingLocked() time.Duration {
	switch c.phase {
	case PhaseNotStarted:
		return c.duration
	case PhaseEnded:
		return 0
	case PhasePaused:
		elapsed := c.pausedAt.Sub(c.startedAt) - c.accumPause
		return clampDuration(c.duration - elapsed)
	default: // Running
		elapsed := c.now().Sub(c.startedAt) - c.accumPause
		return clampDuration(c.duration - elapsed)
	}
}

// tickLocked flips Running → Ended the moment the countdown is observed
// at zero.
func (c *Clock) tickLocked() {
	if c.phase != PhaseRunning {
		return
	}
	elapsed := c.now().Sub(c.startedAt) - c.accumPause
	if elapsed >= c.duration {
		c.phase = PhaseEnded
	}
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
