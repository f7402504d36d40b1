package round

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameoftrades/engine/internal/model"
)

// fakeNow returns a controllable time source starting at a fixed instant.
func fakeNow() (*time.Time, func() time.Time) {
	t := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	return &t, func() time.Time { return t }
}

func newTestClock(duration time.Duration) (*Clock, *time.Time) {
	c := NewClock(duration)
	now, src := fakeNow()
	c.SetNow(src)
	return c, now
}

func TestClock_InitialState(t *testing.T) {
	c, _ := newTestClock(900 * time.Second)

	assert.Equal(t, PhaseNotStarted, c.Phase())
	assert.Equal(t, 900*time.Second, c.Remaining())
	assert.ErrorIs(t, c.Gate(), model.ErrRoundNotActive)
}

func TestClock_StartAndCountdown(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	require.Equal(t, PhaseRunning, c.Phase())
	require.NoError(t, c.Gate())

	*now = now.Add(300 * time.Second)
	assert.Equal(t, 600*time.Second, c.Remaining())
}

func TestClock_StartIsIdempotent(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	*now = now.Add(100 * time.Second)
	c.Start() // must not restart the countdown

	assert.Equal(t, 800*time.Second, c.Remaining())
}

func TestClock_PauseStopsCountdown(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	*now = now.Add(100 * time.Second)
	c.Pause()
	require.Equal(t, PhasePaused, c.Phase())
	assert.ErrorIs(t, c.Gate(), model.ErrRoundNotActive)

	// Time passing while paused does not consume the round.
	*now = now.Add(500 * time.Second)
	assert.Equal(t, 800*time.Second, c.Remaining())
}

func TestClock_ResumeCreditsPausedTime(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	*now = now.Add(100 * time.Second)
	c.Pause()
	*now = now.Add(250 * time.Second)
	c.Resume()
	require.Equal(t, PhaseRunning, c.Phase())

	*now = now.Add(200 * time.Second)
	// 300s consumed while running, 250s paused and credited back.
	assert.Equal(t, 600*time.Second, c.Remaining())
}

func TestClock_ExpiresToEnded(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	*now = now.Add(900*time.Second + 100*time.Millisecond)

	assert.Equal(t, time.Duration(0), c.Remaining())
	assert.Equal(t, PhaseEnded, c.Phase())
	assert.ErrorIs(t, c.Gate(), model.ErrRoundNotActive)
}

func TestClock_EndedIsTerminalUntilReset(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	*now = now.Add(time.Hour)
	require.Equal(t, PhaseEnded, c.Phase())

	// Wrong-phase operator actions are no-ops.
	c.Start()
	assert.Equal(t, PhaseEnded, c.Phase())
	c.Pause()
	assert.Equal(t, PhaseEnded, c.Phase())
	c.Resume()
	assert.Equal(t, PhaseEnded, c.Phase())

	c.Reset()
	assert.Equal(t, PhaseNotStarted, c.Phase())
	assert.Equal(t, 900*time.Second, c.Remaining())

	// A reset clock can run a fresh round.
	c.Start()
	assert.Equal(t, PhaseRunning, c.Phase())
	assert.Equal(t, 900*time.Second, c.Remaining())
}

func TestClock_WrongPhaseOpsAreNoOps(t *testing.T) {
	c, _ := newTestClock(900 * time.Second)

	c.Pause() // not running yet
	assert.Equal(t, PhaseNotStarted, c.Phase())

	c.Resume() // not paused
	assert.Equal(t, PhaseNotStarted, c.Phase())

	c.Start()
	c.Resume() // running, not paused
	assert.Equal(t, PhaseRunning, c.Phase())
}

func TestClock_StatusSnapshotConsistent(t *testing.T) {
	c, now := newTestClock(900 * time.Second)

	c.Start()
	*now = now.Add(400 * time.Second)

	phase, remaining := c.Status()
	assert.Equal(t, PhaseRunning, phase)
	assert.Equal(t, 500*time.Second, remaining)
}
