package mediaopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 500 kbps at 25 fps: 62500 bytes/s, 2500 bytes per frame interval.
func newConfiguredDropper() *FrameDropper {
	d := NewFrameDropper()
	d.SetRates(500, 25)
	return d
}

func TestFrameDropper_NoRatesNoDrops(t *testing.T) {
	d := NewFrameDropper()

	// Whatever the encoder produced, a zero-rate dropper never drops.
	for i := 0; i < 50; i++ {
		d.Fill(100_000, true)
		d.Leak(30)
		assert.False(t, d.DropFrame())
	}
}

func TestFrameDropper_SteadyStateWithinBudget(t *testing.T) {
	d := newConfiguredDropper()

	// Frames exactly at the per-interval budget never accumulate debt.
	for i := 0; i < 100; i++ {
		d.Leak(25)
		assert.False(t, d.DropFrame(), "frame %d should be kept", i)
		d.Fill(2500, true)
	}
}

func TestFrameDropper_OvershootDrops(t *testing.T) {
	d := newConfiguredDropper()

	// Twice the budget per frame: debt builds and drops must follow.
	dropped := 0
	for i := 0; i < 50; i++ {
		d.Leak(25)
		if d.DropFrame() {
			dropped++
			continue // dropped frames produce no bytes
		}
		d.Fill(5000, true)
	}
	assert.Greater(t, dropped, 10, "sustained overshoot should drop a large share")
	assert.Less(t, dropped, 50, "the stream must still make progress")
}

func TestFrameDropper_RecoversAfterBurst(t *testing.T) {
	d := newConfiguredDropper()

	// One oversized delta frame, then frames back at budget.
	d.Fill(10_000, true)

	sawDrop := false
	for i := 0; i < 30; i++ {
		d.Leak(25)
		if d.DropFrame() {
			sawDrop = true
			continue
		}
		d.Fill(2500, true)
	}
	assert.True(t, sawDrop, "the burst should cost at least one frame")

	// Once the debt is paid off, frames at budget are all kept.
	for i := 0; i < 25; i++ {
		d.Leak(25)
	}
	for i := 0; i < 10; i++ {
		d.Leak(25)
		assert.False(t, d.DropFrame(), "recovered stream should keep frame %d", i)
		d.Fill(2500, true)
	}
}

func TestFrameDropper_ConsecutiveDropsBounded(t *testing.T) {
	d := newConfiguredDropper()

	// Bury the ledger in debt, then count the longest drop streak.
	d.Fill(1_000_000, true)

	streak, longest := 0, 0
	for i := 0; i < 40; i++ {
		if d.DropFrame() {
			streak++
			if streak > longest {
				longest = streak
			}
		} else {
			streak = 0
		}
	}
	assert.Equal(t, defaultMaxConsecutiveDrops, longest,
		"a deep deficit should degrade frame rate, not stall the stream")
}

func TestFrameDropper_KeyFrameAmortized(t *testing.T) {
	d := newConfiguredDropper()

	// A 20 KB key frame is eight intervals of budget. Charged as a delta
	// frame it would be an immediate -17500; as a key frame only one
	// interval lands on the ledger now.
	d.Fill(20_000, false)
	assert.InDelta(t, -2500, d.budget, 1, "key frame charges one interval up front")
	assert.InDelta(t, 17_500, d.keyFrameDebt, 1, "the excess is deferred")

	// The deferred debt drains across leaks at half the leak rate.
	d.Leak(25)
	assert.InDelta(t, 17_500-1250, d.keyFrameDebt, 1)
}

func TestFrameDropper_SmallKeyFrameChargedDirectly(t *testing.T) {
	d := newConfiguredDropper()

	d.Fill(2000, false)
	assert.InDelta(t, -2000, d.budget, 1)
	assert.Zero(t, d.keyFrameDebt, "a key frame within budget defers nothing")
}

func TestFrameDropper_DisableStopsDrops(t *testing.T) {
	d := newConfiguredDropper()
	d.Fill(1_000_000, true)
	require.True(t, d.DropFrame(), "deficit should drop while enabled")

	d.Enable(false)
	for i := 0; i < 20; i++ {
		assert.False(t, d.DropFrame(), "disabled dropper must never drop")
	}

	d.Enable(true)
	assert.True(t, d.DropFrame(), "re-enabling restores the verdict")
}

func TestFrameDropper_ResetClearsLedgerKeepsRates(t *testing.T) {
	d := newConfiguredDropper()
	d.Fill(1_000_000, true)
	d.Fill(50_000, false)
	require.True(t, d.DropFrame())

	d.Reset()

	assert.Zero(t, d.budget)
	assert.Zero(t, d.keyFrameDebt)
	assert.False(t, d.DropFrame(), "a cleared ledger has nothing to drop for")
	assert.Equal(t, 62500.0, d.bytesPerSecond, "rates survive a reset")
}

func TestFrameDropper_SetRatesClampsCarriedDebt(t *testing.T) {
	d := newConfiguredDropper()
	d.Fill(1_000_000, true)

	// Dropping the target rate shrinks the window the old debt may occupy.
	d.SetRates(100, 25) // 12500 B/s, max budget 6250
	assert.GreaterOrEqual(t, d.budget, -6250.0)
	assert.LessOrEqual(t, d.budget, 6250.0)
}

func TestFrameDropper_CreditCapped(t *testing.T) {
	d := newConfiguredDropper()

	// A long idle stretch of leaks must not bank unlimited credit.
	for i := 0; i < 1000; i++ {
		d.Leak(25)
	}
	assert.LessOrEqual(t, d.budget, d.maxBudget)

	// The banked credit absorbs one burst, then the budget binds again.
	d.Fill(int(d.maxBudget)+2500, true)
	d.Leak(25)
	assert.False(t, d.DropFrame())
}

func TestFrameDropper_NegativeRatesTreatedAsZero(t *testing.T) {
	d := NewFrameDropper()
	d.SetRates(-500, -25)

	assert.Zero(t, d.bytesPerSecond)
	assert.Zero(t, d.frameRate)
	d.Fill(100_000, true)
	d.Leak(0)
	assert.False(t, d.DropFrame(), "unlimited (zero) rate never drops")
}

func TestFrameDropper_LeakZeroKeepsLastFrameRate(t *testing.T) {
	d := newConfiguredDropper()
	d.Fill(5000, true)

	// A zero input frame rate falls back to the rate from SetRates.
	d.Leak(0)
	assert.InDelta(t, -2500, d.budget, 1, "leak should still drain one interval")
}
