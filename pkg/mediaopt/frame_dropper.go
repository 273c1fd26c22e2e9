package mediaopt

import (
	"math"
	"time"
)

const (
	// budgetWindow bounds how much credit or debt the byte ledger may
	// carry, expressed as a span of time at the target bitrate. Credit
	// beyond it would let an idle encoder burst far past the budget;
	// debt beyond it would punish the stream long after a burst ended.
	budgetWindow = 500 * time.Millisecond

	// defaultMaxConsecutiveDrops bounds how many frames in a row may be
	// dropped, so a deep deficit degrades the frame rate instead of
	// stalling the stream.
	defaultMaxConsecutiveDrops = 3
)

// FrameDropper is a leaky-bucket FrameBudgetTracker: encoded output fills a
// byte ledger, each Leak drains one frame-interval's worth at the target
// bitrate, and DropFrame reports true while the ledger is in deficit.
//
// Key frames are charged one frame interval up front with the excess
// amortized across subsequent leak intervals, so a single large intra frame
// does not force a burst of drops behind it.
//
// FrameDropper is not safe for concurrent use; RateController serializes
// all calls under its own lock.
type FrameDropper struct {
	enabled bool

	bytesPerSecond float64 // target leak rate
	frameRate      float64 // frames per second used to size one leak interval
	budget         float64 // bytes of credit; negative values are debt
	maxBudget      float64
	keyFrameDebt   float64 // amortized remainder of oversized key frames

	consecutiveDrops    int
	maxConsecutiveDrops int
}

var _ FrameBudgetTracker = (*FrameDropper)(nil)

// NewFrameDropper creates an enabled frame dropper with zero rates.
// It will not drop anything until SetRates programs a target bitrate.
func NewFrameDropper() *FrameDropper {
	return &FrameDropper{
		enabled:             true,
		maxConsecutiveDrops: defaultMaxConsecutiveDrops,
	}
}

// Reset clears the accumulated byte ledger and drop streak.
// Rate parameters are kept.
func (d *FrameDropper) Reset() {
	d.budget = 0
	d.keyFrameDebt = 0
	d.consecutiveDrops = 0
}

// SetRates reprograms the leak rate from a target bitrate in kbps and an
// expected frame rate in frames per second. Negative inputs are treated as
// zero. Accumulated credit or debt is clamped to the new budget window.
func (d *FrameDropper) SetRates(bitrateKbps float64, frameRateHz float64) {
	if bitrateKbps < 0 {
		bitrateKbps = 0
	}
	if frameRateHz < 0 {
		frameRateHz = 0
	}
	d.bytesPerSecond = bitrateKbps * 1000.0 / 8.0
	d.frameRate = frameRateHz
	d.maxBudget = d.bytesPerSecond * budgetWindow.Seconds()
	d.budget = math.Max(-d.maxBudget, math.Min(d.budget, d.maxBudget))
}

// Fill adds one encoded frame's bytes to the ledger.
func (d *FrameDropper) Fill(sizeBytes int, deltaFrame bool) {
	if sizeBytes <= 0 {
		return
	}
	size := float64(sizeBytes)
	perFrame := d.perFrameBudget()
	if deltaFrame || perFrame <= 0 || size <= perFrame {
		d.budget -= size
	} else {
		// Oversized key frame: charge one interval now, amortize the rest.
		d.budget -= perFrame
		d.keyFrameDebt += size - perFrame
	}
	if d.budget < -d.maxBudget {
		d.budget = -d.maxBudget
	}
}

// Leak drains the ledger by one frame-interval's worth of the target
// bitrate. The given incoming frame rate sizes the interval; a rate of 0
// keeps the last known one.
func (d *FrameDropper) Leak(inputFrameRate uint32) {
	if inputFrameRate > 0 {
		d.frameRate = float64(inputFrameRate)
	}
	perFrame := d.perFrameBudget()
	if perFrame <= 0 {
		return
	}
	d.budget += perFrame

	// Pay down amortized key-frame debt at half the leak rate, leaving
	// the other half for the ledger to recover.
	if d.keyFrameDebt > 0 {
		pay := math.Min(d.keyFrameDebt, perFrame/2)
		d.budget -= pay
		d.keyFrameDebt -= pay
	}

	if d.budget > d.maxBudget {
		d.budget = d.maxBudget
	}
}

// Enable toggles whether DropFrame may ever return true.
func (d *FrameDropper) Enable(enabled bool) {
	d.enabled = enabled
	if !enabled {
		d.consecutiveDrops = 0
	}
}

// DropFrame reports whether the next frame should be dropped. It returns
// true while the ledger is in deficit, but never more than the configured
// number of times in a row.
func (d *FrameDropper) DropFrame() bool {
	if !d.enabled {
		return false
	}
	if d.budget >= 0 {
		d.consecutiveDrops = 0
		return false
	}
	if d.consecutiveDrops >= d.maxConsecutiveDrops {
		// Deficit persists but the stream must make progress.
		d.consecutiveDrops = 0
		return false
	}
	d.consecutiveDrops++
	return true
}

// perFrameBudget returns the byte budget of one frame interval at the
// current rates, or 0 when either rate is unset.
func (d *FrameDropper) perFrameBudget() float64 {
	if d.bytesPerSecond <= 0 || d.frameRate <= 0 {
		return 0
	}
	return d.bytesPerSecond / d.frameRate
}
