package mediaopt

import (
	"math"
	"sync"
	"time"

	"github.com/thesyncim/mediaopt/pkg/mediaopt/internal"
)

const (
	// frameHistorySize is the capacity of the frame-arrival history.
	// 90 entries hold roughly three seconds of frames at a typical
	// 30 fps capture rate.
	frameHistorySize = 90

	// frameHistoryWindow bounds how far back arrival timestamps are
	// trusted when estimating the incoming frame rate. Older samples
	// describe a capture rate that may no longer hold.
	frameHistoryWindow = 2 * time.Second
)

// RateController converts a bitrate budget plus the observed capture frame
// rate into per-frame drop/keep decisions, so the encoder's actual output
// does not exceed the bandwidth allotted by the network layer.
//
// It is fed from two directions: the capture/encode path calls
// ShouldDropFrame, RecordEncodedFrame and InputFrameRate once per frame,
// while the network path calls SetTargetRates on every new bandwidth
// estimate and SetEncodingData on codec reconfiguration. All state is
// guarded by a single mutex, so the two paths may call concurrently; there
// is no ordering guarantee between them beyond mutual exclusion.
//
// The incoming frame rate is recomputed from raw arrival timestamps inside
// a trailing 2-second window on every arrival and every query. This is a
// deliberate trade: an O(history) scan per frame buys an exact, lag-free
// estimate, and the history is small.
type RateController struct {
	mu      sync.Mutex
	clock   internal.Clock
	tracker FrameBudgetTracker

	maxBitrateBps    int64 // codec maximum; 0 means unlimited
	targetBitrateBps uint32
	userFrameRate    float64 // configured fallback when no live estimate exists

	// Frame-arrival history: a ring holding the most recent arrival
	// times, newest at head. frameCount slots starting at head are valid.
	frameTimes [frameHistorySize]time.Time
	head       int
	frameCount int

	incomingFrameRate float64 // frames per second, 0 when unknown
}

// NewRateController creates a rate controller bound to the given budget
// tracker and clock. If tracker is nil, a FrameDropper with default settings
// is used. If clock is nil, a MonotonicClock is used.
func NewRateController(tracker FrameBudgetTracker, clock internal.Clock) *RateController {
	if tracker == nil {
		tracker = NewFrameDropper()
	}
	if clock == nil {
		clock = internal.MonotonicClock{}
	}
	return &RateController{
		clock:   clock,
		tracker: tracker,
	}
}

// SetEncodingData reconfigures the controller for a new codec or encoding
// configuration. It stores the codec maximum bitrate (0 for unlimited), the
// initial target bitrate and the configured frame rate, resets the budget
// tracker's ledger and reprograms its rates. The frame-arrival history is
// kept: a codec switch does not change how fast frames arrive.
func (c *RateController) SetEncodingData(maxBitrateBps int64, targetBitrateBps uint32, frameRateHz float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setEncodingData(maxBitrateBps, targetBitrateBps, frameRateHz)
}

// setEncodingData must be called with c.mu held. Everything codec specific
// is reset here since a call means the codec has changed.
func (c *RateController) setEncodingData(maxBitrateBps int64, targetBitrateBps uint32, frameRateHz float64) {
	c.maxBitrateBps = maxBitrateBps
	c.targetBitrateBps = targetBitrateBps
	c.userFrameRate = frameRateHz
	c.tracker.Reset()
	c.tracker.SetRates(float64(targetBitrateBps)/1000.0, frameRateHz)
}

// SetTargetRates applies a new bandwidth estimate from the network layer.
// The requested target is capped to the codec maximum when one is set, the
// budget tracker's rates are recomputed from the capped value and the live
// frame-rate estimate (falling back to the configured frame rate when no
// estimate exists), and the effective bitrate is returned so the caller
// knows the cap that was applied. The tracker's ledger is left untouched.
func (c *RateController) SetTargetRates(targetBitrateBps uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targetBitrateBps = targetBitrateBps
	if c.maxBitrateBps > 0 && int64(c.targetBitrateBps) > c.maxBitrateBps {
		c.targetBitrateBps = uint32(c.maxBitrateBps)
	}

	frameRate := c.incomingFrameRate
	if frameRate == 0 {
		// No live estimate available, use the configured frame rate.
		frameRate = c.userFrameRate
	}
	c.tracker.SetRates(float64(c.targetBitrateBps)/1000.0, frameRate)

	return c.targetBitrateBps
}

// TargetBitrate returns the current effective target bitrate in bits per
// second, after any cap applied by SetTargetRates.
func (c *RateController) TargetBitrate() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetBitrateBps
}

// InputFrameRate returns the current incoming frame-rate estimate in frames
// per second, rounded half-up and saturating at the maximum representable
// value. The estimate is refreshed against the current time, but no new
// arrival is recorded.
func (c *RateController) InputFrameRate() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputFrameRate(c.clock.Now())
}

// inputFrameRate must be called with c.mu held.
func (c *RateController) inputFrameRate(now time.Time) uint32 {
	c.processFrameRate(now)
	return uint32(math.Min(math.MaxUint32, c.incomingFrameRate+0.5))
}

// RecordEncodedFrame feeds one encoded frame's byte count into the budget
// tracker. Zero-length input (a frame that encoded to nothing) is a no-op.
func (c *RateController) RecordEncodedFrame(sizeBytes int, deltaFrame bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sizeBytes > 0 {
		c.tracker.Fill(sizeBytes, deltaFrame)
	}
}

// EnableFrameDropper toggles whether ShouldDropFrame may ever report true.
func (c *RateController) EnableFrameDropper(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.Enable(enabled)
}

// ShouldDropFrame records the arrival of a new capture frame and reports
// whether it should be dropped instead of being handed to the encoder.
// Call this once per frame, immediately before encoding it.
func (c *RateController) ShouldDropFrame() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.recordArrival(now)
	// Leak one frame-interval's worth of bytes at the just-updated rate.
	c.tracker.Leak(c.inputFrameRate(now))
	return c.tracker.DropFrame()
}

// Reset returns the controller to its initial state: unlimited maximum,
// zero target, empty frame-arrival history, zero frame-rate estimate, and
// a cleared, zero-rate budget tracker. Stronger than SetEncodingData, which
// preserves the arrival history.
func (c *RateController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setEncodingData(0, 0, 0)
	c.frameTimes = [frameHistorySize]time.Time{}
	c.head = 0
	c.frameCount = 0
	c.incomingFrameRate = 0
}

// recordArrival pushes a new arrival timestamp onto the history ring and
// recomputes the frame-rate estimate. Must be called with c.mu held.
func (c *RateController) recordArrival(now time.Time) {
	if c.frameCount == 0 {
		// First-ever frame, nothing to rotate past.
		c.head = 0
	} else {
		c.head = (c.head - 1 + frameHistorySize) % frameHistorySize
	}
	c.frameTimes[c.head] = now
	if c.frameCount < frameHistorySize {
		c.frameCount++
	}
	c.processFrameRate(now)
}

// processFrameRate recomputes the incoming frame-rate estimate from the
// arrival history, using only samples within frameHistoryWindow of now.
// Must be called with c.mu held.
func (c *RateController) processFrameRate(now time.Time) {
	count := 0
	var oldest time.Time
	for i := 1; i < c.frameCount; i++ {
		t := c.frameTimes[(c.head+i)%frameHistorySize]
		if now.Sub(t) > frameHistoryWindow {
			break
		}
		count++
		oldest = t
	}

	if count == 0 {
		// Nothing usable beyond the newest sample. On the very first
		// frame there is no rate to report yet; otherwise the history
		// has gone stale and the previous estimate no longer holds.
		if c.frameCount > 1 {
			c.incomingFrameRate = 0
		}
		return
	}

	diff := c.frameTimes[c.head].Sub(oldest)
	if diff <= 0 {
		// Non-monotonic or duplicate timestamps; no estimate.
		c.incomingFrameRate = 0
		return
	}
	c.incomingFrameRate = float64(count) * float64(time.Second) / float64(diff)
}
