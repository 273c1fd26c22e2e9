// Package mediaopt implements sender-side encoder rate control for real-time
// video: it estimates the live capture frame rate from frame arrivals,
// follows bandwidth estimates from the network, and decides per frame whether
// the encoder should skip it to keep output within the allotted bitrate.
package mediaopt

// FrameBudgetTracker is the byte-budget accounting engine driven by
// RateController. It keeps a ledger of produced bytes that fills on encoder
// output and drains at the target bitrate, and answers whether the next frame
// should be dropped to stay within budget.
//
// Implementations are not required to be safe for concurrent use;
// RateController serializes all calls under its own lock.
type FrameBudgetTracker interface {
	// Reset clears the accumulated byte ledger. Rate parameters are kept.
	Reset()

	// SetRates reprograms the leak rate targets. A bitrate of 0 disables
	// draining (and with it any reason to drop).
	SetRates(bitrateKbps float64, frameRateHz float64)

	// Fill adds produced bytes to the ledger. Key frames and delta frames
	// may be weighted differently by the implementation.
	Fill(sizeBytes int, deltaFrame bool)

	// Leak drains the ledger by one frame-interval's worth of the target
	// bitrate, given the current incoming frame rate in frames per second.
	Leak(inputFrameRate uint32)

	// Enable toggles whether DropFrame may ever return true.
	Enable(enabled bool)

	// DropFrame reports whether the next frame should be dropped given the
	// current ledger state.
	DropFrame() bool
}
