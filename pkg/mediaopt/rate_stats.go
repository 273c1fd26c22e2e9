package mediaopt

import "time"

// RateStatsConfig configures the sliding window for produced-bitrate
// measurement.
type RateStatsConfig struct {
	// WindowSize is the duration of the sliding window over which the
	// produced bitrate is averaged. Default: 1 second.
	WindowSize time.Duration
}

// DefaultRateStatsConfig returns default configuration for rate statistics.
func DefaultRateStatsConfig() RateStatsConfig {
	return RateStatsConfig{
		WindowSize: time.Second,
	}
}

// frameSample records the size of one encoded frame at a point in time.
type frameSample struct {
	timestamp time.Time
	bytes     int64
}

// RateStats tracks the bitrate the encoder actually produced over a sliding
// time window, from per-frame encoded sizes. It answers "how many bits per
// second are we really emitting", which is what burst smoothing and the
// stats surfaces need, as opposed to the target the controller is aiming at.
//
// Usage:
//
//	r := NewRateStats(DefaultRateStatsConfig())
//	r.AddFrame(encodedSize, time.Now())
//	if rate, ok := r.Bitrate(time.Now()); ok {
//	    fmt.Printf("Producing %d bps\n", rate)
//	}
//
// RateStats is not safe for concurrent use; callers serialize access.
type RateStats struct {
	windowSize time.Duration
	samples    []frameSample
	totalBytes int64
}

// NewRateStats creates a produced-bitrate tracker with the given configuration.
func NewRateStats(config RateStatsConfig) *RateStats {
	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = time.Second
	}
	return &RateStats{
		windowSize: windowSize,
		samples:    make([]frameSample, 0, 64), // a second of frames at high rates
	}
}

// AddFrame records one encoded frame of the given size at the given time.
// Samples that have slid out of the window are discarded.
func (r *RateStats) AddFrame(sizeBytes int, now time.Time) {
	r.removeExpired(now)
	r.samples = append(r.samples, frameSample{
		timestamp: now,
		bytes:     int64(sizeBytes),
	})
	r.totalBytes += int64(sizeBytes)
}

// Bitrate returns the produced bitrate in bits per second.
// Returns (0, false) when fewer than two frames remain in the window or the
// time span between them is under 1 ms.
func (r *RateStats) Bitrate(now time.Time) (bitsPerSec int64, ok bool) {
	r.removeExpired(now)

	if len(r.samples) < 2 {
		return 0, false
	}

	oldest := r.samples[0].timestamp
	newest := r.samples[len(r.samples)-1].timestamp
	elapsed := newest.Sub(oldest)
	if elapsed < time.Millisecond {
		return 0, false
	}

	return int64(float64(r.totalBytes*8) / elapsed.Seconds()), true
}

// Reset clears all samples and accumulated state.
func (r *RateStats) Reset() {
	r.samples = r.samples[:0]
	r.totalBytes = 0
}

// removeExpired drops all samples older than windowSize from now.
func (r *RateStats) removeExpired(now time.Time) {
	cutoff := now.Add(-r.windowSize)

	expired := 0
	for i, s := range r.samples {
		if !s.timestamp.Before(cutoff) {
			break
		}
		r.totalBytes -= s.bytes
		expired = i + 1
	}
	if expired > 0 {
		r.samples = r.samples[expired:]
	}
}
