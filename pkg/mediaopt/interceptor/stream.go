package interceptor

import (
	"sync"
	"sync/atomic"
	"time"
)

// streamState tracks per-stream state for the rate-control interceptor.
//
// It assembles outgoing RTP packets back into encoded frames: packets that
// share an RTP timestamp belong to one frame, a timestamp change or a set
// marker bit ends it. The write path for one stream is a single goroutine in
// Pion, but the cleanup loop flushes concurrently, so frame assembly is
// guarded by a small mutex and the last-packet time is atomic.
type streamState struct {
	ssrc           uint32
	lastPacketTime atomic.Value // stores time.Time

	mu             sync.Mutex
	frameTimestamp uint32 // RTP timestamp of the frame being assembled
	frameBytes     int    // payload bytes accumulated for that frame
}

// newStreamState creates a new stream state for the given SSRC.
func newStreamState(ssrc uint32) *streamState {
	s := &streamState{
		ssrc: ssrc,
	}
	s.lastPacketTime.Store(time.Now())
	return s
}

// addPacket feeds one outgoing packet into frame assembly. emit is called
// with the total payload size of every frame this packet completes: the
// previously accumulating frame when the RTP timestamp changed, and the
// current frame when the marker bit is set.
func (s *streamState) addPacket(timestamp uint32, marker bool, payloadBytes int, emit func(sizeBytes int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameBytes > 0 && timestamp != s.frameTimestamp {
		// The previous frame ended without a marker (lost or codec quirk).
		emit(s.frameBytes)
		s.frameBytes = 0
	}

	s.frameTimestamp = timestamp
	s.frameBytes += payloadBytes

	if marker && s.frameBytes > 0 {
		emit(s.frameBytes)
		s.frameBytes = 0
	}
}

// flush emits any partially assembled frame. Called when the stream is
// unbound or timed out.
func (s *streamState) flush(emit func(sizeBytes int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameBytes > 0 {
		emit(s.frameBytes)
		s.frameBytes = 0
	}
}

// UpdateLastPacket stores the given time as the last packet send time.
func (s *streamState) UpdateLastPacket(t time.Time) {
	s.lastPacketTime.Store(t)
}

// LastPacket returns the send time of the most recent packet for this stream.
// Used by the cleanup loop to detect inactive streams.
func (s *streamState) LastPacket() time.Time {
	return s.lastPacketTime.Load().(time.Time)
}

// SSRC returns the stream's SSRC identifier.
func (s *streamState) SSRC() uint32 {
	return s.ssrc
}
