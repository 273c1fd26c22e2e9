package interceptor

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/thesyncim/mediaopt/pkg/mediaopt"
)

const (
	// streamTimeout is how long to keep tracking an inactive stream.
	// Streams with no outgoing packets for this duration are flushed
	// and removed.
	streamTimeout = 2 * time.Second
)

// RateControlInterceptor is a Pion interceptor that wires a
// mediaopt.RateController into a sending PeerConnection. It accounts the
// bytes of every encoded frame leaving through the bound local streams and
// applies REMB bandwidth estimates from the remote receiver as the new
// target bitrate.
//
// Usage:
//
//	controller := mediaopt.NewRateController(nil, nil)
//	controller.SetEncodingData(2_500_000, 500_000, 30)
//	i := NewRateControlInterceptor(controller)
//	// Add to interceptor registry, then in the encode loop:
//	if i.ShouldDropFrame() {
//	    return // skip this capture frame
//	}
type RateControlInterceptor struct {
	interceptor.NoOp // Embed for interface compliance

	controller *mediaopt.RateController
	streams    sync.Map // SSRC (uint32) -> *streamState

	mu           sync.Mutex
	rateStats    *mediaopt.RateStats
	onTarget     func(effectiveBitrateBps uint32)
	recordFrames bool

	// Lifecycle
	closed    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once // Ensures cleanup loop starts only once
}

// InterceptorOption is a functional option for configuring RateControlInterceptor.
type InterceptorOption func(*RateControlInterceptor)

// WithOnTargetUpdate sets a callback invoked each time a REMB estimate is
// applied. The callback receives the effective target bitrate after capping.
func WithOnTargetUpdate(fn func(effectiveBitrateBps uint32)) InterceptorOption {
	return func(i *RateControlInterceptor) {
		i.onTarget = fn
	}
}

// WithFrameAccounting toggles whether frames assembled from the outgoing RTP
// stream are fed to the controller's byte ledger. Default is true. Disable
// it when the application calls RecordEncodedFrame itself (e.g. to flag key
// frames correctly).
func WithFrameAccounting(enabled bool) InterceptorOption {
	return func(i *RateControlInterceptor) {
		i.recordFrames = enabled
	}
}

// NewRateControlInterceptor creates a rate-control interceptor around the
// given controller.
func NewRateControlInterceptor(controller *mediaopt.RateController, opts ...InterceptorOption) *RateControlInterceptor {
	i := &RateControlInterceptor{
		controller:   controller,
		rateStats:    mediaopt.NewRateStats(mediaopt.DefaultRateStatsConfig()),
		recordFrames: true,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Close shuts down the interceptor and releases resources.
func (i *RateControlInterceptor) Close() error {
	close(i.closed)
	i.wg.Wait()
	return nil
}

// Controller returns the underlying rate controller, for callers that need
// the full surface (SetEncodingData, RecordEncodedFrame with frame types...).
func (i *RateControlInterceptor) Controller() *mediaopt.RateController {
	return i.controller
}

// ShouldDropFrame reports whether the next captured frame should be dropped
// instead of being encoded. Call once per frame from the encode loop.
func (i *RateControlInterceptor) ShouldDropFrame() bool {
	return i.controller.ShouldDropFrame()
}

// TargetBitrate returns the current effective target bitrate in bits per
// second, after any codec-maximum cap.
func (i *RateControlInterceptor) TargetBitrate() uint32 {
	return i.controller.TargetBitrate()
}

// OutgoingBitrate returns the bitrate actually produced on the wire over the
// trailing measurement window. Returns (0, false) until enough frames have
// been observed.
func (i *RateControlInterceptor) OutgoingBitrate() (int64, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rateStats.Bitrate(time.Now())
}

// BindRTCPReader is called by Pion for incoming RTCP. The reader is wrapped
// to extract REMB bandwidth estimates, which become the new target bitrate.
func (i *RateControlInterceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, a, err := reader.Read(b, a)
		if err == nil && n > 0 {
			i.processRTCP(b[:n])
		}
		return n, a, err
	})
}

// BindLocalStream is called by Pion for each outgoing stream. The writer is
// wrapped to assemble packets back into frames and account their sizes.
func (i *RateControlInterceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	// Start cleanup loop on first stream (only once)
	i.startOnce.Do(func() {
		i.wg.Add(1)
		go i.cleanupLoop()
	})

	state := newStreamState(info.SSRC)
	i.streams.Store(info.SSRC, state)

	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		n, err := writer.Write(header, payload, attributes)
		if err == nil {
			i.processOutgoing(state, header, len(payload))
		}
		return n, err
	})
}

// UnbindLocalStream is called by Pion when a local stream is removed.
func (i *RateControlInterceptor) UnbindLocalStream(info *interceptor.StreamInfo) {
	if value, ok := i.streams.LoadAndDelete(info.SSRC); ok {
		value.(*streamState).flush(i.recordFrame)
	}
}

// processRTCP parses a compound RTCP packet and applies any REMB estimate.
func (i *RateControlInterceptor) processRTCP(raw []byte) {
	pkts, err := rtcp.Unmarshal(raw)
	if err != nil {
		return // Not RTCP we understand, skip
	}
	for _, pkt := range pkts {
		remb, ok := pkt.(*rtcp.ReceiverEstimatedMaximumBitrate)
		if !ok {
			continue
		}
		effective := i.controller.SetTargetRates(uint32(remb.Bitrate))
		if i.onTarget != nil {
			i.onTarget(effective)
		}
	}
}

// processOutgoing feeds one sent packet into per-stream frame assembly.
func (i *RateControlInterceptor) processOutgoing(state *streamState, header *rtp.Header, payloadBytes int) {
	state.UpdateLastPacket(time.Now())
	state.addPacket(header.Timestamp, header.Marker, payloadBytes, i.recordFrame)
}

// recordFrame accounts one completed encoded frame.
func (i *RateControlInterceptor) recordFrame(sizeBytes int) {
	if i.recordFrames {
		// Wire-observed frames carry no frame-type info; see package doc.
		i.controller.RecordEncodedFrame(sizeBytes, true)
	}
	i.mu.Lock()
	i.rateStats.AddFrame(sizeBytes, time.Now())
	i.mu.Unlock()
}

// cleanupLoop runs periodically to flush and remove inactive streams.
func (i *RateControlInterceptor) cleanupLoop() {
	defer i.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-i.closed:
			return
		case now := <-ticker.C:
			i.cleanupInactiveStreams(now)
		}
	}
}

// cleanupInactiveStreams removes streams that have sent nothing for longer
// than streamTimeout. A partially assembled frame is flushed so its bytes
// are not lost from the ledger.
func (i *RateControlInterceptor) cleanupInactiveStreams(now time.Time) {
	i.streams.Range(func(key, value any) bool {
		state := value.(*streamState)
		if now.Sub(state.LastPacket()) > streamTimeout {
			state.flush(i.recordFrame)
			i.streams.Delete(key)
		}
		return true // Continue iteration
	})
}
