// Package interceptor provides a Pion WebRTC interceptor that applies
// sender-side encoder rate control to outgoing media.
//
// The interceptor observes outgoing RTP packets to account the bytes each
// encoded frame actually produced, and observes incoming RTCP for REMB
// (Receiver Estimated Maximum Bitrate) feedback, which it applies to the
// RateController as the new target bitrate. The encoding loop asks the
// interceptor, once per captured frame, whether the frame should be dropped
// before it is handed to the encoder.
//
// # Quick Start
//
// Register the interceptor factory with your Pion WebRTC API:
//
//	import (
//	    "github.com/pion/interceptor"
//	    "github.com/pion/webrtc/v4"
//	    mediaoptint "github.com/thesyncim/mediaopt/pkg/mediaopt/interceptor"
//	)
//
//	func setupPeerConnection() (*webrtc.PeerConnection, error) {
//	    m := &webrtc.MediaEngine{}
//	    if err := m.RegisterDefaultCodecs(); err != nil {
//	        return nil, err
//	    }
//
//	    i := &interceptor.Registry{}
//
//	    factory, err := mediaoptint.NewRateControlInterceptorFactory(
//	        mediaoptint.WithMaxBitrate(2_500_000),
//	        mediaoptint.WithInitialTargetBitrate(500_000),
//	        mediaoptint.WithUserFrameRate(30),
//	    )
//	    if err != nil {
//	        return nil, err
//	    }
//	    i.Add(factory)
//
//	    api := webrtc.NewAPI(
//	        webrtc.WithMediaEngine(m),
//	        webrtc.WithInterceptorRegistry(i),
//	    )
//	    return api.NewPeerConnection(webrtc.Configuration{})
//	}
//
// The REMB feedback type must be negotiated ("goog-remb") for receivers to
// send bandwidth estimates; Pion's default codecs include it for video.
//
// # Frame types
//
// Frames observed on the wire carry no codec-level frame-type information,
// so wire-accounted frames are recorded as delta frames. Encoders that know
// which frames are key frames should disable wire accounting with
// WithFrameAccounting(false) and call Controller().RecordEncodedFrame
// themselves.
package interceptor
