package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/thesyncim/mediaopt/pkg/mediaopt"
	moInterceptor "github.com/thesyncim/mediaopt/pkg/mediaopt/interceptor"
)

const (
	captureFrameRate = 30
	frameInterval    = time.Second / captureFrameRate
	initialTargetBps = 500_000
	maxBitrateBps    = 3_000_000
)

// HandleOffer handles WebRTC offer requests from the browser.
// It creates a sending peer connection with the rate-control interceptor and
// returns an answer. Once connected, a synthetic video loop streams frames
// sized to the current target bitrate, skipping frames the controller tells
// it to drop.
func HandleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse incoming offer
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		log.Printf("Failed to decode offer: %v", err)
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	// Create media engine with default codecs. The defaults register
	// goog-remb feedback on video codecs, which is what makes the browser
	// send the REMB packets that drive our target bitrate.
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		log.Printf("Failed to register codecs: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Create interceptor registry
	i := &interceptor.Registry{}

	// State tracking for target logging deduplication
	var (
		lastTarget uint32
		targetMu   sync.Mutex
	)

	// The controller is created by the factory when the PeerConnection
	// builds its interceptor chain; capture it so the send loop can query
	// drop decisions and the current target.
	var (
		ctrlMu sync.Mutex
		ctrl   *mediaopt.RateController
	)

	factory, err := moInterceptor.NewRateControlInterceptorFactory(
		moInterceptor.WithInitialTargetBitrate(initialTargetBps),
		moInterceptor.WithMaxBitrate(maxBitrateBps),
		moInterceptor.WithUserFrameRate(captureFrameRate),
		moInterceptor.WithFrameDropping(true),
		moInterceptor.WithOnController(func(c *mediaopt.RateController) {
			ctrlMu.Lock()
			defer ctrlMu.Unlock()
			ctrl = c
		}),
		moInterceptor.WithFactoryOnTargetUpdate(func(bitrateBps uint32) {
			targetMu.Lock()
			defer targetMu.Unlock()
			if bitrateBps != lastTarget {
				log.Printf("REMB received: target=%d bps", bitrateBps)
				lastTarget = bitrateBps
			}
		}),
	)
	if err != nil {
		log.Printf("Failed to create rate-control factory: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	i.Add(factory)

	// Configure RTCP reports (Sender/Receiver reports) - required for WebRTC
	if err := webrtc.ConfigureRTCPReports(i); err != nil {
		log.Printf("Failed to configure RTCP reports: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Create API with custom media engine and interceptors
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
	)

	// Create peer connection
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{}, // Local testing
	}
	peerConnection, err := api.NewPeerConnection(config)
	if err != nil {
		log.Printf("Failed to create peer connection: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Outgoing video track. The payload is synthetic noise rather than real
	// VP8 bitstream; the browser will not render it, but the RTP/RTCP
	// plumbing (and therefore REMB feedback) is fully exercised.
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "mediaopt",
	)
	if err != nil {
		log.Printf("Failed to create track: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	rtpSender, err := peerConnection.AddTrack(track)
	if err != nil {
		log.Printf("Failed to add track: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Drain incoming RTCP so the interceptor chain sees the browser's
	// receiver reports and REMB packets.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(buf); err != nil {
				return
			}
		}
	}()

	done := make(chan struct{})
	var closeOnce sync.Once

	// Log connection state changes; start streaming once connected.
	peerConnection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("Connection state: %s", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			ctrlMu.Lock()
			c := ctrl
			ctrlMu.Unlock()
			go streamSyntheticVideo(track, c, done)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			closeOnce.Do(func() { close(done) })
			peerConnection.Close()
		}
	})

	// Set remote description (the offer from browser)
	if err := peerConnection.SetRemoteDescription(offer); err != nil {
		log.Printf("Failed to set remote description: %v", err)
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	// Create answer
	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		log.Printf("Failed to create answer: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Set local description
	if err := peerConnection.SetLocalDescription(answer); err != nil {
		log.Printf("Failed to set local description: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete
	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)
	<-gatherComplete

	// Send answer with complete ICE candidates
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(peerConnection.LocalDescription())

	log.Println("WebRTC connection established, streaming synthetic video...")
}

// streamSyntheticVideo writes frames at the capture rate, sized so the
// produced bitrate tracks the controller's current target. Frames the
// controller flags for dropping are skipped entirely; the browser sees the
// resulting bitrate reduction and adjusts its REMB estimate.
func streamSyntheticVideo(track *webrtc.TrackLocalStaticSample, ctrl *mediaopt.RateController, done <-chan struct{}) {
	if ctrl == nil {
		log.Println("Controller not available, not streaming")
		return
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var sent, dropped uint64
	lastReport := time.Now()

	for {
		select {
		case <-done:
			log.Printf("Streaming stopped: sent=%d dropped=%d", sent, dropped)
			return
		case <-ticker.C:
			if ctrl.ShouldDropFrame() {
				dropped++
				continue
			}

			frameBytes := int(ctrl.TargetBitrate()) / 8 / captureFrameRate
			if frameBytes < 100 {
				frameBytes = 100
			}
			payload := make([]byte, frameBytes)

			if err := track.WriteSample(media.Sample{
				Data:     payload,
				Duration: frameInterval,
			}); err != nil {
				log.Printf("WriteSample failed: %v", err)
				return
			}
			sent++

			if time.Since(lastReport) >= 5*time.Second {
				log.Printf("Streaming: target=%d bps, incoming=%d fps, sent=%d, dropped=%d",
					ctrl.TargetBitrate(), ctrl.InputFrameRate(), sent, dropped)
				lastReport = time.Now()
			}
		}
	}
}
