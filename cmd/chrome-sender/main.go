// Rate Control Sender Demo
//
// This server creates a Pion WebRTC endpoint that streams synthetic video to
// a browser. The browser's REMB feedback drives the sender's target bitrate,
// and the frame dropper skips frames whenever the produced bitrate overshoots
// the target.
package main

import (
	"fmt"
	"log"

	"github.com/thesyncim/mediaopt/cmd/chrome-sender/server"
)

func main() {
	// Print welcome message
	fmt.Println(`
Rate Control Sender Demo
========================
1. Open chrome://webrtc-internals in Chrome
2. Open http://localhost:8080 in another tab
3. Click "Start Call"
4. Watch the received bitrate converge toward the server's target

Server ready on :8080`)

	// Create server with fixed port for CLI use
	cfg := server.Config{Addr: ":8080"}
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Start server
	addr, err := srv.Start()
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Printf("Listening on %s", addr)

	// Block forever
	select {}
}
