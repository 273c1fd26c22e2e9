// Soak test runner for long-duration rate-control testing.
//
// This tool simulates a live encoder: capture frames arrive at a fixed rate,
// each kept frame "encodes" to a size derived from the current target
// bitrate plus jitter, and a synthetic network feeds shifting bandwidth
// estimates. It monitors the controller for memory growth, estimate
// anomalies and drop-ratio pathologies over extended periods.
//
// Usage:
//
//	go run ./cmd/soak -duration 24h
//	go run ./cmd/soak -duration 1h  # shorter test
//
// Exposes pprof endpoint at :6060 for live profiling:
//
//	curl http://localhost:6060/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thesyncim/mediaopt/pkg/mediaopt"
)

const (
	captureFrameRate      = 30 // fps
	maxBitrateBps         = 2_500_000
	initialTargetBps      = 800_000
	statusIntervalMinutes = 5
)

// SoakResult contains the results of a soak test run.
type SoakResult struct {
	Duration         time.Duration
	TotalFrames      int
	DroppedFrames    int
	FinalFrameRate   uint32
	FinalTargetBps   uint32
	PeakHeapMB       float64
	TotalGCCycles    uint32
	SuspiciousEvents int
	Status           string
}

func main() {
	// Parse flags
	duration := flag.Duration("duration", 24*time.Hour, "Test duration (e.g., 1h, 24h)")
	pprofPort := flag.Int("pprof-port", 6060, "Port for pprof HTTP server")
	flag.Parse()

	fmt.Printf("Rate Control Soak Test Runner\n")
	fmt.Printf("=============================\n")
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Pprof:    http://localhost:%d/debug/pprof/\n", *pprofPort)
	fmt.Printf("\n")

	// Start pprof server in background
	go func() {
		addr := fmt.Sprintf(":%d", *pprofPort)
		if err := http.ListenAndServe(addr, nil); err != nil {
			fmt.Printf("Warning: pprof server failed: %v\n", err)
		}
	}()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down gracefully...\n", sig)
		cancel()
	}()

	// Run the soak test
	result := runSoakTest(ctx, *duration)

	// Print final summary
	printSummary(result)

	// Exit with appropriate status
	if result.Status == "PASS" {
		os.Exit(0)
	}
	os.Exit(1)
}

func runSoakTest(ctx context.Context, duration time.Duration) SoakResult {
	// Nil tracker and clock select the defaults (FrameDropper, MonotonicClock).
	controller := mediaopt.NewRateController(nil, nil)
	controller.SetEncodingData(maxBitrateBps, initialTargetBps, captureFrameRate)
	controller.EnableFrameDropper(true)

	produced := mediaopt.NewRateStats(mediaopt.DefaultRateStatsConfig())
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	result := SoakResult{
		Status: "PASS",
	}

	var memStats runtime.MemStats
	startTime := time.Now()
	lastStatusTime := startTime
	lastEstimateTime := startTime
	statusInterval := time.Duration(statusIntervalMinutes) * time.Minute

	frameInterval := time.Second / captureFrameRate
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	target := uint32(initialTargetBps)

	fmt.Printf("[%s] Starting soak test...\n", formatDuration(time.Duration(0)))

	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(startTime)
			return result

		case now := <-ticker.C:
			elapsed := now.Sub(startTime)

			// Check if test duration reached
			if elapsed >= duration {
				result.Duration = elapsed
				return result
			}

			// A new "network" estimate every second: random walk between
			// 100 kbps and 3 Mbps so the capping path is exercised too.
			if now.Sub(lastEstimateTime) >= time.Second {
				lastEstimateTime = now
				walk := 1.0 + (rng.Float64()-0.5)*0.4
				next := float64(target) * walk
				next = math.Max(100_000, math.Min(next, 3_000_000))
				target = controller.SetTargetRates(uint32(next))
				result.FinalTargetBps = target
			}

			// One capture frame.
			result.TotalFrames++
			if controller.ShouldDropFrame() {
				result.DroppedFrames++
			} else {
				// Encode: one frame-interval of the target with +-25%
				// jitter, and an oversized key frame every 300 frames.
				frameBytes := int(float64(target) / 8 / captureFrameRate * (0.75 + rng.Float64()*0.5))
				deltaFrame := result.TotalFrames%300 != 0
				if !deltaFrame {
					frameBytes *= 6
				}
				controller.RecordEncodedFrame(frameBytes, deltaFrame)
				produced.AddFrame(frameBytes, now)
			}

			// Check for anomalies
			frameRate := controller.InputFrameRate()
			result.FinalFrameRate = frameRate
			if frameRate > 10*captureFrameRate {
				fmt.Printf("[%s] ERROR: Runaway frame-rate estimate: %d\n", formatDuration(elapsed), frameRate)
				result.SuspiciousEvents++
				result.Status = "FAIL"
			}
			if result.TotalFrames > captureFrameRate && frameRate == 0 {
				fmt.Printf("[%s] WARNING: Estimate collapsed to 0 under steady arrivals\n", formatDuration(elapsed))
				result.SuspiciousEvents++
			}

			// Periodic status output
			if now.Sub(lastStatusTime) >= statusInterval {
				lastStatusTime = now
				runtime.ReadMemStats(&memStats)

				heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
				if heapMB > result.PeakHeapMB {
					result.PeakHeapMB = heapMB
				}
				result.TotalGCCycles = memStats.NumGC

				producedBps := int64(0)
				if rate, ok := produced.Bitrate(now); ok {
					producedBps = rate
				}
				dropRatio := float64(result.DroppedFrames) / float64(result.TotalFrames)

				fmt.Printf("[%s] Frames: %d, Dropped: %.1f%%, Rate: %d fps, Target: %.2f Mbps, Produced: %.2f Mbps, HeapAlloc: %.2f MB, NumGC: %d\n",
					formatDuration(elapsed),
					result.TotalFrames,
					dropRatio*100,
					frameRate,
					float64(target)/1e6,
					float64(producedBps)/1e6,
					heapMB,
					memStats.NumGC)

				// Memory limit check (100 MB)
				if heapMB > 100 {
					fmt.Printf("[%s] ERROR: Memory limit exceeded: %.2f MB\n", formatDuration(elapsed), heapMB)
					result.Status = "FAIL"
				}
			}
		}
	}
}

func printSummary(result SoakResult) {
	dropRatio := 0.0
	if result.TotalFrames > 0 {
		dropRatio = float64(result.DroppedFrames) / float64(result.TotalFrames)
	}

	fmt.Printf("\n")
	fmt.Printf("Soak Test Complete\n")
	fmt.Printf("==================\n")
	fmt.Printf("Duration:          %v\n", result.Duration.Round(time.Second))
	fmt.Printf("Total frames:      %d\n", result.TotalFrames)
	fmt.Printf("Dropped frames:    %d (%.1f%%)\n", result.DroppedFrames, dropRatio*100)
	fmt.Printf("Final frame rate:  %d fps\n", result.FinalFrameRate)
	fmt.Printf("Final target:      %.2f Mbps\n", float64(result.FinalTargetBps)/1e6)
	fmt.Printf("Peak HeapAlloc:    %.2f MB\n", result.PeakHeapMB)
	fmt.Printf("Total GC cycles:   %d\n", result.TotalGCCycles)
	fmt.Printf("Suspicious events: %d\n", result.SuspiciousEvents)
	fmt.Printf("Status:            %s\n", result.Status)
	fmt.Printf("\n")

	// Pass criteria
	fmt.Printf("Pass Criteria:\n")
	fmt.Printf("  - No panics:             %s\n", checkMark(true))
	fmt.Printf("  - Frame rate tracked:    %s\n", checkMark(result.FinalFrameRate > 0))
	fmt.Printf("  - Drop ratio < 50%%:      %s\n", checkMark(dropRatio < 0.5))
	fmt.Printf("  - Peak memory < 100 MB:  %s\n", checkMark(result.PeakHeapMB < 100))
	fmt.Printf("  - No estimate anomalies: %s\n", checkMark(result.SuspiciousEvents == 0))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
