package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling/traffic counter.
var Stats = &stats{}

type stats struct {
	SignalSent atomic.Int64 // signaling messages written to the WebSocket
	SignalRecv atomic.Int64 // signaling messages read from the WebSocket
	BytesSent  atomic.Int64 // cumulative bytes written to DataChannels
	BytesRecv  atomic.Int64 // cumulative bytes read from DataChannels
}

func (s *stats) AddSignalSent() { s.SignalSent.Add(1) }
func (s *stats) AddSignalRecv() { s.SignalRecv.Add(1) }
func (s *stats) AddSent(n int)  { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)  { s.BytesRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs traffic statistics every
// interval. Quiet intervals are skipped. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevSigSent, prevSigRecv int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				sigSent := Stats.SignalSent.Load()
				sigRecv := Stats.SignalRecv.Load()

				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs
				sigOut := sigSent - prevSigSent
				sigIn := sigRecv - prevSigRecv

				if sigOut > 0 || sigIn > 0 || inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, sigIn, sigOut))
				}

				prevSent = sent
				prevRecv = recv
				prevSigSent = sigSent
				prevSigRecv = sigRecv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// e.g. "99.0   B", " 1.5 KiB", "98.9 GiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns the reporter line for one interval.
func formatStats(inS, outS float64, sigIn, sigOut int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Signal: %2d↓ %2d↑",
		formatBytes(inS),
		formatBytes(outS),
		sigIn,
		sigOut,
	)
}
