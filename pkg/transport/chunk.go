package transport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWriteInterval paces consecutive chunk writes. Vehicles drop
// writes that arrive faster than they can be processed.
const DefaultWriteInterval = 50 * time.Millisecond

// ChunkWriterConfig configures a ChunkWriter.
type ChunkWriterConfig struct {
	// MTU is the largest chunk written at once. Defaults to DefaultMTU.
	MTU int

	// Interval is the minimum time between chunk writes. Defaults to
	// DefaultWriteInterval; a negative value disables pacing.
	Interval time.Duration
}

// ChunkWriter splits frames into MTU-sized chunks and writes them to a
// Transport at a paced rate.
type ChunkWriter struct {
	transport Transport
	mtu       int
	limiter   *rate.Limiter
}

// NewChunkWriter creates a ChunkWriter on t.
func NewChunkWriter(t Transport, config ChunkWriterConfig) *ChunkWriter {
	mtu := config.MTU
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	interval := config.Interval
	if interval == 0 {
		interval = DefaultWriteInterval
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &ChunkWriter{
		transport: t,
		mtu:       mtu,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// MTU returns the chunk size.
func (w *ChunkWriter) MTU() int {
	return w.mtu
}

// WriteFrame writes frame as consecutive chunks. Concurrent calls must be
// serialized by the caller; chunks of different frames must not interleave.
func (w *ChunkWriter) WriteFrame(ctx context.Context, frame []byte) error {
	for off := 0; off < len(frame); off += w.mtu {
		end := off + w.mtu
		if end > len(frame) {
			end = len(frame)
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := w.transport.Write(ctx, frame[off:end]); err != nil {
			return fmt.Errorf("transport: write chunk at offset %d: %w", off, err)
		}
	}
	return nil
}
