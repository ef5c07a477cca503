package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// collector gathers notification chunks.
type collector struct {
	mu     sync.Mutex
	chunks [][]byte
	notify chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 128)}
}

func (c *collector) handle(chunk []byte) {
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) waitFor(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.chunks) >= n {
			out := append([][]byte(nil), c.chunks...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timeout waiting for %d chunks", n)
		}
	}
}

func connectedLink(t *testing.T) (*Link, *collector, *collector) {
	t.Helper()
	l := NewLink(LinkConfig{Address: "AA:BB"})
	t.Cleanup(func() { l.Close() })

	central, peripheral := newCollector(), newCollector()
	l.Central().RegisterNotificationCallback(central.handle)
	l.Peripheral().RegisterNotificationCallback(peripheral.handle)

	if !l.Peripheral().Connect(context.Background(), "") {
		t.Fatal("peripheral Connect failed")
	}
	if !l.Central().Connect(context.Background(), "AA:BB") {
		t.Fatal("central Connect failed")
	}
	return l, central, peripheral
}

func TestLink_Connect(t *testing.T) {
	l := NewLink(LinkConfig{Address: "AA:BB"})
	defer l.Close()

	if l.Central().Connect(context.Background(), "CC:DD") {
		t.Error("Connect to unknown address succeeded")
	}
	if l.Central().IsConnected() {
		t.Error("IsConnected after failed Connect")
	}
	if err := l.Central().Write(context.Background(), []byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write error = %v, want ErrNotConnected", err)
	}
	if !l.Central().Connect(context.Background(), "AA:BB") {
		t.Fatal("Connect failed")
	}
	l.Central().Disconnect()
	l.Central().Disconnect()
	if l.Central().IsConnected() {
		t.Error("IsConnected after Disconnect")
	}
}

func TestLink_Bidirectional(t *testing.T) {
	l, central, peripheral := connectedLink(t)
	ctx := context.Background()

	if err := l.Central().Write(ctx, []byte("write")); err != nil {
		t.Fatalf("central Write failed: %v", err)
	}
	if err := l.Peripheral().Write(ctx, []byte("notify")); err != nil {
		t.Fatalf("peripheral Write failed: %v", err)
	}

	if got := peripheral.waitFor(t, 1); !bytes.Equal(got[0], []byte("write")) {
		t.Errorf("peripheral got %q", got[0])
	}
	if got := central.waitFor(t, 1); !bytes.Equal(got[0], []byte("notify")) {
		t.Errorf("central got %q", got[0])
	}
}

func TestLink_MTU(t *testing.T) {
	l, _, _ := connectedLink(t)

	err := l.Central().Write(context.Background(), make([]byte, DefaultMTU+1))
	if !errors.Is(err, ErrChunkTooLarge) {
		t.Errorf("Write error = %v, want ErrChunkTooLarge", err)
	}
}

func TestLink_DropAll(t *testing.T) {
	l, _, peripheral := connectedLink(t)
	l.SetCondition(Condition{DropRate: 1})

	if err := l.Central().Write(context.Background(), []byte{1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	l.SetCondition(Condition{})
	if err := l.Central().Write(context.Background(), []byte{2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := peripheral.waitFor(t, 1)
	if len(got) != 1 || got[0][0] != 2 {
		t.Errorf("peripheral got %v, want only the second chunk", got)
	}
}

func TestLink_Closed(t *testing.T) {
	l, _, _ := connectedLink(t)
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := l.Central().Write(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write error = %v, want ErrClosed", err)
	}
	if l.Central().Connect(context.Background(), "AA:BB") {
		t.Error("Connect on closed link succeeded")
	}
}

func TestChunkWriter(t *testing.T) {
	l, _, peripheral := connectedLink(t)
	w := NewChunkWriter(l.Central(), ChunkWriterConfig{Interval: -1})

	frame := make([]byte, 45)
	for i := range frame {
		frame[i] = byte(i)
	}
	if err := w.WriteFrame(context.Background(), frame); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got := peripheral.waitFor(t, 3)
	wantSizes := []int{20, 20, 5}
	var joined []byte
	for i, chunk := range got {
		if len(chunk) != wantSizes[i] {
			t.Errorf("chunk %d size = %d, want %d", i, len(chunk), wantSizes[i])
		}
		joined = append(joined, chunk...)
	}
	if !bytes.Equal(joined, frame) {
		t.Errorf("reassembled %x, want %x", joined, frame)
	}
}

func TestChunkWriter_Pacing(t *testing.T) {
	l, _, peripheral := connectedLink(t)
	w := NewChunkWriter(l.Central(), ChunkWriterConfig{MTU: 4, Interval: 20 * time.Millisecond})

	start := time.Now()
	if err := w.WriteFrame(context.Background(), make([]byte, 12)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	// Three chunks, the first one immediate.
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("WriteFrame took %s, want paced writes", elapsed)
	}
	peripheral.waitFor(t, 3)
}

func TestChunkWriter_Cancelled(t *testing.T) {
	l, _, _ := connectedLink(t)
	w := NewChunkWriter(l.Central(), ChunkWriterConfig{MTU: 1, Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.WriteFrame(ctx, []byte{1, 2}); err == nil {
		t.Error("WriteFrame succeeded despite cancellation")
	}
}
