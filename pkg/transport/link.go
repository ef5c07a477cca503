package transport

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// maxChunkSize bounds a single read from the in-memory link.
const maxChunkSize = 512

// Condition configures impairment of chunks crossing a Link. Chunks are
// never reordered; BLE delivers in order per direction.
type Condition struct {
	// DropRate is the probability of dropping a chunk (0.0 - 1.0).
	DropRate float64

	// Delay is added before each chunk is queued.
	Delay time.Duration
}

// LinkConfig configures a Link.
type LinkConfig struct {
	// Address is the device address the central must connect to.
	Address string

	// MTU bounds every write. Defaults to DefaultMTU; a negative value
	// disables the check.
	MTU int

	// ProcessInterval is how often queued chunks are delivered.
	// Defaults to 1ms.
	ProcessInterval time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Link is an in-memory GATT connection between a central (the client) and
// a peripheral (the vehicle). It wraps pion's test.Bridge: every Write on
// one endpoint arrives as one notification on the other.
type Link struct {
	bridge  *test.Bridge
	address string

	central    *Endpoint
	peripheral *Endpoint

	mu        sync.RWMutex
	condition Condition
	rng       *rand.Rand
	closed    bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewLink creates a link and starts delivering chunks in the background.
func NewLink(config LinkConfig) *Link {
	interval := config.ProcessInterval
	if interval == 0 {
		interval = time.Millisecond
	}
	mtu := config.MTU
	if mtu == 0 {
		mtu = DefaultMTU
	}

	l := &Link{
		bridge:  test.NewBridge(),
		address: config.Address,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:  make(chan struct{}),
	}

	var log logging.LeveledLogger
	if config.LoggerFactory != nil {
		log = config.LoggerFactory.NewLogger("transport")
	}
	l.central = newEndpoint(l, l.bridge.GetConn0(), "central", mtu, log)
	l.peripheral = newEndpoint(l, l.bridge.GetConn1(), "peripheral", mtu, log)

	l.wg.Add(3)
	go l.process(interval)
	go l.central.readLoop(&l.wg)
	go l.peripheral.readLoop(&l.wg)
	return l
}

func (l *Link) process(interval time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.bridge.Process()
		}
	}
}

// Central returns the client endpoint.
func (l *Link) Central() *Endpoint {
	return l.central
}

// Peripheral returns the vehicle endpoint.
func (l *Link) Peripheral() *Endpoint {
	return l.peripheral
}

// SetCondition configures chunk impairment in both directions.
func (l *Link) SetCondition(cond Condition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.condition = cond
}

// impair applies the configured condition and reports whether the chunk
// should be delivered.
func (l *Link) impair() bool {
	l.mu.Lock()
	cond := l.condition
	drop := cond.DropRate > 0 && l.rng.Float64() < cond.DropRate
	l.mu.Unlock()

	if cond.Delay > 0 {
		time.Sleep(cond.Delay)
	}
	return !drop
}

// Close disconnects both endpoints and stops delivery.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stopCh)
	l.mu.Unlock()

	l.central.Disconnect()
	l.peripheral.Disconnect()

	err0 := l.bridge.GetConn0().Close()
	err1 := l.bridge.GetConn1().Close()
	l.wg.Wait()

	if err0 != nil {
		return err0
	}
	return err1
}

func (l *Link) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Endpoint is one side of a Link. It implements Transport.
type Endpoint struct {
	link *Link
	conn net.Conn
	role string
	mtu  int
	log  logging.LeveledLogger

	mu        sync.RWMutex
	connected bool
	handler   NotificationHandler
}

func newEndpoint(l *Link, conn net.Conn, role string, mtu int, log logging.LeveledLogger) *Endpoint {
	return &Endpoint{link: l, conn: conn, role: role, mtu: mtu, log: log}
}

// Connect marks the endpoint connected. The central only connects to the
// link's address; the peripheral accepts any address.
func (e *Endpoint) Connect(ctx context.Context, address string) bool {
	if ctx.Err() != nil || e.link.isClosed() {
		return false
	}
	if e == e.link.central && address != e.link.address {
		if e.log != nil {
			e.log.Debugf("%s: no device at %q", e.role, address)
		}
		return false
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	if e.log != nil {
		e.log.Debugf("%s: connected to %q", e.role, address)
	}
	return true
}

// Disconnect marks the endpoint disconnected. Chunks arriving while
// disconnected are discarded.
func (e *Endpoint) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = false
}

// IsConnected reports whether the endpoint is connected.
func (e *Endpoint) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// Write sends one chunk to the other endpoint.
func (e *Endpoint) Write(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.link.isClosed() {
		return ErrClosed
	}
	if !e.IsConnected() {
		return ErrNotConnected
	}
	if e.mtu > 0 && len(chunk) > e.mtu {
		return ErrChunkTooLarge
	}
	if !e.link.impair() {
		if e.log != nil {
			e.log.Tracef("%s: dropped %d byte chunk", e.role, len(chunk))
		}
		return nil
	}
	_, err := e.conn.Write(chunk)
	return err
}

// RegisterNotificationCallback sets the handler for incoming chunks.
func (e *Endpoint) RegisterNotificationCallback(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

func (e *Endpoint) readLoop(wg *sync.WaitGroup) {
	defer wg.Done()

	buf := make([]byte, maxChunkSize)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			return
		}

		e.mu.RLock()
		handler := e.handler
		connected := e.connected
		e.mu.RUnlock()

		if !connected || handler == nil {
			if e.log != nil {
				e.log.Debugf("%s: discarding %d byte chunk, no subscriber", e.role, n)
			}
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		handler(chunk)
	}
}

var _ Transport = (*Endpoint)(nil)
