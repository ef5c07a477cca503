// Package vehicle owns one connection to a vehicle: it reassembles
// notifications into frames, parses them, matches responses to requests and
// drives handshakes and pairing on demand.
//
// All inbound processing happens on a single goroutine fed by a bounded
// channel. The transport callback only enqueues chunks. Outbound requests
// hold a per-domain semaphore from the moment the envelope is wrapped until
// the response arrives, so session counters reach the vehicle in order.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"
	"golang.org/x/sync/semaphore"

	"github.com/backkem/teslable/pkg/framing"
	"github.com/backkem/teslable/pkg/pairing"
	"github.com/backkem/teslable/pkg/protocol"
	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/transport"
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

const (
	// DefaultNotificationQueueSize is the capacity of the chunk queue
	// between the transport callback and the reassembly goroutine.
	DefaultNotificationQueueSize = 64

	// DefaultRequestTimeout bounds the wait for a response.
	DefaultRequestTimeout = 10 * time.Second
)

// errSessionReady short-circuits a handshake that another caller finished.
var errSessionReady = errors.New("vehicle: session ready")

// Config configures a Conn.
type Config struct {
	// Transport carries chunks to and from the vehicle. Required.
	Transport transport.Transport

	// Sessions holds the local key pair and domain sessions. Required.
	Sessions *session.Manager

	// Address is the device address passed to Transport.Connect.
	Address string

	// MTU and WriteInterval configure outbound chunking.
	// See transport.ChunkWriterConfig for defaults.
	MTU           int
	WriteInterval time.Duration

	// NotificationQueueSize defaults to DefaultNotificationQueueSize.
	NotificationQueueSize int

	// RequestTimeout defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Metrics receives connection metrics. If nil, unregistered
	// collectors are used.
	Metrics *Metrics

	// OnResult is called on the reassembly goroutine for every parsed
	// frame, after request matching. Panics are recovered and counted.
	OnResult func(res *protocol.Result)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type response struct {
	res *protocol.Result
	err error
}

// pending is a request waiting for its response.
type pending struct {
	domain universal.Domain
	uuid   string
	ch     chan response
}

// Conn is a connection to one vehicle. It is safe for concurrent use.
type Conn struct {
	transport transport.Transport
	sessions  *session.Manager
	proto     *protocol.Protocol
	writer    *transport.ChunkWriter
	address   string
	timeout   time.Duration
	onResult  func(res *protocol.Result)
	metrics   *Metrics
	stats     counters

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	inbound chan notification
	decoder *framing.Decoder
	writeMu sync.Mutex

	mu      sync.Mutex
	sems    map[universal.Domain]*semaphore.Weighted
	pending []*pending
	pairing *pairing.Pairing
	state   State
	started bool
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New creates a connection. Call Connect before sending requests.
func New(config Config) (*Conn, error) {
	if config.Transport == nil || config.Sessions == nil {
		return nil, ErrMissingDependency
	}
	proto, err := protocol.New(protocol.Config{
		Sessions:      config.Sessions,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	metrics := config.Metrics
	if metrics == nil {
		if metrics, err = NewMetrics(nil); err != nil {
			return nil, err
		}
	}
	queueSize := config.NotificationQueueSize
	if queueSize <= 0 {
		queueSize = DefaultNotificationQueueSize
	}
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c := &Conn{
		transport: config.Transport,
		sessions:  config.Sessions,
		proto:     proto,
		writer: transport.NewChunkWriter(config.Transport, transport.ChunkWriterConfig{
			MTU:      config.MTU,
			Interval: config.WriteInterval,
		}),
		address:       config.Address,
		timeout:       timeout,
		onResult:      config.OnResult,
		metrics:       metrics,
		loggerFactory: config.LoggerFactory,
		inbound:       make(chan notification, queueSize),
		decoder:       framing.NewDecoder(),
		sems:          make(map[universal.Domain]*semaphore.Weighted),
		closeCh:       make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("vehicle")
	}
	return c, nil
}

// Protocol returns the protocol used to build requests.
func (c *Conn) Protocol() *protocol.Protocol {
	return c.proto
}

// Sessions returns the session manager.
func (c *Conn) Sessions() *session.Manager {
	return c.sessions
}

// Connect connects the transport and starts the reassembly goroutine. On
// reconnect, any partially received frame is discarded.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	started := c.started
	c.mu.Unlock()

	if started {
		// Queued ahead of any chunk of the new connection.
		c.push(notification{reset: true})
	}

	c.transport.RegisterNotificationCallback(c.enqueue)
	if !c.transport.Connect(ctx, c.address) {
		return fmt.Errorf("%w: %s", ErrConnectFailed, c.address)
	}

	c.mu.Lock()
	start := !c.started
	c.started = true
	c.mu.Unlock()

	if start {
		c.wg.Add(1)
		go c.loop()
	}

	if c.log != nil {
		c.log.Infof("connected to %s", c.address)
	}
	return nil
}

// IsConnected reports whether the transport is connected.
func (c *Conn) IsConnected() bool {
	return c.transport.IsConnected()
}

// Disconnect disconnects the transport. Sessions are kept; Connect may be
// called again.
func (c *Conn) Disconnect() {
	c.transport.Disconnect()
}

// Close disconnects and stops the reassembly goroutine. Pending requests
// fail with ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.mu.Unlock()

	c.transport.Disconnect()
	c.wg.Wait()
	return nil
}

// notification is one item of the inbound queue: a chunk, or a request to
// drop any partially reassembled frame.
type notification struct {
	chunk []byte
	reset bool
}

// enqueue is the transport notification callback. It blocks while the
// queue is full so that no chunk is lost mid-frame.
func (c *Conn) enqueue(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.push(notification{chunk: chunk})
}

func (c *Conn) push(n notification) {
	select {
	case c.inbound <- n:
	case <-c.closeCh:
	}
}

func (c *Conn) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closeCh:
			return
		case n := <-c.inbound:
			if n.reset {
				if c.log != nil && c.decoder.Buffered() > 0 {
					c.log.Debugf("discarding %d bytes of partial frame", c.decoder.Buffered())
				}
				c.decoder.Reset()
				continue
			}
			c.stats.chunksReceived.Add(1)
			for _, frame := range c.decoder.Feed(n.chunk) {
				c.handleFrame(frame)
			}
		}
	}
}

// handleFrame parses and dispatches one frame. It never panics.
func (c *Conn) handleFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.handlerPanics.Add(1)
			c.metrics.Errors.WithLabelValues("panic").Inc()
			if c.log != nil {
				c.log.Errorf("recovered from panic handling frame: %v", r)
			}
		}
	}()

	c.stats.framesReceived.Add(1)
	c.metrics.Frames.Inc()

	res, err := c.proto.Parse(frame)
	if err != nil {
		c.stats.parseErrors.Add(1)
		c.metrics.Errors.WithLabelValues("parse").Inc()
		if c.log != nil {
			c.log.Warnf("discarding frame: %v", err)
		}
		var perr *protocol.ParseError
		if errors.As(err, &perr) && perr.Layer != protocol.LayerEnvelope {
			c.deliver(perr.Domain, perr.RequestUUID, response{err: err})
		}
		return
	}

	c.mu.Lock()
	c.state.apply(res, time.Now())
	p := c.pairing
	c.mu.Unlock()

	consumed := false
	if p != nil && res.Domain == universal.DomainVehicleSecurity &&
		res.Kind == protocol.KindCommandStatus && len(res.RequestUUID) == 0 {
		p.HandleResult(res)
		consumed = true
	}

	if !consumed {
		if c.deliver(res.Domain, res.RequestUUID, response{res: res}) {
			c.stats.resultsDelivered.Add(1)
		} else {
			c.stats.unmatched.Add(1)
			c.metrics.Errors.WithLabelValues("unmatched").Inc()
			if c.log != nil {
				c.log.Debugf("no pending request for %s from %s", res.Kind, res.Domain)
			}
		}
	}

	if c.onResult != nil {
		c.onResult(res)
	}
}

// deliver hands a response to the pending request it answers: the one with
// a matching uuid, or the oldest for the domain when the response carries
// no request_uuid.
func (c *Conn) deliver(domain universal.Domain, requestUUID []byte, r response) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.pending {
		matched := p.uuid == string(requestUUID)
		if len(requestUUID) == 0 {
			matched = p.domain == domain
		}
		if matched {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			p.ch <- r
			return true
		}
	}
	return false
}

func (c *Conn) addPending(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, p)
}

func (c *Conn) removePending(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Conn) semaphore(domain universal.Domain) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.sems[domain]
	if !ok {
		sem = semaphore.NewWeighted(1)
		c.sems[domain] = sem
	}
	return sem
}

// Send writes a framed message. It implements pairing.Sender.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if !c.transport.IsConnected() {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteFrame(ctx, frame)
}

// Request builds a request while holding the domain's semaphore, sends it
// and waits for the matching response. A response carrying an error status
// is returned together with its *session.StatusError.
func (c *Conn) Request(ctx context.Context, domain universal.Domain, build func() (*protocol.Request, error)) (*protocol.Result, error) {
	if !c.transport.IsConnected() {
		return nil, ErrNotConnected
	}

	sem := c.semaphore(domain)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	req, err := build()
	if err != nil {
		if !errors.Is(err, errSessionReady) {
			c.count(domain, "build_error")
		}
		return nil, err
	}

	p := &pending{domain: req.Domain, uuid: string(req.UUID), ch: make(chan response, 1)}
	c.addPending(p)
	defer c.removePending(p)

	if err := c.Send(ctx, req.Frame); err != nil {
		c.count(domain, "send_error")
		return nil, fmt.Errorf("vehicle: send to %s: %w", domain, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-p.ch:
		if r.err != nil {
			c.count(domain, "error")
			return nil, r.err
		}
		if err := r.res.Err(); err != nil {
			c.count(domain, "rejected")
			return r.res, err
		}
		c.count(domain, "ok")
		return r.res, nil
	case <-timer.C:
		c.count(domain, "timeout")
		return nil, fmt.Errorf("%w: %s after %s", ErrRequestTimeout, domain, c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, ErrClosed
	}
}

func (c *Conn) count(domain universal.Domain, outcome string) {
	c.metrics.Requests.WithLabelValues(domain.String(), outcome).Inc()
}

// EnsureSession performs a handshake for domain unless its session is
// already authenticated.
func (c *Conn) EnsureSession(ctx context.Context, domain universal.Domain) error {
	if c.sessions.IsAuthenticated(domain) {
		return nil
	}

	start := time.Now()
	res, err := c.Request(ctx, domain, func() (*protocol.Request, error) {
		if c.sessions.IsAuthenticated(domain) {
			return nil, errSessionReady
		}
		return c.proto.HandshakeRequest(domain)
	})
	if errors.Is(err, errSessionReady) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("vehicle: handshake with %s: %w", domain, err)
	}
	if res.Kind != protocol.KindSessionInfo {
		return fmt.Errorf("%w: %s to handshake with %s", ErrUnexpectedResponse, res.Kind, domain)
	}

	c.metrics.HandshakeLatency.WithLabelValues(domain.String()).Observe(time.Since(start).Seconds())
	if c.log != nil {
		c.log.Infof("session established with %s", domain)
	}
	return nil
}

// EnsureSessions performs a handshake for every unauthenticated domain.
func (c *Conn) EnsureSessions(ctx context.Context) error {
	var errs []error
	for _, domain := range c.sessions.Domains() {
		if err := c.EnsureSession(ctx, domain); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pair adds the local key to the vehicle's whitelist. The user has to
// confirm the key on the vehicle within timeout; zero uses
// pairing.DefaultTimeout. The connection stays open after a failure.
func (c *Conn) Pair(ctx context.Context, timeout time.Duration) (pairing.Result, error) {
	p, err := pairing.New(pairing.Config{
		Protocol:      c.proto,
		Sender:        c,
		LoggerFactory: c.loggerFactory,
	})
	if err != nil {
		return pairing.Result{}, err
	}

	c.mu.Lock()
	if c.pairing != nil {
		c.mu.Unlock()
		return pairing.Result{}, ErrPairingInProgress
	}
	c.pairing = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pairing = nil
		c.mu.Unlock()
	}()

	if err := p.Start(ctx); err != nil {
		res, _ := p.Result()
		return res, err
	}
	return p.Wait(ctx, timeout)
}

// State returns the latest known vehicle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the connection counters.
func (c *Conn) Stats() Stats {
	return c.stats.snapshot()
}

// command ensures a session for domain and sends the built request. A
// vehicle-reported failure is returned as ErrActionFailed.
func (c *Conn) command(ctx context.Context, domain universal.Domain, build func() (*protocol.Request, error)) (*protocol.Result, error) {
	if err := c.EnsureSession(ctx, domain); err != nil {
		return nil, err
	}
	res, err := c.Request(ctx, domain, build)
	if err != nil {
		return res, err
	}
	switch {
	case res.NominalError != nil:
		return res, fmt.Errorf("%w: %s", ErrActionFailed, res.NominalError.GenericError)
	case res.ActionStatus != nil && res.ActionStatus.Result == carserver.ActionResultError:
		return res, fmt.Errorf("%w: %s", ErrActionFailed, res.ActionStatus.Reason)
	case res.CommandStatus != nil && res.CommandStatus.OperationStatus == vcsec.OperationStatusError:
		return res, fmt.Errorf("%w: command status %s", ErrActionFailed, res.CommandStatus.OperationStatus)
	}
	return res, nil
}
