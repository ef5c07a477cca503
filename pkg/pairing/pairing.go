// Package pairing adds the local public key to a vehicle's whitelist.
//
// Pairing sends one unauthenticated whitelist-add request and then watches
// vehicle-security command statuses until the vehicle reports a terminal
// outcome:
//
//	Idle --Start--> AwaitingConfirmation
//	AwaitingConfirmation --WAIT--> AwaitingConfirmation
//	AwaitingConfirmation --OK/OK--> Paired
//	AwaitingConfirmation --ERROR / timeout--> Failed
//
// The first terminal outcome wins; later statuses are ignored.
package pairing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/teslable/pkg/protocol"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// DefaultTimeout is how long Wait waits for the user to confirm the key on
// the vehicle when no timeout is given.
const DefaultTimeout = 900 * time.Second

// Sender writes a framed request to the vehicle.
type Sender interface {
	Send(ctx context.Context, frame []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, frame []byte) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, frame []byte) error {
	return f(ctx, frame)
}

// Callbacks provides pairing event callbacks.
type Callbacks struct {
	// OnStateChanged is called after every state transition, without the
	// pairing lock held.
	OnStateChanged func(state State)
}

// Config configures a Pairing.
type Config struct {
	// Protocol builds the whitelist-add request. Required.
	Protocol *protocol.Protocol

	// Sender delivers the request. Required.
	Sender Sender

	// FormFactor is reported in the key metadata.
	// Defaults to vcsec.KeyFormFactorCloudKey.
	FormFactor vcsec.KeyFormFactor

	// Timeout is used by Wait when called with a zero timeout.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	Callbacks Callbacks

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Result is the outcome of a pairing attempt.
type Result struct {
	Success bool

	// Err wraps ErrPairingFailed when Success is false.
	Err error
}

// Pairing runs pairing attempts against one vehicle. It is safe for
// concurrent use.
type Pairing struct {
	protocol   *protocol.Protocol
	sender     Sender
	formFactor vcsec.KeyFormFactor
	timeout    time.Duration
	callbacks  Callbacks

	state  State
	result *Result
	done   chan struct{}

	log logging.LeveledLogger
	mu  sync.Mutex
}

// New creates an idle Pairing.
func New(config Config) (*Pairing, error) {
	if config.Protocol == nil || config.Sender == nil {
		return nil, ErrMissingDependency
	}
	p := &Pairing{
		protocol:   config.Protocol,
		sender:     config.Sender,
		formFactor: config.FormFactor,
		timeout:    config.Timeout,
		callbacks:  config.Callbacks,
		done:       make(chan struct{}),
	}
	if p.formFactor == vcsec.KeyFormFactorUnknown {
		p.formFactor = vcsec.KeyFormFactorCloudKey
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("pairing")
	}
	return p, nil
}

// State returns the current state.
func (p *Pairing) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start sends the whitelist-add request and moves to AwaitingConfirmation.
// A send failure ends the attempt as Failed.
func (p *Pairing) Start(ctx context.Context) error {
	req, err := p.protocol.PairingRequest(p.formFactor)
	if err != nil {
		return fmt.Errorf("pairing: build request: %w", err)
	}

	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, state)
	}
	p.state = StateAwaitingConfirmation
	p.mu.Unlock()
	p.notify(StateAwaitingConfirmation)

	if p.log != nil {
		p.log.Infof("sending whitelist request, confirm the key on the vehicle")
	}

	if err := p.sender.Send(ctx, req.Frame); err != nil {
		p.finish(false, fmt.Errorf("%w: send request: %w", ErrPairingFailed, err))
		return fmt.Errorf("pairing: send request: %w", err)
	}
	return nil
}

// HandleResult consumes one parsed inbound frame. Frames that are not
// vehicle-security command statuses, or that arrive outside
// AwaitingConfirmation, are ignored. It reports whether the frame ended the
// attempt.
func (p *Pairing) HandleResult(res *protocol.Result) bool {
	if res == nil || res.Domain != universal.DomainVehicleSecurity || res.CommandStatus == nil {
		return false
	}
	if p.State() != StateAwaitingConfirmation {
		return false
	}

	cs := res.CommandStatus
	wl := vcsec.OperationStatusOK
	info := vcsec.WhitelistInfoNone
	if cs.WhitelistOperationStatus != nil {
		wl = cs.WhitelistOperationStatus.OperationStatus
		info = cs.WhitelistOperationStatus.WhitelistOperationInformation
	}

	if p.log != nil {
		p.log.Debugf("whitelist status: operation=%s whitelist=%s info=%s", cs.OperationStatus, wl, info)
	}

	switch {
	case cs.OperationStatus == vcsec.OperationStatusError || wl == vcsec.OperationStatusError:
		return p.finish(false, fmt.Errorf("%w: %s", ErrPairingFailed, info))
	case cs.OperationStatus == vcsec.OperationStatusWait || wl == vcsec.OperationStatusWait:
		return false
	case cs.OperationStatus == vcsec.OperationStatusOK && wl == vcsec.OperationStatusOK:
		return p.finish(true, nil)
	}
	return false
}

// finish records the terminal result once. It reports whether this call
// set it.
func (p *Pairing) finish(success bool, err error) bool {
	p.mu.Lock()
	if p.state != StateAwaitingConfirmation {
		p.mu.Unlock()
		return false
	}
	state := StateFailed
	if success {
		state = StatePaired
	}
	p.state = state
	p.result = &Result{Success: success, Err: err}
	close(p.done)
	p.mu.Unlock()

	if p.log != nil {
		if success {
			p.log.Infof("key added to vehicle whitelist")
		} else {
			p.log.Warnf("pairing failed: %v", err)
		}
	}
	p.notify(state)
	return true
}

func (p *Pairing) notify(state State) {
	if p.callbacks.OnStateChanged != nil {
		p.callbacks.OnStateChanged(state)
	}
}

// Wait blocks until the attempt is terminal, timeout elapses or ctx is
// done. A zero timeout uses the configured default. On timeout the attempt
// fails with ErrPairingFailed wrapping ErrTimeout; the connection is left
// open so the caller can Reset and retry. Cancellation returns ctx.Err()
// and leaves the attempt untouched.
func (p *Pairing) Wait(ctx context.Context, timeout time.Duration) (Result, error) {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return Result{}, ErrNotStarted
	}
	done := p.done
	p.mu.Unlock()

	if timeout <= 0 {
		timeout = p.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		p.finish(false, fmt.Errorf("%w: %w after %s", ErrPairingFailed, ErrTimeout, timeout))
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	res, ok := p.Result()
	if !ok {
		// Reset while waiting.
		return Result{}, ErrNotStarted
	}
	return res, nil
}

// Result returns the terminal result, if any. It may be called any number
// of times.
func (p *Pairing) Result() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return Result{}, false
	}
	return *p.result, true
}

// Reset returns to Idle so a new attempt can be started.
func (p *Pairing) Reset() {
	p.mu.Lock()
	if p.state == StateAwaitingConfirmation {
		close(p.done)
	}
	p.state = StateIdle
	p.result = nil
	p.done = make(chan struct{})
	p.mu.Unlock()
	p.notify(StateIdle)
}
