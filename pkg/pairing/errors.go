package pairing

import "errors"

// Pairing errors.
var (
	// ErrPairingFailed is the reason of every failed pairing attempt.
	ErrPairingFailed = errors.New("pairing: pairing failed")

	// ErrTimeout is wrapped by ErrPairingFailed when no terminal status
	// arrives in time.
	ErrTimeout = errors.New("pairing: timed out waiting for confirmation")

	// ErrNotStarted is returned by Wait before Start.
	ErrNotStarted = errors.New("pairing: not started")

	// ErrAlreadyStarted is returned by Start outside the Idle state.
	ErrAlreadyStarted = errors.New("pairing: already started")

	// ErrMissingDependency is returned when Config lacks a Protocol or Sender.
	ErrMissingDependency = errors.New("pairing: protocol and sender are required")
)
