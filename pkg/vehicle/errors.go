package vehicle

import "errors"

// Vehicle connection errors.
var (
	// ErrConnectFailed is returned when the transport cannot connect.
	ErrConnectFailed = errors.New("vehicle: connect failed")

	// ErrNotConnected is returned by requests before Connect.
	ErrNotConnected = errors.New("vehicle: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("vehicle: connection closed")

	// ErrRequestTimeout is returned when no response arrives in time.
	ErrRequestTimeout = errors.New("vehicle: request timed out")

	// ErrUnexpectedResponse is returned when a response has the wrong kind.
	ErrUnexpectedResponse = errors.New("vehicle: unexpected response")

	// ErrPairingInProgress is returned by Pair while another attempt runs.
	ErrPairingInProgress = errors.New("vehicle: pairing already in progress")

	// ErrMissingDependency is returned when Config lacks a required field.
	ErrMissingDependency = errors.New("vehicle: transport and session manager are required")
)

// ErrActionFailed is returned when the vehicle executed a command and
// reported it as failed.
var ErrActionFailed = errors.New("vehicle: action failed")
