// Package transport defines the byte-chunk transport the vehicle protocol
// runs over, together with an in-memory GATT link for tests and a paced
// chunk writer.
//
// A vehicle exposes one GATT service with a write-only characteristic
// (client to vehicle) and a notify-only characteristic (vehicle to client).
// Neither carries message boundaries: writes and notifications are opaque
// chunks, reassembled by the framing codec above this layer.
package transport

import "context"

// GATT identifiers of the vehicle's BLE service.
const (
	ServiceUUID            = "00000211-b2d1-43f0-9b88-960cebf8b91e"
	WriteCharacteristicID  = "00000212-b2d1-43f0-9b88-960cebf8b91e"
	NotifyCharacteristicID = "00000213-b2d1-43f0-9b88-960cebf8b91e"
)

// DefaultMTU is the conservative ATT payload size used when the negotiated
// MTU is unknown.
const DefaultMTU = 20

// NotificationHandler receives one notification chunk; the chunk is owned
// by the handler. A handler may block to push back on a fast peer, so
// implementations call it without holding locks that Write or Disconnect
// need.
type NotificationHandler func(chunk []byte)

// Transport is a connected pair of GATT characteristics.
//
// Implementations deliver notifications to the registered handler in
// arrival order, from a single goroutine.
type Transport interface {
	// Connect connects to the device at address and subscribes to
	// notifications. It reports whether the connection is usable.
	Connect(ctx context.Context, address string) bool

	// Disconnect tears down the connection. It is idempotent.
	Disconnect()

	// IsConnected reports whether Write can be used.
	IsConnected() bool

	// Write writes one chunk to the write characteristic.
	Write(ctx context.Context, chunk []byte) error

	// RegisterNotificationCallback sets the handler for notify
	// characteristic chunks, replacing any previous handler.
	RegisterNotificationCallback(handler NotificationHandler)
}
