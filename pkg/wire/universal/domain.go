// Package universal implements the outer envelope of the vehicle protocol
// (RoutableMessage) together with the session-info handshake messages and
// signature metadata carried alongside encrypted payloads.
//
// Field numbers follow the vehicle's universal_message.proto and
// signatures.proto definitions.
package universal

import "fmt"

// Domain identifies a logical endpoint inside the vehicle.
type Domain int32

const (
	// DomainBroadcast is the unaddressed origin used by clients.
	DomainBroadcast Domain = 0
	// DomainVehicleSecurity is the security controller (VCSEC).
	DomainVehicleSecurity Domain = 2
	// DomainInfotainment is the infotainment computer (CarServer).
	DomainInfotainment Domain = 3
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case DomainBroadcast:
		return "Broadcast"
	case DomainVehicleSecurity:
		return "VehicleSecurity"
	case DomainInfotainment:
		return "Infotainment"
	default:
		return fmt.Sprintf("Domain(%d)", int32(d))
	}
}

// OperationStatus is the outcome class of a signed message.
type OperationStatus int32

const (
	OperationStatusOK    OperationStatus = 0
	OperationStatusWait  OperationStatus = 1
	OperationStatusError OperationStatus = 2
)

// String returns the status name.
func (s OperationStatus) String() string {
	switch s {
	case OperationStatusOK:
		return "OK"
	case OperationStatusWait:
		return "WAIT"
	case OperationStatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("OperationStatus(%d)", int32(s))
	}
}

// MessageFault describes why the vehicle rejected a signed message.
type MessageFault int32

const (
	MessageFaultNone                   MessageFault = 0
	MessageFaultBusy                   MessageFault = 1
	MessageFaultTimeout                MessageFault = 2
	MessageFaultUnknownKeyID           MessageFault = 3
	MessageFaultInactiveKey            MessageFault = 4
	MessageFaultInvalidSignature       MessageFault = 5
	MessageFaultInvalidTokenOrCounter  MessageFault = 6
	MessageFaultInsufficientPrivileges MessageFault = 7
	MessageFaultInvalidDomains         MessageFault = 8
	MessageFaultInvalidCommand         MessageFault = 9
	MessageFaultDecoding               MessageFault = 10
	MessageFaultInternal               MessageFault = 11
	MessageFaultWrongPersonalization   MessageFault = 12
	MessageFaultBadParameter           MessageFault = 13
	MessageFaultKeychainIsFull         MessageFault = 14
	MessageFaultIncorrectEpoch         MessageFault = 15
	MessageFaultIVIncorrectLength      MessageFault = 16
	MessageFaultTimeExpired            MessageFault = 17
)

var messageFaultNames = map[MessageFault]string{
	MessageFaultNone:                   "NONE",
	MessageFaultBusy:                   "BUSY",
	MessageFaultTimeout:                "TIMEOUT",
	MessageFaultUnknownKeyID:           "UNKNOWN_KEY_ID",
	MessageFaultInactiveKey:            "INACTIVE_KEY",
	MessageFaultInvalidSignature:       "INVALID_SIGNATURE",
	MessageFaultInvalidTokenOrCounter:  "INVALID_TOKEN_OR_COUNTER",
	MessageFaultInsufficientPrivileges: "INSUFFICIENT_PRIVILEGES",
	MessageFaultInvalidDomains:         "INVALID_DOMAINS",
	MessageFaultInvalidCommand:         "INVALID_COMMAND",
	MessageFaultDecoding:               "DECODING",
	MessageFaultInternal:               "INTERNAL",
	MessageFaultWrongPersonalization:   "WRONG_PERSONALIZATION",
	MessageFaultBadParameter:           "BAD_PARAMETER",
	MessageFaultKeychainIsFull:         "KEYCHAIN_IS_FULL",
	MessageFaultIncorrectEpoch:         "INCORRECT_EPOCH",
	MessageFaultIVIncorrectLength:      "IV_INCORRECT_LENGTH",
	MessageFaultTimeExpired:            "TIME_EXPIRED",
}

// String returns the fault name.
func (f MessageFault) String() string {
	if name, ok := messageFaultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("MessageFault(%d)", int32(f))
}

// InvalidatesSession reports whether the fault means the local session
// state no longer matches the vehicle's and a new handshake is required.
func (f MessageFault) InvalidatesSession() bool {
	return f == MessageFaultInvalidTokenOrCounter || f == MessageFaultIncorrectEpoch
}

// Flag is a bit position in RoutableMessage.Flags.
type Flag uint32

const (
	FlagUserCommand     Flag = 0
	FlagEncryptResponse Flag = 1
)

// Mask returns the flag as a bit mask.
func (f Flag) Mask() uint32 {
	return 1 << f
}
