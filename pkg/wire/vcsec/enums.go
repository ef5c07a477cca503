// Package vcsec implements the messages of the vehicle-security sub-protocol
// spoken with the VCSEC domain: remote keyless entry actions, closure moves,
// status queries and whitelist (key pairing) operations.
package vcsec

import "fmt"

// SignatureType of a SignedMessage.
type SignatureType int32

const (
	SignatureTypeNone       SignatureType = 0
	SignatureTypePresentKey SignatureType = 2
)

// KeyFormFactor describes the kind of key being whitelisted.
type KeyFormFactor int32

const (
	KeyFormFactorUnknown  KeyFormFactor = 0
	KeyFormFactorCloudKey KeyFormFactor = 9
)

// InformationRequestType selects what an InformationRequest asks for.
type InformationRequestType int32

const (
	InformationRequestTypeGetStatus InformationRequestType = 0
)

// RKEAction is a remote keyless entry action.
type RKEAction int32

const (
	RKEActionUnlock          RKEAction = 0
	RKEActionLock            RKEAction = 1
	RKEActionOpenTrunk       RKEAction = 2
	RKEActionOpenFrunk       RKEAction = 3
	RKEActionOpenChargePort  RKEAction = 4
	RKEActionCloseChargePort RKEAction = 5
	RKEActionWakeVehicle     RKEAction = 30
)

// String returns the action name.
func (a RKEAction) String() string {
	switch a {
	case RKEActionUnlock:
		return "UNLOCK"
	case RKEActionLock:
		return "LOCK"
	case RKEActionOpenTrunk:
		return "OPEN_TRUNK"
	case RKEActionOpenFrunk:
		return "OPEN_FRUNK"
	case RKEActionOpenChargePort:
		return "OPEN_CHARGE_PORT"
	case RKEActionCloseChargePort:
		return "CLOSE_CHARGE_PORT"
	case RKEActionWakeVehicle:
		return "WAKE_VEHICLE"
	default:
		return fmt.Sprintf("RKEAction(%d)", int32(a))
	}
}

// ClosureMoveType is the requested movement of a closure.
type ClosureMoveType int32

const (
	ClosureMoveTypeNone  ClosureMoveType = 0
	ClosureMoveTypeMove  ClosureMoveType = 1
	ClosureMoveTypeStop  ClosureMoveType = 2
	ClosureMoveTypeOpen  ClosureMoveType = 3
	ClosureMoveTypeClose ClosureMoveType = 4
)

// OperationStatus is the outcome of a VCSEC command.
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

// WhitelistOperationInformation explains the result of a whitelist operation.
type WhitelistOperationInformation int32

const (
	WhitelistInfoNone                        WhitelistOperationInformation = 0
	WhitelistInfoUndocumentedError           WhitelistOperationInformation = 1
	WhitelistInfoNoPermissionToRemoveOneself WhitelistOperationInformation = 2
	WhitelistInfoKeyfobSlotsFull             WhitelistOperationInformation = 3
	WhitelistInfoWhitelistFull               WhitelistOperationInformation = 4
	WhitelistInfoNoPermissionToAdd           WhitelistOperationInformation = 5
	WhitelistInfoInvalidPublicKey            WhitelistOperationInformation = 6
	WhitelistInfoNoPermissionToRemove        WhitelistOperationInformation = 7
	WhitelistInfoPublicKeyNotOnWhitelist     WhitelistOperationInformation = 12
	WhitelistInfoKeyAlreadyOnWhitelist       WhitelistOperationInformation = 13
	WhitelistInfoNotAllowedUnlessOnReader    WhitelistOperationInformation = 14
)

var whitelistInfoNames = map[WhitelistOperationInformation]string{
	WhitelistInfoNone:                        "NONE",
	WhitelistInfoUndocumentedError:           "UNDOCUMENTED_ERROR",
	WhitelistInfoNoPermissionToRemoveOneself: "NO_PERMISSION_TO_REMOVE_ONESELF",
	WhitelistInfoKeyfobSlotsFull:             "KEYFOB_SLOTS_FULL",
	WhitelistInfoWhitelistFull:               "WHITELIST_FULL",
	WhitelistInfoNoPermissionToAdd:           "NO_PERMISSION_TO_ADD",
	WhitelistInfoInvalidPublicKey:            "INVALID_PUBLIC_KEY",
	WhitelistInfoNoPermissionToRemove:        "NO_PERMISSION_TO_REMOVE",
	WhitelistInfoPublicKeyNotOnWhitelist:     "PUBLIC_KEY_NOT_ON_WHITELIST",
	WhitelistInfoKeyAlreadyOnWhitelist:       "KEY_ALREADY_ON_WHITELIST",
	WhitelistInfoNotAllowedUnlessOnReader:    "NOT_ALLOWED_TO_ADD_UNLESS_ON_READER",
}

// String returns the information code name.
func (w WhitelistOperationInformation) String() string {
	if name, ok := whitelistInfoNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WhitelistOperationInformation(%d)", int32(w))
}

// SignedMessageInformation is the VCSEC-level fault of a signed message.
type SignedMessageInformation int32

const (
	SignedMessageInfoNone                SignedMessageInformation = 0
	SignedMessageInfoFaultUnknown        SignedMessageInformation = 1
	SignedMessageInfoFaultNotOnWhitelist SignedMessageInformation = 2
	SignedMessageInfoFaultIVSmaller      SignedMessageInformation = 3
	SignedMessageInfoFaultInvalidToken   SignedMessageInformation = 4
)

// GenericError is the code carried by a NominalError.
type GenericError int32

const (
	GenericErrorNone                    GenericError = 0
	GenericErrorUnknown                 GenericError = 1
	GenericErrorClosuresOpen            GenericError = 2
	GenericErrorAlreadyOn               GenericError = 3
	GenericErrorDisabledForUserCommand  GenericError = 4
	GenericErrorVehicleNotInPark        GenericError = 5
	GenericErrorUnauthorized            GenericError = 6
	GenericErrorNotAllowedOverTransport GenericError = 7
)

var genericErrorNames = map[GenericError]string{
	GenericErrorNone:                    "NONE",
	GenericErrorUnknown:                 "UNKNOWN",
	GenericErrorClosuresOpen:            "CLOSURES_OPEN",
	GenericErrorAlreadyOn:               "ALREADY_ON",
	GenericErrorDisabledForUserCommand:  "DISABLED_FOR_USER_COMMAND",
	GenericErrorVehicleNotInPark:        "VEHICLE_NOT_IN_PARK",
	GenericErrorUnauthorized:            "UNAUTHORIZED",
	GenericErrorNotAllowedOverTransport: "NOT_ALLOWED_OVER_TRANSPORT",
}

// String returns the error code name.
func (e GenericError) String() string {
	if name, ok := genericErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("GenericError(%d)", int32(e))
}

// VehicleLockState is the lock state reported in VehicleStatus.
type VehicleLockState int32

const (
	VehicleLockStateUnlocked          VehicleLockState = 0
	VehicleLockStateLocked            VehicleLockState = 1
	VehicleLockStateInternalLocked    VehicleLockState = 2
	VehicleLockStateSelectiveUnlocked VehicleLockState = 3
)

// String returns the lock state name.
func (s VehicleLockState) String() string {
	switch s {
	case VehicleLockStateUnlocked:
		return "UNLOCKED"
	case VehicleLockStateLocked:
		return "LOCKED"
	case VehicleLockStateInternalLocked:
		return "INTERNAL_LOCKED"
	case VehicleLockStateSelectiveUnlocked:
		return "SELECTIVE_UNLOCKED"
	default:
		return fmt.Sprintf("VehicleLockState(%d)", int32(s))
	}
}

// IsLocked reports whether the doors are locked from the outside.
func (s VehicleLockState) IsLocked() bool {
	return s == VehicleLockStateLocked || s == VehicleLockStateInternalLocked
}

// SleepStatus is the vehicle's sleep state.
type SleepStatus int32

const (
	SleepStatusUnknown SleepStatus = 0
	SleepStatusAwake   SleepStatus = 1
	SleepStatusAsleep  SleepStatus = 2
)

// String returns the sleep status name.
func (s SleepStatus) String() string {
	switch s {
	case SleepStatusUnknown:
		return "UNKNOWN"
	case SleepStatusAwake:
		return "AWAKE"
	case SleepStatusAsleep:
		return "ASLEEP"
	default:
		return fmt.Sprintf("SleepStatus(%d)", int32(s))
	}
}

// UserPresence reports whether someone is in the vehicle.
type UserPresence int32

const (
	UserPresenceUnknown    UserPresence = 0
	UserPresenceNotPresent UserPresence = 1
	UserPresencePresent    UserPresence = 2
)

// ClosureState is the state of a door, trunk or port.
type ClosureState int32

const (
	ClosureStateClosed        ClosureState = 0
	ClosureStateOpen          ClosureState = 1
	ClosureStateAjar          ClosureState = 2
	ClosureStateUnknown       ClosureState = 3
	ClosureStateFailedUnlatch ClosureState = 4
	ClosureStateOpening       ClosureState = 5
	ClosureStateClosing       ClosureState = 6
)

// String returns the closure state name.
func (s ClosureState) String() string {
	switch s {
	case ClosureStateClosed:
		return "CLOSED"
	case ClosureStateOpen:
		return "OPEN"
	case ClosureStateAjar:
		return "AJAR"
	case ClosureStateUnknown:
		return "UNKNOWN"
	case ClosureStateFailedUnlatch:
		return "FAILED_UNLATCH"
	case ClosureStateOpening:
		return "OPENING"
	case ClosureStateClosing:
		return "CLOSING"
	default:
		return fmt.Sprintf("ClosureState(%d)", int32(s))
	}
}

// IsOpen reports whether the closure is not fully closed.
func (s ClosureState) IsOpen() bool {
	switch s {
	case ClosureStateOpen, ClosureStateAjar, ClosureStateOpening, ClosureStateFailedUnlatch:
		return true
	}
	return false
}
