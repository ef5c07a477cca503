package protocol

import (
	"fmt"

	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// Kind tags which field of a Result is populated.
type Kind int

const (
	// KindUnknown is a well-formed message with no recognized content.
	KindUnknown Kind = iota
	// KindSessionInfo is a handshake response; SessionInfo is set.
	KindSessionInfo
	// KindMessageFault is an error status without a decodable payload.
	KindMessageFault
	// KindVehicleStatus is a vehicle-security status report.
	KindVehicleStatus
	// KindCommandStatus is a vehicle-security command or whitelist status.
	KindCommandStatus
	// KindWhitelistInfo lists the vehicle's whitelisted keys.
	KindWhitelistInfo
	// KindWhitelistEntryInfo describes one whitelisted key.
	KindWhitelistEntryInfo
	// KindNominalError is a vehicle-security generic error.
	KindNominalError
	// KindActionStatus is an infotainment response with only an action status.
	KindActionStatus
	// KindVehicleData is an infotainment vehicle-data snapshot.
	KindVehicleData
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	KindSessionInfo:        "SessionInfo",
	KindMessageFault:       "MessageFault",
	KindVehicleStatus:      "VehicleStatus",
	KindCommandStatus:      "CommandStatus",
	KindWhitelistInfo:      "WhitelistInfo",
	KindWhitelistEntryInfo: "WhitelistEntryInfo",
	KindNominalError:       "NominalError",
	KindActionStatus:       "ActionStatus",
	KindVehicleData:        "VehicleData",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result is a parsed inbound frame. Exactly the field named by Kind is set;
// ActionStatus is also set alongside VehicleData when the vehicle sends both.
type Result struct {
	Domain universal.Domain
	Kind   Kind

	RequestUUID []byte
	UUID        []byte

	// Status is set when the envelope carried an error status.
	Status *session.StatusError

	SessionInfo *universal.SessionInfo

	VehicleStatus      *vcsec.VehicleStatus
	CommandStatus      *vcsec.CommandStatus
	WhitelistInfo      *vcsec.WhitelistInfo
	WhitelistEntryInfo *vcsec.WhitelistEntryInfo
	NominalError       *vcsec.NominalError

	ActionStatus *carserver.ActionStatus
	VehicleData  *carserver.VehicleData
}

// Err returns the error status carried by the result, or nil.
func (r *Result) Err() error {
	if r.Status == nil {
		return nil
	}
	return r.Status
}

func (r *Result) setVCSEC(m *vcsec.FromVCSECMessage) {
	switch {
	case m.VehicleStatus != nil:
		r.Kind = KindVehicleStatus
		r.VehicleStatus = m.VehicleStatus
	case m.CommandStatus != nil:
		r.Kind = KindCommandStatus
		r.CommandStatus = m.CommandStatus
	case m.WhitelistInfo != nil:
		r.Kind = KindWhitelistInfo
		r.WhitelistInfo = m.WhitelistInfo
	case m.WhitelistEntryInfo != nil:
		r.Kind = KindWhitelistEntryInfo
		r.WhitelistEntryInfo = m.WhitelistEntryInfo
	case m.NominalError != nil:
		r.Kind = KindNominalError
		r.NominalError = m.NominalError
	}
}

func (r *Result) setCarServer(m *carserver.Response) {
	r.ActionStatus = m.ActionStatus
	switch {
	case m.VehicleData != nil:
		r.Kind = KindVehicleData
		r.VehicleData = m.VehicleData
	case m.ActionStatus != nil:
		r.Kind = KindActionStatus
	}
}
