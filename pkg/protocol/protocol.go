// Package protocol builds framed vehicle commands and parses inbound frames
// into tagged results.
//
// Outbound, a command is encoded as a domain message, wrapped by the
// session.Manager for its domain and length-prefixed by the framing codec.
// Inbound, a complete frame is decoded as an envelope, routed to the
// session layer and decoded by the origin domain's message set.
//
//	Vehicle security:  UnsignedMessage -> ToVCSECMessage{SignatureType: NONE} -> Wrap(VehicleSecurity)
//	Infotainment:      carserver.Action -> Wrap(Infotainment)
//
// Handshake and pairing requests are sent unauthenticated.
package protocol

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/backkem/teslable/pkg/framing"
	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// Config configures a Protocol.
type Config struct {
	// Sessions wraps and unwraps authenticated messages. Required.
	Sessions *session.Manager

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Protocol builds and parses frames for one vehicle connection.
type Protocol struct {
	sessions *session.Manager
	log      logging.LeveledLogger
}

// Request is a framed outbound message.
type Request struct {
	// Domain is the envelope destination.
	Domain universal.Domain

	// UUID is the envelope uuid, echoed by the vehicle as request_uuid.
	UUID []byte

	// Frame is the length-prefixed envelope to write to the transport.
	Frame []byte
}

// New creates a Protocol bound to a session manager.
func New(config Config) (*Protocol, error) {
	if config.Sessions == nil {
		return nil, ErrNoSessionManager
	}
	p := &Protocol{sessions: config.Sessions}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("protocol")
	}
	return p, nil
}

// Sessions returns the session manager used by the protocol.
func (p *Protocol) Sessions() *session.Manager {
	return p.sessions
}

// encode frames msg as a Request.
func (p *Protocol) encode(domain universal.Domain, msg *universal.RoutableMessage) (*Request, error) {
	frame, err := framing.Encode(msg.Marshal())
	if err != nil {
		return nil, err
	}
	if p.log != nil {
		p.log.Tracef("built %d byte frame for domain %s", len(frame), domain)
	}
	return &Request{Domain: domain, UUID: msg.UUID, Frame: frame}, nil
}

// wrap authenticates payload for domain and frames it.
func (p *Protocol) wrap(domain universal.Domain, payload []byte) (*Request, error) {
	msg, err := p.sessions.Wrap(domain, payload)
	if err != nil {
		return nil, err
	}
	return p.encode(domain, msg)
}

// HandshakeRequest builds a session-info request for domain and moves the
// domain session to Handshaking.
func (p *Protocol) HandshakeRequest(domain universal.Domain) (*Request, error) {
	msg, err := p.sessions.PrepareHandshakeRequest(domain)
	if err != nil {
		return nil, err
	}
	return p.encode(domain, msg)
}

// PairingRequest builds the unauthenticated whitelist-add request carrying
// the local public key. The vehicle answers with command statuses until the
// user confirms or rejects the key.
func (p *Protocol) PairingRequest(formFactor vcsec.KeyFormFactor) (*Request, error) {
	op := &vcsec.UnsignedMessage{
		WhitelistOperation: &vcsec.WhitelistOperation{
			AddPublicKey:   p.sessions.PublicKey(),
			MetadataForKey: &vcsec.KeyMetadata{KeyFormFactor: formFactor},
		},
	}
	msg := &universal.RoutableMessage{
		ToDestination:          &universal.Destination{Domain: universal.DomainVehicleSecurity},
		FromDestination:        &universal.Destination{Domain: universal.DomainBroadcast},
		ProtobufMessageAsBytes: op.Marshal(),
	}
	return p.encode(universal.DomainVehicleSecurity, msg)
}

// security wraps an unsigned vehicle-security message.
func (p *Protocol) security(u *vcsec.UnsignedMessage) (*Request, error) {
	return p.wrap(universal.DomainVehicleSecurity, vcsec.NewUnsignedRequest(u).Marshal())
}

func (p *Protocol) rke(action vcsec.RKEAction) (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{RKEAction: &action})
}

// Wake wakes the vehicle.
func (p *Protocol) Wake() (*Request, error) {
	return p.rke(vcsec.RKEActionWakeVehicle)
}

// Lock locks the vehicle.
func (p *Protocol) Lock() (*Request, error) {
	return p.rke(vcsec.RKEActionLock)
}

// Unlock unlocks the vehicle.
func (p *Protocol) Unlock() (*Request, error) {
	return p.rke(vcsec.RKEActionUnlock)
}

// OpenTrunk opens the rear trunk.
func (p *Protocol) OpenTrunk() (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{
		ClosureMoveRequest: &vcsec.ClosureMoveRequest{RearTrunk: vcsec.ClosureMoveTypeOpen},
	})
}

// CloseTrunk closes the rear trunk.
func (p *Protocol) CloseTrunk() (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{
		ClosureMoveRequest: &vcsec.ClosureMoveRequest{RearTrunk: vcsec.ClosureMoveTypeClose},
	})
}

// OpenFrunk opens the front trunk.
func (p *Protocol) OpenFrunk() (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{
		ClosureMoveRequest: &vcsec.ClosureMoveRequest{FrontTrunk: vcsec.ClosureMoveTypeOpen},
	})
}

// OpenChargePort opens the charge port door.
func (p *Protocol) OpenChargePort() (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{
		ClosureMoveRequest: &vcsec.ClosureMoveRequest{ChargePort: vcsec.ClosureMoveTypeOpen},
	})
}

// CloseChargePort closes the charge port door.
func (p *Protocol) CloseChargePort() (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{
		ClosureMoveRequest: &vcsec.ClosureMoveRequest{ChargePort: vcsec.ClosureMoveTypeClose},
	})
}

// VehicleSecurityStatus requests lock, sleep and closure status.
func (p *Protocol) VehicleSecurityStatus() (*Request, error) {
	return p.security(&vcsec.UnsignedMessage{
		InformationRequest: &vcsec.InformationRequest{Type: vcsec.InformationRequestTypeGetStatus},
	})
}

// action wraps an infotainment vehicle action.
func (p *Protocol) action(a *carserver.VehicleAction) (*Request, error) {
	return p.wrap(universal.DomainInfotainment, (&carserver.Action{VehicleAction: a}).Marshal())
}

// InfotainmentPoll requests the charge, climate and closures snapshots.
func (p *Protocol) InfotainmentPoll() (*Request, error) {
	return p.action(&carserver.VehicleAction{
		GetVehicleData: &carserver.GetVehicleData{
			ChargeState:   true,
			ClimateState:  true,
			ClosuresState: true,
		},
	})
}

// SetClimate turns automatic climate control on or off.
func (p *Protocol) SetClimate(on bool) (*Request, error) {
	return p.action(&carserver.VehicleAction{
		HvacAuto: &carserver.HvacAutoAction{PowerOn: on},
	})
}

// SetCharging starts or stops charging.
func (p *Protocol) SetCharging(start bool) (*Request, error) {
	c := carserver.ChargingStop
	if start {
		c = carserver.ChargingStart
	}
	return p.action(&carserver.VehicleAction{ChargingStartStop: &c})
}

// SetChargeLimit sets the charge limit in percent.
func (p *Protocol) SetChargeLimit(percent int32) (*Request, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: charge limit %d%%", ErrInvalidArgument, percent)
	}
	return p.action(&carserver.VehicleAction{ChargingSetLimit: &percent})
}

// SetChargingAmps sets the charging current in amps.
func (p *Protocol) SetChargingAmps(amps int32) (*Request, error) {
	if amps < 0 {
		return nil, fmt.Errorf("%w: charging amps %d", ErrInvalidArgument, amps)
	}
	return p.action(&carserver.VehicleAction{SetChargingAmps: &amps})
}
