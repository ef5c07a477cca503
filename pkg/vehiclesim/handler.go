package vehiclesim

import (
	"bytes"
	"errors"
	"time"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// Charge limit and current bounds accepted by the infotainment domain.
const (
	MinChargeLimit  = 50
	MaxChargeLimit  = 100
	MaxChargingAmps = 48
)

// handleFrame processes one inbound frame and returns the reply, if any.
func (s *Simulator) handleFrame(frame []byte) *universal.RoutableMessage {
	msg, err := universal.Unmarshal(frame)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("dropping undecodable frame: %v", err)
		}
		return nil
	}
	if msg.ToDestination == nil || msg.ToDestination.RoutingAddress != nil {
		return nil
	}
	domain := msg.ToDestination.Domain

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.epochs[domain]; !ok {
		return faultReply(msg, domain, universal.MessageFaultInvalidDomains)
	}
	switch {
	case msg.SessionInfoRequest != nil:
		return s.handshake(msg, domain)
	case msg.SignatureData != nil && msg.SignatureData.AESGCMPersonalized != nil:
		return s.authenticated(msg, domain)
	case domain == universal.DomainVehicleSecurity:
		return s.unsigned(msg)
	default:
		return faultReply(msg, domain, universal.MessageFaultInvalidSignature)
	}
}

func (s *Simulator) handshake(msg *universal.RoutableMessage, domain universal.Domain) *universal.RoutableMessage {
	pub := msg.SessionInfoRequest.PublicKey
	info := &universal.SessionInfo{Status: universal.SessionInfoStatusKeyNotOnWhitelist}
	var peer *session.Peer
	if _, ok := s.whitelist[keyString(pub)]; ok {
		secret, err := s.keyPair.ECDH(pub)
		if err != nil {
			return faultReply(msg, domain, universal.MessageFaultBadParameter)
		}
		key := peerKey{domain: domain, keyID: crypto.DeriveKeyID(pub)}
		epoch := s.epochs[domain]

		var counter uint32
		if old := s.peers[key]; old != nil && bytes.Equal(old.Epoch, epoch) {
			counter = old.Counter
		}
		peer, err = session.NewPeer(domain, secret, epoch, counter, key.keyID, s.keyPair.KeyID())
		if err != nil {
			return faultReply(msg, domain, universal.MessageFaultInternal)
		}
		s.peers[key] = peer

		info = &universal.SessionInfo{
			Counter:   counter,
			PublicKey: s.keyPair.PublicKey(),
			Epoch:     epoch,
			ClockTime: uint32(time.Since(s.clock) / time.Second),
			Status:    universal.SessionInfoStatusOK,
		}
	}
	if s.log != nil {
		s.log.Debugf("%s: session info %s", domain, info.Status)
	}
	reply := &universal.RoutableMessage{
		ToDestination:   &universal.Destination{Domain: universal.DomainBroadcast},
		FromDestination: &universal.Destination{Domain: domain},
		SessionInfo:     info.Marshal(),
		RequestUUID:     msg.UUID,
	}
	if peer != nil {
		tag := peer.SignSessionInfo(msg.SessionInfoRequest.Challenge, reply.SessionInfo)
		reply.SignatureData = &universal.SignatureData{SessionInfoTag: tag}
	}
	return reply
}

func (s *Simulator) authenticated(msg *universal.RoutableMessage, domain universal.Domain) *universal.RoutableMessage {
	signer := msg.SignatureData.SignerIdentity
	if signer == nil {
		return faultReply(msg, domain, universal.MessageFaultUnknownKeyID)
	}
	if _, ok := s.whitelist[keyString(signer.PublicKey)]; !ok {
		return faultReply(msg, domain, universal.MessageFaultUnknownKeyID)
	}
	peer := s.peers[peerKey{domain: domain, keyID: crypto.DeriveKeyID(signer.PublicKey)}]
	if peer == nil || !bytes.Equal(peer.Epoch, s.epochs[domain]) {
		return faultReply(msg, domain, universal.MessageFaultIncorrectEpoch)
	}

	plaintext, err := peer.OpenRequest(msg)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("%s: rejecting request: %v", domain, err)
		}
		return faultReply(msg, domain, openFault(err))
	}

	var payload []byte
	if domain == universal.DomainVehicleSecurity {
		payload, err = s.executeSecurity(plaintext)
	} else {
		payload, err = s.executeInfotainment(plaintext)
	}
	if err != nil {
		return faultReply(msg, domain, universal.MessageFaultDecoding)
	}

	ciphertext, sig, err := peer.SealResponse(payload)
	if err != nil {
		return faultReply(msg, domain, universal.MessageFaultInternal)
	}
	return &universal.RoutableMessage{
		ToDestination:          &universal.Destination{Domain: universal.DomainBroadcast},
		FromDestination:        &universal.Destination{Domain: domain},
		ProtobufMessageAsBytes: ciphertext,
		SignatureData:          &universal.SignatureData{AESGCMResponse: sig},
		RequestUUID:            msg.UUID,
	}
}

func openFault(err error) universal.MessageFault {
	switch {
	case errors.Is(err, session.ErrIncorrectEpoch):
		return universal.MessageFaultIncorrectEpoch
	case errors.Is(err, session.ErrStaleCounter):
		return universal.MessageFaultInvalidTokenOrCounter
	case errors.Is(err, session.ErrAuthenticationFailed):
		return universal.MessageFaultInvalidSignature
	case errors.Is(err, crypto.ErrInvalidNonceSize):
		return universal.MessageFaultIVIncorrectLength
	default:
		return universal.MessageFaultDecoding
	}
}

// unsigned handles a plaintext VCSEC envelope: a pairing request or a
// status query.
func (s *Simulator) unsigned(msg *universal.RoutableMessage) *universal.RoutableMessage {
	u, err := unsignedMessage(msg.ProtobufMessageAsBytes)
	if err != nil {
		return faultReply(msg, universal.DomainVehicleSecurity, universal.MessageFaultDecoding)
	}

	var out *vcsec.FromVCSECMessage
	switch {
	case u.WhitelistOperation != nil && u.WhitelistOperation.AddPublicKey != nil:
		return s.pair(u.WhitelistOperation.AddPublicKey)
	case u.InformationRequest != nil:
		out = &vcsec.FromVCSECMessage{VehicleStatus: s.state.vehicleStatus()}
	default:
		out = &vcsec.FromVCSECMessage{NominalError: &vcsec.NominalError{GenericError: vcsec.GenericErrorUnauthorized}}
	}
	return plainReply(msg.UUID, out)
}

// unsignedMessage accepts both a ToVCSECMessage wrapper and a bare
// UnsignedMessage.
func unsignedMessage(b []byte) (*vcsec.UnsignedMessage, error) {
	var to vcsec.ToVCSECMessage
	if err := to.Unmarshal(b); err == nil && to.SignedMessage != nil {
		b = to.SignedMessage.ProtobufMessageAsBytes
	}
	u := &vcsec.UnsignedMessage{}
	if err := u.Unmarshal(b); err != nil {
		return nil, err
	}
	return u, nil
}

// pair answers a whitelist request. Replies carry no request UUID; the
// client correlates them by domain.
func (s *Simulator) pair(pub []byte) *universal.RoutableMessage {
	key := keyString(pub)
	if err := crypto.ValidatePublicKey(pub); err != nil {
		return plainReply(nil, whitelistStatus(vcsec.OperationStatusError, vcsec.WhitelistInfoInvalidPublicKey))
	}
	if _, ok := s.whitelist[key]; ok {
		return plainReply(nil, whitelistStatus(vcsec.OperationStatusOK, vcsec.WhitelistInfoKeyAlreadyOnWhitelist))
	}

	if s.log != nil {
		s.log.Infof("pairing request (%s)", s.pairingMode)
	}
	switch s.pairingMode {
	case PairingReject:
		return plainReply(nil, whitelistStatus(vcsec.OperationStatusError, vcsec.WhitelistInfoNoPermissionToAdd))
	case PairingAccept:
		s.after(s.confirmDelay, func() {
			s.mu.Lock()
			s.whitelist[key] = append([]byte(nil), pub...)
			s.mu.Unlock()
			if s.log != nil {
				s.log.Infof("key confirmed on keycard")
			}
			s.send(plainReply(nil, whitelistStatus(vcsec.OperationStatusOK, vcsec.WhitelistInfoNone)))
		})
	}
	return plainReply(nil, whitelistStatus(vcsec.OperationStatusWait, vcsec.WhitelistInfoNone))
}

func whitelistStatus(status vcsec.OperationStatus, info vcsec.WhitelistOperationInformation) *vcsec.FromVCSECMessage {
	return &vcsec.FromVCSECMessage{
		CommandStatus: &vcsec.CommandStatus{
			OperationStatus: status,
			WhitelistOperationStatus: &vcsec.WhitelistOperationStatus{
				WhitelistOperationInformation: info,
				OperationStatus:               status,
			},
		},
	}
}

func (s *Simulator) executeSecurity(plaintext []byte) ([]byte, error) {
	var to vcsec.ToVCSECMessage
	if err := to.Unmarshal(plaintext); err != nil {
		return nil, err
	}
	if to.SignedMessage == nil {
		return nil, errMalformed
	}
	var u vcsec.UnsignedMessage
	if err := u.Unmarshal(to.SignedMessage.ProtobufMessageAsBytes); err != nil {
		return nil, err
	}

	st := &s.state
	ok := &vcsec.FromVCSECMessage{CommandStatus: &vcsec.CommandStatus{OperationStatus: vcsec.OperationStatusOK}}
	switch {
	case u.InformationRequest != nil:
		return (&vcsec.FromVCSECMessage{VehicleStatus: st.vehicleStatus()}).Marshal(), nil
	case u.RKEAction != nil:
		if s.log != nil {
			s.log.Debugf("RKE action %s", *u.RKEAction)
		}
		if !st.applyRKE(*u.RKEAction) {
			return (&vcsec.FromVCSECMessage{NominalError: &vcsec.NominalError{GenericError: vcsec.GenericErrorUnknown}}).Marshal(), nil
		}
	case u.ClosureMoveRequest != nil:
		if !st.applyClosureMove(u.ClosureMoveRequest) {
			return (&vcsec.FromVCSECMessage{CommandStatus: &vcsec.CommandStatus{OperationStatus: vcsec.OperationStatusError}}).Marshal(), nil
		}
	case u.WhitelistOperation != nil && u.WhitelistOperation.AddPublicKey != nil:
		pub := u.WhitelistOperation.AddPublicKey
		s.whitelist[keyString(pub)] = append([]byte(nil), pub...)
		ok = whitelistStatus(vcsec.OperationStatusOK, vcsec.WhitelistInfoNone)
	case u.WhitelistOperation != nil && u.WhitelistOperation.RemovePublicKey != nil:
		delete(s.whitelist, keyString(u.WhitelistOperation.RemovePublicKey))
		ok = whitelistStatus(vcsec.OperationStatusOK, vcsec.WhitelistInfoNone)
	default:
		return nil, errMalformed
	}
	return ok.Marshal(), nil
}

func (s *Simulator) executeInfotainment(plaintext []byte) ([]byte, error) {
	var action carserver.Action
	if err := action.Unmarshal(plaintext); err != nil {
		return nil, err
	}
	va := action.VehicleAction
	if va == nil {
		return nil, errMalformed
	}

	st := &s.state
	if st.Asleep {
		return actionError("vehicle_unavailable"), nil
	}
	switch {
	case va.GetVehicleData != nil:
		return (&carserver.Response{
			ActionStatus: &carserver.ActionStatus{Result: carserver.ActionResultOK},
			VehicleData:  st.vehicleData(va.GetVehicleData),
		}).Marshal(), nil
	case va.ChargingSetLimit != nil:
		limit := *va.ChargingSetLimit
		if limit < MinChargeLimit || limit > MaxChargeLimit {
			return actionError("invalid_charge_limit"), nil
		}
		st.ChargeLimit = limit
	case va.ChargingStartStop != nil:
		start := *va.ChargingStartStop != carserver.ChargingStop
		switch {
		case start && st.Charging:
			return actionError("is_charging"), nil
		case !start && !st.Charging:
			return actionError("not_charging"), nil
		}
		st.Charging = start
	case va.HvacAuto != nil:
		st.ClimateOn = va.HvacAuto.PowerOn
	case va.SetChargingAmps != nil:
		amps := *va.SetChargingAmps
		if amps < 0 || amps > MaxChargingAmps {
			return actionError("invalid_charging_amps"), nil
		}
		st.ChargingAmps = amps
	default:
		return nil, errMalformed
	}
	return (&carserver.Response{
		ActionStatus: &carserver.ActionStatus{Result: carserver.ActionResultOK},
	}).Marshal(), nil
}

func actionError(reason string) []byte {
	return (&carserver.Response{
		ActionStatus: &carserver.ActionStatus{Result: carserver.ActionResultError, Reason: reason},
	}).Marshal()
}

func faultReply(msg *universal.RoutableMessage, domain universal.Domain, fault universal.MessageFault) *universal.RoutableMessage {
	return &universal.RoutableMessage{
		ToDestination:   &universal.Destination{Domain: universal.DomainBroadcast},
		FromDestination: &universal.Destination{Domain: domain},
		SignedMessageStatus: &universal.MessageStatus{
			OperationStatus:    universal.OperationStatusError,
			SignedMessageFault: fault,
		},
		RequestUUID: msg.UUID,
	}
}

func plainReply(requestUUID []byte, out *vcsec.FromVCSECMessage) *universal.RoutableMessage {
	return &universal.RoutableMessage{
		ToDestination:          &universal.Destination{Domain: universal.DomainBroadcast},
		FromDestination:        &universal.Destination{Domain: universal.DomainVehicleSecurity},
		ProtobufMessageAsBytes: out.Marshal(),
		RequestUUID:            requestUUID,
	}
}
