package protocol

import (
	"errors"

	"github.com/backkem/teslable/pkg/session"
	"github.com/backkem/teslable/pkg/wire/carserver"
	"github.com/backkem/teslable/pkg/wire/universal"
	"github.com/backkem/teslable/pkg/wire/vcsec"
)

// Parse decodes one reassembled frame payload (without its length prefix).
//
// Session-info envelopes complete the handshake of their origin domain.
// Other envelopes are unwrapped by the session layer and decoded by the
// origin domain's message set. An envelope with an error status yields a
// Result with Status set rather than an error. Every failure is returned as
// a *ParseError.
func (p *Protocol) Parse(frame []byte) (*Result, error) {
	msg, err := universal.Unmarshal(frame)
	if err != nil {
		return nil, p.fail(&ParseError{Layer: LayerEnvelope, Err: err})
	}
	domain, err := msg.Origin()
	if err != nil {
		return nil, p.fail(&ParseError{Layer: LayerEnvelope, RequestUUID: msg.RequestUUID, Err: err})
	}

	res := &Result{
		Domain:      domain,
		RequestUUID: msg.RequestUUID,
		UUID:        msg.UUID,
	}

	if msg.SessionInfo != nil {
		if err := p.ingestSessionInfo(res, msg); err != nil {
			return nil, p.fail(&ParseError{Layer: LayerSession, Domain: domain, RequestUUID: msg.RequestUUID, Err: err})
		}
		return res, nil
	}

	payload, err := p.sessions.Unwrap(domain, msg)
	var serr *session.StatusError
	switch {
	case errors.As(err, &serr):
		res.Status = serr
	case err != nil:
		return nil, p.fail(&ParseError{Layer: LayerSession, Domain: domain, RequestUUID: msg.RequestUUID, Err: err})
	}

	if err := p.decodeDomain(res, payload); err != nil {
		if res.Status == nil {
			return nil, p.fail(&ParseError{Layer: LayerDomain, Domain: domain, RequestUUID: msg.RequestUUID, Err: err})
		}
		// The status is the answer; the payload of a rejected message is
		// often not a domain message at all.
		if p.log != nil {
			p.log.Debugf("ignoring undecodable payload of rejected message from %s: %v", domain, err)
		}
	}
	if res.Status != nil && res.Kind == KindUnknown {
		res.Kind = KindMessageFault
	}

	if p.log != nil {
		p.log.Debugf("parsed %s from domain %s", res.Kind, domain)
	}
	return res, nil
}

func (p *Protocol) ingestSessionInfo(res *Result, msg *universal.RoutableMessage) error {
	var tag []byte
	if msg.SignatureData != nil {
		tag = msg.SignatureData.SessionInfoTag
	}
	info, err := p.sessions.IngestSignedHandshakeResponse(res.Domain, msg.SessionInfo, tag)
	if err != nil {
		return err
	}
	res.Kind = KindSessionInfo
	res.SessionInfo = info
	return nil
}

func (p *Protocol) decodeDomain(res *Result, payload []byte) error {
	switch res.Domain {
	case universal.DomainVehicleSecurity:
		m := &vcsec.FromVCSECMessage{}
		if err := m.Unmarshal(payload); err != nil {
			return err
		}
		res.setVCSEC(m)
	case universal.DomainInfotainment:
		m := &carserver.Response{}
		if err := m.Unmarshal(payload); err != nil {
			return err
		}
		res.setCarServer(m)
	default:
		if p.log != nil {
			p.log.Debugf("no decoder for domain %s, %d byte payload", res.Domain, len(payload))
		}
	}
	return nil
}

func (p *Protocol) fail(err *ParseError) error {
	if p.log != nil {
		p.log.Warnf("%v", err)
	}
	return err
}
