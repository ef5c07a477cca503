package universal

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/backkem/teslable/pkg/wire/pbutil"
)

// Destination addresses an envelope. Exactly one of Domain or RoutingAddress
// is meaningful; RoutingAddress takes precedence when non-nil.
type Destination struct {
	Domain         Domain
	RoutingAddress []byte
}

// Marshal encodes the destination.
func (d *Destination) Marshal() []byte {
	if d.RoutingAddress != nil {
		return pbutil.ForceBytes(nil, 2, d.RoutingAddress)
	}
	return pbutil.ForceVarint(nil, 1, uint64(d.Domain))
}

// Unmarshal decodes a destination.
func (d *Destination) Unmarshal(b []byte) error {
	*d = Destination{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			d.Domain = Domain(pbutil.Int32(f))
			d.RoutingAddress = nil
		case 2:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			d.RoutingAddress = pbutil.Copy(f.Bytes)
		}
		return nil
	})
}

// MessageStatus is the vehicle's verdict on a signed request.
type MessageStatus struct {
	OperationStatus    OperationStatus
	SignedMessageFault MessageFault
}

// Marshal encodes the status.
func (s *MessageStatus) Marshal() []byte {
	var b []byte
	b = pbutil.AppendVarint(b, 1, uint64(s.OperationStatus))
	b = pbutil.AppendVarint(b, 2, uint64(s.SignedMessageFault))
	return b
}

// Unmarshal decodes a status.
func (s *MessageStatus) Unmarshal(b []byte) error {
	*s = MessageStatus{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			s.OperationStatus = OperationStatus(pbutil.Int32(f))
		case 2:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			s.SignedMessageFault = MessageFault(pbutil.Int32(f))
		}
		return nil
	})
}

// SessionInfoRequest asks a domain for its session parameters.
type SessionInfoRequest struct {
	PublicKey []byte
	Challenge []byte
}

// Marshal encodes the request.
func (r *SessionInfoRequest) Marshal() []byte {
	var b []byte
	b = pbutil.AppendBytes(b, 1, r.PublicKey)
	b = pbutil.AppendBytes(b, 2, r.Challenge)
	return b
}

// Unmarshal decodes a request.
func (r *SessionInfoRequest) Unmarshal(b []byte) error {
	*r = SessionInfoRequest{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1, 2:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			if f.Num == 1 {
				r.PublicKey = pbutil.Copy(f.Bytes)
			} else {
				r.Challenge = pbutil.Copy(f.Bytes)
			}
		}
		return nil
	})
}

// RoutableMessage is the envelope exchanged with every vehicle domain.
//
// The payload is a oneof: at most one of ProtobufMessageAsBytes,
// SessionInfoRequest and SessionInfo is set. ProtobufMessageAsBytes holds
// ciphertext for authenticated messages and a plain sub-protocol message
// otherwise. SessionInfo holds a serialized SessionInfo.
type RoutableMessage struct {
	ToDestination   *Destination
	FromDestination *Destination

	ProtobufMessageAsBytes []byte
	SessionInfoRequest     *SessionInfoRequest
	SessionInfo            []byte

	SignedMessageStatus *MessageStatus
	SignatureData       *SignatureData

	RequestUUID []byte
	UUID        []byte
	Flags       uint32
}

// Field numbers of RoutableMessage.
const (
	fieldToDestination          protowire.Number = 6
	fieldFromDestination        protowire.Number = 7
	fieldProtobufMessageAsBytes protowire.Number = 10
	fieldSignedMessageStatus    protowire.Number = 12
	fieldSignatureData          protowire.Number = 13
	fieldSessionInfoRequest     protowire.Number = 14
	fieldSessionInfo            protowire.Number = 15
	fieldRequestUUID            protowire.Number = 50
	fieldUUID                   protowire.Number = 51
	fieldFlags                  protowire.Number = 52
)

// Marshal encodes the envelope.
func (m *RoutableMessage) Marshal() []byte {
	var b []byte
	if m.ToDestination != nil {
		b = pbutil.AppendMessage(b, fieldToDestination, m.ToDestination.Marshal())
	}
	if m.FromDestination != nil {
		b = pbutil.AppendMessage(b, fieldFromDestination, m.FromDestination.Marshal())
	}
	switch {
	case m.ProtobufMessageAsBytes != nil:
		b = pbutil.ForceBytes(b, fieldProtobufMessageAsBytes, m.ProtobufMessageAsBytes)
	case m.SessionInfoRequest != nil:
		b = pbutil.AppendMessage(b, fieldSessionInfoRequest, m.SessionInfoRequest.Marshal())
	case m.SessionInfo != nil:
		b = pbutil.ForceBytes(b, fieldSessionInfo, m.SessionInfo)
	}
	if m.SignedMessageStatus != nil {
		b = pbutil.AppendMessage(b, fieldSignedMessageStatus, m.SignedMessageStatus.Marshal())
	}
	if m.SignatureData != nil {
		b = pbutil.AppendMessage(b, fieldSignatureData, m.SignatureData.Marshal())
	}
	b = pbutil.AppendBytes(b, fieldRequestUUID, m.RequestUUID)
	b = pbutil.AppendBytes(b, fieldUUID, m.UUID)
	b = pbutil.AppendVarint(b, fieldFlags, uint64(m.Flags))
	return b
}

// Unmarshal decodes an envelope. Unknown fields are skipped.
func (m *RoutableMessage) Unmarshal(b []byte) error {
	*m = RoutableMessage{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldFlags:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			m.Flags = uint32(f.Varint)
			return nil
		case fieldToDestination, fieldFromDestination, fieldProtobufMessageAsBytes,
			fieldSignedMessageStatus, fieldSignatureData, fieldSessionInfoRequest,
			fieldSessionInfo, fieldRequestUUID, fieldUUID:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}

		switch f.Num {
		case fieldToDestination:
			m.ToDestination = &Destination{}
			return m.ToDestination.Unmarshal(f.Bytes)
		case fieldFromDestination:
			m.FromDestination = &Destination{}
			return m.FromDestination.Unmarshal(f.Bytes)
		case fieldProtobufMessageAsBytes:
			m.clearPayload()
			m.ProtobufMessageAsBytes = pbutil.Copy(f.Bytes)
		case fieldSessionInfoRequest:
			m.clearPayload()
			m.SessionInfoRequest = &SessionInfoRequest{}
			return m.SessionInfoRequest.Unmarshal(f.Bytes)
		case fieldSessionInfo:
			m.clearPayload()
			m.SessionInfo = pbutil.Copy(f.Bytes)
		case fieldSignedMessageStatus:
			m.SignedMessageStatus = &MessageStatus{}
			return m.SignedMessageStatus.Unmarshal(f.Bytes)
		case fieldSignatureData:
			m.SignatureData = &SignatureData{}
			return m.SignatureData.Unmarshal(f.Bytes)
		case fieldRequestUUID:
			m.RequestUUID = pbutil.Copy(f.Bytes)
		case fieldUUID:
			m.UUID = pbutil.Copy(f.Bytes)
		}
		return nil
	})
}

func (m *RoutableMessage) clearPayload() {
	m.ProtobufMessageAsBytes = nil
	m.SessionInfoRequest = nil
	m.SessionInfo = nil
}

// Origin returns the domain the envelope came from.
func (m *RoutableMessage) Origin() (Domain, error) {
	if m.FromDestination == nil {
		return 0, ErrMissingDestination
	}
	return m.FromDestination.Domain, nil
}

// Payload returns the raw payload bytes, or nil when the envelope carries
// no protobuf_message_as_bytes.
func (m *RoutableMessage) Payload() []byte {
	return m.ProtobufMessageAsBytes
}

// HasErrorStatus reports whether the vehicle marked the message as failed.
func (m *RoutableMessage) HasErrorStatus() bool {
	return m.SignedMessageStatus != nil && m.SignedMessageStatus.OperationStatus == OperationStatusError
}

// Unmarshal decodes a serialized RoutableMessage.
func Unmarshal(b []byte) (*RoutableMessage, error) {
	m := &RoutableMessage{}
	if err := m.Unmarshal(b); err != nil {
		return nil, err
	}
	return m, nil
}
