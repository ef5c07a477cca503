package vcsec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/backkem/teslable/pkg/wire/pbutil"
)

// ClosureMoveRequest asks for one or more closures to move. Unset closures
// are left alone.
type ClosureMoveRequest struct {
	FrontDriverDoor    ClosureMoveType
	FrontPassengerDoor ClosureMoveType
	RearDriverDoor     ClosureMoveType
	RearPassengerDoor  ClosureMoveType
	RearTrunk          ClosureMoveType
	FrontTrunk         ClosureMoveType
	ChargePort         ClosureMoveType
	Tonneau            ClosureMoveType
}

func (c *ClosureMoveRequest) fields() []*ClosureMoveType {
	return []*ClosureMoveType{
		&c.FrontDriverDoor, &c.FrontPassengerDoor, &c.RearDriverDoor, &c.RearPassengerDoor,
		&c.RearTrunk, &c.FrontTrunk, &c.ChargePort, &c.Tonneau,
	}
}

// Marshal encodes the request.
func (c *ClosureMoveRequest) Marshal() []byte {
	var b []byte
	for i, v := range c.fields() {
		b = pbutil.AppendVarint(b, protowire.Number(i+1), uint64(*v))
	}
	return b
}

// Unmarshal decodes a request.
func (c *ClosureMoveRequest) Unmarshal(b []byte) error {
	*c = ClosureMoveRequest{}
	fields := c.fields()
	return pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num < 1 || int(f.Num) > len(fields) {
			return nil
		}
		if err := pbutil.Expect(f, protowire.VarintType); err != nil {
			return err
		}
		*fields[f.Num-1] = ClosureMoveType(pbutil.Int32(f))
		return nil
	})
}

// KeyMetadata describes a key being added to the whitelist.
type KeyMetadata struct {
	KeyFormFactor KeyFormFactor
}

// WhitelistOperation adds or removes a public key. At most one of
// AddPublicKey and RemovePublicKey is set; both hold raw uncompressed keys.
type WhitelistOperation struct {
	AddPublicKey    []byte
	RemovePublicKey []byte
	MetadataForKey  *KeyMetadata
}

// Marshal encodes the operation.
func (w *WhitelistOperation) Marshal() []byte {
	var b []byte
	switch {
	case w.AddPublicKey != nil:
		b = pbutil.AppendMessage(b, 1, pbutil.AppendBytes(nil, 1, w.AddPublicKey))
	case w.RemovePublicKey != nil:
		b = pbutil.AppendMessage(b, 2, pbutil.AppendBytes(nil, 1, w.RemovePublicKey))
	}
	if w.MetadataForKey != nil {
		b = pbutil.AppendMessage(b, 6, pbutil.AppendVarint(nil, 1, uint64(w.MetadataForKey.KeyFormFactor)))
	}
	return b
}

// Unmarshal decodes an operation.
func (w *WhitelistOperation) Unmarshal(b []byte) error {
	*w = WhitelistOperation{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1, 2:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			key, err := decodePublicKey(f.Bytes)
			if err != nil {
				return err
			}
			w.AddPublicKey, w.RemovePublicKey = nil, nil
			if f.Num == 1 {
				w.AddPublicKey = key
			} else {
				w.RemovePublicKey = key
			}
		case 6:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			w.MetadataForKey = &KeyMetadata{}
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num == 1 && inner.Type == protowire.VarintType {
					w.MetadataForKey.KeyFormFactor = KeyFormFactor(pbutil.Int32(inner))
				}
				return nil
			})
		}
		return nil
	})
}

func decodePublicKey(b []byte) ([]byte, error) {
	key := []byte{}
	err := pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num != 1 {
			return nil
		}
		if err := pbutil.Expect(f, protowire.BytesType); err != nil {
			return err
		}
		key = pbutil.Copy(f.Bytes)
		return nil
	})
	return key, err
}

// InformationRequest asks VCSEC for information.
type InformationRequest struct {
	Type InformationRequestType
}

// UnsignedMessage is the body of every VCSEC request. Exactly one of the
// fields is set.
type UnsignedMessage struct {
	InformationRequest *InformationRequest
	RKEAction          *RKEAction
	ClosureMoveRequest *ClosureMoveRequest
	WhitelistOperation *WhitelistOperation
}

// Field numbers of UnsignedMessage.
const (
	fieldInformationRequest protowire.Number = 1
	fieldRKEAction          protowire.Number = 2
	fieldClosureMoveRequest protowire.Number = 4
	fieldWhitelistOperation protowire.Number = 16
)

// Marshal encodes the message.
func (u *UnsignedMessage) Marshal() []byte {
	switch {
	case u.InformationRequest != nil:
		return pbutil.AppendMessage(nil, fieldInformationRequest, pbutil.AppendVarint(nil, 1, uint64(u.InformationRequest.Type)))
	case u.RKEAction != nil:
		return pbutil.ForceVarint(nil, fieldRKEAction, uint64(*u.RKEAction))
	case u.ClosureMoveRequest != nil:
		return pbutil.AppendMessage(nil, fieldClosureMoveRequest, u.ClosureMoveRequest.Marshal())
	case u.WhitelistOperation != nil:
		return pbutil.AppendMessage(nil, fieldWhitelistOperation, u.WhitelistOperation.Marshal())
	}
	return nil
}

// Unmarshal decodes a message.
func (u *UnsignedMessage) Unmarshal(b []byte) error {
	*u = UnsignedMessage{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldRKEAction:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			*u = UnsignedMessage{}
			action := RKEAction(pbutil.Int32(f))
			u.RKEAction = &action
		case fieldInformationRequest:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			*u = UnsignedMessage{InformationRequest: &InformationRequest{}}
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num == 1 && inner.Type == protowire.VarintType {
					u.InformationRequest.Type = InformationRequestType(pbutil.Int32(inner))
				}
				return nil
			})
		case fieldClosureMoveRequest:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			*u = UnsignedMessage{ClosureMoveRequest: &ClosureMoveRequest{}}
			return u.ClosureMoveRequest.Unmarshal(f.Bytes)
		case fieldWhitelistOperation:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			*u = UnsignedMessage{WhitelistOperation: &WhitelistOperation{}}
			return u.WhitelistOperation.Unmarshal(f.Bytes)
		}
		return nil
	})
}

// SignedMessage carries a serialized UnsignedMessage.
type SignedMessage struct {
	ProtobufMessageAsBytes []byte
	SignatureType          SignatureType
}

// ToVCSECMessage is the top-level message sent to the VCSEC domain.
type ToVCSECMessage struct {
	SignedMessage *SignedMessage
}

// Marshal encodes the message.
func (m *ToVCSECMessage) Marshal() []byte {
	if m.SignedMessage == nil {
		return nil
	}
	var inner []byte
	inner = pbutil.AppendBytes(inner, 2, m.SignedMessage.ProtobufMessageAsBytes)
	inner = pbutil.AppendVarint(inner, 3, uint64(m.SignedMessage.SignatureType))
	return pbutil.AppendMessage(nil, 1, inner)
}

// Unmarshal decodes a message.
func (m *ToVCSECMessage) Unmarshal(b []byte) error {
	*m = ToVCSECMessage{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num != 1 {
			return nil
		}
		if err := pbutil.Expect(f, protowire.BytesType); err != nil {
			return err
		}
		sm := &SignedMessage{ProtobufMessageAsBytes: []byte{}}
		m.SignedMessage = sm
		return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
			switch inner.Num {
			case 2:
				if err := pbutil.Expect(inner, protowire.BytesType); err != nil {
					return err
				}
				sm.ProtobufMessageAsBytes = pbutil.Copy(inner.Bytes)
			case 3:
				if err := pbutil.Expect(inner, protowire.VarintType); err != nil {
					return err
				}
				sm.SignatureType = SignatureType(pbutil.Int32(inner))
			}
			return nil
		})
	})
}

// NewUnsignedRequest wraps u into a ToVCSECMessage with signature type NONE,
// the form used when the envelope itself provides authentication.
func NewUnsignedRequest(u *UnsignedMessage) *ToVCSECMessage {
	return &ToVCSECMessage{
		SignedMessage: &SignedMessage{
			ProtobufMessageAsBytes: u.Marshal(),
			SignatureType:          SignatureTypeNone,
		},
	}
}
