package vcsec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/backkem/teslable/pkg/wire/pbutil"
)

// ClosureStatuses reports the state of every closure.
type ClosureStatuses struct {
	FrontDriverDoor    ClosureState
	FrontPassengerDoor ClosureState
	RearDriverDoor     ClosureState
	RearPassengerDoor  ClosureState
	RearTrunk          ClosureState
	FrontTrunk         ClosureState
	ChargePort         ClosureState
	Tonneau            ClosureState
}

func (c *ClosureStatuses) fields() []*ClosureState {
	return []*ClosureState{
		&c.FrontDriverDoor, &c.FrontPassengerDoor, &c.RearDriverDoor, &c.RearPassengerDoor,
		&c.RearTrunk, &c.FrontTrunk, &c.ChargePort, &c.Tonneau,
	}
}

func (c *ClosureStatuses) marshal() []byte {
	var b []byte
	for i, v := range c.fields() {
		b = pbutil.AppendVarint(b, protowire.Number(i+1), uint64(*v))
	}
	return b
}

func (c *ClosureStatuses) unmarshal(b []byte) error {
	fields := c.fields()
	return pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num < 1 || int(f.Num) > len(fields) {
			return nil
		}
		if err := pbutil.Expect(f, protowire.VarintType); err != nil {
			return err
		}
		*fields[f.Num-1] = ClosureState(pbutil.Int32(f))
		return nil
	})
}

// VehicleStatus is VCSEC's view of the vehicle.
type VehicleStatus struct {
	ClosureStatuses    *ClosureStatuses
	VehicleLockState   VehicleLockState
	VehicleSleepStatus SleepStatus
	UserPresence       UserPresence
}

func (s *VehicleStatus) marshal() []byte {
	var b []byte
	if s.ClosureStatuses != nil {
		b = pbutil.AppendMessage(b, 1, s.ClosureStatuses.marshal())
	}
	b = pbutil.AppendVarint(b, 2, uint64(s.VehicleLockState))
	b = pbutil.AppendVarint(b, 3, uint64(s.VehicleSleepStatus))
	b = pbutil.AppendVarint(b, 4, uint64(s.UserPresence))
	return b
}

func (s *VehicleStatus) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			s.ClosureStatuses = &ClosureStatuses{}
			return s.ClosureStatuses.unmarshal(f.Bytes)
		case 2, 3, 4:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			v := pbutil.Int32(f)
			switch f.Num {
			case 2:
				s.VehicleLockState = VehicleLockState(v)
			case 3:
				s.VehicleSleepStatus = SleepStatus(v)
			default:
				s.UserPresence = UserPresence(v)
			}
		}
		return nil
	})
}

// SignedMessageStatus is VCSEC's verdict on the signed request.
type SignedMessageStatus struct {
	Counter                  uint32
	SignedMessageInformation SignedMessageInformation
}

// WhitelistOperationStatus reports the progress of a whitelist operation.
type WhitelistOperationStatus struct {
	WhitelistOperationInformation WhitelistOperationInformation
	// SignerOfOperation is the SHA-1 key identifier of the signer, if any.
	SignerOfOperation []byte
	OperationStatus   OperationStatus
}

// CommandStatus is the reply to a VCSEC command.
type CommandStatus struct {
	OperationStatus          OperationStatus
	SignedMessageStatus      *SignedMessageStatus
	WhitelistOperationStatus *WhitelistOperationStatus
}

func (c *CommandStatus) marshal() []byte {
	var b []byte
	b = pbutil.AppendVarint(b, 1, uint64(c.OperationStatus))
	switch {
	case c.SignedMessageStatus != nil:
		var inner []byte
		inner = pbutil.AppendVarint(inner, 1, uint64(c.SignedMessageStatus.Counter))
		inner = pbutil.AppendVarint(inner, 2, uint64(c.SignedMessageStatus.SignedMessageInformation))
		b = pbutil.AppendMessage(b, 2, inner)
	case c.WhitelistOperationStatus != nil:
		w := c.WhitelistOperationStatus
		var inner []byte
		inner = pbutil.AppendVarint(inner, 1, uint64(w.WhitelistOperationInformation))
		if w.SignerOfOperation != nil {
			inner = pbutil.AppendMessage(inner, 2, pbutil.AppendBytes(nil, 1, w.SignerOfOperation))
		}
		inner = pbutil.AppendVarint(inner, 3, uint64(w.OperationStatus))
		b = pbutil.AppendMessage(b, 3, inner)
	}
	return b
}

func (c *CommandStatus) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			c.OperationStatus = OperationStatus(pbutil.Int32(f))
		case 2:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			s := &SignedMessageStatus{}
			c.SignedMessageStatus, c.WhitelistOperationStatus = s, nil
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Type != protowire.VarintType {
					return nil
				}
				switch inner.Num {
				case 1:
					s.Counter = uint32(inner.Varint)
				case 2:
					s.SignedMessageInformation = SignedMessageInformation(pbutil.Int32(inner))
				}
				return nil
			})
		case 3:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			w := &WhitelistOperationStatus{}
			c.SignedMessageStatus, c.WhitelistOperationStatus = nil, w
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				switch inner.Num {
				case 1:
					if err := pbutil.Expect(inner, protowire.VarintType); err != nil {
						return err
					}
					w.WhitelistOperationInformation = WhitelistOperationInformation(pbutil.Int32(inner))
				case 2:
					if err := pbutil.Expect(inner, protowire.BytesType); err != nil {
						return err
					}
					id, err := decodeKeyIdentifier(inner.Bytes)
					if err != nil {
						return err
					}
					w.SignerOfOperation = id
				case 3:
					if err := pbutil.Expect(inner, protowire.VarintType); err != nil {
						return err
					}
					w.OperationStatus = OperationStatus(pbutil.Int32(inner))
				}
				return nil
			})
		}
		return nil
	})
}

func decodeKeyIdentifier(b []byte) ([]byte, error) {
	id := []byte{}
	err := pbutil.Walk(b, func(f pbutil.Field) error {
		if f.Num == 1 && f.Type == protowire.BytesType {
			id = pbutil.Copy(f.Bytes)
		}
		return nil
	})
	return id, err
}

// WhitelistInfo lists the keys currently on the whitelist.
type WhitelistInfo struct {
	NumberOfEntries uint32
	// WhitelistEntries are SHA-1 key identifiers.
	WhitelistEntries [][]byte
	SlotMask         uint32
}

func (w *WhitelistInfo) marshal() []byte {
	var b []byte
	b = pbutil.AppendVarint(b, 1, uint64(w.NumberOfEntries))
	for _, e := range w.WhitelistEntries {
		b = pbutil.AppendMessage(b, 2, pbutil.AppendBytes(nil, 1, e))
	}
	b = pbutil.AppendVarint(b, 3, uint64(w.SlotMask))
	return b
}

func (w *WhitelistInfo) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1, 3:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			if f.Num == 1 {
				w.NumberOfEntries = uint32(f.Varint)
			} else {
				w.SlotMask = uint32(f.Varint)
			}
		case 2:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			id, err := decodeKeyIdentifier(f.Bytes)
			if err != nil {
				return err
			}
			w.WhitelistEntries = append(w.WhitelistEntries, id)
		}
		return nil
	})
}

// WhitelistEntryInfo describes a single whitelisted key.
type WhitelistEntryInfo struct {
	KeyID          []byte
	PublicKey      []byte
	MetadataForKey *KeyMetadata
	Slot           uint32
}

func (w *WhitelistEntryInfo) marshal() []byte {
	var b []byte
	if w.KeyID != nil {
		b = pbutil.AppendMessage(b, 1, pbutil.AppendBytes(nil, 1, w.KeyID))
	}
	if w.PublicKey != nil {
		b = pbutil.AppendMessage(b, 2, pbutil.AppendBytes(nil, 1, w.PublicKey))
	}
	if w.MetadataForKey != nil {
		b = pbutil.AppendMessage(b, 4, pbutil.AppendVarint(nil, 1, uint64(w.MetadataForKey.KeyFormFactor)))
	}
	b = pbutil.AppendVarint(b, 6, uint64(w.Slot))
	return b
}

func (w *WhitelistEntryInfo) unmarshal(b []byte) error {
	return pbutil.Walk(b, func(f pbutil.Field) error {
		var err error
		switch f.Num {
		case 1:
			if err = pbutil.Expect(f, protowire.BytesType); err == nil {
				w.KeyID, err = decodeKeyIdentifier(f.Bytes)
			}
		case 2:
			if err = pbutil.Expect(f, protowire.BytesType); err == nil {
				w.PublicKey, err = decodePublicKey(f.Bytes)
			}
		case 4:
			if err = pbutil.Expect(f, protowire.BytesType); err == nil {
				w.MetadataForKey = &KeyMetadata{}
				err = pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
					if inner.Num == 1 && inner.Type == protowire.VarintType {
						w.MetadataForKey.KeyFormFactor = KeyFormFactor(pbutil.Int32(inner))
					}
					return nil
				})
			}
		case 6:
			if err = pbutil.Expect(f, protowire.VarintType); err == nil {
				w.Slot = uint32(f.Varint)
			}
		}
		return err
	})
}

// NominalError is a generic VCSEC failure.
type NominalError struct {
	GenericError GenericError
}

// FromVCSECMessage is the top-level message received from the VCSEC domain.
// At most one field is set.
type FromVCSECMessage struct {
	VehicleStatus      *VehicleStatus
	CommandStatus      *CommandStatus
	WhitelistInfo      *WhitelistInfo
	WhitelistEntryInfo *WhitelistEntryInfo
	NominalError       *NominalError
}

// Field numbers of FromVCSECMessage.
const (
	fieldVehicleStatus      protowire.Number = 1
	fieldCommandStatus      protowire.Number = 4
	fieldWhitelistInfo      protowire.Number = 16
	fieldWhitelistEntryInfo protowire.Number = 17
	fieldNominalError       protowire.Number = 46
)

// Marshal encodes the message.
func (m *FromVCSECMessage) Marshal() []byte {
	switch {
	case m.VehicleStatus != nil:
		return pbutil.AppendMessage(nil, fieldVehicleStatus, m.VehicleStatus.marshal())
	case m.CommandStatus != nil:
		return pbutil.AppendMessage(nil, fieldCommandStatus, m.CommandStatus.marshal())
	case m.WhitelistInfo != nil:
		return pbutil.AppendMessage(nil, fieldWhitelistInfo, m.WhitelistInfo.marshal())
	case m.WhitelistEntryInfo != nil:
		return pbutil.AppendMessage(nil, fieldWhitelistEntryInfo, m.WhitelistEntryInfo.marshal())
	case m.NominalError != nil:
		return pbutil.AppendMessage(nil, fieldNominalError, pbutil.AppendVarint(nil, 1, uint64(m.NominalError.GenericError)))
	}
	return nil
}

// Unmarshal decodes a message. Unknown sub-messages leave every field nil.
func (m *FromVCSECMessage) Unmarshal(b []byte) error {
	*m = FromVCSECMessage{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldVehicleStatus, fieldCommandStatus, fieldWhitelistInfo, fieldWhitelistEntryInfo, fieldNominalError:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}

		*m = FromVCSECMessage{}
		switch f.Num {
		case fieldVehicleStatus:
			m.VehicleStatus = &VehicleStatus{}
			return m.VehicleStatus.unmarshal(f.Bytes)
		case fieldCommandStatus:
			m.CommandStatus = &CommandStatus{}
			return m.CommandStatus.unmarshal(f.Bytes)
		case fieldWhitelistInfo:
			m.WhitelistInfo = &WhitelistInfo{}
			return m.WhitelistInfo.unmarshal(f.Bytes)
		case fieldWhitelistEntryInfo:
			m.WhitelistEntryInfo = &WhitelistEntryInfo{}
			return m.WhitelistEntryInfo.unmarshal(f.Bytes)
		default:
			m.NominalError = &NominalError{}
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num == 1 && inner.Type == protowire.VarintType {
					m.NominalError.GenericError = GenericError(pbutil.Int32(inner))
				}
				return nil
			})
		}
	})
}
