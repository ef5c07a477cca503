package universal

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/backkem/teslable/pkg/wire/pbutil"
)

// Tag values prefix each item of signed metadata (request AAD).
type Tag byte

const (
	TagSignatureType   Tag = 0
	TagDomain          Tag = 1
	TagPersonalization Tag = 2
	TagEpoch           Tag = 3
	TagExpiresAt       Tag = 4
	TagCounter         Tag = 5
	TagChallenge       Tag = 6
	TagFlags           Tag = 7
	TagRequestHash     Tag = 8
	TagFault           Tag = 9
	TagEnd             Tag = 255
)

// SessionInfoStatus is the vehicle's answer to a session-info request.
type SessionInfoStatus int32

const (
	SessionInfoStatusOK                SessionInfoStatus = 0
	SessionInfoStatusKeyNotOnWhitelist SessionInfoStatus = 1
)

// String returns the status name.
func (s SessionInfoStatus) String() string {
	switch s {
	case SessionInfoStatusOK:
		return "OK"
	case SessionInfoStatusKeyNotOnWhitelist:
		return "KEY_NOT_ON_WHITELIST"
	default:
		return fmt.Sprintf("SessionInfoStatus(%d)", int32(s))
	}
}

// SessionInfo carries a domain's session parameters.
type SessionInfo struct {
	Counter   uint32
	PublicKey []byte
	Epoch     []byte
	ClockTime uint32
	Status    SessionInfoStatus
	Handle    uint32
}

// Marshal encodes the session info.
func (s *SessionInfo) Marshal() []byte {
	var b []byte
	b = pbutil.AppendVarint(b, 1, uint64(s.Counter))
	b = pbutil.AppendBytes(b, 2, s.PublicKey)
	b = pbutil.AppendBytes(b, 3, s.Epoch)
	b = pbutil.AppendFixed32(b, 4, s.ClockTime)
	b = pbutil.AppendVarint(b, 5, uint64(s.Status))
	b = pbutil.AppendVarint(b, 6, uint64(s.Handle))
	return b
}

// Unmarshal decodes session info.
func (s *SessionInfo) Unmarshal(b []byte) error {
	*s = SessionInfo{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1, 5, 6:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
		case 2, 3:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
		case 4:
			if err := pbutil.Expect(f, protowire.Fixed32Type); err != nil {
				return err
			}
		}
		switch f.Num {
		case 1:
			s.Counter = uint32(f.Varint)
		case 2:
			s.PublicKey = pbutil.Copy(f.Bytes)
		case 3:
			s.Epoch = pbutil.Copy(f.Bytes)
		case 4:
			s.ClockTime = f.Fixed32
		case 5:
			s.Status = SessionInfoStatus(pbutil.Int32(f))
		case 6:
			s.Handle = uint32(f.Varint)
		}
		return nil
	})
}

// AESGCMPersonalizedData is the signature metadata of an encrypted request.
type AESGCMPersonalizedData struct {
	Epoch     []byte
	Nonce     []byte
	Counter   uint32
	ExpiresAt uint32
	Tag       []byte
}

// Marshal encodes the metadata.
func (p *AESGCMPersonalizedData) Marshal() []byte {
	var b []byte
	b = pbutil.AppendBytes(b, 1, p.Epoch)
	b = pbutil.AppendBytes(b, 2, p.Nonce)
	b = pbutil.AppendVarint(b, 3, uint64(p.Counter))
	b = pbutil.AppendFixed32(b, 4, p.ExpiresAt)
	b = pbutil.AppendBytes(b, 5, p.Tag)
	return b
}

// Unmarshal decodes the metadata.
func (p *AESGCMPersonalizedData) Unmarshal(b []byte) error {
	*p = AESGCMPersonalizedData{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1, 2, 5:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			v := pbutil.Copy(f.Bytes)
			switch f.Num {
			case 1:
				p.Epoch = v
			case 2:
				p.Nonce = v
			default:
				p.Tag = v
			}
		case 3:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			p.Counter = uint32(f.Varint)
		case 4:
			if err := pbutil.Expect(f, protowire.Fixed32Type); err != nil {
				return err
			}
			p.ExpiresAt = f.Fixed32
		}
		return nil
	})
}

// AESGCMResponseData is the signature metadata of an encrypted response.
type AESGCMResponseData struct {
	Nonce   []byte
	Counter uint32
	Tag     []byte
}

// Marshal encodes the metadata.
func (r *AESGCMResponseData) Marshal() []byte {
	var b []byte
	b = pbutil.AppendBytes(b, 1, r.Nonce)
	b = pbutil.AppendVarint(b, 2, uint64(r.Counter))
	b = pbutil.AppendBytes(b, 3, r.Tag)
	return b
}

// Unmarshal decodes the metadata.
func (r *AESGCMResponseData) Unmarshal(b []byte) error {
	*r = AESGCMResponseData{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case 1, 3:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
			if f.Num == 1 {
				r.Nonce = pbutil.Copy(f.Bytes)
			} else {
				r.Tag = pbutil.Copy(f.Bytes)
			}
		case 2:
			if err := pbutil.Expect(f, protowire.VarintType); err != nil {
				return err
			}
			r.Counter = uint32(f.Varint)
		}
		return nil
	})
}

// KeyIdentity names the signer of a message by public key.
type KeyIdentity struct {
	PublicKey []byte
}

// SignatureData is the signature block of an envelope. At most one of the
// AES-GCM personalized, AES-GCM response and session info tag variants is
// set.
type SignatureData struct {
	SignerIdentity     *KeyIdentity
	AESGCMPersonalized *AESGCMPersonalizedData
	SessionInfoTag     []byte
	AESGCMResponse     *AESGCMResponseData
}

// Field numbers of SignatureData.
const (
	fieldSignerIdentity     protowire.Number = 1
	fieldAESGCMPersonalized protowire.Number = 5
	fieldSessionInfoTag     protowire.Number = 6
	fieldAESGCMResponse     protowire.Number = 9
)

// Marshal encodes the signature block.
func (s *SignatureData) Marshal() []byte {
	var b []byte
	if s.SignerIdentity != nil {
		b = pbutil.AppendMessage(b, fieldSignerIdentity, pbutil.AppendBytes(nil, 1, s.SignerIdentity.PublicKey))
	}
	switch {
	case s.AESGCMPersonalized != nil:
		b = pbutil.AppendMessage(b, fieldAESGCMPersonalized, s.AESGCMPersonalized.Marshal())
	case s.SessionInfoTag != nil:
		b = pbutil.AppendMessage(b, fieldSessionInfoTag, pbutil.AppendBytes(nil, 1, s.SessionInfoTag))
	case s.AESGCMResponse != nil:
		b = pbutil.AppendMessage(b, fieldAESGCMResponse, s.AESGCMResponse.Marshal())
	}
	return b
}

// Unmarshal decodes a signature block.
func (s *SignatureData) Unmarshal(b []byte) error {
	*s = SignatureData{}
	return pbutil.Walk(b, func(f pbutil.Field) error {
		switch f.Num {
		case fieldSignerIdentity, fieldAESGCMPersonalized, fieldSessionInfoTag, fieldAESGCMResponse:
			if err := pbutil.Expect(f, protowire.BytesType); err != nil {
				return err
			}
		default:
			return nil
		}

		switch f.Num {
		case fieldSignerIdentity:
			s.SignerIdentity = &KeyIdentity{}
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num == 1 && inner.Type == protowire.BytesType {
					s.SignerIdentity.PublicKey = pbutil.Copy(inner.Bytes)
				}
				return nil
			})
		case fieldAESGCMPersonalized:
			s.clearVariant()
			s.AESGCMPersonalized = &AESGCMPersonalizedData{}
			return s.AESGCMPersonalized.Unmarshal(f.Bytes)
		case fieldSessionInfoTag:
			s.clearVariant()
			s.SessionInfoTag = []byte{}
			return pbutil.Walk(f.Bytes, func(inner pbutil.Field) error {
				if inner.Num == 1 && inner.Type == protowire.BytesType {
					s.SessionInfoTag = pbutil.Copy(inner.Bytes)
				}
				return nil
			})
		case fieldAESGCMResponse:
			s.clearVariant()
			s.AESGCMResponse = &AESGCMResponseData{}
			return s.AESGCMResponse.Unmarshal(f.Bytes)
		}
		return nil
	})
}

func (s *SignatureData) clearVariant() {
	s.AESGCMPersonalized = nil
	s.SessionInfoTag = nil
	s.AESGCMResponse = nil
}
