// Package pbutil provides the small set of protobuf wire helpers shared by
// the hand-written message codecs in pkg/wire.
//
// Messages are encoded with proto3 semantics: scalar fields holding their
// zero value are omitted unless the caller uses one of the Force helpers,
// which is required for members of a oneof.
package pbutil

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for truncated or otherwise invalid wire data.
var ErrMalformed = errors.New("pbutil: malformed protobuf data")

// Field is one decoded field occurrence.
type Field struct {
	Num  protowire.Number
	Type protowire.Type

	// Varint holds the value of VarintType fields.
	Varint uint64
	// Fixed32 holds the value of Fixed32Type fields.
	Fixed32 uint32
	// Fixed64 holds the value of Fixed64Type fields.
	Fixed64 uint64
	// Bytes holds the value of BytesType fields. It aliases the input buffer.
	Bytes []byte
}

// Walk decodes every field in b and calls fn for each occurrence in order.
// Groups are skipped. Decoding stops at the first error returned by fn.
func Walk(b []byte, fn func(f Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: tag: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.Fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.Fixed64Type:
			f.Fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a non-nil copy of a Bytes field value.
func Copy(b []byte) []byte {
	return append([]byte{}, b...)
}

// WrongType reports a field whose wire type does not match its schema.
func WrongType(f Field) error {
	return fmt.Errorf("%w: field %d has unexpected wire type %d", ErrMalformed, f.Num, f.Type)
}

// Expect returns WrongType(f) unless f has wire type typ.
func Expect(f Field, typ protowire.Type) error {
	if f.Type != typ {
		return WrongType(f)
	}
	return nil
}

// AppendVarint appends a varint field, omitting zero values.
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return ForceVarint(b, num, v)
}

// ForceVarint appends a varint field even when v is zero.
func ForceVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBool appends a bool field, omitting false.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

// AppendFixed32 appends a fixed32 field, omitting zero values.
func AppendFixed32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

// AppendFloat appends a float field, omitting zero values.
func AppendFloat(b []byte, num protowire.Number, v float32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, FloatBits(v))
}

// AppendBytes appends a bytes field, omitting empty values.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return ForceBytes(b, num, v)
}

// ForceBytes appends a bytes field even when v is empty.
func ForceBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString appends a string field, omitting empty values.
func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendMessage appends an embedded message field. A nil encoding writes an
// empty message, which is how presence-only oneof members are expressed.
func AppendMessage(b []byte, num protowire.Number, encoded []byte) []byte {
	return ForceBytes(b, num, encoded)
}
