package pbutil

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestAppendAndWalk(t *testing.T) {
	var b []byte
	b = AppendVarint(b, 1, 150)
	b = AppendBytes(b, 2, []byte("abc"))
	b = AppendFixed32(b, 3, 0xdeadbeef)
	b = AppendFloat(b, 4, 1.5)
	b = AppendBool(b, 5, true)

	// Field 1 = 150 is the canonical "08 96 01" example.
	if !bytes.HasPrefix(b, []byte{0x08, 0x96, 0x01}) {
		t.Fatalf("unexpected encoding prefix: %x", b)
	}

	var got []Field
	err := Walk(b, func(f Field) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d fields, want 5", len(got))
	}
	if got[0].Varint != 150 {
		t.Errorf("field 1 = %d, want 150", got[0].Varint)
	}
	if string(got[1].Bytes) != "abc" {
		t.Errorf("field 2 = %q, want abc", got[1].Bytes)
	}
	if got[2].Fixed32 != 0xdeadbeef {
		t.Errorf("field 3 = %x", got[2].Fixed32)
	}
	if Float(got[3]) != 1.5 {
		t.Errorf("field 4 = %v, want 1.5", Float(got[3]))
	}
	if got[4].Varint != 1 {
		t.Errorf("field 5 = %d, want 1", got[4].Varint)
	}
}

func TestAppend_OmitsZeroValues(t *testing.T) {
	var b []byte
	b = AppendVarint(b, 1, 0)
	b = AppendBytes(b, 2, nil)
	b = AppendFixed32(b, 3, 0)
	b = AppendBool(b, 4, false)
	b = AppendString(b, 5, "")
	if len(b) != 0 {
		t.Errorf("zero values encoded as %x", b)
	}

	b = ForceVarint(b, 1, 0)
	b = ForceBytes(b, 2, nil)
	if !bytes.Equal(b, []byte{0x08, 0x00, 0x12, 0x00}) {
		t.Errorf("forced encoding = %x", b)
	}
}

func TestWalk_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated varint", []byte{0x08, 0x96}},
		{"truncated bytes", []byte{0x12, 0x05, 'a'}},
		{"bad tag", []byte{0x00}},
		{"truncated fixed32", []byte{0x1d, 0x01, 0x02}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Walk(tc.data, func(Field) error { return nil })
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestWalk_StopsOnCallbackError(t *testing.T) {
	sentinel := errors.New("stop")
	b := AppendVarint(AppendVarint(nil, 1, 1), 2, 2)
	calls := 0
	err := Walk(b, func(Field) error {
		calls++
		return sentinel
	})
	if err != sentinel || calls != 1 {
		t.Errorf("Walk returned %v after %d calls", err, calls)
	}
}

func TestExpect(t *testing.T) {
	f := Field{Num: 1, Type: protowire.BytesType}
	if err := Expect(f, protowire.BytesType); err != nil {
		t.Errorf("Expect matching type failed: %v", err)
	}
	if err := Expect(f, protowire.VarintType); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}
