package pbutil

import "math"

// FloatBits returns the IEEE 754 bits of v for a Fixed32 field.
func FloatBits(v float32) uint32 {
	return math.Float32bits(v)
}

// Float decodes a Fixed32 field as a float.
func Float(f Field) float32 {
	return math.Float32frombits(f.Fixed32)
}

// Int32 decodes a varint field as a (possibly negative) int32.
func Int32(f Field) int32 {
	return int32(f.Varint)
}
