package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// StringReadSize is the fixed buffer length used by string reads.
const StringReadSize Size = 256

// Codec encodes and decodes one value kind to and from a fixed-size byte
// buffer. Numeric kinds use the target's little-endian ABI layout.
type Codec[T any] interface {
	// Size is the transfer length for this kind.
	Size() Size

	// Encode writes v into the prefix of buf; the remainder stays
	// zero-filled.
	Encode(v T, buf []byte) error

	// Decode interprets buf, of which n bytes were actually transferred.
	// n == 0 fails with ErrNothingTransferred even when the transfer call
	// itself reported success.
	Decode(buf []byte, n int) (T, error)
}

// Int32Codec lays out int32 values little-endian in 4 bytes.
type Int32Codec struct{}

func (Int32Codec) Size() Size { return 4 }

func (Int32Codec) Encode(v int32, buf []byte) error {
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return nil
}

func (Int32Codec) Decode(buf []byte, n int) (int32, error) {
	if n == 0 {
		return 0, ErrNothingTransferred
	}
	if len(buf) < 4 {
		return 0, fmt.Errorf("%w: int32 needs 4 bytes, have %d", ErrDecode, len(buf))
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}

// BoolCodec lays out bool values as int32, where 0 is false and any
// nonzero value is true.
type BoolCodec struct{}

func (BoolCodec) Size() Size { return 4 }

func (BoolCodec) Encode(v bool, buf []byte) error {
	var n int32
	if v {
		n = 1
	}
	return Int32Codec{}.Encode(n, buf)
}

func (BoolCodec) Decode(buf []byte, n int) (bool, error) {
	v, err := Int32Codec{}.Decode(buf, n)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Float32Codec lays out float32 values as little-endian IEEE 754 bits.
type Float32Codec struct{}

func (Float32Codec) Size() Size { return 4 }

func (Float32Codec) Encode(v float32, buf []byte) error {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return nil
}

func (Float32Codec) Decode(buf []byte, n int) (float32, error) {
	if n == 0 {
		return 0, ErrNothingTransferred
	}
	if len(buf) < 4 {
		return 0, fmt.Errorf("%w: float32 needs 4 bytes, have %d", ErrDecode, len(buf))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

// Float64Codec lays out float64 values as little-endian IEEE 754 bits.
type Float64Codec struct{}

func (Float64Codec) Size() Size { return 8 }

func (Float64Codec) Encode(v float64, buf []byte) error {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return nil
}

func (Float64Codec) Decode(buf []byte, n int) (float64, error) {
	if n == 0 {
		return 0, ErrNothingTransferred
	}
	if len(buf) < 8 {
		return 0, fmt.Errorf("%w: float64 needs 8 bytes, have %d", ErrDecode, len(buf))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// StringCodec moves strings through a Cap-byte buffer. Encoding is ASCII:
// runes above 0x7F become '?', and the zero-filled tail of the buffer acts
// as the terminator. Decoding is UTF-8, trimmed at the first NUL byte.
// The ASCII-out/UTF-8-in asymmetry is intentional; see DESIGN.md.
type StringCodec struct {
	Cap Size
}

func (c StringCodec) Size() Size { return c.Cap }

func (c StringCodec) Encode(v string, buf []byte) error {
	i := 0
	for _, r := range v {
		if i >= len(buf) {
			return fmt.Errorf("string of %d chars does not fit a %d byte buffer", utf8.RuneCountInString(v), len(buf))
		}
		if r > 0x7F {
			buf[i] = '?'
		} else {
			buf[i] = byte(r)
		}
		i++
	}
	return nil
}

func (c StringCodec) Decode(buf []byte, n int) (string, error) {
	if n == 0 {
		return "", ErrNothingTransferred
	}
	if n < len(buf) {
		buf = buf[:n]
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w: bytes are not valid UTF-8", ErrDecode)
	}
	return string(buf), nil
}
