// Package codec implements the canonical binary encoding of all stored
// records: big-endian fixed width integers, length-prefixed strings and lists
// and tagged options.
package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Error is returned, when stored bytes could not be decoded
type Error struct {
	Offset int
	Reason string
}

func (e Error) Error() string {
	return fmt.Sprintf("codec: %s at offset %d", e.Reason, e.Offset)
}

// Codec pairs the encoding and decoding functions of a type
type Codec[T any] struct {
	Encode func(*Encoder, T)
	Decode func(*Decoder) (T, error)
}

// Marshal encodes v into a new buffer
func (c Codec[T]) Marshal(v T) []byte {
	var e Encoder
	c.Encode(&e, v)
	return e.Bytes()
}

// Unmarshal decodes buf. Trailing bytes are an error.
func (c Codec[T]) Unmarshal(buf []byte) (v T, err error) {
	d := NewDecoder(buf)
	v, err = c.Decode(d)
	if err != nil {
		return
	}
	err = d.Finish()
	return
}

// Encoder appends encoded values to a byte buffer
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded buffer
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Uint8 encodes a single byte
func (e *Encoder) Uint8(v uint8) {
	e.buf = append(e.buf, v)
}

// Uint64 encodes v as 8 big-endian bytes
func (e *Encoder) Uint64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}

// Bool encodes v as a 0 or 1 byte
func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

// String encodes a length-prefixed string
func (e *Encoder) String(s string) {
	e.Uint64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// Decoder reads encoded values from a byte buffer
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder creates a Decoder reading from buf
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) fail(reason string) error {
	return Error{
		Offset: d.off,
		Reason: reason,
	}
}

func (d *Decoder) take(n uint64) ([]byte, error) {
	if n > uint64(len(d.buf)-d.off) {
		return nil, d.fail("unexpected end of input")
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return b, nil
}

// Remaining returns the number of unread bytes
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Finish asserts the whole buffer has been consumed
func (d *Decoder) Finish() error {
	if d.Remaining() != 0 {
		return d.fail(fmt.Sprintf("%d trailing bytes", d.Remaining()))
	}
	return nil
}

// Uint8 decodes a single byte
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint64 decodes 8 big-endian bytes
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Bool decodes a 0 or 1 byte
func (d *Decoder) Bool() (bool, error) {
	b, err := d.Uint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		d.off--
		return false, d.fail(fmt.Sprintf("invalid bool tag %d", b))
	}
}

// String decodes a length-prefixed UTF-8 string
func (d *Decoder) String() (string, error) {
	n, err := d.Uint64()
	if err != nil {
		return "", err
	}
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		d.off -= len(b)
		return "", d.fail("invalid UTF-8 string")
	}
	return string(b), nil
}

// Option encodes an optional value behind a 0/1 tag byte
func Option[T any](e *Encoder, v *T, enc func(*Encoder, T)) {
	if v == nil {
		e.Uint8(0)
		return
	}
	e.Uint8(1)
	enc(e, *v)
}

// DecodeOption decodes a value encoded with Option
func DecodeOption[T any](d *Decoder, dec func(*Decoder) (T, error)) (*T, error) {
	some, err := d.Bool()
	if err != nil || !some {
		return nil, err
	}
	v, err := dec(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List encodes a length-prefixed list
func List[T any](e *Encoder, s []T, enc func(*Encoder, T)) {
	e.Uint64(uint64(len(s)))
	for _, v := range s {
		enc(e, v)
	}
}

// DecodeList decodes a list encoded with List
func DecodeList[T any](d *Decoder, dec func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	// Every element takes at least one byte
	if n > uint64(d.Remaining()) {
		return nil, d.fail("list length exceeds input")
	}
	s := make([]T, 0, int(n))
	for i := uint64(0); i < n; i++ {
		v, err := dec(d)
		if err != nil {
			return nil, err
		}
		s = append(s, v)
	}
	return s, nil
}

// Common codecs of primitive types
var (
	Uint64 = Codec[uint64]{
		Encode: (*Encoder).Uint64,
		Decode: (*Decoder).Uint64,
	}
	String = Codec[string]{
		Encode: (*Encoder).String,
		Decode: (*Decoder).String,
	}

	// Raw passes bytes through unchanged. Used by the migrator to rewrite
	// records of differing layouts.
	Raw = Codec[[]byte]{
		Encode: func(e *Encoder, b []byte) {
			e.buf = append(e.buf, b...)
		},
		Decode: func(d *Decoder) ([]byte, error) {
			return d.take(uint64(d.Remaining()))
		},
	}

	// Bytes is the raw byte form of string keys, like usernames
	Bytes = Codec[string]{
		Encode: func(e *Encoder, s string) {
			e.buf = append(e.buf, s...)
		},
		Decode: func(d *Decoder) (string, error) {
			b, err := d.take(uint64(d.Remaining()))
			return string(b), err
		},
	}
)
