// Package codec implements the length-prefixed binary wire format for
// instructions, transactions, events, and persisted state values.
//
// Every integer is big-endian. Variable-length payloads are length-prefixed
// and bounds-checked against per-message caps before any allocation.
package codec

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrUnexpectedEOF      = errors.New("codec: unexpected end of input")
	ErrUnknownTag         = errors.New("codec: unknown tag")
	ErrPayloadTooLarge    = errors.New("codec: payload too large")
	ErrUnsupportedVersion = errors.New("codec: unsupported version")
	ErrTrailingBytes      = errors.New("codec: trailing bytes after message")
)

const (
	// CasinoMaxPayloadLength caps a single GameMove payload.
	CasinoMaxPayloadLength = 1024

	// MaxDestinationLength caps bridge destination / source byte strings.
	MaxDestinationLength = 256

	// MaxSideBets caps the side-bet list on StartGame.
	MaxSideBets = 16
)

// Reader consumes a buffer with strict bounds checking. Every read fails
// with ErrUnexpectedEOF once the remaining buffer is shorter than the
// declared length; it never panics on truncated input.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Close verifies the full buffer was consumed.
func (r *Reader) Close() error {
	if r.Remaining() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadU128 reads a 16-byte big-endian unsigned integer.
func (r *Reader) ReadU128() (*uint256.Int, error) {
	b, err := r.take(16)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}

func (r *Reader) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		return 0, ErrUnexpectedEOF
	}
	r.off += n
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadFixed copies exactly len(dst) bytes into dst.
func (r *Reader) ReadFixed(dst []byte) error {
	b, err := r.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// ReadBytes16 reads a u16-length-prefixed byte string, rejecting lengths
// above max with ErrPayloadTooLarge before touching the buffer body.
func (r *Reader) ReadBytes16(max int) ([]byte, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if int(n) > max {
		return nil, ErrPayloadTooLarge
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadBytes32 reads a u32-length-prefixed byte string with a cap.
func (r *Reader) ReadBytes32(max int) ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int64(n) > int64(max) {
		return nil, ErrPayloadTooLarge
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Writer builds a message buffer. Writes never fail; the caller takes the
// finished bytes with Bytes().
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// WriteU128 writes v as 16 big-endian bytes. Values above 2^128-1 are a
// programming error; encoders only store u128 fields.
func (w *Writer) WriteU128(v *uint256.Int) {
	full := v.Bytes32()
	w.buf = append(w.buf, full[16:]...)
}

func (w *Writer) WriteUvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteBytes16(b []byte) {
	w.WriteU16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteBytes32(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}
