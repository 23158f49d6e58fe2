// Package rng derives the deterministic per-move byte stream. The stream is
// a keyed PRF over (height seed, domain tag, session id, move number); it
// never reads the wall clock, so original execution and recovery replay
// draw identical bytes.
package rng

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

const domainV1 = "nullchain/rng/v1"

// Stream yields an infinite deterministic byte sequence. Blocks are
// blake2b-256 digests of the keyed preimage extended by a counter.
type Stream struct {
	key     []byte
	counter uint64
	buf     []byte
}

// New binds a stream to one (seed, session, move) triple.
func New(seed []byte, sessionID, moveNumber uint64) *Stream {
	pre := make([]byte, 0, len(domainV1)+1+len(seed)+16)
	pre = append(pre, domainV1...)
	pre = append(pre, 0)
	pre = append(pre, seed...)
	pre = binary.BigEndian.AppendUint64(pre, sessionID)
	pre = binary.BigEndian.AppendUint64(pre, moveNumber)
	sum := blake2b.Sum256(pre)
	return &Stream{key: sum[:]}
}

func (s *Stream) nextBlock() []byte {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// Key is a fixed 32-byte digest; New256 only rejects keys > 64 bytes.
		panic(err)
	}
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], s.counter)
	s.counter++
	h.Write(c[:])
	return h.Sum(nil)
}

// Bytes draws exactly n bytes from the stream.
func (s *Stream) Bytes(n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		if len(s.buf) == 0 {
			s.buf = s.nextBlock()
		}
		take := n - len(out)
		if take > len(s.buf) {
			take = len(s.buf)
		}
		out = append(out, s.buf[:take]...)
		s.buf = s.buf[take:]
	}
	return out
}

func (s *Stream) Uint64() uint64 {
	return binary.BigEndian.Uint64(s.Bytes(8))
}

// UintN draws a uniform value in [0, n) by rejection sampling.
func (s *Stream) UintN(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	limit := ^uint64(0) - (^uint64(0) % n)
	for {
		v := s.Uint64()
		if v < limit {
			return v % n
		}
	}
}
