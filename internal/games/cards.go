package games

import "nullsociety/chain/internal/rng"

type Card uint8 // 0..51

func (c Card) Rank() uint8 { // 2..14
	return uint8(c%13) + 2
}

func (c Card) Suit() uint8 { // 0..3
	return uint8(c / 13)
}

func (c Card) String() string {
	r := c.Rank()
	var rch byte
	switch r {
	case 14:
		rch = 'A'
	case 13:
		rch = 'K'
	case 12:
		rch = 'Q'
	case 11:
		rch = 'J'
	case 10:
		rch = 'T'
	default:
		rch = byte('0' + r)
	}
	var sch byte
	switch c.Suit() {
	case 0:
		sch = 'c'
	case 1:
		sch = 'd'
	case 2:
		sch = 'h'
	default:
		sch = 's'
	}
	return string([]byte{rch, sch})
}

// draw picks a uniformly random card not already dealt. Each move draws
// from its own stream, so the dealt set lives in the state blob rather
// than a deck cursor.
func draw(s *rng.Stream, dealt []Card) Card {
	taken := [52]bool{}
	for _, c := range dealt {
		taken[c] = true
	}
	remaining := uint64(52 - len(dealt))
	n := s.UintN(remaining)
	for c := Card(0); c < 52; c++ {
		if taken[c] {
			continue
		}
		if n == 0 {
			return c
		}
		n--
	}
	// Unreachable while dealt < 52; callers bound hand sizes well below that.
	return 0
}
