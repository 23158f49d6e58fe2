package games

import (
	"fmt"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/rng"
)

// Blackjack moves (single-byte payload).
const (
	bjHit    uint8 = 0
	bjStand  uint8 = 1
	bjDouble uint8 = 2
)

const blackjackBlobV1 uint8 = 0x01

// Side bet kinds.
const (
	SideBetPerfectPair uint64 = 1
)

const perfectPairMultiplier = 11

// blackjack deals a heads-up hand against the house. Dealer stands on all
// 17s; blackjack pays 3:2; doubling is allowed on the first move only.
//
// Blob v1 layout:
//
//	version(1) bet(8) mult(1) sideWin(8) playerN(1) player... dealerN(1) dealer...
type blackjack struct{}

type bjState struct {
	bet     uint64
	mult    uint8
	sideWin uint64
	player  []Card
	dealer  []Card
}

func (st *bjState) encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(blackjackBlobV1)
	w.WriteU64(st.bet)
	w.WriteU8(st.mult)
	w.WriteU64(st.sideWin)
	w.WriteU8(uint8(len(st.player)))
	for _, c := range st.player {
		w.WriteU8(uint8(c))
	}
	w.WriteU8(uint8(len(st.dealer)))
	for _, c := range st.dealer {
		w.WriteU8(uint8(c))
	}
	return w.Bytes()
}

func decodeBJ(blob []byte) (*bjState, error) {
	r := codec.NewReader(blob)
	version, err := r.ReadU8()
	if err != nil {
		return nil, ErrCorruptBlob
	}
	if version != blackjackBlobV1 {
		return nil, fmt.Errorf("%w: blackjack blob 0x%02x", codec.ErrUnsupportedVersion, version)
	}
	st := &bjState{}
	if st.bet, err = r.ReadU64(); err != nil {
		return nil, ErrCorruptBlob
	}
	if st.mult, err = r.ReadU8(); err != nil {
		return nil, ErrCorruptBlob
	}
	if st.sideWin, err = r.ReadU64(); err != nil {
		return nil, ErrCorruptBlob
	}
	for _, hand := range []*[]Card{&st.player, &st.dealer} {
		n, err := r.ReadU8()
		if err != nil || n > 21 {
			return nil, ErrCorruptBlob
		}
		for k := 0; k < int(n); k++ {
			c, err := r.ReadU8()
			if err != nil || c > 51 {
				return nil, ErrCorruptBlob
			}
			*hand = append(*hand, Card(c))
		}
	}
	if err := r.Close(); err != nil {
		return nil, ErrCorruptBlob
	}
	return st, nil
}

func (st *bjState) dealt() []Card {
	out := make([]Card, 0, len(st.player)+len(st.dealer))
	out = append(out, st.player...)
	return append(out, st.dealer...)
}

// handValue returns the best total <= 21 when possible, counting one ace
// high if it fits.
func handValue(hand []Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		r := int(c.Rank())
		switch {
		case r == 14:
			total += 1
			aces++
		case r > 10:
			total += 10
		default:
			total += r
		}
	}
	if aces > 0 && total+10 <= 21 {
		total += 10
	}
	return total
}

func isNatural(hand []Card) bool {
	return len(hand) == 2 && handValue(hand) == 21
}

func (blackjack) Start(s *rng.Stream, bet uint64, sideBets []codec.SideBet) ([]byte, error) {
	if bet == 0 {
		return nil, ErrInvalidBet
	}
	st := &bjState{bet: bet, mult: 1}
	st.player = append(st.player, draw(s, st.dealt()))
	st.dealer = append(st.dealer, draw(s, st.dealt()))
	st.player = append(st.player, draw(s, st.dealt()))
	st.dealer = append(st.dealer, draw(s, st.dealt()))

	for _, sb := range sideBets {
		if sb.Kind != SideBetPerfectPair {
			return nil, fmt.Errorf("%w: side bet kind %d", ErrInvalidBet, sb.Kind)
		}
		if sb.Amount == 0 {
			return nil, ErrInvalidBet
		}
		if st.player[0].Rank() == st.player[1].Rank() {
			st.sideWin += sb.Amount * (perfectPairMultiplier + 1)
		}
	}
	return st.encode(), nil
}

func (blackjack) ApplyMove(s *rng.Stream, blob []byte, payload []byte) ([]byte, *Outcome, error) {
	st, err := decodeBJ(blob)
	if err != nil {
		return nil, nil, err
	}
	if len(payload) != 1 {
		return nil, nil, ErrInvalidMove
	}
	pv := handValue(st.player)

	switch payload[0] {
	case bjHit:
		if pv >= 21 {
			return nil, nil, ErrInvalidMove
		}
		st.player = append(st.player, draw(s, st.dealt()))
		if handValue(st.player) > 21 {
			return st.encode(), st.settle(0, 0), nil
		}
		if handValue(st.player) == 21 {
			return st.encode(), st.playDealerAndSettle(s, 0), nil
		}
		return st.encode(), nil, nil

	case bjStand:
		return st.encode(), st.playDealerAndSettle(s, 0), nil

	case bjDouble:
		if len(st.player) != 2 || st.mult != 1 {
			return nil, nil, ErrInvalidMove
		}
		st.mult = 2
		st.player = append(st.player, draw(s, st.dealt()))
		if handValue(st.player) > 21 {
			return st.encode(), st.settle(0, st.bet), nil
		}
		return st.encode(), st.playDealerAndSettle(s, st.bet), nil

	default:
		return nil, nil, ErrInvalidMove
	}
}

func (st *bjState) playDealerAndSettle(s *rng.Stream, extra uint64) *Outcome {
	for handValue(st.dealer) < 17 {
		st.dealer = append(st.dealer, draw(s, st.dealt()))
	}
	pv, dv := handValue(st.player), handValue(st.dealer)
	wager := st.bet * uint64(st.mult)

	var main uint64
	switch {
	case isNatural(st.player) && !isNatural(st.dealer):
		main = st.bet + st.bet*3/2 // 3:2 on the base bet
	case isNatural(st.dealer) && !isNatural(st.player):
		main = 0
	case dv > 21 || pv > dv:
		main = 2 * wager
	case pv == dv:
		main = wager
	default:
		main = 0
	}
	return st.settle(main, extra)
}

func (st *bjState) settle(main, extra uint64) *Outcome {
	out := &Outcome{Payout: main + st.sideWin, ExtraWager: extra}
	if main > 0 {
		out.Breakdown = append(out.Breakdown, codec.PayoutPart{Kind: codec.PayoutMain, Amount: main})
	}
	if st.sideWin > 0 {
		out.Breakdown = append(out.Breakdown, codec.PayoutPart{Kind: codec.PayoutSideBet, Amount: st.sideWin})
	}
	return out
}
