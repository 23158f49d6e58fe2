package games

import (
	"fmt"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/rng"
)

// HiLo moves (single-byte payload).
const (
	hiloLower   uint8 = 0
	hiloHigher  uint8 = 1
	hiloCashout uint8 = 2
)

const hiloBlobV1 uint8 = 0x01

// hiloMaxStreak auto-cashes the session; the multiplier table tops out.
const hiloMaxStreak = 8

// hilo is a streak game: guess whether the next card ranks higher or
// lower. Equal ranks push. Cashing out at streak n pays bet*(2+n)/2.
//
// Blob v1 layout: version(1) bet(8) card(1) streak(1).
type hilo struct{}

type hiloState struct {
	bet    uint64
	card   Card
	streak uint8
}

func (st *hiloState) encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(hiloBlobV1)
	w.WriteU64(st.bet)
	w.WriteU8(uint8(st.card))
	w.WriteU8(st.streak)
	return w.Bytes()
}

func decodeHiLo(blob []byte) (*hiloState, error) {
	r := codec.NewReader(blob)
	version, err := r.ReadU8()
	if err != nil {
		return nil, ErrCorruptBlob
	}
	if version != hiloBlobV1 {
		return nil, fmt.Errorf("%w: hilo blob 0x%02x", codec.ErrUnsupportedVersion, version)
	}
	st := &hiloState{}
	if st.bet, err = r.ReadU64(); err != nil {
		return nil, ErrCorruptBlob
	}
	c, err := r.ReadU8()
	if err != nil || c > 51 {
		return nil, ErrCorruptBlob
	}
	st.card = Card(c)
	if st.streak, err = r.ReadU8(); err != nil {
		return nil, ErrCorruptBlob
	}
	if err := r.Close(); err != nil {
		return nil, ErrCorruptBlob
	}
	return st, nil
}

func (st *hiloState) cashout() *Outcome {
	payout := st.bet * (2 + uint64(st.streak)) / 2
	return &Outcome{
		Payout:    payout,
		Breakdown: []codec.PayoutPart{{Kind: codec.PayoutMain, Amount: payout}},
	}
}

func (hilo) Start(s *rng.Stream, bet uint64, sideBets []codec.SideBet) ([]byte, error) {
	if bet == 0 {
		return nil, ErrInvalidBet
	}
	if len(sideBets) != 0 {
		return nil, fmt.Errorf("%w: hilo takes no side bets", ErrInvalidBet)
	}
	st := &hiloState{bet: bet, card: draw(s, nil)}
	return st.encode(), nil
}

func (hilo) ApplyMove(s *rng.Stream, blob []byte, payload []byte) ([]byte, *Outcome, error) {
	st, err := decodeHiLo(blob)
	if err != nil {
		return nil, nil, err
	}
	if len(payload) != 1 {
		return nil, nil, ErrInvalidMove
	}
	switch payload[0] {
	case hiloCashout:
		return st.encode(), st.cashout(), nil

	case hiloLower, hiloHigher:
		next := draw(s, []Card{st.card})
		prev := st.card
		st.card = next
		switch {
		case next.Rank() == prev.Rank():
			// Push: streak holds, session continues.
			return st.encode(), nil, nil
		case (payload[0] == hiloHigher) == (next.Rank() > prev.Rank()):
			st.streak++
			if st.streak >= hiloMaxStreak {
				return st.encode(), st.cashout(), nil
			}
			return st.encode(), nil, nil
		default:
			return st.encode(), &Outcome{}, nil
		}

	default:
		return nil, nil, ErrInvalidMove
	}
}
