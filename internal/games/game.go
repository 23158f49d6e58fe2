// Package games hosts the per-game dealer logic behind casino sessions.
// Each game is a pure function of the move stream and its state blob; all
// randomness comes from the caller-supplied rng.Stream.
package games

import (
	"errors"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/rng"
)

// Game type tags carried in StartGame instructions and session records.
const (
	GameBlackjack uint8 = 0x01
	GameHiLo      uint8 = 0x02
)

var (
	ErrInvalidMove = errors.New("games: invalid move")
	ErrCorruptBlob = errors.New("games: corrupt state blob")
	ErrInvalidBet  = errors.New("games: invalid bet")
)

// Outcome reports a terminal settlement. Payout is the gross amount
// returned to the owner against the full escrow (wager plus side bets plus
// ExtraWager). ExtraWager is additional escrow the move itself requires
// (doubling down); the caller must debit it before settling.
type Outcome struct {
	Payout     uint64
	ExtraWager uint64
	Breakdown  []codec.PayoutPart
}

// Game is one dealer implementation. Start produces the initial state
// blob; ApplyMove advances it and reports an Outcome on terminal moves.
type Game interface {
	Start(s *rng.Stream, bet uint64, sideBets []codec.SideBet) ([]byte, error)
	ApplyMove(s *rng.Stream, blob []byte, payload []byte) ([]byte, *Outcome, error)
}

var registry = map[uint8]Game{
	GameBlackjack: blackjack{},
	GameHiLo:      hilo{},
}

// Lookup resolves the dealer for a game type tag.
func Lookup(gameType uint8) (Game, bool) {
	g, ok := registry[gameType]
	return g, ok
}
