package games

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/rng"
)

func bjStream(move uint64) *rng.Stream {
	return rng.New([]byte("blackjack-test-seed"), 7, move)
}

func TestBlackjack_StartIsDeterministic(t *testing.T) {
	g, ok := Lookup(GameBlackjack)
	require.True(t, ok)

	b1, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)
	b2, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)
	require.True(t, bytes.Equal(b1, b2))
	require.Equal(t, blackjackBlobV1, b1[0])

	st, err := decodeBJ(b1)
	require.NoError(t, err)
	require.Len(t, st.player, 2)
	require.Len(t, st.dealer, 2)
	require.EqualValues(t, 100, st.bet)
	seen := map[Card]bool{}
	for _, c := range st.dealt() {
		require.False(t, seen[c], "duplicate card %v", c)
		seen[c] = true
	}
}

func TestBlackjack_RejectsZeroBetAndBadSideBet(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	_, err := g.Start(bjStream(0), 0, nil)
	require.ErrorIs(t, err, ErrInvalidBet)

	_, err = g.Start(bjStream(0), 100, []codec.SideBet{{Kind: 99, Amount: 10}})
	require.ErrorIs(t, err, ErrInvalidBet)
}

func TestBlackjack_StandSettlesWithLegalPayout(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	blob, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)

	_, outcome, err := g.ApplyMove(bjStream(1), blob, []byte{bjStand})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Zero(t, outcome.ExtraWager)
	require.Contains(t, []uint64{0, 100, 200, 250}, outcome.Payout)
}

func TestBlackjack_HitUntilTerminal(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	blob, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)

	for move := uint64(1); ; move++ {
		require.Less(t, move, uint64(12), "hand did not terminate")
		next, outcome, err := g.ApplyMove(bjStream(move), blob, []byte{bjHit})
		if err != nil {
			// Hitting a standing total of 21 is the only legal failure here.
			require.ErrorIs(t, err, ErrInvalidMove)
			st, derr := decodeBJ(blob)
			require.NoError(t, derr)
			require.Equal(t, 21, handValue(st.player))
			return
		}
		blob = next
		if outcome != nil {
			st, derr := decodeBJ(blob)
			require.NoError(t, derr)
			if handValue(st.player) > 21 {
				require.Zero(t, outcome.Payout)
			}
			return
		}
	}
}

func TestBlackjack_DoubleRequiresTwoCardsAndEscrow(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	blob, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)

	next, outcome, err := g.ApplyMove(bjStream(1), blob, []byte{bjDouble})
	require.NoError(t, err)
	require.NotNil(t, outcome, "double is always terminal")
	require.EqualValues(t, 100, outcome.ExtraWager)

	// A second double on the already-doubled blob is illegal.
	_, _, err = g.ApplyMove(bjStream(2), next, []byte{bjDouble})
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestBlackjack_RejectsUnknownBlobVersion(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	blob, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)
	blob[0] = 0x7F
	_, _, err = g.ApplyMove(bjStream(1), blob, []byte{bjStand})
	require.ErrorIs(t, err, codec.ErrUnsupportedVersion)
}

func TestBlackjack_RejectsMalformedMove(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	blob, err := g.Start(bjStream(0), 100, nil)
	require.NoError(t, err)
	for _, payload := range [][]byte{nil, {}, {9}, {0, 0}} {
		_, _, err := g.ApplyMove(bjStream(1), blob, payload)
		require.ErrorIs(t, err, ErrInvalidMove, "payload %v", payload)
	}
}

func TestHandValue(t *testing.T) {
	// Card encoding: rank = c%13 + 2, so c=0 is a deuce and c=12 is an ace.
	deuce, ace, king, nine := Card(0), Card(12), Card(11), Card(7)
	require.Equal(t, 4, handValue([]Card{deuce, deuce}))
	require.Equal(t, 21, handValue([]Card{ace, king}))
	require.Equal(t, 12, handValue([]Card{ace, ace}))
	require.Equal(t, 20, handValue([]Card{ace, nine, king}))
	require.True(t, isNatural([]Card{ace, king}))
	require.False(t, isNatural([]Card{ace, nine}))
}

func TestBlackjack_PerfectPairSideBet(t *testing.T) {
	g, _ := Lookup(GameBlackjack)
	// Search a few seeds for a dealt pair so the side-bet path is exercised;
	// the stream is deterministic, so the found seed stays stable.
	for session := uint64(0); session < 400; session++ {
		blob, err := g.Start(rng.New([]byte("pair-hunt"), session, 0), 100,
			[]codec.SideBet{{Kind: SideBetPerfectPair, Amount: 10}})
		require.NoError(t, err)
		st, err := decodeBJ(blob)
		require.NoError(t, err)
		if st.player[0].Rank() == st.player[1].Rank() {
			require.EqualValues(t, 10*(perfectPairMultiplier+1), st.sideWin)
			return
		}
		require.Zero(t, st.sideWin)
	}
	t.Fatalf("no pair dealt in 400 deterministic deals")
}
