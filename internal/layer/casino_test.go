package layer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/games"
	"nullsociety/chain/internal/state"
)

func TestStartGame_EscrowsWagerAndEmits(t *testing.T) {
	world := newWorld(t, map[string]uint64{"alice": 1000}, nil)
	_, alicePriv := testKey("alice")
	alicePub, _ := testKey("alice")
	l := newLayer(world, 50)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: games.GameBlackjack, Bet: 100, SessionID: 7}),
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	require.Len(t, outs[0].Events, 1)
	started, ok := outs[0].Events[0].(*codec.GameStarted)
	require.True(t, ok)
	require.EqualValues(t, 7, started.SessionID)
	require.Equal(t, alicePub, started.Owner)
	require.EqualValues(t, 100, started.Wager)

	require.EqualValues(t, 900, accountOf(t, l, "alice").Chips)
	sess, err := l.session(7)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, alicePub, sess.Owner)
	require.EqualValues(t, 100, sess.Wager)
	require.Equal(t, state.SessionInProgress, sess.Stage)

	house, err := l.house()
	require.NoError(t, err)
	require.EqualValues(t, 100, house.EscrowedChips)
	requireIssuanceClosed(t, l, "alice")
}

func TestStartGame_DomainFailures(t *testing.T) {
	world := newWorld(t, map[string]uint64{"alice": 1000}, nil)
	_, alicePriv := testKey("alice")
	l := newLayer(world, 50)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: games.GameBlackjack, Bet: 100, SessionID: 7}),
		signedTx(t, alicePriv, 1, &codec.StartGame{GameType: games.GameBlackjack, Bet: 100, SessionID: 7}),
		signedTx(t, alicePriv, 2, &codec.StartGame{GameType: games.GameBlackjack, Bet: 10_000, SessionID: 8}),
		signedTx(t, alicePriv, 3, &codec.StartGame{GameType: 0x7F, Bet: 100, SessionID: 9}),
		signedTx(t, alicePriv, 4, &codec.StartGame{GameType: games.GameBlackjack, Bet: 0, SessionID: 10}),
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	requireCasinoError(t, outs[1], CodeSessionExists)
	requireCasinoError(t, outs[2], CodeInsufficientFunds)
	requireCasinoError(t, outs[3], CodeUnknownGameType)
	requireCasinoError(t, outs[4], CodeInvalidBet)

	// Every failure consumed a nonce; only session 7 exists.
	require.EqualValues(t, 5, accountOf(t, l, "alice").Nonce)
	require.EqualValues(t, 900, accountOf(t, l, "alice").Chips)
	requireIssuanceClosed(t, l, "alice")
}

func TestGameMove_OnlyOwnerMayMove(t *testing.T) {
	world := newWorld(t, map[string]uint64{"alice": 1000, "bob": 1000}, nil)
	_, alicePriv := testKey("alice")
	_, bobPriv := testKey("bob")
	l := newLayer(world, 50)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: games.GameBlackjack, Bet: 100, SessionID: 7}),
		signedTx(t, bobPriv, 0, &codec.GameMove{SessionID: 7, Payload: []byte{1}}),
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	requireCasinoError(t, outs[1], CodeNotOwner)
}

// The blackjack lifecycle across two committed heights: start at H=1,
// stand at H=2, session deleted, chips land on a legal settlement.
func TestBlackjackLifecycleAcrossHeights(t *testing.T) {
	world := newWorld(t, map[string]uint64{"alice": 1000}, nil)
	_, alicePriv := testKey("alice")

	l1 := New(world, Seed{Bytes: []byte("seed-h1"), ViewTime: 50}, 1, testAdmin)
	outs, _, err := l1.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: games.GameBlackjack, Bet: 100, SessionID: 7}),
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	commitLayer(t, world, l1, 1)

	l2 := New(world, Seed{Bytes: []byte("seed-h2"), ViewTime: 51}, 2, testAdmin)
	outs, _, err = l2.Execute([][]byte{
		signedTx(t, alicePriv, 1, &codec.GameMove{SessionID: 7, Payload: []byte{1}}), // stand
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	require.Len(t, outs[0].Events, 1)
	completed, ok := outs[0].Events[0].(*codec.GameCompleted)
	require.True(t, ok)
	require.EqualValues(t, 7, completed.SessionID)
	commitLayer(t, world, l2, 2)

	l3 := New(world, Seed{Bytes: []byte("seed-h3"), ViewTime: 52}, 3, testAdmin)
	sess, err := l3.session(7)
	require.NoError(t, err)
	require.Nil(t, sess, "completed session must be deleted")

	chips := accountOf(t, l3, "alice").Chips
	require.Contains(t, []uint64{900, 1000, 1100, 1150}, chips,
		"settlement must be loss, push, win, or natural")
	house, err := l3.house()
	require.NoError(t, err)
	require.Zero(t, house.EscrowedChips)
	requireIssuanceClosed(t, l3, "alice")
}

// A terminal double that cannot cover its extra escrow must fail cleanly:
// post-state equals pre-state except the consumed nonce.
func TestGameMove_DoubleWithoutFundsLeavesStateUntouched(t *testing.T) {
	world := newWorld(t, map[string]uint64{"alice": 100}, nil)
	_, alicePriv := testKey("alice")
	alicePub, _ := testKey("alice")

	l1 := newLayer(world, 50)
	outs, _, err := l1.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: games.GameBlackjack, Bet: 100, SessionID: 7}),
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	commitLayer(t, world, l1, 1)
	require.Zero(t, accountOf(t, newLayer(world, 50), "alice").Chips)

	l2 := New(world, Seed{Bytes: []byte("seed-h2"), ViewTime: 51}, 2, testAdmin)
	outs, _, err = l2.Execute([][]byte{
		signedTx(t, alicePriv, 1, &codec.GameMove{SessionID: 7, Payload: []byte{2}}), // double
	})
	require.NoError(t, err)
	requireCasinoError(t, outs[0], CodeInsufficientFunds)

	cs := l2.Changeset()
	require.Len(t, cs, 1, "only the nonce bump may survive")
	require.Equal(t, state.AccountKey(alicePub), cs[0].Key)
	a, err := state.DecodeAccount(cs[0].Value)
	require.NoError(t, err)
	require.EqualValues(t, 2, a.Nonce)
	require.Zero(t, a.Chips)

	sess, err := l2.session(7)
	require.NoError(t, err)
	require.NotNil(t, sess, "session survives the failed move")
	require.Zero(t, sess.MoveCount)
}

func TestGameMove_HiLoCashoutSettlesSession(t *testing.T) {
	world := newWorld(t, map[string]uint64{"alice": 1000}, nil)
	_, alicePriv := testKey("alice")
	l := newLayer(world, 50)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.StartGame{GameType: games.GameHiLo, Bet: 100, SessionID: 1}),
		signedTx(t, alicePriv, 1, &codec.GameMove{SessionID: 1, Payload: []byte{2}}), // cash out
	})
	require.NoError(t, err)
	require.False(t, outs[0].Skipped)
	completed, ok := outs[1].Events[0].(*codec.GameCompleted)
	require.True(t, ok)
	require.EqualValues(t, 100, completed.Payout, "streak-0 cashout returns the bet")
	require.EqualValues(t, 1000, accountOf(t, l, "alice").Chips)
	requireIssuanceClosed(t, l, "alice")
}
