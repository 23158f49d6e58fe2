package layer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/state"
)

func TestRequestWithdrawal_DebitsAndSchedules(t *testing.T) {
	world := newWorld(t, nil, map[string]uint64{"alice": 1000})
	_, alicePriv := testKey("alice")
	alicePub, _ := testKey("alice")
	l := newLayer(world, 400)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.RequestBridgeWithdrawal{Amount: 250, Destination: []byte{0xBE, 0xEF}}),
		signedTx(t, alicePriv, 1, &codec.RequestBridgeWithdrawal{Amount: 100, Destination: []byte{0x01}}),
	})
	require.NoError(t, err)
	ev0 := outs[0].Events[0].(*codec.WithdrawalRequested)
	ev1 := outs[1].Events[0].(*codec.WithdrawalRequested)
	require.EqualValues(t, 0, ev0.WithdrawalID)
	require.EqualValues(t, 1, ev1.WithdrawalID, "ids are allocated sequentially")
	require.EqualValues(t, 400+WithdrawalDelay, ev0.AvailableTS)

	require.EqualValues(t, 650, accountOf(t, l, "alice").VUSDT)
	wd, err := l.withdrawal(0)
	require.NoError(t, err)
	require.Equal(t, alicePub, wd.Owner)
	require.False(t, wd.Fulfilled)
	require.Nil(t, wd.FinalizedBy)
}

func TestRequestWithdrawal_Failures(t *testing.T) {
	world := newWorld(t, nil, map[string]uint64{"alice": 10})
	_, alicePriv := testKey("alice")
	l := newLayer(world, 400)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.RequestBridgeWithdrawal{Amount: 100, Destination: []byte{1}}),
		signedTx(t, alicePriv, 1, &codec.RequestBridgeWithdrawal{Amount: 0, Destination: []byte{1}}),
		signedTx(t, alicePriv, 2, &codec.RequestBridgeWithdrawal{Amount: 5, Destination: nil}),
	})
	require.NoError(t, err)
	requireCasinoError(t, outs[0], CodeInsufficientFunds)
	requireCasinoError(t, outs[1], CodeInvalidBet)
	requireCasinoError(t, outs[2], CodeInvalidBet)
}

// The literal finalization boundary: a withdrawal available at 100 fails
// at view time 99, succeeds at exactly 100, and is write-once thereafter.
func TestFinalizeWithdrawal_BoundaryAndWriteOnce(t *testing.T) {
	world := newWorld(t, nil, nil)
	var owner [32]byte
	owner[0] = 0x11
	world.Put(state.WithdrawalKey(5), (&state.BridgeWithdrawal{
		Owner:       owner,
		Amount:      42,
		Destination: []byte{0xDE, 0xAD},
		AvailableTS: 100,
	}).Encode())
	require.NoError(t, world.Commit(1))

	// view_time = available_ts - 1: not ready.
	l := New(world, Seed{Bytes: []byte("s"), ViewTime: 99}, 2, testAdmin)
	outs, _, err := l.Execute([][]byte{
		signedTx(t, testAdminPriv, 0, &codec.FinalizeBridgeWithdrawal{WithdrawalID: 5, Source: []byte{0xBE, 0xEF}}),
	})
	require.NoError(t, err)
	requireCasinoError(t, outs[0], CodeWithdrawalNotReady)

	// view_time = available_ts: finalizes and records provenance.
	l = New(world, Seed{Bytes: []byte("s"), ViewTime: 100}, 2, testAdmin)
	outs, _, err = l.Execute([][]byte{
		signedTx(t, testAdminPriv, 0, &codec.FinalizeBridgeWithdrawal{WithdrawalID: 5, Source: []byte{0xBE, 0xEF}}),
		signedTx(t, testAdminPriv, 1, &codec.FinalizeBridgeWithdrawal{WithdrawalID: 5, Source: []byte{0xFF, 0xFF}}),
	})
	require.NoError(t, err)
	fin := outs[0].Events[0].(*codec.WithdrawalFinalized)
	require.EqualValues(t, 5, fin.WithdrawalID)
	require.Equal(t, []byte{0xBE, 0xEF}, fin.Source)
	require.EqualValues(t, 100, fin.FinalizedTS)
	requireCasinoError(t, outs[1], CodeAlreadyFinalized)

	wd, err := l.withdrawal(5)
	require.NoError(t, err)
	require.True(t, wd.Fulfilled)
	require.NotNil(t, wd.FinalizedBy)
	require.Equal(t, testAdmin, *wd.FinalizedBy)
	require.Equal(t, []byte{0xBE, 0xEF}, wd.FinalizedSource,
		"a second finalize must not overwrite the recorded source")
	require.Positive(t, wd.FinalizedTS)
}

func TestFinalizeWithdrawal_AdminGatedAndMissing(t *testing.T) {
	world := newWorld(t, nil, map[string]uint64{"alice": 100})
	_, alicePriv := testKey("alice")
	l := newLayer(world, 400)

	outs, _, err := l.Execute([][]byte{
		signedTx(t, alicePriv, 0, &codec.FinalizeBridgeWithdrawal{WithdrawalID: 0, Source: []byte{1}}),
		signedTx(t, testAdminPriv, 0, &codec.FinalizeBridgeWithdrawal{WithdrawalID: 99, Source: []byte{1}}),
	})
	require.NoError(t, err)
	requireCasinoError(t, outs[0], CodeUnauthorized)
	requireCasinoError(t, outs[1], CodeWithdrawalNotFound)
}
