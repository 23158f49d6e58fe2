package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"nullsociety/chain/internal/codec"
)

func TestKeyOrdering(t *testing.T) {
	var a, b [32]byte
	b[31] = 1

	// Tag ordering dominates.
	require.Negative(t, Compare(AccountKey(a), SessionKey(0)))
	require.Negative(t, Compare(SessionKey(^uint64(0)), HouseKey()))
	require.Negative(t, Compare(HouseKey(), AmmPoolKey()))

	// Payload ordering within a tag follows big-endian encoding.
	require.Negative(t, Compare(SessionKey(1), SessionKey(2)))
	require.Negative(t, Compare(SessionKey(255), SessionKey(256)))
	require.Negative(t, Compare(AccountKey(a), AccountKey(b)))
	require.Zero(t, Compare(AccountKey(a), AccountKey(a)))
}

func TestAccountRoundTrip(t *testing.T) {
	tid := uint64(9)
	a := &Account{
		Nonce: 4, Chips: 1000, VUSDT: 20, Credits: 3, CreditsLocked: 1,
		TournamentChips: 7, Shields: 2, Doubles: 1, ActiveTournament: &tid,
	}
	out, err := DecodeAccount(a.Encode())
	require.NoError(t, err)
	require.Equal(t, a, out)

	bare := &Account{Nonce: 1}
	out, err = DecodeAccount(bare.Encode())
	require.NoError(t, err)
	require.Equal(t, bare, out)
}

func TestDecodeAccount_RejectsUnknownVersion(t *testing.T) {
	enc := (&Account{Nonce: 1}).Encode()
	enc[0] = 0x7F
	_, err := DecodeAccount(enc)
	require.ErrorIs(t, err, codec.ErrUnsupportedVersion)
}

func TestSessionRoundTrip(t *testing.T) {
	var owner [32]byte
	owner[5] = 0xAB
	s := &Session{
		Owner: owner, GameType: 1, Stage: SessionInProgress,
		Wager: 125, StateBlob: []byte{0x01, 0x02, 0x03}, MoveCount: 2,
	}
	out, err := DecodeSession(s.Encode())
	require.NoError(t, err)
	require.Equal(t, s, out)
}

func TestStakerRoundTrip_U128(t *testing.T) {
	s := &Staker{
		VotingPower:      uint256.NewInt(0).Lsh(uint256.NewInt(1), 100),
		RewardDebtX18:    uint256.NewInt(123456789),
		UnclaimedRewards: 55,
	}
	out, err := DecodeStaker(s.Encode())
	require.NoError(t, err)
	require.True(t, s.VotingPower.Eq(out.VotingPower))
	require.True(t, s.RewardDebtX18.Eq(out.RewardDebtX18))
	require.Equal(t, s.UnclaimedRewards, out.UnclaimedRewards)
}

func TestWithdrawalRoundTrip(t *testing.T) {
	var owner, by [32]byte
	owner[0], by[0] = 1, 2
	wd := &BridgeWithdrawal{
		Owner: owner, Amount: 42, Destination: []byte{0xBE, 0xEF},
		AvailableTS: 100, Fulfilled: true, FinalizedBy: &by,
		FinalizedSource: []byte{0xCA, 0xFE}, FinalizedTS: 101,
	}
	out, err := DecodeBridgeWithdrawal(wd.Encode())
	require.NoError(t, err)
	require.Equal(t, wd, out)

	pending := &BridgeWithdrawal{Owner: owner, Amount: 1, Destination: []byte{1}, AvailableTS: 10}
	out, err = DecodeBridgeWithdrawal(pending.Encode())
	require.NoError(t, err)
	require.Equal(t, pending, out)
}

func TestHouseRoundTrip_NegativePnL(t *testing.T) {
	h := &House{
		TotalIssuance: 100, TotalBurned: 20, NetPnL: -5,
		VUSDTDebt: 3, StabilityFeesAccrued: 2, RecoveryPoolVUSDT: 9,
		CurrentEpoch: 1, RecoveryProgramCap: 1000, EscrowedChips: 80,
		NextWithdrawalID: 6,
	}
	out, err := DecodeHouse(h.Encode())
	require.NoError(t, err)
	require.Equal(t, h, out)
}
