package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"nullsociety/chain/internal/codec"
)

// Value format versions. Every encoded value leads with its version byte;
// decoders reject anything else with ErrUnsupportedVersion.
const (
	accountV1    uint8 = 0x01
	sessionV1    uint8 = 0x01
	houseV1      uint8 = 0x01
	ammPoolV1    uint8 = 0x01
	stakerV1     uint8 = 0x01
	stakingV1    uint8 = 0x01
	withdrawalV1 uint8 = 0x01
	vaultV1      uint8 = 0x01
	lpV1         uint8 = 0x01
)

func requireVersion(r *codec.Reader, want uint8) error {
	got, err := r.ReadU8()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: value version 0x%02x", codec.ErrUnsupportedVersion, got)
	}
	return nil
}

// Account is created lazily on first receive.
type Account struct {
	Nonce            uint64
	Chips            uint64
	VUSDT            uint64
	Credits          uint64
	CreditsLocked    uint64
	TournamentChips  uint64
	Shields          uint8
	Doubles          uint8
	ActiveTournament *uint64
}

func (a *Account) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(accountV1)
	w.WriteU64(a.Nonce)
	w.WriteU64(a.Chips)
	w.WriteU64(a.VUSDT)
	w.WriteU64(a.Credits)
	w.WriteU64(a.CreditsLocked)
	w.WriteU64(a.TournamentChips)
	w.WriteU8(a.Shields)
	w.WriteU8(a.Doubles)
	if a.ActiveTournament != nil {
		w.WriteBool(true)
		w.WriteU64(*a.ActiveTournament)
	} else {
		w.WriteBool(false)
	}
	return w.Bytes()
}

func DecodeAccount(b []byte) (*Account, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, accountV1); err != nil {
		return nil, err
	}
	a := &Account{}
	var err error
	if a.Nonce, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if a.Chips, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if a.VUSDT, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if a.Credits, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if a.CreditsLocked, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if a.TournamentChips, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if a.Shields, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if a.Doubles, err = r.ReadU8(); err != nil {
		return nil, err
	}
	has, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if has {
		id, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		a.ActiveTournament = &id
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return a, nil
}

// Session stages.
const (
	SessionInProgress uint8 = 0x01
)

// Session is one casino game instance; the wager is escrowed for its
// whole lifetime and the record is deleted on completion.
type Session struct {
	Owner     [32]byte
	GameType  uint8
	Stage     uint8
	Wager     uint64
	StateBlob []byte
	MoveCount uint64
}

func (s *Session) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(sessionV1)
	w.WriteFixed(s.Owner[:])
	w.WriteU8(s.GameType)
	w.WriteU8(s.Stage)
	w.WriteU64(s.Wager)
	w.WriteBytes32(s.StateBlob)
	w.WriteU64(s.MoveCount)
	return w.Bytes()
}

func DecodeSession(b []byte) (*Session, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, sessionV1); err != nil {
		return nil, err
	}
	s := &Session{}
	if err := r.ReadFixed(s.Owner[:]); err != nil {
		return nil, err
	}
	var err error
	if s.GameType, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if s.Stage, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if s.Wager, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if s.StateBlob, err = r.ReadBytes32(codec.MaxInstructionLength); err != nil {
		return nil, err
	}
	if s.MoveCount, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return s, nil
}

// House carries the aggregate economy counters. EscrowedChips tracks every
// chip held outside accounts (open session wagers, staked chips and the AMM
// pool's RNG reserve) so issuance accounting stays closed:
// TotalIssuance - TotalBurned = sum(Account.Chips) + EscrowedChips.
type House struct {
	TotalIssuance        uint64
	TotalBurned          uint64
	NetPnL               int64
	VUSDTDebt            uint64
	StabilityFeesAccrued uint64
	RecoveryPoolVUSDT    uint64
	CurrentEpoch         uint64
	RecoveryProgramCap   uint64
	EscrowedChips        uint64
	NextWithdrawalID     uint64
}

func (h *House) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(houseV1)
	w.WriteU64(h.TotalIssuance)
	w.WriteU64(h.TotalBurned)
	w.WriteU64(uint64(h.NetPnL))
	w.WriteU64(h.VUSDTDebt)
	w.WriteU64(h.StabilityFeesAccrued)
	w.WriteU64(h.RecoveryPoolVUSDT)
	w.WriteU64(h.CurrentEpoch)
	w.WriteU64(h.RecoveryProgramCap)
	w.WriteU64(h.EscrowedChips)
	w.WriteU64(h.NextWithdrawalID)
	return w.Bytes()
}

func DecodeHouse(b []byte) (*House, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, houseV1); err != nil {
		return nil, err
	}
	h := &House{}
	var err error
	if h.TotalIssuance, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.TotalBurned, err = r.ReadU64(); err != nil {
		return nil, err
	}
	pnl, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	h.NetPnL = int64(pnl)
	if h.VUSDTDebt, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.StabilityFeesAccrued, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.RecoveryPoolVUSDT, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.CurrentEpoch, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.RecoveryProgramCap, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.EscrowedChips, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if h.NextWithdrawalID, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return h, nil
}

// AmmPool is the single RNG/vUSDT constant-product pool.
type AmmPool struct {
	ReserveRNG        uint64
	ReserveVUSDT      uint64
	TotalShares       uint64
	BootstrapPriceNum uint64
	BootstrapPriceDen uint64
}

func (p *AmmPool) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(ammPoolV1)
	w.WriteU64(p.ReserveRNG)
	w.WriteU64(p.ReserveVUSDT)
	w.WriteU64(p.TotalShares)
	w.WriteU64(p.BootstrapPriceNum)
	w.WriteU64(p.BootstrapPriceDen)
	return w.Bytes()
}

func DecodeAmmPool(b []byte) (*AmmPool, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, ammPoolV1); err != nil {
		return nil, err
	}
	p := &AmmPool{}
	var err error
	if p.ReserveRNG, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if p.ReserveVUSDT, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if p.TotalShares, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if p.BootstrapPriceNum, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if p.BootstrapPriceDen, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return p, nil
}

// Staker settlement uses an x18 fixed-point reward index; both u128 fields
// are stored as 16-byte big-endian.
type Staker struct {
	VotingPower      *uint256.Int
	RewardDebtX18    *uint256.Int
	UnclaimedRewards uint64
}

func NewStaker() *Staker {
	return &Staker{
		VotingPower:   new(uint256.Int),
		RewardDebtX18: new(uint256.Int),
	}
}

func (s *Staker) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(stakerV1)
	w.WriteU128(s.VotingPower)
	w.WriteU128(s.RewardDebtX18)
	w.WriteU64(s.UnclaimedRewards)
	return w.Bytes()
}

func DecodeStaker(b []byte) (*Staker, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, stakerV1); err != nil {
		return nil, err
	}
	s := &Staker{}
	var err error
	if s.VotingPower, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if s.RewardDebtX18, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if s.UnclaimedRewards, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return s, nil
}

// StakingGlobal tracks the cumulative reward index and the total bonded
// voting power it is distributed over.
type StakingGlobal struct {
	RewardPerVotingPowerX18 *uint256.Int
	TotalVotingPower        *uint256.Int
}

func NewStakingGlobal() *StakingGlobal {
	return &StakingGlobal{
		RewardPerVotingPowerX18: new(uint256.Int),
		TotalVotingPower:        new(uint256.Int),
	}
}

func (g *StakingGlobal) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(stakingV1)
	w.WriteU128(g.RewardPerVotingPowerX18)
	w.WriteU128(g.TotalVotingPower)
	return w.Bytes()
}

func DecodeStakingGlobal(b []byte) (*StakingGlobal, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, stakingV1); err != nil {
		return nil, err
	}
	g := &StakingGlobal{}
	var err error
	if g.RewardPerVotingPowerX18, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if g.TotalVotingPower, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return g, nil
}

// BridgeWithdrawal is terminal once fulfilled; finalization fields are
// write-once.
type BridgeWithdrawal struct {
	Owner           [32]byte
	Amount          uint64
	Destination     []byte
	AvailableTS     uint64
	Fulfilled       bool
	FinalizedBy     *[32]byte
	FinalizedSource []byte
	FinalizedTS     uint64
}

func (wd *BridgeWithdrawal) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(withdrawalV1)
	w.WriteFixed(wd.Owner[:])
	w.WriteU64(wd.Amount)
	w.WriteBytes16(wd.Destination)
	w.WriteU64(wd.AvailableTS)
	w.WriteBool(wd.Fulfilled)
	if wd.FinalizedBy != nil {
		w.WriteBool(true)
		w.WriteFixed(wd.FinalizedBy[:])
	} else {
		w.WriteBool(false)
	}
	w.WriteBytes16(wd.FinalizedSource)
	w.WriteU64(wd.FinalizedTS)
	return w.Bytes()
}

func DecodeBridgeWithdrawal(b []byte) (*BridgeWithdrawal, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, withdrawalV1); err != nil {
		return nil, err
	}
	wd := &BridgeWithdrawal{}
	if err := r.ReadFixed(wd.Owner[:]); err != nil {
		return nil, err
	}
	var err error
	if wd.Amount, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if wd.Destination, err = r.ReadBytes16(codec.MaxDestinationLength); err != nil {
		return nil, err
	}
	if wd.AvailableTS, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if wd.Fulfilled, err = r.ReadBool(); err != nil {
		return nil, err
	}
	has, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if has {
		var by [32]byte
		if err := r.ReadFixed(by[:]); err != nil {
			return nil, err
		}
		wd.FinalizedBy = &by
	}
	if wd.FinalizedSource, err = r.ReadBytes16(codec.MaxDestinationLength); err != nil {
		return nil, err
	}
	if wd.FinalizedTS, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return wd, nil
}

// Vault is a delinquent-debt record retired out of the recovery pool.
type Vault struct {
	DebtVUSDT uint64
}

func (v *Vault) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(vaultV1)
	w.WriteU64(v.DebtVUSDT)
	return w.Bytes()
}

func DecodeVault(b []byte) (*Vault, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, vaultV1); err != nil {
		return nil, err
	}
	v := &Vault{}
	var err error
	if v.DebtVUSDT, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return v, nil
}

// LpPosition holds one provider's AMM share balance. The burn address's
// position carries the permanently locked minimum liquidity.
type LpPosition struct {
	Shares uint64
}

func (p *LpPosition) Encode() []byte {
	w := codec.NewWriter()
	w.WriteU8(lpV1)
	w.WriteU64(p.Shares)
	return w.Bytes()
}

func DecodeLpPosition(b []byte) (*LpPosition, error) {
	r := codec.NewReader(b)
	if err := requireVersion(r, lpV1); err != nil {
		return nil, err
	}
	p := &LpPosition{}
	var err error
	if p.Shares, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return p, nil
}
