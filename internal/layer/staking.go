package layer

import (
	"math/bits"

	"github.com/holiman/uint256"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/state"
)

// scaleX18 is the fixed-point scale of the reward index.
var scaleX18 = new(uint256.Int).Mul(
	new(uint256.Int).SetUint64(1_000_000_000_000),
	new(uint256.Int).SetUint64(1_000_000),
)

// settleStaker folds the accrued index delta into unclaimed rewards and
// refreshes the debt. Every multiplication is checked; overflow surfaces
// as RewardOverflow and fails only the transaction.
func settleStaker(s *state.Staker, g *state.StakingGlobal) (uint64, *DomainError) {
	acc, overflow := new(uint256.Int).MulOverflow(s.VotingPower, g.RewardPerVotingPowerX18)
	if overflow {
		return 0, domainErr(CodeRewardOverflow, "reward accumulator overflow")
	}
	if acc.Lt(s.RewardDebtX18) {
		return 0, domainErr(CodeRewardOverflow, "reward debt exceeds accumulator")
	}
	pending := new(uint256.Int).Sub(acc, s.RewardDebtX18)
	pending.Div(pending, scaleX18)
	if !pending.IsUint64() {
		return 0, domainErr(CodeRewardOverflow, "pending reward out of range")
	}
	p := pending.Uint64()
	next, carry := bits.Add64(s.UnclaimedRewards, p, 0)
	if carry != 0 {
		return 0, domainErr(CodeRewardOverflow, "unclaimed rewards overflow")
	}
	s.UnclaimedRewards = next
	s.RewardDebtX18 = acc
	return p, nil
}

func refreshDebt(s *state.Staker, g *state.StakingGlobal) *DomainError {
	acc, overflow := new(uint256.Int).MulOverflow(s.VotingPower, g.RewardPerVotingPowerX18)
	if overflow {
		return domainErr(CodeRewardOverflow, "reward accumulator overflow")
	}
	s.RewardDebtX18 = acc
	return nil
}

// stake locks chips as voting power. Staked chips count as escrowed in the
// house issuance ledger.
func (l *Layer) stake(sender [32]byte, i *codec.Stake) ([]codec.Event, error) {
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "stake amount must be > 0")
	}
	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	if acct.Chips < i.Amount {
		return nil, domainErr(CodeInsufficientFunds, "insufficient chips: have=%d need=%d", acct.Chips, i.Amount)
	}
	staker, err := l.staker(sender)
	if err != nil {
		return nil, err
	}
	global, err := l.stakingGlobal()
	if err != nil {
		return nil, err
	}
	pending, derr := settleStaker(staker, global)
	if derr != nil {
		return nil, derr
	}

	house, err := l.house()
	if err != nil {
		return nil, err
	}

	acct.Chips -= i.Amount
	house.EscrowedChips += i.Amount
	staker.VotingPower = new(uint256.Int).Add(staker.VotingPower, u256(i.Amount))
	global.TotalVotingPower = new(uint256.Int).Add(global.TotalVotingPower, u256(i.Amount))
	if derr := refreshDebt(staker, global); derr != nil {
		return nil, derr
	}

	l.setAccount(sender, acct)
	l.setHouse(house)
	l.put(state.StakerKey(sender), staker.Encode())
	l.put(state.StakingGlobalKey(), global.Encode())

	events := []codec.Event{&codec.StakeChanged{Staker: sender, VotingPower: staker.VotingPower.Uint64()}}
	if pending > 0 {
		events = append(events, &codec.RewardAccrued{Staker: sender, Amount: pending})
	}
	return events, nil
}

func (l *Layer) unstake(sender [32]byte, i *codec.Unstake) ([]codec.Event, error) {
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "unstake amount must be > 0")
	}
	staker, err := l.staker(sender)
	if err != nil {
		return nil, err
	}
	if staker.VotingPower.Lt(u256(i.Amount)) {
		return nil, domainErr(CodeNoStake, "insufficient voting power")
	}
	global, err := l.stakingGlobal()
	if err != nil {
		return nil, err
	}
	pending, derr := settleStaker(staker, global)
	if derr != nil {
		return nil, derr
	}

	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	house, err := l.house()
	if err != nil {
		return nil, err
	}

	staker.VotingPower = new(uint256.Int).Sub(staker.VotingPower, u256(i.Amount))
	global.TotalVotingPower = new(uint256.Int).Sub(global.TotalVotingPower, u256(i.Amount))
	acct.Chips += i.Amount
	house.EscrowedChips -= i.Amount
	if derr := refreshDebt(staker, global); derr != nil {
		return nil, derr
	}

	l.setAccount(sender, acct)
	l.setHouse(house)
	l.put(state.StakerKey(sender), staker.Encode())
	l.put(state.StakingGlobalKey(), global.Encode())

	events := []codec.Event{&codec.StakeChanged{Staker: sender, VotingPower: staker.VotingPower.Uint64()}}
	if pending > 0 {
		events = append(events, &codec.RewardAccrued{Staker: sender, Amount: pending})
	}
	return events, nil
}

// claimRewards pays accrued vUSDT out of the reward index.
func (l *Layer) claimRewards(sender [32]byte) ([]codec.Event, error) {
	staker, err := l.staker(sender)
	if err != nil {
		return nil, err
	}
	global, err := l.stakingGlobal()
	if err != nil {
		return nil, err
	}
	if _, derr := settleStaker(staker, global); derr != nil {
		return nil, derr
	}
	if staker.UnclaimedRewards == 0 {
		return nil, domainErr(CodeNoStake, "nothing to claim")
	}

	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	amount := staker.UnclaimedRewards
	staker.UnclaimedRewards = 0
	acct.VUSDT += amount

	l.setAccount(sender, acct)
	l.put(state.StakerKey(sender), staker.Encode())

	return []codec.Event{&codec.RewardsClaimed{Staker: sender, Amount: amount}}, nil
}

// distributeRewards feeds the reward index with freshly issued vUSDT; the
// issuance is tracked as house stable debt.
func (l *Layer) distributeRewards(sender [32]byte, i *codec.DistributeRewards) ([]codec.Event, error) {
	if sender != l.admin {
		return nil, domainErr(CodeUnauthorized, "reward distribution is admin-gated")
	}
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "distribution amount must be > 0")
	}
	global, err := l.stakingGlobal()
	if err != nil {
		return nil, err
	}
	if global.TotalVotingPower.IsZero() {
		return nil, domainErr(CodeNoStake, "no voting power to distribute over")
	}
	delta, overflow := new(uint256.Int).MulOverflow(u256(i.Amount), scaleX18)
	if overflow {
		return nil, domainErr(CodeRewardOverflow, "distribution amount out of range")
	}
	delta.Div(delta, global.TotalVotingPower)
	next, overflow := new(uint256.Int).AddOverflow(global.RewardPerVotingPowerX18, delta)
	if overflow {
		return nil, domainErr(CodeRewardOverflow, "reward index overflow")
	}
	global.RewardPerVotingPowerX18 = next

	house, err := l.house()
	if err != nil {
		return nil, err
	}
	house.VUSDTDebt += i.Amount

	l.setHouse(house)
	l.put(state.StakingGlobalKey(), global.Encode())

	return nil, nil
}

// accrueToStakers routes sell-tax overflow into the reward index. Returns
// false when there is no voting power (or the index cannot absorb it), in
// which case the caller redirects the amount.
func (l *Layer) accrueToStakers(amount uint64) bool {
	if amount == 0 {
		return true
	}
	global, err := l.stakingGlobal()
	if err != nil {
		return false
	}
	if global.TotalVotingPower.IsZero() {
		return false
	}
	delta, overflow := new(uint256.Int).MulOverflow(u256(amount), scaleX18)
	if overflow {
		return false
	}
	delta.Div(delta, global.TotalVotingPower)
	next, overflow := new(uint256.Int).AddOverflow(global.RewardPerVotingPowerX18, delta)
	if overflow {
		return false
	}
	global.RewardPerVotingPowerX18 = next
	l.put(state.StakingGlobalKey(), global.Encode())
	return true
}
