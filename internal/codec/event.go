package codec

import "fmt"

// Event variant tags.
const (
	EvGameStarted         uint8 = 0x01
	EvGameMoved           uint8 = 0x02
	EvGameCompleted       uint8 = 0x03
	EvSwapExecuted        uint8 = 0x04
	EvLiquidityChanged    uint8 = 0x05
	EvWithdrawalRequested uint8 = 0x06
	EvWithdrawalFinalized uint8 = 0x07
	EvRewardAccrued       uint8 = 0x08
	EvCasinoError         uint8 = 0x09
	EvRewardsClaimed      uint8 = 0x0A
	EvStakeChanged        uint8 = 0x0B
	EvRecoveryPoolFunded  uint8 = 0x0C
	EvVaultDebtRetired    uint8 = 0x0D
	EvOraclePriceSet      uint8 = 0x0E
)

// MaxErrorMessageLength caps CasinoError message bodies.
const MaxErrorMessageLength = 512

// EventName maps a variant tag to its stable external name.
func EventName(tag uint8) string {
	switch tag {
	case EvGameStarted:
		return "GameStarted"
	case EvGameMoved:
		return "GameMoved"
	case EvGameCompleted:
		return "GameCompleted"
	case EvSwapExecuted:
		return "SwapExecuted"
	case EvLiquidityChanged:
		return "LiquidityChanged"
	case EvWithdrawalRequested:
		return "WithdrawalRequested"
	case EvWithdrawalFinalized:
		return "WithdrawalFinalized"
	case EvRewardAccrued:
		return "RewardAccrued"
	case EvCasinoError:
		return "CasinoError"
	case EvRewardsClaimed:
		return "RewardsClaimed"
	case EvStakeChanged:
		return "StakeChanged"
	case EvRecoveryPoolFunded:
		return "RecoveryPoolFunded"
	case EvVaultDebtRetired:
		return "VaultDebtRetired"
	case EvOraclePriceSet:
		return "OraclePriceSet"
	default:
		return fmt.Sprintf("Unknown0x%02x", tag)
	}
}

// Event is one committed semantic output of a transaction.
type Event interface {
	EventTag() uint8
	encodePayload(w *Writer)
}

type GameStarted struct {
	SessionID uint64
	Owner     [32]byte
	GameType  uint8
	Wager     uint64
}

func (e *GameStarted) EventTag() uint8 { return EvGameStarted }

func (e *GameStarted) encodePayload(w *Writer) {
	w.WriteU64(e.SessionID)
	w.WriteFixed(e.Owner[:])
	w.WriteU8(e.GameType)
	w.WriteU64(e.Wager)
}

type GameMoved struct {
	SessionID uint64
	MoveCount uint64
}

func (e *GameMoved) EventTag() uint8 { return EvGameMoved }

func (e *GameMoved) encodePayload(w *Writer) {
	w.WriteU64(e.SessionID)
	w.WriteU64(e.MoveCount)
}

// PayoutPart itemizes one component of a settled payout.
type PayoutPart struct {
	Kind   uint8
	Amount uint64
}

// Payout part kinds.
const (
	PayoutMain    uint8 = 0x01
	PayoutSideBet uint8 = 0x02
	PayoutBonus   uint8 = 0x03
)

type GameCompleted struct {
	SessionID uint64
	Owner     [32]byte
	Payout    uint64
	Breakdown []PayoutPart
}

func (e *GameCompleted) EventTag() uint8 { return EvGameCompleted }

func (e *GameCompleted) encodePayload(w *Writer) {
	w.WriteU64(e.SessionID)
	w.WriteFixed(e.Owner[:])
	w.WriteU64(e.Payout)
	w.WriteU8(uint8(len(e.Breakdown)))
	for _, p := range e.Breakdown {
		w.WriteU8(p.Kind)
		w.WriteU64(p.Amount)
	}
}

type SwapExecuted struct {
	Trader    [32]byte
	Direction uint8
	AmountIn  uint64
	AmountOut uint64
	Fee       uint64
	Tax       uint64
}

func (e *SwapExecuted) EventTag() uint8 { return EvSwapExecuted }

func (e *SwapExecuted) encodePayload(w *Writer) {
	w.WriteFixed(e.Trader[:])
	w.WriteU8(e.Direction)
	w.WriteU64(e.AmountIn)
	w.WriteU64(e.AmountOut)
	w.WriteU64(e.Fee)
	w.WriteU64(e.Tax)
}

type LiquidityChanged struct {
	Provider    [32]byte
	Added       bool
	AmountRNG   uint64
	AmountVUSDT uint64
	Shares      uint64
	TotalShares uint64
}

func (e *LiquidityChanged) EventTag() uint8 { return EvLiquidityChanged }

func (e *LiquidityChanged) encodePayload(w *Writer) {
	w.WriteFixed(e.Provider[:])
	w.WriteBool(e.Added)
	w.WriteU64(e.AmountRNG)
	w.WriteU64(e.AmountVUSDT)
	w.WriteU64(e.Shares)
	w.WriteU64(e.TotalShares)
}

type WithdrawalRequested struct {
	WithdrawalID uint64
	Owner        [32]byte
	Amount       uint64
	Destination  []byte
	AvailableTS  uint64
}

func (e *WithdrawalRequested) EventTag() uint8 { return EvWithdrawalRequested }

func (e *WithdrawalRequested) encodePayload(w *Writer) {
	w.WriteU64(e.WithdrawalID)
	w.WriteFixed(e.Owner[:])
	w.WriteU64(e.Amount)
	w.WriteBytes16(e.Destination)
	w.WriteU64(e.AvailableTS)
}

type WithdrawalFinalized struct {
	WithdrawalID uint64
	Owner        [32]byte
	Amount       uint64
	Destination  []byte
	FinalizedBy  [32]byte
	Source       []byte
	FinalizedTS  uint64
}

func (e *WithdrawalFinalized) EventTag() uint8 { return EvWithdrawalFinalized }

func (e *WithdrawalFinalized) encodePayload(w *Writer) {
	w.WriteU64(e.WithdrawalID)
	w.WriteFixed(e.Owner[:])
	w.WriteU64(e.Amount)
	w.WriteBytes16(e.Destination)
	w.WriteFixed(e.FinalizedBy[:])
	w.WriteBytes16(e.Source)
	w.WriteU64(e.FinalizedTS)
}

type RewardAccrued struct {
	Staker [32]byte
	Amount uint64
}

func (e *RewardAccrued) EventTag() uint8 { return EvRewardAccrued }

func (e *RewardAccrued) encodePayload(w *Writer) {
	w.WriteFixed(e.Staker[:])
	w.WriteU64(e.Amount)
}

type RewardsClaimed struct {
	Staker [32]byte
	Amount uint64
}

func (e *RewardsClaimed) EventTag() uint8 { return EvRewardsClaimed }

func (e *RewardsClaimed) encodePayload(w *Writer) {
	w.WriteFixed(e.Staker[:])
	w.WriteU64(e.Amount)
}

type StakeChanged struct {
	Staker      [32]byte
	VotingPower uint64
}

func (e *StakeChanged) EventTag() uint8 { return EvStakeChanged }

func (e *StakeChanged) encodePayload(w *Writer) {
	w.WriteFixed(e.Staker[:])
	w.WriteU64(e.VotingPower)
}

type RecoveryPoolFunded struct {
	From      [32]byte
	Amount    uint64
	PoolTotal uint64
}

func (e *RecoveryPoolFunded) EventTag() uint8 { return EvRecoveryPoolFunded }

func (e *RecoveryPoolFunded) encodePayload(w *Writer) {
	w.WriteFixed(e.From[:])
	w.WriteU64(e.Amount)
	w.WriteU64(e.PoolTotal)
}

type VaultDebtRetired struct {
	Target    [32]byte
	Amount    uint64
	Remaining uint64
}

func (e *VaultDebtRetired) EventTag() uint8 { return EvVaultDebtRetired }

func (e *VaultDebtRetired) encodePayload(w *Writer) {
	w.WriteFixed(e.Target[:])
	w.WriteU64(e.Amount)
	w.WriteU64(e.Remaining)
}

type OraclePriceSet struct {
	PriceNum uint64
	PriceDen uint64
}

func (e *OraclePriceSet) EventTag() uint8 { return EvOraclePriceSet }

func (e *OraclePriceSet) encodePayload(w *Writer) {
	w.WriteU64(e.PriceNum)
	w.WriteU64(e.PriceDen)
}

// CasinoError reports a domain-level rejection. The transaction is consumed
// (nonce advanced) but no other state change survives.
type CasinoError struct {
	HasSession bool
	SessionID  uint64
	Code       uint16
	Message    string
}

func (e *CasinoError) EventTag() uint8 { return EvCasinoError }

func (e *CasinoError) encodePayload(w *Writer) {
	w.WriteBool(e.HasSession)
	w.WriteU64(e.SessionID)
	w.WriteU16(e.Code)
	w.WriteBytes16([]byte(e.Message))
}

func EncodeEvent(e Event) []byte {
	w := NewWriter()
	w.WriteU8(e.EventTag())
	e.encodePayload(w)
	return w.Bytes()
}

func DecodeEvent(b []byte) (Event, error) {
	r := NewReader(b)
	ev, err := readEvent(r)
	if err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return ev, nil
}

func readEvent(r *Reader) (Event, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case EvGameStarted:
		e := &GameStarted{}
		if e.SessionID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if err = r.ReadFixed(e.Owner[:]); err != nil {
			return nil, err
		}
		if e.GameType, err = r.ReadU8(); err != nil {
			return nil, err
		}
		if e.Wager, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvGameMoved:
		e := &GameMoved{}
		if e.SessionID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.MoveCount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvGameCompleted:
		e := &GameCompleted{}
		if e.SessionID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if err = r.ReadFixed(e.Owner[:]); err != nil {
			return nil, err
		}
		if e.Payout, err = r.ReadU64(); err != nil {
			return nil, err
		}
		n, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		for k := 0; k < int(n); k++ {
			var p PayoutPart
			if p.Kind, err = r.ReadU8(); err != nil {
				return nil, err
			}
			if p.Amount, err = r.ReadU64(); err != nil {
				return nil, err
			}
			e.Breakdown = append(e.Breakdown, p)
		}
		return e, nil

	case EvSwapExecuted:
		e := &SwapExecuted{}
		if err = r.ReadFixed(e.Trader[:]); err != nil {
			return nil, err
		}
		if e.Direction, err = r.ReadU8(); err != nil {
			return nil, err
		}
		if e.AmountIn, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.AmountOut, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Fee, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Tax, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvLiquidityChanged:
		e := &LiquidityChanged{}
		if err = r.ReadFixed(e.Provider[:]); err != nil {
			return nil, err
		}
		if e.Added, err = r.ReadBool(); err != nil {
			return nil, err
		}
		if e.AmountRNG, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.AmountVUSDT, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Shares, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.TotalShares, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvWithdrawalRequested:
		e := &WithdrawalRequested{}
		if e.WithdrawalID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if err = r.ReadFixed(e.Owner[:]); err != nil {
			return nil, err
		}
		if e.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Destination, err = r.ReadBytes16(MaxDestinationLength); err != nil {
			return nil, err
		}
		if e.AvailableTS, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvWithdrawalFinalized:
		e := &WithdrawalFinalized{}
		if e.WithdrawalID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if err = r.ReadFixed(e.Owner[:]); err != nil {
			return nil, err
		}
		if e.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Destination, err = r.ReadBytes16(MaxDestinationLength); err != nil {
			return nil, err
		}
		if err = r.ReadFixed(e.FinalizedBy[:]); err != nil {
			return nil, err
		}
		if e.Source, err = r.ReadBytes16(MaxDestinationLength); err != nil {
			return nil, err
		}
		if e.FinalizedTS, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvRewardAccrued:
		e := &RewardAccrued{}
		if err = r.ReadFixed(e.Staker[:]); err != nil {
			return nil, err
		}
		if e.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvRewardsClaimed:
		e := &RewardsClaimed{}
		if err = r.ReadFixed(e.Staker[:]); err != nil {
			return nil, err
		}
		if e.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvStakeChanged:
		e := &StakeChanged{}
		if err = r.ReadFixed(e.Staker[:]); err != nil {
			return nil, err
		}
		if e.VotingPower, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvRecoveryPoolFunded:
		e := &RecoveryPoolFunded{}
		if err = r.ReadFixed(e.From[:]); err != nil {
			return nil, err
		}
		if e.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.PoolTotal, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvVaultDebtRetired:
		e := &VaultDebtRetired{}
		if err = r.ReadFixed(e.Target[:]); err != nil {
			return nil, err
		}
		if e.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Remaining, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvOraclePriceSet:
		e := &OraclePriceSet{}
		if e.PriceNum, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.PriceDen, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return e, nil

	case EvCasinoError:
		e := &CasinoError{}
		if e.HasSession, err = r.ReadBool(); err != nil {
			return nil, err
		}
		if e.SessionID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if e.Code, err = r.ReadU16(); err != nil {
			return nil, err
		}
		msg, err := r.ReadBytes16(MaxErrorMessageLength)
		if err != nil {
			return nil, err
		}
		e.Message = string(msg)
		return e, nil

	default:
		return nil, fmt.Errorf("%w: event 0x%02x", ErrUnknownTag, tag)
	}
}
