package codec

import "fmt"

// Instruction tags. A single u8 tag leads every encoded instruction.
const (
	TagStartGame                uint8 = 0x01
	TagGameMove                 uint8 = 0x02
	TagSwap                     uint8 = 0x03
	TagAddLiquidity             uint8 = 0x04
	TagRemoveLiquidity          uint8 = 0x05
	TagRequestBridgeWithdrawal  uint8 = 0x06
	TagFinalizeBridgeWithdrawal uint8 = 0x07
	TagFundRecoveryPool         uint8 = 0x08
	TagRetireVaultDebt          uint8 = 0x09
	TagRetireWorstVaultDebt     uint8 = 0x0A
	TagStake                    uint8 = 0x0B
	TagUnstake                  uint8 = 0x0C
	TagClaimRewards             uint8 = 0x0D
	TagSetOraclePrice           uint8 = 0x0E
	TagDistributeRewards        uint8 = 0x0F
)

// Swap directions.
const (
	SwapSellRNG uint8 = 0 // RNG in, vUSDT out
	SwapBuyRNG  uint8 = 1 // vUSDT in, RNG out
)

// Instruction is one decoded operation. Implementations are plain payload
// structs; Tag routes dispatch.
type Instruction interface {
	Tag() uint8
	encodePayload(w *Writer)
}

type SideBet struct {
	Kind   uint64
	Amount uint64
}

type StartGame struct {
	GameType  uint8
	Bet       uint64
	SessionID uint64
	SideBets  []SideBet
}

func (i *StartGame) Tag() uint8 { return TagStartGame }

func (i *StartGame) encodePayload(w *Writer) {
	w.WriteU8(i.GameType)
	w.WriteU64(i.Bet)
	w.WriteU64(i.SessionID)
	w.WriteU8(uint8(len(i.SideBets)))
	for _, sb := range i.SideBets {
		w.WriteUvarint(sb.Kind)
		w.WriteU64(sb.Amount)
	}
}

type GameMove struct {
	SessionID uint64
	Payload   []byte
}

func (i *GameMove) Tag() uint8 { return TagGameMove }

func (i *GameMove) encodePayload(w *Writer) {
	w.WriteU64(i.SessionID)
	w.WriteBytes32(i.Payload)
}

type Swap struct {
	Direction uint8
	AmountIn  uint64
	MinOut    uint64
}

func (i *Swap) Tag() uint8 { return TagSwap }

func (i *Swap) encodePayload(w *Writer) {
	w.WriteU8(i.Direction)
	w.WriteU64(i.AmountIn)
	w.WriteU64(i.MinOut)
}

type AddLiquidity struct {
	RNG       uint64
	VUSDT     uint64
	MinShares uint64
}

func (i *AddLiquidity) Tag() uint8 { return TagAddLiquidity }

func (i *AddLiquidity) encodePayload(w *Writer) {
	w.WriteU64(i.RNG)
	w.WriteU64(i.VUSDT)
	w.WriteU64(i.MinShares)
}

type RemoveLiquidity struct {
	Shares   uint64
	MinRNG   uint64
	MinVUSDT uint64
}

func (i *RemoveLiquidity) Tag() uint8 { return TagRemoveLiquidity }

func (i *RemoveLiquidity) encodePayload(w *Writer) {
	w.WriteU64(i.Shares)
	w.WriteU64(i.MinRNG)
	w.WriteU64(i.MinVUSDT)
}

type RequestBridgeWithdrawal struct {
	Amount      uint64
	Destination []byte
}

func (i *RequestBridgeWithdrawal) Tag() uint8 { return TagRequestBridgeWithdrawal }

func (i *RequestBridgeWithdrawal) encodePayload(w *Writer) {
	w.WriteU64(i.Amount)
	w.WriteBytes16(i.Destination)
}

type FinalizeBridgeWithdrawal struct {
	WithdrawalID uint64
	Source       []byte
}

func (i *FinalizeBridgeWithdrawal) Tag() uint8 { return TagFinalizeBridgeWithdrawal }

func (i *FinalizeBridgeWithdrawal) encodePayload(w *Writer) {
	w.WriteU64(i.WithdrawalID)
	w.WriteBytes16(i.Source)
}

type FundRecoveryPool struct {
	Amount uint64
}

func (i *FundRecoveryPool) Tag() uint8 { return TagFundRecoveryPool }

func (i *FundRecoveryPool) encodePayload(w *Writer) {
	w.WriteU64(i.Amount)
}

type RetireVaultDebt struct {
	Target [32]byte
	Amount uint64
}

func (i *RetireVaultDebt) Tag() uint8 { return TagRetireVaultDebt }

func (i *RetireVaultDebt) encodePayload(w *Writer) {
	w.WriteFixed(i.Target[:])
	w.WriteU64(i.Amount)
}

type RetireWorstVaultDebt struct {
	Amount uint64
}

func (i *RetireWorstVaultDebt) Tag() uint8 { return TagRetireWorstVaultDebt }

func (i *RetireWorstVaultDebt) encodePayload(w *Writer) {
	w.WriteU64(i.Amount)
}

type Stake struct {
	Amount uint64
}

func (i *Stake) Tag() uint8 { return TagStake }

func (i *Stake) encodePayload(w *Writer) {
	w.WriteU64(i.Amount)
}

type Unstake struct {
	Amount uint64
}

func (i *Unstake) Tag() uint8 { return TagUnstake }

func (i *Unstake) encodePayload(w *Writer) {
	w.WriteU64(i.Amount)
}

type ClaimRewards struct{}

func (i *ClaimRewards) Tag() uint8 { return TagClaimRewards }

func (i *ClaimRewards) encodePayload(*Writer) {}

type SetOraclePrice struct {
	PriceNum uint64
	PriceDen uint64
}

func (i *SetOraclePrice) Tag() uint8 { return TagSetOraclePrice }

func (i *SetOraclePrice) encodePayload(w *Writer) {
	w.WriteU64(i.PriceNum)
	w.WriteU64(i.PriceDen)
}

type DistributeRewards struct {
	Amount uint64
}

func (i *DistributeRewards) Tag() uint8 { return TagDistributeRewards }

func (i *DistributeRewards) encodePayload(w *Writer) {
	w.WriteU64(i.Amount)
}

func EncodeInstruction(i Instruction) []byte {
	w := NewWriter()
	w.WriteU8(i.Tag())
	i.encodePayload(w)
	return w.Bytes()
}

// DecodeInstruction decodes one instruction and requires the buffer to be
// fully consumed.
func DecodeInstruction(b []byte) (Instruction, error) {
	r := NewReader(b)
	instr, err := readInstruction(r)
	if err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return instr, nil
}

func readInstruction(r *Reader) (Instruction, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagStartGame:
		i := &StartGame{}
		if i.GameType, err = r.ReadU8(); err != nil {
			return nil, err
		}
		if i.Bet, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.SessionID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		n, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if int(n) > MaxSideBets {
			return nil, ErrPayloadTooLarge
		}
		for k := 0; k < int(n); k++ {
			var sb SideBet
			if sb.Kind, err = r.ReadUvarint(); err != nil {
				return nil, err
			}
			if sb.Amount, err = r.ReadU64(); err != nil {
				return nil, err
			}
			i.SideBets = append(i.SideBets, sb)
		}
		return i, nil

	case TagGameMove:
		i := &GameMove{}
		if i.SessionID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.Payload, err = r.ReadBytes32(CasinoMaxPayloadLength); err != nil {
			return nil, err
		}
		return i, nil

	case TagSwap:
		i := &Swap{}
		if i.Direction, err = r.ReadU8(); err != nil {
			return nil, err
		}
		if i.Direction != SwapSellRNG && i.Direction != SwapBuyRNG {
			return nil, fmt.Errorf("%w: swap direction %d", ErrUnknownTag, i.Direction)
		}
		if i.AmountIn, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.MinOut, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagAddLiquidity:
		i := &AddLiquidity{}
		if i.RNG, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.VUSDT, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.MinShares, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagRemoveLiquidity:
		i := &RemoveLiquidity{}
		if i.Shares, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.MinRNG, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.MinVUSDT, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagRequestBridgeWithdrawal:
		i := &RequestBridgeWithdrawal{}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.Destination, err = r.ReadBytes16(MaxDestinationLength); err != nil {
			return nil, err
		}
		return i, nil

	case TagFinalizeBridgeWithdrawal:
		i := &FinalizeBridgeWithdrawal{}
		if i.WithdrawalID, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.Source, err = r.ReadBytes16(MaxDestinationLength); err != nil {
			return nil, err
		}
		return i, nil

	case TagFundRecoveryPool:
		i := &FundRecoveryPool{}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagRetireVaultDebt:
		i := &RetireVaultDebt{}
		if err = r.ReadFixed(i.Target[:]); err != nil {
			return nil, err
		}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagRetireWorstVaultDebt:
		i := &RetireWorstVaultDebt{}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagStake:
		i := &Stake{}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagUnstake:
		i := &Unstake{}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagClaimRewards:
		return &ClaimRewards{}, nil

	case TagSetOraclePrice:
		i := &SetOraclePrice{}
		if i.PriceNum, err = r.ReadU64(); err != nil {
			return nil, err
		}
		if i.PriceDen, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	case TagDistributeRewards:
		i := &DistributeRewards{}
		if i.Amount, err = r.ReadU64(); err != nil {
			return nil, err
		}
		return i, nil

	default:
		return nil, fmt.Errorf("%w: instruction 0x%02x", ErrUnknownTag, tag)
	}
}
