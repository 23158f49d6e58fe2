// Package layer implements the transactional overlay executed once per
// height. All handler writes land in an ordered pending map; nothing
// touches the underlying store until the caller applies the drained
// changeset. A failed block is discarded wholesale by dropping the Layer.
package layer

import (
	"errors"
	"fmt"

	"github.com/google/btree"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/state"
	"nullsociety/chain/internal/store"
)

// Seed is the per-height shared randomness and logical clock supplied by
// the ordering layer. Handlers never read the wall clock; time-dependent
// operations consult ViewTime.
type Seed struct {
	Bytes    []byte
	ViewTime uint64
}

type pendingEntry struct {
	key     state.Key
	deleted bool
	value   []byte
}

func pendingLess(a, b pendingEntry) bool {
	return state.Compare(a.key, b.key) < 0
}

// Layer borrows the world store for a single height and owns the pending
// overlay for that height.
type Layer struct {
	world  *store.Store
	seed   Seed
	height uint64
	admin  [32]byte

	pending *btree.BTreeG[pendingEntry]
}

func New(world *store.Store, seed Seed, height uint64, admin [32]byte) *Layer {
	return &Layer{
		world:   world,
		seed:    seed,
		height:  height,
		admin:   admin,
		pending: btree.NewG(8, pendingLess),
	}
}

// get consults the pending map first; misses fall through to world state.
func (l *Layer) get(k state.Key) ([]byte, error) {
	if e, ok := l.pending.Get(pendingEntry{key: k}); ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	return l.world.Get(k)
}

func (l *Layer) put(k state.Key, v []byte) {
	l.pending.ReplaceOrInsert(pendingEntry{key: k, value: v})
}

func (l *Layer) del(k state.Key) {
	l.pending.ReplaceOrInsert(pendingEntry{key: k, deleted: true})
}

// Changeset drains the pending map in key order.
func (l *Layer) Changeset() state.Changeset {
	cs := make(state.Changeset, 0, l.pending.Len())
	l.pending.Ascend(func(e pendingEntry) bool {
		c := state.Change{Key: e.key, Op: state.OpPut, Value: e.value}
		if e.deleted {
			c.Op = state.OpDelete
			c.Value = nil
		}
		cs = append(cs, c)
		return true
	})
	return cs
}

// TxOutput is the per-transaction execution result. Skipped transactions
// (nonce mismatch, bad signature, undecodable envelope) consume nothing.
type TxOutput struct {
	TxHash  [32]byte
	Events  []codec.Event
	Skipped bool
	Reason  string
}

// Execute runs the block's transactions strictly in order. Validation
// failures skip the transaction; domain failures consume it and emit a
// CasinoError; protocol errors abort the block.
func (l *Layer) Execute(txs [][]byte) ([]TxOutput, map[[32]byte]uint64, error) {
	outputs := make([]TxOutput, 0, len(txs))
	processed := map[[32]byte]uint64{}
	noncer := &Noncer{layer: l}

	for i, raw := range txs {
		tx, err := codec.DecodeTransaction(raw)
		if err != nil {
			outputs = append(outputs, TxOutput{Skipped: true, Reason: fmt.Sprintf("decode: %v", err)})
			continue
		}
		out := TxOutput{TxHash: tx.Hash()}

		if !tx.Verify() {
			out.Skipped = true
			out.Reason = "bad signature"
			outputs = append(outputs, out)
			continue
		}
		want, err := noncer.Nonce(tx.Public)
		if err != nil {
			return nil, nil, fmt.Errorf("tx %d: read nonce: %w", i, err)
		}
		if tx.Nonce != want {
			out.Skipped = true
			out.Reason = fmt.Sprintf("nonce mismatch: got %d want %d", tx.Nonce, want)
			outputs = append(outputs, out)
			continue
		}

		// The transaction is admitted: the nonce is consumed no matter how
		// the handler fares. Bumping first lets later txs from the same
		// signer validate against the incremented value through the Noncer.
		if err := noncer.Bump(tx.Public); err != nil {
			return nil, nil, fmt.Errorf("tx %d: bump nonce: %w", i, err)
		}
		processed[tx.Public] = tx.Nonce + 1

		events, err := l.deliver(tx.Public, tx.Instruction)
		if err != nil {
			var derr *DomainError
			if !errors.As(err, &derr) {
				return nil, nil, fmt.Errorf("tx %d: %w", i, err)
			}
			ce := &codec.CasinoError{Code: derr.Code, Message: derr.Message}
			if derr.Session != nil {
				ce.HasSession = true
				ce.SessionID = *derr.Session
			}
			out.Events = []codec.Event{ce}
			outputs = append(outputs, out)
			continue
		}
		out.Events = events
		outputs = append(outputs, out)
	}
	return outputs, processed, nil
}

// deliver decodes the instruction and dispatches on its tag. Codec
// failures here are domain-level: the tx was admitted, so it is consumed.
func (l *Layer) deliver(sender [32]byte, instrBytes []byte) ([]codec.Event, error) {
	instr, err := codec.DecodeInstruction(instrBytes)
	if err != nil {
		return nil, domainErr(CodeInvalidInstruction, "instruction: %v", err)
	}
	switch i := instr.(type) {
	case *codec.StartGame:
		return l.startGame(sender, i)
	case *codec.GameMove:
		return l.gameMove(sender, i)
	case *codec.Swap:
		return l.swap(sender, i)
	case *codec.AddLiquidity:
		return l.addLiquidity(sender, i)
	case *codec.RemoveLiquidity:
		return l.removeLiquidity(sender, i)
	case *codec.RequestBridgeWithdrawal:
		return l.requestWithdrawal(sender, i)
	case *codec.FinalizeBridgeWithdrawal:
		return l.finalizeWithdrawal(sender, i)
	case *codec.FundRecoveryPool:
		return l.fundRecoveryPool(sender, i)
	case *codec.RetireVaultDebt:
		return l.retireVaultDebt(sender, i)
	case *codec.RetireWorstVaultDebt:
		return l.retireWorstVaultDebt(sender, i)
	case *codec.Stake:
		return l.stake(sender, i)
	case *codec.Unstake:
		return l.unstake(sender, i)
	case *codec.ClaimRewards:
		return l.claimRewards(sender)
	case *codec.SetOraclePrice:
		return l.setOraclePrice(sender, i)
	case *codec.DistributeRewards:
		return l.distributeRewards(sender, i)
	default:
		return nil, domainErr(CodeInvalidInstruction, "unhandled instruction 0x%02x", instr.Tag())
	}
}

// ---- Typed accessors ----

func (l *Layer) account(pub [32]byte) (*state.Account, error) {
	raw, err := l.get(state.AccountKey(pub))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &state.Account{}, nil
	}
	return state.DecodeAccount(raw)
}

func (l *Layer) setAccount(pub [32]byte, a *state.Account) {
	l.put(state.AccountKey(pub), a.Encode())
}

func (l *Layer) house() (*state.House, error) {
	raw, err := l.get(state.HouseKey())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &state.House{}, nil
	}
	return state.DecodeHouse(raw)
}

func (l *Layer) setHouse(h *state.House) {
	l.put(state.HouseKey(), h.Encode())
}

func (l *Layer) ammPool() (*state.AmmPool, error) {
	raw, err := l.get(state.AmmPoolKey())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &state.AmmPool{}, nil
	}
	return state.DecodeAmmPool(raw)
}

func (l *Layer) setAmmPool(p *state.AmmPool) {
	l.put(state.AmmPoolKey(), p.Encode())
}

func (l *Layer) session(id uint64) (*state.Session, error) {
	raw, err := l.get(state.SessionKey(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return state.DecodeSession(raw)
}

func (l *Layer) staker(pub [32]byte) (*state.Staker, error) {
	raw, err := l.get(state.StakerKey(pub))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return state.NewStaker(), nil
	}
	return state.DecodeStaker(raw)
}

func (l *Layer) stakingGlobal() (*state.StakingGlobal, error) {
	raw, err := l.get(state.StakingGlobalKey())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return state.NewStakingGlobal(), nil
	}
	return state.DecodeStakingGlobal(raw)
}

func (l *Layer) withdrawal(id uint64) (*state.BridgeWithdrawal, error) {
	raw, err := l.get(state.WithdrawalKey(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return state.DecodeBridgeWithdrawal(raw)
}

func (l *Layer) lpPosition(pub [32]byte) (*state.LpPosition, error) {
	raw, err := l.get(state.LpPositionKey(pub))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &state.LpPosition{}, nil
	}
	return state.DecodeLpPosition(raw)
}

// vaults merges committed vault records with the pending overlay and
// returns them worst first: debt descending, key ascending on ties.
func (l *Layer) vaults() ([]vaultEntry, error) {
	merged := map[string]uint64{}
	err := l.world.Iterate(state.VaultPrefix(), func(k state.Key, v []byte) error {
		vault, err := state.DecodeVault(v)
		if err != nil {
			return err
		}
		merged[string(k)] = vault.DebtVUSDT
		return nil
	})
	if err != nil {
		return nil, err
	}
	var iterErr error
	l.pending.Ascend(func(e pendingEntry) bool {
		if e.key.Tag() != state.KeyVault {
			return true
		}
		if e.deleted {
			delete(merged, string(e.key))
			return true
		}
		vault, err := state.DecodeVault(e.value)
		if err != nil {
			iterErr = err
			return false
		}
		merged[string(e.key)] = vault.DebtVUSDT
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	out := make([]vaultEntry, 0, len(merged))
	for k, debt := range merged {
		pub, ok := state.Key(k).AccountPub()
		if !ok {
			return nil, fmt.Errorf("malformed vault key %x", k)
		}
		out = append(out, vaultEntry{pub: pub, debt: debt})
	}
	sortVaults(out)
	return out, nil
}
