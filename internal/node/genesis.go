package node

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"nullsociety/chain/internal/state"
	"nullsociety/chain/internal/store"
)

// Genesis is the chain's initial allocation. Public keys are hex-encoded
// 32-byte ed25519 keys.
type Genesis struct {
	AdminPub           string            `json:"adminPub"`
	RecoveryProgramCap uint64            `json:"recoveryProgramCap,omitempty"`
	BootstrapPriceNum  uint64            `json:"bootstrapPriceNum,omitempty"`
	BootstrapPriceDen  uint64            `json:"bootstrapPriceDen,omitempty"`
	Accounts           map[string]uint64 `json:"accounts,omitempty"` // pub -> chips
	Vaults             map[string]uint64 `json:"vaults,omitempty"`   // pub -> vusdt debt
}

// LoadGenesis reads home/genesis.json; a missing file yields an empty
// genesis with a zero admin key (admin operations disabled).
func LoadGenesis(path string) (*Genesis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Genesis{}, nil
		}
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return &g, nil
}

func (g *Genesis) adminKey() ([32]byte, error) {
	var pub [32]byte
	if g.AdminPub == "" {
		return pub, nil
	}
	b, err := hex.DecodeString(g.AdminPub)
	if err != nil || len(b) != 32 {
		return pub, fmt.Errorf("genesis adminPub must be 32 hex-encoded bytes")
	}
	copy(pub[:], b)
	return pub, nil
}

// apply writes the genesis allocation and commits the world store at
// height 0. Idempotent: a store that has committed anything is left alone.
func (g *Genesis) apply(world *store.Store) error {
	if world.Initialized() {
		return nil
	}
	house := &state.House{
		RecoveryProgramCap: g.RecoveryProgramCap,
	}
	for pubHex, chips := range g.Accounts {
		b, err := hex.DecodeString(pubHex)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("genesis account %q: key must be 32 hex-encoded bytes", pubHex)
		}
		var pub [32]byte
		copy(pub[:], b)
		world.Put(state.AccountKey(pub), (&state.Account{Chips: chips}).Encode())
		house.TotalIssuance += chips
	}
	for pubHex, debt := range g.Vaults {
		b, err := hex.DecodeString(pubHex)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("genesis vault %q: key must be 32 hex-encoded bytes", pubHex)
		}
		var pub [32]byte
		copy(pub[:], b)
		world.Put(state.VaultKey(pub), (&state.Vault{DebtVUSDT: debt}).Encode())
	}
	world.Put(state.HouseKey(), house.Encode())
	if g.BootstrapPriceNum != 0 {
		world.Put(state.AmmPoolKey(), (&state.AmmPool{
			BootstrapPriceNum: g.BootstrapPriceNum,
			BootstrapPriceDen: g.BootstrapPriceDen,
		}).Encode())
	}
	return world.Commit(0)
}
