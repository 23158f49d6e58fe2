package layer

import (
	"sort"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/state"
)

type vaultEntry struct {
	pub  [32]byte
	debt uint64
}

// sortVaults orders by debt descending, key ascending on ties; the order
// every node must agree on when retiring the worst vault.
func sortVaults(vs []vaultEntry) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].debt != vs[j].debt {
			return vs[i].debt > vs[j].debt
		}
		return state.Compare(state.VaultKey(vs[i].pub), state.VaultKey(vs[j].pub)) < 0
	})
}

func (l *Layer) fundRecoveryPool(sender [32]byte, i *codec.FundRecoveryPool) ([]codec.Event, error) {
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "funding amount must be > 0")
	}
	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	if acct.VUSDT < i.Amount {
		return nil, domainErr(CodeInsufficientFunds, "insufficient vusdt: have=%d need=%d", acct.VUSDT, i.Amount)
	}
	house, err := l.house()
	if err != nil {
		return nil, err
	}

	acct.VUSDT -= i.Amount
	house.RecoveryPoolVUSDT += i.Amount
	l.setAccount(sender, acct)
	l.setHouse(house)

	return []codec.Event{&codec.RecoveryPoolFunded{
		From:      sender,
		Amount:    i.Amount,
		PoolTotal: house.RecoveryPoolVUSDT,
	}}, nil
}

func (l *Layer) retireVaultDebt(sender [32]byte, i *codec.RetireVaultDebt) ([]codec.Event, error) {
	if sender != l.admin {
		return nil, domainErr(CodeUnauthorized, "vault retirement is admin-gated")
	}
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "retire amount must be > 0")
	}
	raw, err := l.get(state.VaultKey(i.Target))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, domainErr(CodeVaultNotFound, "no vault for target")
	}
	vault, err := state.DecodeVault(raw)
	if err != nil {
		return nil, err
	}
	return l.retire(vaultEntry{pub: i.Target, debt: vault.DebtVUSDT}, i.Amount)
}

// retireWorstVaultDebt picks the highest-debt vault in deterministic order
// and retires up to the requested amount against it.
func (l *Layer) retireWorstVaultDebt(sender [32]byte, i *codec.RetireWorstVaultDebt) ([]codec.Event, error) {
	if sender != l.admin {
		return nil, domainErr(CodeUnauthorized, "vault retirement is admin-gated")
	}
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "retire amount must be > 0")
	}
	vaults, err := l.vaults()
	if err != nil {
		return nil, err
	}
	if len(vaults) == 0 {
		return nil, domainErr(CodeVaultNotFound, "no vaults with outstanding debt")
	}
	return l.retire(vaults[0], i.Amount)
}

func (l *Layer) retire(target vaultEntry, amount uint64) ([]codec.Event, error) {
	house, err := l.house()
	if err != nil {
		return nil, err
	}
	retired := min64(min64(amount, target.debt), house.RecoveryPoolVUSDT)
	if retired == 0 {
		return nil, domainErr(CodeInsufficientFunds,
			"nothing to retire: pool=%d debt=%d", house.RecoveryPoolVUSDT, target.debt)
	}

	house.RecoveryPoolVUSDT -= retired
	remaining := target.debt - retired
	l.setHouse(house)
	if remaining == 0 {
		l.del(state.VaultKey(target.pub))
	} else {
		l.put(state.VaultKey(target.pub), (&state.Vault{DebtVUSDT: remaining}).Encode())
	}

	return []codec.Event{&codec.VaultDebtRetired{
		Target:    target.pub,
		Amount:    retired,
		Remaining: remaining,
	}}, nil
}
