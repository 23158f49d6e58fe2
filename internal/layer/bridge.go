package layer

import (
	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/state"
)

// WithdrawalDelay is the seconds a bridge withdrawal must age before it
// becomes finalizable.
const WithdrawalDelay uint64 = 600

// requestWithdrawal debits the owner's vUSDT and records the pending
// withdrawal; an external relay effects the transfer after finalization.
func (l *Layer) requestWithdrawal(sender [32]byte, i *codec.RequestBridgeWithdrawal) ([]codec.Event, error) {
	if i.Amount == 0 {
		return nil, domainErr(CodeInvalidBet, "withdrawal amount must be > 0")
	}
	if len(i.Destination) == 0 {
		return nil, domainErr(CodeInvalidBet, "withdrawal destination is empty")
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

	id := house.NextWithdrawalID
	availableTS := l.seed.ViewTime + WithdrawalDelay

	acct.VUSDT -= i.Amount
	house.NextWithdrawalID++
	l.setAccount(sender, acct)
	l.setHouse(house)
	l.put(state.WithdrawalKey(id), (&state.BridgeWithdrawal{
		Owner:       sender,
		Amount:      i.Amount,
		Destination: i.Destination,
		AvailableTS: availableTS,
	}).Encode())

	return []codec.Event{&codec.WithdrawalRequested{
		WithdrawalID: id,
		Owner:        sender,
		Amount:       i.Amount,
		Destination:  i.Destination,
		AvailableTS:  availableTS,
	}}, nil
}

// finalizeWithdrawal marks a matured withdrawal fulfilled. The record is
// write-once: re-finalization fails and overwrites nothing.
func (l *Layer) finalizeWithdrawal(sender [32]byte, i *codec.FinalizeBridgeWithdrawal) ([]codec.Event, error) {
	if sender != l.admin {
		return nil, domainErr(CodeUnauthorized, "withdrawal finalization is admin-gated")
	}
	wd, err := l.withdrawal(i.WithdrawalID)
	if err != nil {
		return nil, err
	}
	if wd == nil {
		return nil, domainErr(CodeWithdrawalNotFound, "withdrawal %d not found", i.WithdrawalID)
	}
	if wd.Fulfilled {
		return nil, domainErr(CodeAlreadyFinalized, "withdrawal %d already finalized", i.WithdrawalID)
	}
	if l.seed.ViewTime < wd.AvailableTS {
		return nil, domainErr(CodeWithdrawalNotReady,
			"withdrawal %d available at %d, now %d", i.WithdrawalID, wd.AvailableTS, l.seed.ViewTime)
	}

	by := sender
	wd.Fulfilled = true
	wd.FinalizedBy = &by
	wd.FinalizedSource = i.Source
	wd.FinalizedTS = l.seed.ViewTime
	l.put(state.WithdrawalKey(i.WithdrawalID), wd.Encode())

	return []codec.Event{&codec.WithdrawalFinalized{
		WithdrawalID: i.WithdrawalID,
		Owner:        wd.Owner,
		Amount:       wd.Amount,
		Destination:  wd.Destination,
		FinalizedBy:  sender,
		Source:       i.Source,
		FinalizedTS:  wd.FinalizedTS,
	}}, nil
}
