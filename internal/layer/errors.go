package layer

import "fmt"

// Domain error codes carried in CasinoError events. Stable across releases;
// clients key retry/UX behavior off these.
const (
	CodeInsufficientFunds     uint16 = 1
	CodeSessionExists         uint16 = 2
	CodeSessionNotFound       uint16 = 3
	CodeNotOwner              uint16 = 4
	CodeInvalidMove           uint16 = 5
	CodeMinLiquidityViolation uint16 = 6
	CodeWithdrawalNotReady    uint16 = 7
	CodeAlreadyFinalized      uint16 = 8
	CodeRewardOverflow        uint16 = 9
	CodeInvalidBet            uint16 = 10
	CodeUnknownGameType       uint16 = 11
	CodeSlippageExceeded      uint16 = 12
	CodeUnauthorized          uint16 = 13
	CodePoolEmpty             uint16 = 14
	CodeWithdrawalNotFound    uint16 = 15
	CodeVaultNotFound         uint16 = 16
	CodeNoStake               uint16 = 17
	CodeInvalidInstruction    uint16 = 18
)

// DomainError is a handler-level rejection: the transaction is consumed
// (nonce advanced, CasinoError emitted) but the block continues. Anything
// else returned by a handler is protocol-fatal.
type DomainError struct {
	Code    uint16
	Session *uint64
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error %d: %s", e.Code, e.Message)
}

func domainErr(code uint16, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func sessionErr(code uint16, session uint64, format string, args ...any) *DomainError {
	e := domainErr(code, format, args...)
	e.Session = &session
	return e
}
