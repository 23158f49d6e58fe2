package layer

import (
	"github.com/holiman/uint256"

	"nullsociety/chain/internal/codec"
	"nullsociety/chain/internal/state"
)

const (
	// MinLiquidity shares are minted to the burn address on the first add
	// and are never redeemable.
	MinLiquidity uint64 = 1000

	bpsDenom       uint64 = 10_000
	swapFeeBps     uint64 = 30
	sellTaxBaseBps uint64 = 300
	sellTaxMaxBps  uint64 = 1000
	buyTaxBps      uint64 = 100

	// Of the sell tax, this share funds the recovery pool until the
	// program cap is reached (then the staking reward index); the rest
	// goes to operations.
	sellTaxRecoveryBps uint64 = 8000
)

// burnAddress holds permanently locked LP shares.
var burnAddress [32]byte

func u256(v uint64) *uint256.Int {
	return new(uint256.Int).SetUint64(v)
}

// mulDiv computes a*b/c in 256-bit space; the result must fit uint64.
func mulDiv(a, b, c uint64) (uint64, bool) {
	if c == 0 {
		return 0, false
	}
	prod := new(uint256.Int).Mul(u256(a), u256(b))
	q := prod.Div(prod, u256(c))
	if !q.IsUint64() {
		return 0, false
	}
	return q.Uint64(), true
}

// swap preserves the constant-product invariant after fees. The fee stays
// in the pool; sell-side output is additionally taxed and split between
// the recovery program and operations.
func (l *Layer) swap(sender [32]byte, i *codec.Swap) ([]codec.Event, error) {
	if i.AmountIn == 0 {
		return nil, domainErr(CodeInvalidBet, "swap amount must be > 0")
	}
	pool, err := l.ammPool()
	if err != nil {
		return nil, err
	}
	if pool.ReserveRNG == 0 || pool.ReserveVUSDT == 0 {
		return nil, domainErr(CodePoolEmpty, "amm pool has no reserves")
	}
	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	house, err := l.house()
	if err != nil {
		return nil, err
	}

	var reserveIn, reserveOut uint64
	if i.Direction == codec.SwapSellRNG {
		reserveIn, reserveOut = pool.ReserveRNG, pool.ReserveVUSDT
		if acct.Chips < i.AmountIn {
			return nil, domainErr(CodeInsufficientFunds, "insufficient chips: have=%d need=%d", acct.Chips, i.AmountIn)
		}
	} else {
		reserveIn, reserveOut = pool.ReserveVUSDT, pool.ReserveRNG
		if acct.VUSDT < i.AmountIn {
			return nil, domainErr(CodeInsufficientFunds, "insufficient vusdt: have=%d need=%d", acct.VUSDT, i.AmountIn)
		}
	}

	// Buy tax during the recovery program window is diverted before the
	// curve sees the input.
	amountIn := i.AmountIn
	var buyTax uint64
	if i.Direction == codec.SwapBuyRNG && house.RecoveryPoolVUSDT < house.RecoveryProgramCap {
		buyTax = amountIn * buyTaxBps / bpsDenom
		amountIn -= buyTax
	}
	if amountIn == 0 {
		return nil, domainErr(CodeInvalidBet, "swap amount too small")
	}

	inAfterFee := amountIn - amountIn*swapFeeBps/bpsDenom
	fee := amountIn - inAfterFee
	out, ok := mulDiv(reserveOut, inAfterFee, reserveIn+inAfterFee)
	if !ok || out == 0 {
		return nil, domainErr(CodeInvalidBet, "swap output rounds to zero")
	}
	if out >= reserveOut {
		return nil, domainErr(CodePoolEmpty, "swap would drain the pool")
	}

	// k must not shrink: (reserveIn + amountIn) * (reserveOut - out) >= k.
	kBefore := new(uint256.Int).Mul(u256(reserveIn), u256(reserveOut))
	kAfter := new(uint256.Int).Mul(u256(reserveIn+amountIn), u256(reserveOut-out))
	if kAfter.Lt(kBefore) {
		return nil, domainErr(CodeInvalidBet, "constant product violated")
	}

	// Sell tax applies to the vUSDT proceeds.
	var tax uint64
	userOut := out
	if i.Direction == codec.SwapSellRNG {
		taxBps := sellTaxBaseBps + amountIn*bpsDenom/reserveIn
		if taxBps > sellTaxMaxBps {
			taxBps = sellTaxMaxBps
		}
		tax = out * taxBps / bpsDenom
		userOut = out - tax
	}
	if userOut < i.MinOut {
		return nil, domainErr(CodeSlippageExceeded, "output %d below minimum %d", userOut, i.MinOut)
	}

	// Validation complete; mutate.
	if i.Direction == codec.SwapSellRNG {
		acct.Chips -= i.AmountIn
		acct.VUSDT += userOut
		pool.ReserveRNG += amountIn
		pool.ReserveVUSDT -= out
		house.EscrowedChips += i.AmountIn

		toRecovery := tax * sellTaxRecoveryBps / bpsDenom
		toOps := tax - toRecovery
		if room := house.RecoveryProgramCap - min64(house.RecoveryPoolVUSDT, house.RecoveryProgramCap); room < toRecovery {
			overflow := toRecovery - room
			toRecovery = room
			if !l.accrueToStakers(overflow) {
				// No stakers to absorb the overflow: operations take it.
				toOps += overflow
			}
		}
		house.RecoveryPoolVUSDT += toRecovery
		house.StabilityFeesAccrued += toOps
	} else {
		acct.VUSDT -= i.AmountIn
		acct.Chips += userOut
		pool.ReserveVUSDT += amountIn
		pool.ReserveRNG -= out
		house.EscrowedChips -= userOut
		house.StabilityFeesAccrued += buyTax
	}

	l.setAccount(sender, acct)
	l.setAmmPool(pool)
	l.setHouse(house)

	return []codec.Event{&codec.SwapExecuted{
		Trader:    sender,
		Direction: i.Direction,
		AmountIn:  i.AmountIn,
		AmountOut: userOut,
		Fee:       fee,
		Tax:       tax + buyTax,
	}}, nil
}

// addLiquidity mints shares against both reserves. The first add locks
// MinLiquidity shares at the burn address; while reserves are zero the
// deposit ratio must match the bootstrap price when one is set.
func (l *Layer) addLiquidity(sender [32]byte, i *codec.AddLiquidity) ([]codec.Event, error) {
	if i.RNG == 0 || i.VUSDT == 0 {
		return nil, domainErr(CodeInvalidBet, "liquidity amounts must be > 0")
	}
	pool, err := l.ammPool()
	if err != nil {
		return nil, err
	}
	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	if acct.Chips < i.RNG {
		return nil, domainErr(CodeInsufficientFunds, "insufficient chips: have=%d need=%d", acct.Chips, i.RNG)
	}
	if acct.VUSDT < i.VUSDT {
		return nil, domainErr(CodeInsufficientFunds, "insufficient vusdt: have=%d need=%d", acct.VUSDT, i.VUSDT)
	}

	var minted uint64
	first := pool.TotalShares == 0
	if first {
		if pool.BootstrapPriceNum != 0 {
			// vusdt/rng must equal num/den exactly at bootstrap.
			lhs := new(uint256.Int).Mul(u256(i.VUSDT), u256(pool.BootstrapPriceDen))
			rhs := new(uint256.Int).Mul(u256(i.RNG), u256(pool.BootstrapPriceNum))
			if !lhs.Eq(rhs) {
				return nil, domainErr(CodeInvalidBet, "deposit ratio must match bootstrap price %d/%d",
					pool.BootstrapPriceNum, pool.BootstrapPriceDen)
			}
		}
		prod := new(uint256.Int).Mul(u256(i.RNG), u256(i.VUSDT))
		shares := new(uint256.Int).Sqrt(prod)
		if !shares.IsUint64() || shares.Uint64() <= MinLiquidity {
			return nil, domainErr(CodeMinLiquidityViolation, "initial liquidity below minimum lock")
		}
		minted = shares.Uint64() - MinLiquidity
	} else {
		byRNG, ok1 := mulDiv(i.RNG, pool.TotalShares, pool.ReserveRNG)
		byVUSDT, ok2 := mulDiv(i.VUSDT, pool.TotalShares, pool.ReserveVUSDT)
		if !ok1 || !ok2 {
			return nil, domainErr(CodeInvalidBet, "liquidity amounts out of range")
		}
		minted = min64(byRNG, byVUSDT)
		if minted == 0 {
			return nil, domainErr(CodeInvalidBet, "deposit too small for a share")
		}
	}
	if minted < i.MinShares {
		return nil, domainErr(CodeSlippageExceeded, "minted %d below minimum %d", minted, i.MinShares)
	}

	lp, err := l.lpPosition(sender)
	if err != nil {
		return nil, err
	}
	house, err := l.house()
	if err != nil {
		return nil, err
	}

	acct.Chips -= i.RNG
	acct.VUSDT -= i.VUSDT
	pool.ReserveRNG += i.RNG
	pool.ReserveVUSDT += i.VUSDT
	pool.TotalShares += minted
	lp.Shares += minted
	house.EscrowedChips += i.RNG
	if first {
		pool.TotalShares += MinLiquidity
		burnLp, err := l.lpPosition(burnAddress)
		if err != nil {
			return nil, err
		}
		burnLp.Shares += MinLiquidity
		l.put(state.LpPositionKey(burnAddress), burnLp.Encode())
	}

	l.setAccount(sender, acct)
	l.setAmmPool(pool)
	l.setHouse(house)
	l.put(state.LpPositionKey(sender), lp.Encode())

	return []codec.Event{&codec.LiquidityChanged{
		Provider:    sender,
		Added:       true,
		AmountRNG:   i.RNG,
		AmountVUSDT: i.VUSDT,
		Shares:      minted,
		TotalShares: pool.TotalShares,
	}}, nil
}

// removeLiquidity burns shares pro rata. The pool can never drop below the
// locked minimum.
func (l *Layer) removeLiquidity(sender [32]byte, i *codec.RemoveLiquidity) ([]codec.Event, error) {
	if i.Shares == 0 {
		return nil, domainErr(CodeInvalidBet, "shares must be > 0")
	}
	pool, err := l.ammPool()
	if err != nil {
		return nil, err
	}
	if pool.TotalShares == 0 {
		return nil, domainErr(CodePoolEmpty, "amm pool has no liquidity")
	}
	if i.Shares > pool.TotalShares || pool.TotalShares-i.Shares < MinLiquidity {
		return nil, domainErr(CodeMinLiquidityViolation,
			"removal leaves fewer than %d shares", MinLiquidity)
	}
	lp, err := l.lpPosition(sender)
	if err != nil {
		return nil, err
	}
	if lp.Shares < i.Shares {
		return nil, domainErr(CodeInsufficientFunds, "insufficient shares: have=%d need=%d", lp.Shares, i.Shares)
	}

	outRNG, ok1 := mulDiv(i.Shares, pool.ReserveRNG, pool.TotalShares)
	outVUSDT, ok2 := mulDiv(i.Shares, pool.ReserveVUSDT, pool.TotalShares)
	if !ok1 || !ok2 {
		return nil, domainErr(CodeInvalidBet, "share amount out of range")
	}
	if outRNG < i.MinRNG || outVUSDT < i.MinVUSDT {
		return nil, domainErr(CodeSlippageExceeded, "outputs %d/%d below minimums", outRNG, outVUSDT)
	}

	acct, err := l.account(sender)
	if err != nil {
		return nil, err
	}
	house, err := l.house()
	if err != nil {
		return nil, err
	}

	lp.Shares -= i.Shares
	pool.TotalShares -= i.Shares
	pool.ReserveRNG -= outRNG
	pool.ReserveVUSDT -= outVUSDT
	acct.Chips += outRNG
	acct.VUSDT += outVUSDT
	house.EscrowedChips -= outRNG

	l.setAccount(sender, acct)
	l.setAmmPool(pool)
	l.setHouse(house)
	if lp.Shares == 0 {
		l.del(state.LpPositionKey(sender))
	} else {
		l.put(state.LpPositionKey(sender), lp.Encode())
	}

	return []codec.Event{&codec.LiquidityChanged{
		Provider:    sender,
		Added:       false,
		AmountRNG:   outRNG,
		AmountVUSDT: outVUSDT,
		Shares:      i.Shares,
		TotalShares: pool.TotalShares,
	}}, nil
}

// setOraclePrice is admin-gated and only meaningful while the pool is
// unbootstrapped; afterwards the curve is the price.
func (l *Layer) setOraclePrice(sender [32]byte, i *codec.SetOraclePrice) ([]codec.Event, error) {
	if sender != l.admin {
		return nil, domainErr(CodeUnauthorized, "oracle updates are admin-gated")
	}
	if i.PriceDen == 0 {
		return nil, domainErr(CodeInvalidBet, "price denominator must be > 0")
	}
	pool, err := l.ammPool()
	if err != nil {
		return nil, err
	}
	pool.BootstrapPriceNum = i.PriceNum
	pool.BootstrapPriceDen = i.PriceDen
	l.setAmmPool(pool)
	return []codec.Event{&codec.OraclePriceSet{PriceNum: i.PriceNum, PriceDen: i.PriceDen}}, nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
