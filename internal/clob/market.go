package clob

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const collateralTokenDecimals = 6

type roundConfig struct {
	price  int
	size   int
	amount int
}

var roundingConfigByTickSize = map[string]roundConfig{
	"0.1":    {price: 1, size: 2, amount: 3},
	"0.01":   {price: 2, size: 2, amount: 4},
	"0.001":  {price: 3, size: 2, amount: 5},
	"0.0001": {price: 4, size: 2, amount: 6},
}

func roundingConfigFor(tickSize string) (roundConfig, error) {
	tickSize = canonicalDecimalString(tickSize)
	rc, ok := roundingConfigByTickSize[tickSize]
	if !ok {
		return roundConfig{}, fmt.Errorf("unsupported tickSize %q", tickSize)
	}
	return rc, nil
}

// validPrice reports whether price lies in [tick, 1-tick].
func validPrice(price decimal.Decimal, tickSize string) bool {
	tick, err := decimal.NewFromString(strings.TrimSpace(tickSize))
	if err != nil || !tick.IsPositive() {
		return false
	}
	return price.GreaterThanOrEqual(tick) && price.LessThanOrEqual(decimal.NewFromInt(1).Sub(tick))
}

func hasMoreDecimals(d decimal.Decimal, places int32) bool {
	return !d.Equal(d.Truncate(places))
}

// roundAmount fits a collateral/share product into the tick's amount precision.
func roundAmount(v decimal.Decimal, rc roundConfig) decimal.Decimal {
	amount := int32(rc.amount)
	if !hasMoreDecimals(v, amount) {
		return v
	}
	v = v.RoundCeil(amount + 4)
	if hasMoreDecimals(v, amount) {
		v = v.RoundFloor(amount)
	}
	return v
}

// limitOrderAmounts returns the on-chain maker/taker amounts (1e6 units) and the
// rounded price for a limit order. BUY pays collateral for shares; SELL pays
// shares for collateral.
func limitOrderAmounts(side Side, price, size decimal.Decimal, rc roundConfig) (maker, taker *big.Int, roundedPrice decimal.Decimal, err error) {
	roundedPrice = price.Round(int32(rc.price))
	shares := size.RoundFloor(int32(rc.size))
	if !shares.IsPositive() {
		return nil, nil, decimal.Zero, fmt.Errorf("size %s rounds to 0", size)
	}
	if !roundedPrice.IsPositive() {
		return nil, nil, decimal.Zero, fmt.Errorf("price %s rounds to 0", price)
	}
	collateral := roundAmount(shares.Mul(roundedPrice), rc)

	switch side {
	case SideBuy:
		return toTokenUnits(collateral), toTokenUnits(shares), roundedPrice, nil
	case SideSell:
		return toTokenUnits(shares), toTokenUnits(collateral), roundedPrice, nil
	default:
		return nil, nil, decimal.Zero, fmt.Errorf("invalid side %q", side)
	}
}

func toTokenUnits(v decimal.Decimal) *big.Int {
	return v.Shift(collateralTokenDecimals).Round(0).BigInt()
}
