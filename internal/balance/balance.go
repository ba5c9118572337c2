// Package balance reports the wallet's settlement (USDC) and gas balances and
// judges them against configured minimums.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"poly-divergence/internal/polygonutil"
)

// Balances is one observation of both currencies.
type Balances struct {
	Settlement decimal.Decimal
	Gas        decimal.Decimal
	CheckedAt  time.Time
}

// Sufficiency is the outcome of CheckSufficientBalance.
type Sufficiency struct {
	Sufficient bool
	Warnings   []string
}

// ChainReader is the RPC surface the service needs.
type ChainReader interface {
	USDCBalanceMicros(ctx context.Context, owner common.Address) (uint64, error)
	NativeBalanceWei(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Service reads balances for one wallet.
type Service struct {
	reader  ChainReader
	owner   common.Address
	timeout time.Duration
	now     func() time.Time
}

// DefaultTimeout bounds a single CheckBalances call.
const DefaultTimeout = 10 * time.Second

func NewService(reader ChainReader, owner common.Address) *Service {
	return &Service{reader: reader, owner: owner, timeout: DefaultTimeout, now: time.Now}
}

func (s *Service) Owner() common.Address { return s.owner }

// CheckBalances fetches both balances. Either lookup failing fails the call.
func (s *Service) CheckBalances(ctx context.Context) (Balances, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	usdc, err := s.reader.USDCBalanceMicros(ctx, s.owner)
	if err != nil {
		return Balances{}, fmt.Errorf("settlement balance: %w", err)
	}
	wei, err := s.reader.NativeBalanceWei(ctx, s.owner)
	if err != nil {
		return Balances{}, fmt.Errorf("gas balance: %w", err)
	}
	return Balances{
		Settlement: polygonutil.MicrosToDecimal(usdc),
		Gas:        polygonutil.WeiToDecimal(wei),
		CheckedAt:  s.now(),
	}, nil
}

// CheckSufficientBalance compares b to the minimums and explains every shortfall.
func CheckSufficientBalance(b Balances, minSettlement, minGas decimal.Decimal) Sufficiency {
	var warnings []string
	if b.Settlement.LessThan(minSettlement) {
		warnings = append(warnings, fmt.Sprintf("low USDC balance: %s < %s", b.Settlement.StringFixed(2), minSettlement.StringFixed(2)))
	}
	if b.Gas.LessThan(minGas) {
		warnings = append(warnings, fmt.Sprintf("low MATIC balance: %s < %s", b.Gas.StringFixed(4), minGas.StringFixed(4)))
	}
	return Sufficiency{Sufficient: len(warnings) == 0, Warnings: warnings}
}
