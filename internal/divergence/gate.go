package divergence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"poly-divergence/internal/balance"
	"poly-divergence/internal/metrics"
)

var (
	ErrCooldown            = errors.New("cooldown active")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Clock is the process-wide last-trade timestamp.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

// LastTradeAt returns the last stamp (zero if never stamped).
func (c *Clock) LastTradeAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Ready reports whether cooldown has elapsed since the last stamp.
func (c *Clock) Ready(now time.Time, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyLocked(now, cooldown)
}

func (c *Clock) readyLocked(now time.Time, cooldown time.Duration) bool {
	return c.last.IsZero() || now.Sub(c.last) >= cooldown
}

// Stamp records now as the start of an execution attempt.
func (c *Clock) Stamp(now time.Time) {
	c.mu.Lock()
	c.last = now
	c.mu.Unlock()
}

// TryStamp stamps only if the cooldown has elapsed. It is the single-flight
// entry point when more than one caller may attempt execution.
func (c *Clock) TryStamp(now time.Time, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyLocked(now, cooldown) {
		return false
	}
	c.last = now
	return true
}

// BalanceChecker reads current wallet balances.
type BalanceChecker interface {
	CheckBalances(ctx context.Context) (balance.Balances, error)
}

// Gate combines the cooldown and settlement-balance checks. Nothing is cached
// between calls.
type Gate struct {
	Clock      *Clock
	Cooldown   time.Duration
	Balances   BalanceChecker
	MinBalance decimal.Decimal
}

// CooldownElapsed is the cheap first gate; callers skip the whole tick when false.
func (g *Gate) CooldownElapsed(now time.Time) bool {
	if g.Clock.Ready(now, g.Cooldown) {
		return true
	}
	metrics.GateBlocked.WithLabelValues("cooldown").Inc()
	return false
}

// Check runs both gates. It returns nil when execution may start, wrapping
// ErrCooldown or ErrInsufficientBalance otherwise. A failed balance lookup
// also blocks the tick.
func (g *Gate) Check(ctx context.Context, now time.Time) error {
	if !g.CooldownElapsed(now) {
		remaining := g.Cooldown - now.Sub(g.Clock.LastTradeAt())
		return fmt.Errorf("%w: %s remaining", ErrCooldown, remaining.Round(time.Millisecond))
	}
	if g.Balances == nil {
		return nil
	}
	b, err := g.Balances.CheckBalances(ctx)
	if err != nil {
		metrics.GateBlocked.WithLabelValues("balance_error").Inc()
		return fmt.Errorf("%w: balance lookup: %v", ErrInsufficientBalance, err)
	}
	f, _ := b.Settlement.Float64()
	metrics.SettlementBalance.Set(f)
	if b.Settlement.LessThan(g.MinBalance) {
		metrics.GateBlocked.WithLabelValues("balance").Inc()
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, b.Settlement.StringFixed(2), g.MinBalance.StringFixed(2))
	}
	return nil
}
