package divergence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"poly-divergence/internal/balance"
)

type fakeBalances struct {
	settlement decimal.Decimal
	err        error
	calls      int
}

func (f *fakeBalances) CheckBalances(context.Context) (balance.Balances, error) {
	f.calls++
	if f.err != nil {
		return balance.Balances{}, f.err
	}
	return balance.Balances{Settlement: f.settlement, Gas: decimal.NewFromInt(1)}, nil
}

func newGate(b BalanceChecker) *Gate {
	return &Gate{
		Clock:      &Clock{},
		Cooldown:   30 * time.Second,
		Balances:   b,
		MinBalance: decimal.NewFromInt(500),
	}
}

func TestGate_CooldownScenario(t *testing.T) {
	bal := &fakeBalances{settlement: decimal.NewFromInt(1000)}
	g := newGate(bal)
	t0 := time.Unix(1700000000, 0)
	g.Clock.Stamp(t0)

	err := g.Check(context.Background(), t0.Add(29*time.Second))
	require.ErrorIs(t, err, ErrCooldown)
	require.Zero(t, bal.calls, "balance must not be queried while cooling down")

	require.NoError(t, g.Check(context.Background(), t0.Add(31*time.Second)))
	require.Equal(t, 1, bal.calls)

	require.NoError(t, g.Check(context.Background(), t0.Add(30*time.Second)), "elapsed == cooldown passes")
}

func TestGate_FirstTradeNeedsNoCooldown(t *testing.T) {
	g := newGate(&fakeBalances{settlement: decimal.NewFromInt(500)})
	require.NoError(t, g.Check(context.Background(), time.Unix(10, 0)))
}

func TestGate_BalanceBelowMinimum(t *testing.T) {
	bal := &fakeBalances{settlement: decimal.RequireFromString("499.99")}
	g := newGate(bal)
	now := time.Unix(1700000000, 0)

	err := g.Check(context.Background(), now)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, g.Clock.LastTradeAt().IsZero(), "gate must not touch the clock")

	bal.settlement = decimal.NewFromInt(501)
	require.NoError(t, g.Check(context.Background(), now.Add(time.Second)))
	require.Equal(t, 2, bal.calls, "balance is re-read every tick")
}

func TestGate_BalanceLookupFailureBlocks(t *testing.T) {
	g := newGate(&fakeBalances{err: errors.New("rpc timeout")})
	err := g.Check(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Contains(t, err.Error(), "rpc timeout")
}

func TestClock_TryStampIsSingleFlight(t *testing.T) {
	var c Clock
	now := time.Unix(1700000000, 0)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryStamp(now, 30*time.Second) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
	require.Equal(t, now, c.LastTradeAt())
	require.False(t, c.Ready(now.Add(29*time.Second), 30*time.Second))
	require.True(t, c.Ready(now.Add(31*time.Second), 30*time.Second))
}
