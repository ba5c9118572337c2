// Package trader wires feeds, detection, gating and execution into the
// running process: a startup balance gate, a warm-up, a self-rescheduling
// decision loop and a read-only monitor.
package trader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"poly-divergence/internal/balance"
	"poly-divergence/internal/divergence"
	"poly-divergence/internal/ledger"
	"poly-divergence/internal/metrics"
	"poly-divergence/internal/pricestate"
)

// ErrStartupBalance means the wallet cannot fund trading at launch.
var ErrStartupBalance = errors.New("insufficient balance at startup")

// Feed is a long-running price subscription.
type Feed interface {
	Run(ctx context.Context)
	Feed() pricestate.Feed
	Connected() bool
	LastUpdate() time.Time
}

// Executor runs one approved opportunity.
type Executor interface {
	Execute(ctx context.Context, opp divergence.Opportunity) (ledger.Trade, error)
}

type Config struct {
	Mode          string
	Threshold     decimal.Decimal
	MinBalance    decimal.Decimal
	MinGasStartup decimal.Decimal
	MinGasMonitor decimal.Decimal

	DecisionInterval time.Duration
	WarmUp           time.Duration
	SnapshotEvery    time.Duration
	BalanceEvery     time.Duration
}

type Runner struct {
	cfg      Config
	store    *pricestate.Store
	feeds    []Feed
	gate     *divergence.Gate
	exec     Executor
	balances divergence.BalanceChecker
	ledger   *ledger.Ledger
	audit    *ledger.Audit
	log      zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	startedAt time.Time
}

func New(cfg Config, store *pricestate.Store, feeds []Feed, gate *divergence.Gate, exec Executor, l *ledger.Ledger, audit *ledger.Audit, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		feeds:    feeds,
		gate:     gate,
		exec:     exec,
		balances: gate.Balances,
		ledger:   l,
		audit:    audit,
		log:      log.With().Str("component", "trader").Logger(),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Startup checks both balances against the startup minimums. Any shortfall
// or lookup failure is fatal for the process.
func (r *Runner) Startup(ctx context.Context) error {
	if r.balances == nil {
		return nil
	}
	b, err := r.balances.CheckBalances(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartupBalance, err)
	}
	r.observeBalance(b)
	suff := balance.CheckSufficientBalance(b, r.cfg.MinBalance, r.cfg.MinGasStartup)
	if !suff.Sufficient {
		return fmt.Errorf("%w: %s", ErrStartupBalance, strings.Join(suff.Warnings, "; "))
	}
	r.log.Info().
		Str("settlement", b.Settlement.StringFixed(2)).
		Str("gas", b.Gas.StringFixed(4)).
		Msg("startup balance ok")
	return nil
}

// Run blocks until ctx is cancelled. It returns an error only when the
// startup gate fails; feeds are not started in that case.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Startup(ctx); err != nil {
		return err
	}
	r.startedAt = r.now()
	up, down := r.store.Instrument(pricestate.SideUp), r.store.Instrument(pricestate.SideDown)
	r.audit.Write(ledger.Event{Event: "start", Mode: r.cfg.Mode, TokenUp: up, TokenDown: down})
	r.log.Info().
		Str("mode", r.cfg.Mode).
		Str("token_up", up).
		Str("token_down", down).
		Str("threshold", r.cfg.Threshold.String()).
		Dur("cooldown", r.gate.Cooldown).
		Msg("trader started")

	var wg sync.WaitGroup
	for _, f := range r.feeds {
		wg.Add(1)
		go func(f Feed) {
			defer wg.Done()
			f.Run(ctx)
		}(f)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.monitor(ctx)
	}()

	if r.sleep(ctx, r.cfg.WarmUp) {
		r.log.Info().Dur("warm_up", r.cfg.WarmUp).Msg("warm-up complete, trading enabled")
		r.decisionLoop(ctx)
	}

	wg.Wait()
	uptime := r.now().Sub(r.startedAt)
	r.audit.Write(ledger.Event{Event: "shutdown", Mode: r.cfg.Mode, Trades: r.ledger.Len(), UptimeMs: uptime.Milliseconds()})
	r.log.Info().Int("trades", r.ledger.Len()).Dur("uptime", uptime).Msg("trader stopped")
	return nil
}

// decisionLoop runs Tick, then waits the interval. Ticks never overlap and a
// slow execution pushes the next tick back.
func (r *Runner) decisionLoop(ctx context.Context) {
	for {
		r.Tick(ctx)
		if !r.sleep(ctx, r.cfg.DecisionInterval) {
			return
		}
	}
}

// Tick is one decision: cooldown, detection, balance gate, execution.
func (r *Runner) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := r.now()
	if !r.gate.CooldownElapsed(now) {
		return
	}
	opp, ok := divergence.Detect(r.store.Snapshot(now), r.cfg.Threshold)
	if !ok {
		return
	}
	metrics.Opportunities.WithLabelValues(string(opp.Side), string(opp.Action)).Inc()
	log := r.log.With().
		Str("side", string(opp.Side)).
		Str("action", string(opp.Action)).
		Str("reference", opp.ReferencePrice.String()).
		Str("market", opp.MarketPrice.String()).
		Str("delta", opp.Delta.String()).
		Logger()
	log.Info().Msg("divergence detected")
	r.audit.Write(ledger.Event{
		Event:     "opportunity",
		Side:      string(opp.Side),
		Action:    string(opp.Action),
		Reference: opp.ReferencePrice.String(),
		Market:    opp.MarketPrice.String(),
		Delta:     opp.Delta.String(),
	})

	if err := r.gate.Check(ctx, now); err != nil {
		log.Warn().Err(err).Msg("execution gated")
		r.audit.Write(ledger.Event{Event: "execution", Side: string(opp.Side), Result: "gated", Reason: gateReason(err), Err: err.Error()})
		return
	}

	trade, err := r.exec.Execute(ctx, opp)
	if err != nil {
		r.audit.Write(ledger.Event{Event: "execution", Side: string(opp.Side), Action: string(opp.Action), Result: "failed", Err: err.Error()})
		return
	}
	result := "recorded"
	if !trade.Protected() {
		result = "recorded_unprotected"
	}
	r.audit.Write(ledger.Event{Event: "execution", Side: string(opp.Side), Action: string(opp.Action), Result: result})
}

func gateReason(err error) string {
	switch {
	case errors.Is(err, divergence.ErrCooldown):
		return "cooldown"
	case errors.Is(err, divergence.ErrInsufficientBalance):
		return "balance"
	default:
		return "unknown"
	}
}

func (r *Runner) observeBalance(b balance.Balances) {
	f, _ := b.Settlement.Float64()
	metrics.SettlementBalance.Set(f)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
