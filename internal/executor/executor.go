// Package executor turns an approved opportunity into an entry order plus a
// take-profit/stop-loss bracket and records the result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"poly-divergence/internal/clob"
	"poly-divergence/internal/divergence"
	"poly-divergence/internal/ledger"
	"poly-divergence/internal/metrics"
)

var (
	ErrPricing     = errors.New("pricing failed")
	ErrEntrySubmit = errors.New("entry order failed")
)

// State is a step of one execution attempt.
type State string

const (
	StateIdle             State = "IDLE"
	StatePricing          State = "PRICING"
	StateEntrySubmitted   State = "ENTRY_SUBMITTED"
	StateFillCheck        State = "FILL_CHECK"
	StateBracketSubmitted State = "BRACKET_SUBMITTED"
	StateRecorded         State = "RECORDED"
	StateFailed           State = "FAILED"
)

var (
	MinPrice = decimal.RequireFromString("0.01")
	MaxPrice = decimal.RequireFromString("0.99")
)

type Config struct {
	// Cooldown is the minimum spacing between attempts, enforced on the
	// shared clock when an attempt starts.
	Cooldown time.Duration

	Notional   decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal

	// EntryBuffer moves the entry limit through the book (0.005 = 0.5%).
	EntryBuffer decimal.Decimal
	SettleDelay time.Duration
	Tick        clob.TickConfig
	OrderType   clob.OrderType

	// OrderTimeout bounds each venue call. Calls do not inherit the caller's
	// cancellation so shutdown never interrupts a submission in flight.
	OrderTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Cooldown:     30 * time.Second,
		Notional:     decimal.RequireFromString("5"),
		TakeProfit:   decimal.RequireFromString("0.01"),
		StopLoss:     decimal.RequireFromString("0.005"),
		EntryBuffer:  decimal.RequireFromString("0.005"),
		SettleDelay:  3 * time.Second,
		Tick:         clob.TickConfig{TickSize: "0.001", NegRisk: false},
		OrderType:    clob.OrderTypeGTC,
		OrderTimeout: 30 * time.Second,
	}
}

type Executor struct {
	venue  Venue
	clock  *divergence.Clock
	ledger *ledger.Ledger
	cfg    Config
	log    zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(venue Venue, clock *divergence.Clock, l *ledger.Ledger, cfg Config, log zerolog.Logger) *Executor {
	return &Executor{
		venue:  venue,
		clock:  clock,
		ledger: l,
		cfg:    cfg,
		log:    log.With().Str("component", "executor").Logger(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// BracketPrices derives take-profit and stop-loss from the entry price,
// clamped to [MinPrice, MaxPrice], and the side both exit orders trade.
func BracketPrices(action divergence.Action, entry, tp, sl decimal.Decimal) (takeProfit, stopLoss decimal.Decimal, exit clob.Side) {
	if action == divergence.ActionEnterShort {
		return clamp(entry.Sub(tp)), clamp(entry.Add(sl)), clob.SideBuy
	}
	return clamp(entry.Add(tp)), clamp(entry.Sub(sl)), clob.SideSell
}

// entryOrder returns the side and buffered limit price for the entry.
func (e *Executor) entryOrder(action divergence.Action, market decimal.Decimal) (clob.Side, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if action == divergence.ActionEnterShort {
		return clob.SideSell, clamp(market.Mul(one.Sub(e.cfg.EntryBuffer)))
	}
	return clob.SideBuy, clamp(market.Mul(one.Add(e.cfg.EntryBuffer)))
}

func clamp(p decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(p, MinPrice), MaxPrice)
}

// Execute runs one attempt. The cooldown clock is stamped before any venue
// call, so a failed attempt still consumes the cooldown window. An attempt
// started inside another's window returns ErrCooldown without touching the venue.
func (e *Executor) Execute(ctx context.Context, opp divergence.Opportunity) (ledger.Trade, error) {
	startedAt := e.now()
	if !e.clock.TryStamp(startedAt, e.cfg.Cooldown) {
		metrics.Executions.WithLabelValues("cooldown").Inc()
		return ledger.Trade{}, fmt.Errorf("%w: last attempt at %s", divergence.ErrCooldown, e.clock.LastTradeAt().Format(time.RFC3339Nano))
	}

	log := e.log.With().
		Str("side", string(opp.Side)).
		Str("action", string(opp.Action)).
		Str("token", opp.InstrumentID).
		Logger()
	transition := func(s State) *zerolog.Event {
		return log.Info().Str("state", string(s))
	}
	fail := func(s State, result string, err error) (ledger.Trade, error) {
		metrics.Executions.WithLabelValues(result).Inc()
		log.Error().Err(err).Str("state", string(StateFailed)).Str("from", string(s)).Msg("execution failed")
		return ledger.Trade{}, err
	}

	// PRICING
	transition(StatePricing).Str("reference", opp.ReferencePrice.String()).Str("delta", opp.Delta.String()).Msg("fetching entry price")
	quoteSide := clob.SideBuy
	if !opp.Long() {
		quoteSide = clob.SideSell
	}
	callCtx, cancel := e.callContext(ctx)
	market, err := e.venue.GetPrice(callCtx, opp.InstrumentID, quoteSide)
	cancel()
	if err != nil {
		return fail(StatePricing, "pricing_failed", fmt.Errorf("%w: %v", ErrPricing, err))
	}
	if !market.IsPositive() {
		return fail(StatePricing, "pricing_failed", fmt.Errorf("%w: non-positive price %s", ErrPricing, market))
	}

	size := e.cfg.Notional.Div(market)
	entrySide, limit := e.entryOrder(opp.Action, market)

	// ENTRY_SUBMITTED
	callCtx, cancel = e.callContext(ctx)
	entry, err := e.venue.CreateAndPostOrder(callCtx, clob.OrderArgs{
		TokenID: opp.InstrumentID,
		Price:   limit,
		Size:    size,
		Side:    entrySide,
	}, e.cfg.Tick, e.cfg.OrderType)
	cancel()
	if err != nil {
		metrics.Orders.WithLabelValues("entry", string(entrySide), "error").Inc()
		return fail(StateEntrySubmitted, "entry_failed", fmt.Errorf("%w: %v", ErrEntrySubmit, err))
	}
	metrics.Orders.WithLabelValues("entry", string(entrySide), "ok").Inc()
	transition(StateEntrySubmitted).
		Str("order_id", entry.OrderID).
		Str("market", market.String()).
		Str("limit", limit.String()).
		Str("size", size.StringFixed(4)).
		Msg("entry order placed")

	// FILL_CHECK
	entryPrice, filledSize, confirmed := e.checkFill(ctx, log, entry.OrderID, market, size)

	// BRACKET_SUBMITTED
	tpPrice, slPrice, exitSide := BracketPrices(opp.Action, entryPrice, e.cfg.TakeProfit, e.cfg.StopLoss)
	tpID := e.placeBracketLeg(ctx, log, "take_profit", opp.InstrumentID, exitSide, tpPrice, filledSize)
	slID := e.placeBracketLeg(ctx, log, "stop_loss", opp.InstrumentID, exitSide, slPrice, filledSize)
	transition(StateBracketSubmitted).
		Str("take_profit", tpPrice.String()).
		Str("stop_loss", slPrice.String()).
		Str("tp_order_id", tpID).
		Str("sl_order_id", slID).
		Msg("bracket submitted")

	// RECORDED
	trade := e.ledger.Append(ledger.Trade{
		Side:              opp.Side,
		Action:            string(opp.Action),
		InstrumentID:      opp.InstrumentID,
		EntryOrderID:      entry.OrderID,
		TakeProfitOrderID: tpID,
		StopLossOrderID:   slID,
		EntryPrice:        entryPrice,
		TakeProfitPrice:   tpPrice,
		StopLossPrice:     slPrice,
		Size:              filledSize,
		Notional:          e.cfg.Notional,
		FillConfirmed:     confirmed,
		OpenedAt:          startedAt,
		Status:            ledger.StatusActive,
	})
	result := "recorded"
	if !trade.Protected() {
		result = "recorded_unprotected"
		log.Error().Str("trade_id", trade.ID).Msg("position open without full bracket")
	}
	metrics.Executions.WithLabelValues(result).Inc()
	transition(StateRecorded).Str("trade_id", trade.ID).Dur("elapsed", e.now().Sub(startedAt)).Msg("trade recorded")
	log.Debug().Str("state", string(StateIdle)).Msg("executor idle")
	return trade, nil
}

// checkFill waits the settle delay and asks once for the entry's fill. Any
// failure falls back to the quoted price and intended size.
func (e *Executor) checkFill(ctx context.Context, log zerolog.Logger, orderID string, market, size decimal.Decimal) (decimal.Decimal, decimal.Decimal, bool) {
	if !e.sleep(ctx, e.cfg.SettleDelay) {
		log.Warn().Str("state", string(StateFillCheck)).Msg("shutdown during settle delay, bracketing at quoted price")
		return market, size, false
	}
	callCtx, cancel := e.callContext(ctx)
	st, err := e.venue.GetOrder(callCtx, orderID)
	cancel()
	switch {
	case err != nil:
		log.Warn().Err(err).Str("state", string(StateFillCheck)).Msg("fill query failed, bracketing at quoted price")
		return market, size, false
	case !st.Filled():
		log.Warn().Str("state", string(StateFillCheck)).Str("status", st.Status).Msg("entry not filled yet, bracketing at quoted price")
		return market, size, false
	}
	log.Info().Str("state", string(StateFillCheck)).
		Str("status", st.Status).
		Str("avg_price", st.AvgFillPrice.String()).
		Str("filled", st.FilledSize.String()).
		Msg("entry fill confirmed")
	return st.AvgFillPrice, st.FilledSize, true
}

func (e *Executor) placeBracketLeg(ctx context.Context, log zerolog.Logger, leg, tokenID string, side clob.Side, price, size decimal.Decimal) string {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	res, err := e.venue.CreateAndPostOrder(callCtx, clob.OrderArgs{
		TokenID: tokenID,
		Price:   price,
		Size:    size,
		Side:    side,
	}, e.cfg.Tick, e.cfg.OrderType)
	if err != nil {
		metrics.Orders.WithLabelValues(leg, string(side), "error").Inc()
		log.Error().Err(err).Str("leg", leg).Str("price", price.String()).Msg("bracket order failed")
		return ""
	}
	metrics.Orders.WithLabelValues(leg, string(side), "ok").Inc()
	return res.OrderID
}

func (e *Executor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if e.cfg.OrderTimeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, e.cfg.OrderTimeout)
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
