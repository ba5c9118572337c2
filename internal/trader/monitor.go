package trader

import (
	"context"
	"time"

	"poly-divergence/internal/balance"
	"poly-divergence/internal/pricestate"
)

// monitor logs periodic snapshots and balance warnings, checking balances
// once on entry. It never touches trading state.
func (r *Runner) monitor(ctx context.Context) {
	snapEvery := r.cfg.SnapshotEvery
	if snapEvery <= 0 {
		snapEvery = 30 * time.Second
	}
	balEvery := r.cfg.BalanceEvery
	if balEvery <= 0 {
		balEvery = 60 * time.Second
	}
	snapTicker := time.NewTicker(snapEvery)
	defer snapTicker.Stop()
	balTicker := time.NewTicker(balEvery)
	defer balTicker.Stop()

	r.checkBalances(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-snapTicker.C:
			r.logSnapshot()
		case <-balTicker.C:
			r.checkBalances(ctx)
		}
	}
}

func (r *Runner) logSnapshot() {
	now := r.now()
	snap := r.store.Snapshot(now)
	ev := r.log.Info().
		Str("up_proprietary", formatPoint(snap.Up.Proprietary)).
		Str("up_venue", formatPoint(snap.Up.Venue)).
		Str("down_proprietary", formatPoint(snap.Down.Proprietary)).
		Str("down_venue", formatPoint(snap.Down.Venue)).
		Int("trades", r.ledger.Len())
	for _, f := range r.feeds {
		ev = ev.Bool(string(f.Feed())+"_connected", f.Connected())
		if last := f.LastUpdate(); !last.IsZero() {
			ev = ev.Dur(string(f.Feed())+"_age", now.Sub(last).Round(time.Millisecond))
		}
	}
	if last := r.gate.Clock.LastTradeAt(); !last.IsZero() {
		ev = ev.Time("last_trade_at", last)
	}
	if t, ok := r.ledger.Last(); ok {
		ev = ev.Str("last_trade_id", t.ID).
			Str("last_trade_side", string(t.Side)).
			Str("last_entry", t.EntryPrice.StringFixed(4)).
			Bool("last_protected", t.Protected())
	}
	ev.Msg("snapshot")
}

func formatPoint(p pricestate.PricePoint) string {
	if !p.Known() {
		return "-"
	}
	return p.Value.StringFixed(4)
}

// checkBalances warns on low balances. It does not gate trading; the
// decision loop checks the settlement balance itself before each execution.
func (r *Runner) checkBalances(ctx context.Context) {
	if r.balances == nil {
		return
	}
	b, err := r.balances.CheckBalances(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn().Err(err).Msg("balance check failed")
		}
		return
	}
	r.observeBalance(b)
	suff := balance.CheckSufficientBalance(b, r.cfg.MinBalance, r.cfg.MinGasMonitor)
	for _, w := range suff.Warnings {
		r.log.Warn().Str("settlement", b.Settlement.StringFixed(2)).Str("gas", b.Gas.StringFixed(4)).Msg(w)
	}
	if suff.Sufficient {
		r.log.Debug().Str("settlement", b.Settlement.StringFixed(2)).Str("gas", b.Gas.StringFixed(4)).Msg("balances ok")
	}
}
