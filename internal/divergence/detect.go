// Package divergence decides when the proprietary feed disagrees with the
// venue enough to trade, and whether a trade may start right now.
package divergence

import (
	"github.com/shopspring/decimal"

	"poly-divergence/internal/pricestate"
)

// Action is the direction of an entry.
type Action string

const (
	ActionEnterLong  Action = "ENTER_LONG"
	ActionEnterShort Action = "ENTER_SHORT"
)

// Opportunity is built from a snapshot copy and never mutated.
type Opportunity struct {
	Side           pricestate.Side
	InstrumentID   string
	ReferencePrice decimal.Decimal // proprietary
	MarketPrice    decimal.Decimal // venue
	Delta          decimal.Decimal // reference - market
	Action         Action
}

// Long reports whether the opportunity buys the instrument.
func (o Opportunity) Long() bool { return o.Action == ActionEnterLong }

// Detect evaluates UP then DOWN and returns the first side whose
// |proprietary - venue| reaches threshold. Sides with an unknown price on
// either feed are skipped.
func Detect(snap pricestate.Snapshot, threshold decimal.Decimal) (Opportunity, bool) {
	neg := threshold.Neg()
	for _, side := range pricestate.Sides {
		p := snap.For(side)
		ref, mkt := p.Proprietary.Value, p.Venue.Value
		if !ref.IsPositive() || !mkt.IsPositive() {
			continue
		}
		delta := ref.Sub(mkt)
		var action Action
		switch {
		case delta.GreaterThanOrEqual(threshold):
			action = ActionEnterLong
		case delta.LessThanOrEqual(neg):
			action = ActionEnterShort
		default:
			continue
		}
		return Opportunity{
			Side:           side,
			InstrumentID:   p.InstrumentID,
			ReferencePrice: ref,
			MarketPrice:    mkt,
			Delta:          delta,
			Action:         action,
		}, true
	}
	return Opportunity{}, false
}
