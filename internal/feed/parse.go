package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"poly-divergence/internal/pricestate"
)

// VenueTopic is the market-stream topic carrying book and trade updates.
const VenueTopic = "clob_market"

// ErrNoPrice marks a well-formed message that carried nothing usable.
var ErrNoPrice = errors.New("no price in message")

var hundred = decimal.NewFromInt(100)

// Update is one parsed price for one side. Withdrawn means the feed
// reported zero for the side and its last value must be forgotten.
type Update struct {
	Side      pricestate.Side
	Value     decimal.Decimal
	Withdrawn bool
}

type proprietaryMessage struct {
	ProbabilityUp   *decimal.Decimal `json:"probability_up"`
	ProbabilityDown *decimal.Decimal `json:"probability_down"`

	// Older feed builds.
	ProbUp   *decimal.Decimal `json:"prob_up"`
	ProbDown *decimal.Decimal `json:"prob_down"`
}

// ParseProprietary decodes a probability message (percent, 0-100) into
// normalized (0,1) prices. A side reported as exactly 0 is withdrawn; other
// values outside the range are skipped.
func ParseProprietary(raw []byte) ([]Update, error) {
	var m proprietaryMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("proprietary decode: %w", err)
	}
	up := firstSet(m.ProbabilityUp, m.ProbUp)
	down := firstSet(m.ProbabilityDown, m.ProbDown)

	out := make([]Update, 0, 2)
	out = appendProprietary(out, pricestate.SideUp, up)
	out = appendProprietary(out, pricestate.SideDown, down)
	if len(out) == 0 {
		return nil, ErrNoPrice
	}
	return out, nil
}

func firstSet(vals ...*decimal.Decimal) *decimal.Decimal {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func appendProprietary(out []Update, side pricestate.Side, pct *decimal.Decimal) []Update {
	if pct != nil && pct.IsZero() {
		return append(out, Update{Side: side, Withdrawn: true})
	}
	if v, ok := normalizePercent(pct); ok {
		return append(out, Update{Side: side, Value: v})
	}
	return out
}

func normalizePercent(pct *decimal.Decimal) (decimal.Decimal, bool) {
	if pct == nil {
		return decimal.Decimal{}, false
	}
	v := pct.Div(hundred)
	if !v.IsPositive() || v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, false
	}
	return v, true
}

type bookLevel struct {
	Price *decimal.Decimal `json:"price"`
	Size  *decimal.Decimal `json:"size"`
}

type venueEvent struct {
	AssetID string           `json:"asset_id"`
	Price   *decimal.Decimal `json:"price"`
	Bids    []bookLevel      `json:"bids"`
	Asks    []bookLevel      `json:"asks"`
	BestBid *decimal.Decimal `json:"best_bid"`
	BestAsk *decimal.Decimal `json:"best_ask"`

	PriceChanges []venueEvent `json:"price_changes"`
}

// venueEnvelope is the RTDS wrapper. Only the fields needed to unwrap it are
// decoded; timestamps and connection ids vary in type between channels.
type venueEnvelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// ParseVenue decodes a market-stream frame. It accepts an RTDS envelope
// ({topic,payload}), a bare event object (book, price_change,
// last_trade_price), or an array of events. resolve maps
// an asset id to the tracked side; events for other assets are ignored.
func ParseVenue(raw []byte, resolve func(assetID string) (pricestate.Side, bool)) ([]Update, error) {
	events, err := decodeVenueEvents(raw)
	if err != nil {
		return nil, err
	}
	var out []Update
	for i := range events {
		out = appendVenueUpdates(out, &events[i], resolve)
	}
	if len(out) == 0 {
		return nil, ErrNoPrice
	}
	return out, nil
}

func decodeVenueEvents(raw []byte) ([]venueEvent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("venue decode: empty frame")
	}
	if raw[0] == '[' {
		var events []venueEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("venue decode: %w", err)
		}
		return events, nil
	}

	var env venueEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("venue decode: %w", err)
	}
	if env.Topic != "" || len(env.Payload) > 0 {
		if env.Topic != "" && env.Topic != VenueTopic {
			return nil, fmt.Errorf("venue decode: unexpected topic %q", env.Topic)
		}
		payload := bytes.TrimSpace(env.Payload)
		if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
			return nil, ErrNoPrice
		}
		return decodeVenueEvents(payload)
	}

	var ev venueEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("venue decode: %w", err)
	}
	return []venueEvent{ev}, nil
}

func appendVenueUpdates(out []Update, ev *venueEvent, resolve func(string) (pricestate.Side, bool)) []Update {
	for i := range ev.PriceChanges {
		out = appendVenueUpdates(out, &ev.PriceChanges[i], resolve)
	}
	side, ok := resolve(ev.AssetID)
	if !ok {
		return out
	}
	if v, ok := venuePrice(ev); ok {
		out = append(out, Update{Side: side, Value: v})
	}
	return out
}

// venuePrice prefers the best bid/ask mid over a last-trade price.
func venuePrice(ev *venueEvent) (decimal.Decimal, bool) {
	bid, ask := ev.BestBid, ev.BestAsk
	if len(ev.Bids) > 0 && len(ev.Asks) > 0 {
		bid, ask = ev.Bids[0].Price, ev.Asks[0].Price
	}
	if bid != nil && ask != nil && bid.IsPositive() && ask.IsPositive() {
		return bid.Add(*ask).Div(decimal.NewFromInt(2)), true
	}
	if ev.Price != nil && ev.Price.IsPositive() {
		return *ev.Price, true
	}
	return decimal.Decimal{}, false
}
