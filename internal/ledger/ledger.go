// Package ledger keeps the in-memory record of opened trades and mirrors
// notable events to an append-only JSONL audit file.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"poly-divergence/internal/metrics"
	"poly-divergence/internal/pricestate"
)

type Status string

// StatusActive is the only status; closing positions is not tracked.
const StatusActive Status = "ACTIVE"

// Trade is one executed entry with its bracket. It is never mutated after Append.
type Trade struct {
	ID                string          `json:"id"`
	Side              pricestate.Side `json:"side"`
	Action            string          `json:"action"`
	InstrumentID      string          `json:"instrument_id"`
	EntryOrderID      string          `json:"entry_order_id"`
	TakeProfitOrderID string          `json:"take_profit_order_id,omitempty"`
	StopLossOrderID   string          `json:"stop_loss_order_id,omitempty"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	TakeProfitPrice   decimal.Decimal `json:"take_profit_price"`
	StopLossPrice     decimal.Decimal `json:"stop_loss_price"`
	Size              decimal.Decimal `json:"size"`
	Notional          decimal.Decimal `json:"notional"`
	FillConfirmed     bool            `json:"fill_confirmed"`
	OpenedAt          time.Time       `json:"opened_at"`
	Status            Status          `json:"status"`
}

// NewTradeID mints a unique trade id.
func NewTradeID() string { return uuid.NewString() }

// Protected reports whether both bracket legs were placed.
func (t Trade) Protected() bool {
	return t.TakeProfitOrderID != "" && t.StopLossOrderID != ""
}

// Ledger is an append-only, mutex-guarded list of trades.
type Ledger struct {
	mu     sync.RWMutex
	trades []Trade
	audit  *Audit
}

// New returns an empty ledger. audit may be nil.
func New(audit *Audit) *Ledger {
	return &Ledger{audit: audit}
}

// Append stores t, filling ID and Status when unset, and returns the stored copy.
func (l *Ledger) Append(t Trade) Trade {
	if t.ID == "" {
		t.ID = NewTradeID()
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	l.mu.Lock()
	l.trades = append(l.trades, t)
	n := len(l.trades)
	l.mu.Unlock()

	metrics.TradesRecorded.Set(float64(n))
	l.audit.Trade(t)
	return t
}

// Snapshot returns a copy of all trades in append order.
func (l *Ledger) Snapshot() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Last returns the most recent trade.
func (l *Ledger) Last() (Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.trades) == 0 {
		return Trade{}, false
	}
	return l.trades[len(l.trades)-1], true
}
