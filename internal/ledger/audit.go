package ledger

import (
	"time"

	"github.com/rs/zerolog"

	"poly-divergence/internal/jsonl"
)

// Event is one audit-log line.
type Event struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"` // start | opportunity | execution | trade | shutdown

	Mode string `json:"mode,omitempty"` // paper | live

	TokenUp   string `json:"token_up,omitempty"`
	TokenDown string `json:"token_down,omitempty"`

	Side      string `json:"side,omitempty"`
	Action    string `json:"action,omitempty"`
	Reference string `json:"reference,omitempty"`
	Market    string `json:"market,omitempty"`
	Delta     string `json:"delta,omitempty"`

	Result string `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
	Err    string `json:"err,omitempty"`

	Trade *Trade `json:"trade,omitempty"`

	Trades   int   `json:"trades,omitempty"`
	UptimeMs int64 `json:"uptime_ms,omitempty"`
}

// Audit writes Events. A nil *Audit or one without a writer is a no-op.
type Audit struct {
	w   *jsonl.Writer
	log zerolog.Logger
	now func() time.Time
}

func NewAudit(w *jsonl.Writer, log zerolog.Logger) *Audit {
	return &Audit{w: w, log: log, now: time.Now}
}

// Write stamps ev and appends it. Failures are logged, never returned.
func (a *Audit) Write(ev Event) {
	if a == nil || a.w == nil {
		return
	}
	if ev.TsMs == 0 {
		ev.TsMs = a.now().UnixMilli()
	}
	if err := a.w.Write(ev); err != nil {
		a.log.Warn().Err(err).Str("path", a.w.Path()).Msg("audit log write failed")
	}
}

// Trade records an appended trade.
func (a *Audit) Trade(t Trade) {
	a.Write(Event{Event: "trade", Side: string(t.Side), Action: t.Action, Trade: &t})
}

func (a *Audit) Close() error {
	if a == nil {
		return nil
	}
	return a.w.Close()
}
