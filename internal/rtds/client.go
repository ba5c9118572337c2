package rtds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultMarketURL is the CLOB market channel.
const DefaultMarketURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

const (
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadLimit        = 4 << 20
)

type Subscription struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`

	// Filters is an optional JSON string (not an object).
	Filters string `json:"filters,omitempty"`
}

type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// Message matches the RTDS message envelope.
// payload is kept as RawMessage so callers can unmarshal based on topic/type.
type Message struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// FilterSubscription builds a subscription whose filters are the JSON-encoded ids.
func FilterSubscription(topic, typ string, ids []string) (Subscription, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return Subscription{}, fmt.Errorf("rtds filters: %w", err)
	}
	return Subscription{Topic: topic, Type: typ, Filters: string(b)}, nil
}

// Handler receives every non-keepalive frame with its receive time.
type Handler func(raw []byte, receivedAt time.Time)

type Options struct {
	// PingInterval enables a text "ping" keepalive when > 0.
	PingInterval time.Duration

	// ReconnectDelay is the fixed wait between sessions.
	ReconnectDelay time.Duration

	HandshakeTimeout time.Duration
	ReadLimit        int64

	// OnConnect is called after a successful dial and subscribe.
	OnConnect func()
	// OnDisconnect is called when a session ends while the context is live.
	OnDisconnect func(err error, retryIn time.Duration)
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	return o
}

// Start keeps a subscription alive until ctx is cancelled. Every time a session
// ends it is re-dialled after ReconnectDelay; there is no retry cap. Start
// blocks and returns only after cancellation.
func Start(ctx context.Context, url string, subs []Subscription, opts Options, handle Handler) {
	opts = opts.withDefaults()
	Supervise(ctx, opts.ReconnectDelay, func(ctx context.Context) error {
		return runSession(ctx, url, subs, opts, handle)
	}, opts.OnDisconnect)
}

// Supervise runs task repeatedly. When task returns and ctx is still live,
// onExit is notified and the task is resubmitted after delay.
func Supervise(ctx context.Context, delay time.Duration, task func(context.Context) error, onExit func(err error, retryIn time.Duration)) {
	for {
		if ctx.Err() != nil {
			return
		}
		err := task(ctx)
		if ctx.Err() != nil {
			return
		}
		if onExit != nil {
			onExit(err, delay)
		}
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

func runSession(ctx context.Context, url string, subs []Subscription, opts Options, handle Handler) error {
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("rtds dial: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(opts.ReadLimit)

	var writeMu sync.Mutex
	if len(subs) > 0 {
		reqBytes, err := json.Marshal(subscribeRequest{Action: "subscribe", Subscriptions: subs})
		if err != nil {
			return fmt.Errorf("rtds subscribe marshal: %w", err)
		}
		writeMu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, reqBytes)
		writeMu.Unlock()
		if err != nil {
			return fmt.Errorf("rtds subscribe write: %w", err)
		}
	}
	if opts.OnConnect != nil {
		opts.OnConnect()
	}

	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if opts.PingInterval > 0 {
		go func() {
			t := time.NewTicker(opts.PingInterval)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					writeMu.Lock()
					_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
					werr := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
					writeMu.Unlock()
					if werr != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
	}

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			// If we're shutting down, this is expected.
			if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rtds read: %w", err)
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(msg) == 0 {
			continue
		}
		if s := string(msg); s == "pong" || s == "ping" || s == "PONG" {
			continue
		}
		handle(msg, time.Now())
	}
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
