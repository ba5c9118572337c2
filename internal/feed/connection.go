// Package feed maintains the two live price subscriptions and publishes their
// values into the shared price store.
package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"poly-divergence/internal/metrics"
	"poly-divergence/internal/pricestate"
	"poly-divergence/internal/rtds"
)

// Parser turns one frame into price updates.
type Parser func(raw []byte) ([]Update, error)

// Connection owns one reconnecting subscription and the store slots of its feed.
type Connection struct {
	feed  pricestate.Feed
	url   string
	subs  []rtds.Subscription
	opts  rtds.Options
	parse Parser
	store *pricestate.Store
	log   zerolog.Logger

	connected  atomic.Bool
	lastUpdate atomic.Int64 // unix nanos
	sessions   atomic.Int64
}

// Option customizes a Connection.
type Option func(*Connection)

// WithReconnectDelay overrides the fixed delay between sessions.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.opts.ReconnectDelay = d
		}
	}
}

// WithPingInterval enables the text keepalive.
func WithPingInterval(d time.Duration) Option {
	return func(c *Connection) { c.opts.PingInterval = d }
}

// NewProprietary builds the probability feed connection.
func NewProprietary(url string, store *pricestate.Store, log zerolog.Logger, opts ...Option) *Connection {
	return newConnection(pricestate.FeedProprietary, url, nil, ParseProprietary, store, log, opts...)
}

// NewVenue builds the market-stream connection filtered to the store's two instruments.
func NewVenue(url string, store *pricestate.Store, log zerolog.Logger, opts ...Option) (*Connection, error) {
	if url == "" {
		url = rtds.DefaultMarketURL
	}
	ids := []string{store.Instrument(pricestate.SideUp), store.Instrument(pricestate.SideDown)}
	sub, err := rtds.FilterSubscription(VenueTopic, "*", ids)
	if err != nil {
		return nil, err
	}
	parse := func(raw []byte) ([]Update, error) {
		return ParseVenue(raw, store.SideForInstrument)
	}
	return newConnection(pricestate.FeedVenue, url, []rtds.Subscription{sub}, parse, store, log, opts...), nil
}

func newConnection(feed pricestate.Feed, url string, subs []rtds.Subscription, parse Parser, store *pricestate.Store, log zerolog.Logger, opts ...Option) *Connection {
	c := &Connection{
		feed:  feed,
		url:   url,
		subs:  subs,
		parse: parse,
		store: store,
		log:   log.With().Str("component", "feed").Str("feed", string(feed)).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feed reports which price source this connection owns.
func (c *Connection) Feed() pricestate.Feed { return c.feed }

// Connected reports whether a session is currently established.
func (c *Connection) Connected() bool { return c.connected.Load() }

// Sessions counts successful connects over the process lifetime.
func (c *Connection) Sessions() int64 { return c.sessions.Load() }

// LastUpdate is the receive time of the last frame that published a price.
func (c *Connection) LastUpdate() time.Time {
	ns := c.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run keeps the subscription alive until ctx is cancelled.
func (c *Connection) Run(ctx context.Context) {
	opts := c.opts
	opts.OnConnect = func() {
		c.connected.Store(true)
		c.sessions.Add(1)
		metrics.FeedConnects.WithLabelValues(string(c.feed), "ok").Inc()
		c.log.Info().Str("url", c.url).Msg("feed connected")
	}
	opts.OnDisconnect = func(err error, retryIn time.Duration) {
		if !c.connected.Swap(false) {
			metrics.FeedConnects.WithLabelValues(string(c.feed), "error").Inc()
		}
		c.log.Warn().Err(err).Dur("retry_in", retryIn).Msg("feed closed, reconnecting")
	}

	c.log.Info().Str("url", c.url).Msg("feed starting")
	rtds.Start(ctx, c.url, c.subs, opts, c.handle)
	c.connected.Store(false)
	c.log.Info().Msg("feed stopped")
}

func (c *Connection) handle(raw []byte, at time.Time) {
	updates, err := c.parse(raw)
	if err != nil {
		metrics.FeedDropped.WithLabelValues(string(c.feed)).Inc()
		if !errors.Is(err, ErrNoPrice) {
			c.log.Debug().Err(err).Int("bytes", len(raw)).Msg("dropped frame")
		}
		return
	}
	published := false
	for _, u := range updates {
		if u.Withdrawn {
			if c.store.Clear(c.feed, u.Side, at) {
				published = true
				metrics.Price.WithLabelValues(string(c.feed), string(u.Side)).Set(0)
			}
			continue
		}
		if c.store.Set(c.feed, u.Side, u.Value, at) {
			published = true
			f, _ := u.Value.Float64()
			metrics.Price.WithLabelValues(string(c.feed), string(u.Side)).Set(f)
		}
	}
	if published {
		c.lastUpdate.Store(at.UnixNano())
		metrics.FeedMessages.WithLabelValues(string(c.feed)).Inc()
	}
}
