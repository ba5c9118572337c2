package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"poly-divergence/internal/clob"
)

// Venue is the order surface the executor drives.
type Venue interface {
	GetPrice(ctx context.Context, tokenID string, side clob.Side) (decimal.Decimal, error)
	CreateAndPostOrder(ctx context.Context, args clob.OrderArgs, tick clob.TickConfig, orderType clob.OrderType) (clob.PostOrderResult, error)
	GetOrder(ctx context.Context, orderID string) (clob.OrderStatus, error)
}

// PriceSource is the read-only part of a venue.
type PriceSource interface {
	GetPrice(ctx context.Context, tokenID string, side clob.Side) (decimal.Decimal, error)
}

// PaperVenue quotes real prices and fills every order immediately at its
// limit price. Nothing is sent to the exchange.
type PaperVenue struct {
	prices PriceSource

	mu     sync.Mutex
	orders map[string]PaperOrder
}

// PaperOrder is a simulated order.
type PaperOrder struct {
	ID       string
	Args     clob.OrderArgs
	Type     clob.OrderType
	PlacedAt time.Time
}

func NewPaperVenue(prices PriceSource) *PaperVenue {
	return &PaperVenue{prices: prices, orders: make(map[string]PaperOrder)}
}

func (p *PaperVenue) GetPrice(ctx context.Context, tokenID string, side clob.Side) (decimal.Decimal, error) {
	return p.prices.GetPrice(ctx, tokenID, side)
}

func (p *PaperVenue) CreateAndPostOrder(_ context.Context, args clob.OrderArgs, _ clob.TickConfig, orderType clob.OrderType) (clob.PostOrderResult, error) {
	if !args.Price.IsPositive() || !args.Size.IsPositive() {
		return clob.PostOrderResult{}, fmt.Errorf("paper order: price and size must be > 0")
	}
	id := "paper-" + uuid.NewString()
	p.mu.Lock()
	p.orders[id] = PaperOrder{ID: id, Args: args, Type: orderType, PlacedAt: time.Now()}
	p.mu.Unlock()
	return clob.PostOrderResult{OrderID: id, Status: "paper"}, nil
}

func (p *PaperVenue) GetOrder(_ context.Context, orderID string) (clob.OrderStatus, error) {
	p.mu.Lock()
	o, ok := p.orders[orderID]
	p.mu.Unlock()
	if !ok {
		return clob.OrderStatus{}, fmt.Errorf("paper order %s not found", orderID)
	}
	return clob.OrderStatus{Status: clob.StatusFilled, AvgFillPrice: o.Args.Price, FilledSize: o.Args.Size}, nil
}

// Orders returns the simulated orders placed so far.
func (p *PaperVenue) Orders() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PaperOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	return out
}
