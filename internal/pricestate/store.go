// Package pricestate holds the latest price per feed and outcome side.
//
// Each slot has exactly one writer (the feed that owns it). Slots are atomic
// pointers so the decision loop can read without blocking the feeds.
package pricestate

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Side is one outcome of the binary instrument.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// Sides is the fixed evaluation order.
var Sides = [2]Side{SideUp, SideDown}

// Feed identifies a price source.
type Feed string

const (
	FeedProprietary Feed = "proprietary"
	FeedVenue       Feed = "venue"
)

// PricePoint is a price observation. The zero value means "not yet received".
type PricePoint struct {
	Value      decimal.Decimal
	ObservedAt time.Time
}

// Known reports whether a positive value has been observed.
func (p PricePoint) Known() bool { return p.Value.IsPositive() }

type slot struct {
	p atomic.Pointer[PricePoint]
}

func (s *slot) load() PricePoint {
	if v := s.p.Load(); v != nil {
		return *v
	}
	return PricePoint{}
}

// Store is the process-wide price arena.
type Store struct {
	slots [2][2]slot // [feed][side]

	instruments [2]string // instrument id per side
}

// New returns a store tracking the given instrument id per side.
func New(upInstrument, downInstrument string) *Store {
	s := &Store{}
	s.instruments[sideIndex(SideUp)] = upInstrument
	s.instruments[sideIndex(SideDown)] = downInstrument
	return s
}

// Instrument returns the instrument id tracked for side.
func (s *Store) Instrument(side Side) string {
	i := sideIndex(side)
	if i < 0 {
		return ""
	}
	return s.instruments[i]
}

// SideForInstrument maps an instrument id back to its side.
func (s *Store) SideForInstrument(id string) (Side, bool) {
	if id == "" {
		return "", false
	}
	for _, side := range Sides {
		if s.instruments[sideIndex(side)] == id {
			return side, true
		}
	}
	return "", false
}

// Set publishes a value. Non-positive values are ignored.
func (s *Store) Set(feed Feed, side Side, value decimal.Decimal, at time.Time) bool {
	fi, si := feedIndex(feed), sideIndex(side)
	if fi < 0 || si < 0 || !value.IsPositive() {
		return false
	}
	s.slots[fi][si].p.Store(&PricePoint{Value: value, ObservedAt: at})
	return true
}

// Clear forgets the value for feed/side so readers see it as unknown again.
func (s *Store) Clear(feed Feed, side Side, at time.Time) bool {
	fi, si := feedIndex(feed), sideIndex(side)
	if fi < 0 || si < 0 {
		return false
	}
	s.slots[fi][si].p.Store(&PricePoint{ObservedAt: at})
	return true
}

// Get returns the latest point for feed/side.
func (s *Store) Get(feed Feed, side Side) PricePoint {
	fi, si := feedIndex(feed), sideIndex(side)
	if fi < 0 || si < 0 {
		return PricePoint{}
	}
	return s.slots[fi][si].load()
}

// SidePrices is a by-value copy of both feeds for one side.
type SidePrices struct {
	InstrumentID string
	Proprietary  PricePoint
	Venue        PricePoint
}

// Snapshot is a consistent-enough copy for one decision tick.
type Snapshot struct {
	TakenAt time.Time
	Up      SidePrices
	Down    SidePrices
}

// For returns the side prices for side.
func (s Snapshot) For(side Side) SidePrices {
	if side == SideDown {
		return s.Down
	}
	return s.Up
}

// Snapshot copies every slot.
func (s *Store) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		TakenAt: now,
		Up: SidePrices{
			InstrumentID: s.Instrument(SideUp),
			Proprietary:  s.Get(FeedProprietary, SideUp),
			Venue:        s.Get(FeedVenue, SideUp),
		},
		Down: SidePrices{
			InstrumentID: s.Instrument(SideDown),
			Proprietary:  s.Get(FeedProprietary, SideDown),
			Venue:        s.Get(FeedVenue, SideDown),
		},
	}
}

func feedIndex(f Feed) int {
	switch f {
	case FeedProprietary:
		return 0
	case FeedVenue:
		return 1
	default:
		return -1
	}
}

func sideIndex(s Side) int {
	switch s {
	case SideUp:
		return 0
	case SideDown:
		return 1
	default:
		return -1
	}
}
