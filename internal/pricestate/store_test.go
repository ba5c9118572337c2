package pricestate

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStore_ZeroUntilSet(t *testing.T) {
	s := New("up-token", "down-token")

	p := s.Get(FeedVenue, SideUp)
	require.False(t, p.Known())
	require.True(t, p.Value.IsZero())

	at := time.Unix(1700000000, 0)
	require.True(t, s.Set(FeedVenue, SideUp, decimal.RequireFromString("0.61"), at))

	p = s.Get(FeedVenue, SideUp)
	require.True(t, p.Known())
	require.Equal(t, "0.61", p.Value.String())
	require.Equal(t, at, p.ObservedAt)

	require.False(t, s.Get(FeedProprietary, SideUp).Known(), "feeds must not share slots")
	require.False(t, s.Get(FeedVenue, SideDown).Known(), "sides must not share slots")
}

func TestStore_RejectsNonPositiveAndUnknownKeys(t *testing.T) {
	s := New("a", "b")
	require.False(t, s.Set(FeedVenue, SideUp, decimal.Zero, time.Now()))
	require.False(t, s.Set(FeedVenue, SideUp, decimal.NewFromInt(-1), time.Now()))
	require.False(t, s.Set(Feed("other"), SideUp, decimal.NewFromFloat(0.5), time.Now()))
	require.False(t, s.Set(FeedVenue, Side("SIDEWAYS"), decimal.NewFromFloat(0.5), time.Now()))
	require.False(t, s.Get(FeedVenue, SideUp).Known())
}

func TestStore_SideForInstrument(t *testing.T) {
	s := New("111", "222")

	side, ok := s.SideForInstrument("222")
	require.True(t, ok)
	require.Equal(t, SideDown, side)

	_, ok = s.SideForInstrument("333")
	require.False(t, ok)
	_, ok = s.SideForInstrument("")
	require.False(t, ok)
}

func TestStore_SnapshotCopiesValues(t *testing.T) {
	s := New("111", "222")
	now := time.Now()
	s.Set(FeedProprietary, SideUp, decimal.RequireFromString("0.62"), now)
	s.Set(FeedVenue, SideUp, decimal.RequireFromString("0.60"), now)

	snap := s.Snapshot(now)
	s.Set(FeedVenue, SideUp, decimal.RequireFromString("0.70"), now)

	require.Equal(t, "111", snap.Up.InstrumentID)
	require.Equal(t, "0.6", snap.For(SideUp).Venue.Value.String())
	require.Equal(t, "0.62", snap.For(SideUp).Proprietary.Value.String())
	require.Equal(t, "222", snap.For(SideDown).InstrumentID)
}

func TestStore_ConcurrentDisjointWriters(t *testing.T) {
	s := New("111", "222")
	var wg sync.WaitGroup
	for _, feed := range []Feed{FeedProprietary, FeedVenue} {
		wg.Add(1)
		go func(feed Feed) {
			defer wg.Done()
			for i := 1; i <= 500; i++ {
				v := decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(1000))
				s.Set(feed, SideUp, v, time.Now())
				s.Set(feed, SideDown, v, time.Now())
			}
		}(feed)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = s.Snapshot(time.Now())
		}
	}()
	wg.Wait()

	require.Equal(t, "0.5", s.Get(FeedVenue, SideDown).Value.String())
	require.Equal(t, "0.5", s.Get(FeedProprietary, SideUp).Value.String())
}

func TestStore_ClearMakesSideUnknown(t *testing.T) {
	s := New("a", "b")
	require.True(t, s.Set(FeedProprietary, SideUp, decimal.RequireFromString("0.6"), time.Now()))
	require.True(t, s.Clear(FeedProprietary, SideUp, time.Now()))
	require.False(t, s.Get(FeedProprietary, SideUp).Known())
	require.False(t, s.Snapshot(time.Now()).Up.Proprietary.Known())
	require.False(t, s.Clear(Feed("other"), SideUp, time.Now()))
}
