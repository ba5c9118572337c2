package divergence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"poly-divergence/internal/pricestate"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot(upRef, upMkt, downRef, downMkt string) pricestate.Snapshot {
	at := time.Unix(1700000000, 0)
	pt := func(v string) pricestate.PricePoint {
		if v == "" {
			return pricestate.PricePoint{}
		}
		return pricestate.PricePoint{Value: d(v), ObservedAt: at}
	}
	return pricestate.Snapshot{
		TakenAt: at,
		Up:      pricestate.SidePrices{InstrumentID: "up-token", Proprietary: pt(upRef), Venue: pt(upMkt)},
		Down:    pricestate.SidePrices{InstrumentID: "down-token", Proprietary: pt(downRef), Venue: pt(downMkt)},
	}
}

func TestDetect_LongOnUpScenario(t *testing.T) {
	opp, ok := Detect(snapshot("0.62", "0.60", "", ""), d("0.015"))
	require.True(t, ok)
	require.Equal(t, pricestate.SideUp, opp.Side)
	require.Equal(t, "up-token", opp.InstrumentID)
	require.Equal(t, ActionEnterLong, opp.Action)
	require.True(t, opp.Long())
	require.Equal(t, "0.02", opp.Delta.String())
	require.Equal(t, "0.62", opp.ReferencePrice.String())
	require.Equal(t, "0.6", opp.MarketPrice.String())
}

func TestDetect_ThresholdBoundaries(t *testing.T) {
	threshold := d("0.015")
	cases := []struct {
		ref, mkt string
		want     Action
		hit      bool
	}{
		{"0.615", "0.600", ActionEnterLong, true},  // delta == +t
		{"0.614", "0.600", "", false},              // just under
		{"0.585", "0.600", ActionEnterShort, true}, // delta == -t
		{"0.586", "0.600", "", false},
		{"0.600", "0.600", "", false},
		{"0.900", "0.100", ActionEnterLong, true},
		{"0.100", "0.900", ActionEnterShort, true},
		{"0.500", "1.200", ActionEnterShort, true}, // venue mid above 1 is still a positive price
	}
	for _, tc := range cases {
		opp, ok := Detect(snapshot(tc.ref, tc.mkt, "", ""), threshold)
		require.Equal(t, tc.hit, ok, "ref=%s mkt=%s", tc.ref, tc.mkt)
		if ok {
			require.Equal(t, tc.want, opp.Action, "ref=%s mkt=%s", tc.ref, tc.mkt)
			require.True(t, opp.Delta.Equal(d(tc.ref).Sub(d(tc.mkt))))
		}
	}
}

func TestDetect_ExhaustiveGrid(t *testing.T) {
	threshold := d("0.05")
	for ref := 1; ref <= 99; ref += 7 {
		for mkt := 1; mkt <= 99; mkt += 3 {
			r := decimal.New(int64(ref), -2)
			m := decimal.New(int64(mkt), -2)
			delta := r.Sub(m)
			for _, side := range pricestate.Sides {
				var snap pricestate.Snapshot
				if side == pricestate.SideUp {
					snap = snapshot(r.String(), m.String(), "", "")
				} else {
					snap = snapshot("", "", r.String(), m.String())
				}
				opp, ok := Detect(snap, threshold)
				switch {
				case delta.GreaterThanOrEqual(threshold):
					require.True(t, ok)
					require.Equal(t, ActionEnterLong, opp.Action)
					require.Equal(t, side, opp.Side)
				case delta.LessThanOrEqual(threshold.Neg()):
					require.True(t, ok)
					require.Equal(t, ActionEnterShort, opp.Action)
					require.Equal(t, side, opp.Side)
				default:
					require.False(t, ok, "ref=%s mkt=%s", r, m)
				}
			}
		}
	}
}

func TestDetect_UpCheckedBeforeDown(t *testing.T) {
	opp, ok := Detect(snapshot("0.70", "0.60", "0.20", "0.40"), d("0.015"))
	require.True(t, ok)
	require.Equal(t, pricestate.SideUp, opp.Side)
	require.Equal(t, ActionEnterLong, opp.Action)

	opp, ok = Detect(snapshot("0.60", "0.60", "0.20", "0.40"), d("0.015"))
	require.True(t, ok)
	require.Equal(t, pricestate.SideDown, opp.Side)
	require.Equal(t, "down-token", opp.InstrumentID)
	require.Equal(t, ActionEnterShort, opp.Action)
}

func TestDetect_SkipsUnknownPrices(t *testing.T) {
	_, ok := Detect(snapshot("0.90", "", "", "0.10"), d("0.015"))
	require.False(t, ok)

	_, ok = Detect(snapshot("", "", "", ""), d("0.015"))
	require.False(t, ok)

	// UP unknown on venue, DOWN qualifies.
	opp, ok := Detect(snapshot("0.90", "", "0.50", "0.40"), d("0.015"))
	require.True(t, ok)
	require.Equal(t, pricestate.SideDown, opp.Side)
}
