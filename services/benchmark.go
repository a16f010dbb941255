package services

import (
	"sort"
	"time"

	"helios-ledger/interfaces"
)

// PricePoint is one observed price of the traded instrument
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PriceSeries is a chronologically sorted set of observed prices
type PriceSeries []PricePoint

// PriceSeriesFromTrades collects every entry and exit price of trades
func PriceSeriesFromTrades(trades []*interfaces.Trade) PriceSeries {
	series := make(PriceSeries, 0, 2*len(trades))
	for _, t := range trades {
		series = append(series,
			PricePoint{Time: t.EntryTime, Price: t.EntryPrice},
			PricePoint{Time: t.ExitTime, Price: t.ExitPrice},
		)
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})
	return series
}

// PriceAt interpolates linearly between the two points bracketing at.
// Outside the observed range the first or last price is returned.
func (s PriceSeries) PriceAt(at time.Time) float64 {
	if len(s) == 0 {
		return 0
	}
	if !at.After(s[0].Time) {
		return s[0].Price
	}
	last := s[len(s)-1]
	if !at.Before(last.Time) {
		return last.Price
	}

	// first index with Time >= at; 0 < i < len(s) after the clamps above
	i := sort.Search(len(s), func(i int) bool {
		return !s[i].Time.Before(at)
	})
	lo, hi := s[i-1], s[i]
	span := hi.Time.Sub(lo.Time)
	if span <= 0 {
		return hi.Price
	}
	frac := float64(at.Sub(lo.Time)) / float64(span)
	return lo.Price + frac*(hi.Price-lo.Price)
}
