package broker

import (
	"math"
	"time"

	"StopSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Positions []model.PositionSnapshot
	Bars      map[string][]model.Bar // keyed by symbol; nil entries get synthetic bars
	BarErr    error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchPositions() ([]model.PositionSnapshot, error) {
	if m.Positions != nil {
		return m.Positions, nil
	}
	return []model.PositionSnapshot{
		{
			Symbol:       "MES",
			Quantity:     1,
			AvgCost:      5650.25,
			CurrentPrice: 5672.50,
			Contract:     model.ContractDetails{MinTick: 0.25, Multiplier: 5},
			MarketStatus: model.MarketActiveRegular,
		},
	}, nil
}

func (m *MockFetcher) FetchBars(symbol string, tf model.Timeframe) ([]model.Bar, error) {
	if m.BarErr != nil {
		return nil, m.BarErr
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	return GenerateBars(5670, 30, tf, time.Now().UTC()), nil
}

// GenerateBars builds a synthetic ascending bar window ending at `end`,
// oscillating around basePrice so True Ranges are nonzero.
func GenerateBars(basePrice float64, count int, tf model.Timeframe, end time.Time) []model.Bar {
	step := tf.Duration()
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		t := end.Add(-time.Duration(count-1-i) * step).Truncate(step)
		drift := math.Sin(float64(i)/3) * basePrice * 0.002
		p := basePrice + drift
		bars[i] = model.Bar{
			Time:   t,
			Open:   p * 0.9995,
			High:   p * 1.0025,
			Low:    p * 0.9975,
			Close:  p,
			Volume: 10000,
		}
	}
	return bars
}
