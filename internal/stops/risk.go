package stops

import (
	"math"

	"StopSentinel/internal/model"
)

// Risk is the exposure of one position from the current price down to its
// stop. NoRisk marks a stop at or through breakeven: the position cannot
// lose money from here to the stop, and the row displays "NO RISK".
type Risk struct {
	NoRisk  bool
	Dollar  float64
	Percent float64
	Source  PointValueSource
}

// CalculateRisk computes the dollar and percent risk for a position given
// its computed stop. A zero stop, zero quantity, or missing average cost
// yields a zero result. The distance is measured from the current price, not
// the average cost: the figure is the immediate downside from here, not the
// unrealized P/L at risk.
func (c *Calculator) CalculateRisk(pos model.PositionSnapshot, stop float64) Risk {
	if stop == 0 || pos.AvgCost <= 0 || pos.Quantity == 0 {
		return Risk{}
	}

	if (pos.IsLong() && stop >= pos.AvgCost) || (pos.IsShort() && stop <= pos.AvgCost) {
		return Risk{NoRisk: true}
	}

	points := math.Abs(pos.CurrentPrice - stop)
	value, source := PointValue(pos.Symbol, pos.Contract)
	dollar := points * value * math.Abs(pos.Quantity)

	percent := 0.0
	if c.HypotheticalAccountValue > 0 {
		percent = dollar / c.HypotheticalAccountValue * 100
	}
	return Risk{Dollar: dollar, Percent: percent, Source: source}
}
