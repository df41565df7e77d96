package stops

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"StopSentinel/internal/model"
)

// RatchetStore is the persisted highest-stop map the calculator reads and
// updates. A symbol's presence in the store marks an actively tracked
// position.
type RatchetStore interface {
	HighestStop(symbol string) (float64, bool)
	SetHighestStop(symbol string, stop float64)
}

// Calculator turns ATR values into tick-rounded, ratcheting stop prices and
// dollar/percent risk figures.
type Calculator struct {
	Ratchets RatchetStore

	// HypotheticalAccountValue is the notional sizing reference for the
	// percent-risk figure, not a live balance.
	HypotheticalAccountValue float64

	logger zerolog.Logger
}

// NewCalculator creates a Calculator backed by the given ratchet store.
func NewCalculator(ratchets RatchetStore, accountValue float64) *Calculator {
	return &Calculator{
		Ratchets:                 ratchets,
		HypotheticalAccountValue: accountValue,
		logger:                   log.With().Str("component", "stop_calculator").Logger(),
	}
}

// ComputeStopLoss computes the stop price for a position.
//
// A nil ATR or a non-positive price returns the last known ratchet value (or
// zero) with status held; that is the defined "no data yet" outcome. With
// applyRatchet false the freshly rounded stop is always returned as new and
// the ratchet store is neither read nor written, which the UI uses for live
// what-if feedback while the user edits the ATR ratio.
func (c *Calculator) ComputeStopLoss(pos model.PositionSnapshot, price float64, atr *float64, ratio float64, applyRatchet bool) (float64, model.StopStatus) {
	symbol := pos.Symbol

	if atr == nil || price <= 0 {
		if v, ok := c.Ratchets.HighestStop(symbol); ok {
			return v, model.StopHeld
		}
		return 0, model.StopHeld
	}

	if pos.Quantity == 0 {
		return 0, model.StopHeld
	}

	var rawStop float64
	if pos.IsLong() {
		rawStop = price - *atr*ratio
	} else {
		rawStop = price + *atr*ratio
	}

	finalStop := rawStop
	if tick := pos.Contract.MinTick; tick > 0 {
		finalStop = roundToTick(rawStop, tick, pos.IsLong())
		c.logger.Debug().Str("symbol", symbol).
			Float64("raw", rawStop).Float64("tick", tick).Float64("final", finalStop).
			Msg("stop rounded to tick")
	}

	if !applyRatchet {
		return finalStop, model.StopNew
	}

	stored, tracked := c.Ratchets.HighestStop(symbol)
	if !tracked {
		c.Ratchets.SetHighestStop(symbol, finalStop)
		return finalStop, model.StopNew
	}

	improved := finalStop > stored
	if pos.IsShort() {
		improved = finalStop < stored
	}
	if improved {
		c.Ratchets.SetHighestStop(symbol, finalStop)
		return finalStop, model.StopNew
	}
	return stored, model.StopHeld
}

// roundToTick snaps a raw stop to the contract's price increment, always
// away from the market: longs round down (stop farther below price), shorts
// round up. Decimal arithmetic keeps the result stable run-to-run, which the
// ratchet comparison depends on.
func roundToTick(raw, tick float64, long bool) float64 {
	rawDec := decimal.NewFromFloat(raw)
	tickDec := decimal.NewFromFloat(tick)

	steps := rawDec.Div(tickDec)
	if long {
		steps = steps.Floor()
	} else {
		steps = steps.Ceil()
	}
	out, _ := steps.Mul(tickDec).Float64()
	return out
}
