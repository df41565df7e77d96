package model

// StopStatus reports how this cycle's stop compares to the ratchet.
type StopStatus string

const (
	// StopNew means the computed stop strictly improved and was adopted.
	StopNew StopStatus = "new"
	// StopHeld means the prior ratchet value was kept.
	StopHeld StopStatus = "held"
)

// SymbolResult is the per-symbol output record of one refresh cycle.
// TR, ATR, and PreviousATR are nil when the engine could not produce them
// (insufficient data or a per-symbol failure).
type SymbolResult struct {
	Symbol      string
	Timeframe   Timeframe
	TR          *float64
	ATR         *float64
	PreviousATR *float64

	ComputedStop float64
	StopStatus   StopStatus

	// DollarRisk is negative-impossible; NoRisk marks the breakeven case
	// where the row displays "NO RISK" instead of a number.
	DollarRisk  float64
	PercentRisk float64
	NoRisk      bool

	// Status is the row status string shown to the user, e.g. "Ready",
	// "insufficient data", or "error: <reason>".
	Status string
}
