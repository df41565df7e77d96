package model

// ContractDetails holds the per-contract metadata the calculator needs.
// Sourced from the broker gateway's contract-details lookup.
type ContractDetails struct {
	ConID            int64   `json:"conId"`
	Exchange         string  `json:"exchange"`
	MinTick          float64 `json:"minTick"`
	Multiplier       float64 `json:"multiplier"`
	PriceMagnifier   float64 `json:"priceMagnifier"`
	MDSizeMultiplier float64 `json:"mdSizeMultiplier"`
}

// PositionSnapshot is one open brokerage position as supplied per cycle.
// Quantity is signed: positive = long, negative = short.
type PositionSnapshot struct {
	Symbol       string          `json:"symbol"`
	Quantity     float64         `json:"quantity"`
	AvgCost      float64         `json:"avgCost"`
	CurrentPrice float64         `json:"currentPrice"`
	Contract     ContractDetails `json:"contract"`
	MarketStatus MarketStatus    `json:"marketStatus"`
}

// IsLong reports whether the position is long. Zero quantity is neither.
func (p PositionSnapshot) IsLong() bool { return p.Quantity > 0 }

// IsShort reports whether the position is short.
func (p PositionSnapshot) IsShort() bool { return p.Quantity < 0 }
