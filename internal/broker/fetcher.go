package broker

import "StopSentinel/internal/model"

// Fetcher defines the interface the engine needs from the broker side:
// open positions with contract metadata and session status, and a recent bar
// window per symbol at a requested timeframe. Wire details live behind the
// gateway bridge.
type Fetcher interface {
	FetchPositions() ([]model.PositionSnapshot, error)
	FetchBars(symbol string, tf model.Timeframe) ([]model.Bar, error)
	Name() string
}
