package recorder

import "StopSentinel/internal/model"

// Recorder persists refresh-cycle output for later charting and audit.
// The JSON state store remains authoritative for recomputation; this is the
// denser series Grafana and the history tab read.
type Recorder interface {
	RecordCycle(results []model.SymbolResult) error
	RecordATRPoint(symbol string, tf model.Timeframe, barTS string, tr, atr float64) error
	Close() error
}
