package recorder

import "StopSentinel/internal/model"

// NoopRecorder discards everything. Used when no sqlite path is configured
// or opening the database failed.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (*NoopRecorder) RecordCycle([]model.SymbolResult) error { return nil }

func (*NoopRecorder) RecordATRPoint(string, model.Timeframe, string, float64, float64) error {
	return nil
}

func (*NoopRecorder) Close() error { return nil }
