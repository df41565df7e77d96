package orders

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StopOrder is one stop-loss instruction handed to the broker side.
// Quantity is the signed position quantity; the submitting side derives the
// action (SELL stop for longs, BUY stop for shorts).
type StopOrder struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	StopPrice float64 `json:"stopPrice"`
}

// Result reports what the submitting side did with one order.
type Result struct {
	Symbol  string `json:"symbol"`
	Status  string `json:"status"` // "submitted", "unchanged", "error"
	Message string `json:"message"`
}

// Submitter is the order-placement collaborator. ActiveStopSymbols exists
// for ratchet reconciliation: a tracked symbol with no active stop order at
// the broker gets its ratchet reset.
type Submitter interface {
	SubmitStops(stops []StopOrder) ([]Result, error)
	ActiveStopSymbols() (map[string]bool, error)
	Name() string
}

// LogSubmitter performs no broker calls; it logs intended orders and tracks
// them as active. The default until submission is explicitly enabled.
type LogSubmitter struct {
	mu     sync.Mutex
	active map[string]bool
	logger zerolog.Logger
}

// NewLogSubmitter creates a LogSubmitter.
func NewLogSubmitter() *LogSubmitter {
	return &LogSubmitter{
		active: make(map[string]bool),
		logger: log.With().Str("component", "log_submitter").Logger(),
	}
}

func (s *LogSubmitter) Name() string { return "log" }

func (s *LogSubmitter) SubmitStops(stops []StopOrder) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]Result, 0, len(stops))
	for _, o := range stops {
		action := "SELL"
		if o.Quantity < 0 {
			action = "BUY"
		}
		s.logger.Info().Str("symbol", o.Symbol).Str("action", action).
			Float64("qty", o.Quantity).Float64("stop", o.StopPrice).
			Msg("dry-run stop order")
		s.active[o.Symbol] = true
		results = append(results, Result{Symbol: o.Symbol, Status: "submitted", Message: "dry run"})
	}
	return results, nil
}

func (s *LogSubmitter) ActiveStopSymbols() (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.active))
	for sym := range s.active {
		out[sym] = true
	}
	return out, nil
}

// Drop clears a symbol from the active set, simulating a broker-side
// cancellation in tests and dry runs.
func (s *LogSubmitter) Drop(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, symbol)
}
