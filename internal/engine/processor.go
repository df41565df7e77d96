package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StopSentinel/internal/atr"
	"StopSentinel/internal/broker"
	"StopSentinel/internal/metrics"
	"StopSentinel/internal/model"
	"StopSentinel/internal/orders"
	"StopSentinel/internal/recorder"
	"StopSentinel/internal/state"
	"StopSentinel/internal/stops"
)

// SymbolSettings are the per-symbol knobs resolved from configuration.
type SymbolSettings struct {
	Ratio     float64
	Timeframe model.Timeframe
	Submit    bool
}

// Processor runs one full refresh cycle: fetch positions, fan out the bar
// fetches, update ATR state, compute stops and risk, reconcile ratchets,
// clean up, persist, record, and submit.
//
// A cycle mutex serializes cycles; within a cycle all state mutation is
// sequential, so each (symbol, timeframe) key has at most one writer.
type Processor struct {
	Fetcher   broker.Fetcher
	Engine    *atr.Engine
	Calc      *stops.Calculator
	Store     *state.Store
	Recorder  recorder.Recorder
	Submitter orders.Submitter

	// Settings resolves the per-symbol configuration.
	Settings func(symbol string) SymbolSettings

	// Retention is the TR/history retention window.
	Retention time.Duration

	// ReconcileEnabled turns on ratchet reconciliation against the
	// submitter's active-stop snapshot. Only meaningful with a submitter
	// that reflects real broker state; dry-run submitters would reset
	// every ratchet on restart.
	ReconcileEnabled bool

	mu         sync.Mutex
	lastSubmit map[string]bool
	logger     zerolog.Logger
}

// NewProcessor wires a Processor.
func NewProcessor(f broker.Fetcher, eng *atr.Engine, calc *stops.Calculator, st *state.Store, rec recorder.Recorder, sub orders.Submitter, settings func(string) SymbolSettings, retention time.Duration) *Processor {
	return &Processor{
		Fetcher:    f,
		Engine:     eng,
		Calc:       calc,
		Store:      st,
		Recorder:   rec,
		Submitter:  sub,
		Settings:   settings,
		Retention:  retention,
		lastSubmit: make(map[string]bool),
		logger:     log.With().Str("component", "processor").Logger(),
	}
}

type barFetch struct {
	bars []model.Bar
	err  error
}

// Refresh executes one cycle and returns the per-symbol results. A failed
// position fetch abandons the whole batch; any per-symbol failure is
// isolated into a neutral result for that symbol only.
func (p *Processor) Refresh() ([]model.SymbolResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(started).Seconds())
		metrics.CyclesRun.Inc()
	}()

	positions, err := p.Fetcher.FetchPositions()
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	metrics.PositionsTracked.Set(float64(len(positions)))

	p.applySubmitTransitions(positions)
	if p.ReconcileEnabled {
		p.reconcileRatchets(positions)
	}

	fetches := p.fetchAllBars(positions)

	results := make([]model.SymbolResult, 0, len(positions))
	symbols := make([]string, 0, len(positions))
	var toSubmit []orders.StopOrder

	for _, pos := range positions {
		symbols = append(symbols, pos.Symbol)
		res := p.processSymbol(pos, fetches[pos.Symbol])
		results = append(results, res)

		cfg := p.Settings(pos.Symbol)
		if cfg.Submit && res.ComputedStop > 0 && pos.Quantity != 0 {
			toSubmit = append(toSubmit, orders.StopOrder{
				Symbol:    pos.Symbol,
				Quantity:  pos.Quantity,
				StopPrice: res.ComputedStop,
			})
		}
	}

	p.Store.Cleanup(symbols, p.Retention, time.Now().UTC())
	if err := p.Store.Save(); err != nil {
		p.logger.Error().Err(err).Msg("saving state failed")
	}
	if err := p.Recorder.RecordCycle(results); err != nil {
		p.logger.Error().Err(err).Msg("recording cycle failed")
	}

	if len(toSubmit) > 0 {
		if _, err := p.Submitter.SubmitStops(toSubmit); err != nil {
			p.logger.Error().Err(err).Msg("stop submission failed")
		}
	}

	return results, nil
}

// fetchAllBars fans out one bar fetch per symbol and fans the windows back in.
func (p *Processor) fetchAllBars(positions []model.PositionSnapshot) map[string]barFetch {
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make(map[string]barFetch, len(positions))

	for _, pos := range positions {
		wg.Add(1)
		go func(pos model.PositionSnapshot) {
			defer wg.Done()
			tf := p.Settings(pos.Symbol).Timeframe
			bars, err := p.Fetcher.FetchBars(pos.Symbol, tf)
			mu.Lock()
			out[pos.Symbol] = barFetch{bars: bars, err: err}
			mu.Unlock()
		}(pos)
	}
	wg.Wait()
	return out
}

// processSymbol updates ATR state and computes the stop and risk for one
// position. Panics and errors stay inside this symbol's result.
func (p *Processor) processSymbol(pos model.PositionSnapshot, fetch barFetch) (result model.SymbolResult) {
	cfg := p.Settings(pos.Symbol)
	result = model.SymbolResult{
		Symbol:    pos.Symbol,
		Timeframe: cfg.Timeframe,
		Status:    "Ready",
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.SymbolErrors.Inc()
			p.logger.Error().Str("symbol", pos.Symbol).Interface("panic", r).
				Msg("symbol processing panicked")
			result = model.SymbolResult{
				Symbol:    pos.Symbol,
				Timeframe: cfg.Timeframe,
				Status:    fmt.Sprintf("error: %v", r),
			}
		}
	}()

	// A changed timeframe invalidates every prior series for the symbol;
	// mixing bar granularities would corrupt the smoothing chain.
	if p.Store.HasOtherTimeframe(pos.Symbol, cfg.Timeframe) {
		p.Store.ChangeTimeframe(pos.Symbol)
	}

	if fetch.err != nil {
		metrics.SymbolErrors.Inc()
		p.logger.Error().Err(fetch.err).Str("symbol", pos.Symbol).Msg("bar fetch failed")
		result.Status = fmt.Sprintf("error: %v", fetch.err)
		// The last ratchet still answers, even with no fresh ATR.
		result.ComputedStop, result.StopStatus = p.Calc.ComputeStopLoss(pos, pos.CurrentPrice, nil, cfg.Ratio, true)
		return result
	}

	st := p.Store.State(pos.Symbol, cfg.Timeframe)
	atrRes := p.Engine.Update(st, pos.Symbol, cfg.Timeframe, fetch.bars, pos.MarketStatus)

	result.TR = atrRes.TR
	result.ATR = atrRes.ATR
	result.PreviousATR = atrRes.PreviousATR
	if atrRes.ATR == nil {
		result.Status = "insufficient data"
	}

	if atrRes.ATR != nil && atrRes.BarKey != "" {
		p.Store.RecordATR(pos.Symbol, cfg.Timeframe, atrRes.BarKey, *atrRes.ATR)
		tr := 0.0
		if atrRes.TR != nil {
			tr = *atrRes.TR
		}
		if err := p.Recorder.RecordATRPoint(pos.Symbol, cfg.Timeframe, atrRes.BarKey, tr, *atrRes.ATR); err != nil {
			p.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("recording ATR point failed")
		}
	}

	stop, status := p.Calc.ComputeStopLoss(pos, pos.CurrentPrice, atrRes.ATR, cfg.Ratio, true)
	result.ComputedStop = stop
	result.StopStatus = status
	if status == model.StopNew {
		metrics.StopsImproved.Inc()
	}

	risk := p.Calc.CalculateRisk(pos, stop)
	result.DollarRisk = risk.Dollar
	result.PercentRisk = risk.Percent
	result.NoRisk = risk.NoRisk

	return result
}

// applySubmitTransitions resets a symbol's ratchet when the user turns its
// stop submission off. The reset happens on the transition, not on every
// cycle the flag stays off.
func (p *Processor) applySubmitTransitions(positions []model.PositionSnapshot) {
	for _, pos := range positions {
		submit := p.Settings(pos.Symbol).Submit
		if prev, seen := p.lastSubmit[pos.Symbol]; seen && prev && !submit {
			p.logger.Info().Str("symbol", pos.Symbol).Msg("stop submission disabled")
			p.Store.ResetStop(pos.Symbol)
		}
		p.lastSubmit[pos.Symbol] = submit
	}
}

// reconcileRatchets drops the ratchet for any submission-enabled symbol the
// broker reports no active stop order for.
func (p *Processor) reconcileRatchets(positions []model.PositionSnapshot) {
	active, err := p.Submitter.ActiveStopSymbols()
	if err != nil {
		p.logger.Warn().Err(err).Msg("active stop lookup failed, skipping reconciliation")
		return
	}
	for _, pos := range positions {
		if !p.Settings(pos.Symbol).Submit {
			continue
		}
		if _, tracked := p.Store.HighestStop(pos.Symbol); tracked && !active[pos.Symbol] {
			p.logger.Info().Str("symbol", pos.Symbol).
				Msg("no active stop at broker, ratchet reset")
			p.Store.ResetStop(pos.Symbol)
		}
	}
}
