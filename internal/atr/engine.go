package atr

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StopSentinel/internal/model"
	"StopSentinel/internal/state"
)

// Period is the Wilder smoothing period.
const Period = 14

// Result is the outcome of one Update for one (symbol, timeframe).
// TR and ATR are nil when they could not be produced this cycle; that is a
// defined result, not an error. PreviousATR is the ATR before this cycle's
// update, for showing what changed.
type Result struct {
	TR          *float64
	ATR         *float64
	PreviousATR *float64

	// BarKey is the triggering bar's timestamp key when a new ATR was
	// published, for recording into the display history.
	BarKey string
}

// Engine converts fetched bar windows into updated ATR state.
//
// With OverwriteLastBar set, the most recent bar's True Range is rewritten on
// every update so an in-progress bar tracks the market until it closes; all
// older bars are add-only.
type Engine struct {
	OverwriteLastBar bool
	logger           zerolog.Logger
}

// New creates an Engine.
func New(overwriteLastBar bool) *Engine {
	return &Engine{
		OverwriteLastBar: overwriteLastBar,
		logger:           log.With().Str("component", "atr_engine").Logger(),
	}
}

// Update merges the fetched window into st and derives the current ATR.
//
// bars must be sorted ascending by timestamp. Fewer than 2 usable bars is the
// "insufficient data" result: nothing is merged, nothing changes. A CLOSED
// session reports TR 0 and carries the ATR forward untouched, as does an
// exactly-zero TR during an active session.
func (e *Engine) Update(st *state.ATRState, symbol string, tf model.Timeframe, bars []model.Bar, status model.MarketStatus) Result {
	var prev *float64
	if st.LastATR != nil {
		v := *st.LastATR
		prev = &v
	}

	if status == model.MarketClosed {
		zero := 0.0
		e.logger.Debug().Str("symbol", symbol).Msg("market closed, ATR carried forward")
		return Result{TR: &zero, ATR: prev, PreviousATR: prev}
	}

	if len(bars) < 2 {
		e.logger.Warn().Str("symbol", symbol).Int("bars", len(bars)).
			Msg("not enough bars to compute a true range")
		return Result{PreviousATR: prev}
	}

	currentTR, barKey := e.merge(st, bars)
	trs, keys := sortedTRs(st, tf)

	if st.LastATR == nil {
		if len(trs) < Period {
			e.logger.Warn().Str("symbol", symbol).Int("have", len(trs)).Int("need", Period).
				Msg("ATR not initialized yet")
			return Result{TR: &currentTR, BarKey: barKey}
		}
		if len(trs) == Period {
			// First initialization: simple average of the full window.
			atr := mean(trs)
			st.LastATR = &atr
			e.logger.Info().Str("symbol", symbol).Str("timeframe", string(tf)).
				Float64("atr", atr).Msg("ATR initialized")
			return Result{TR: &currentTR, ATR: &atr, BarKey: barKey}
		}
		// History outlived the initialized value (e.g. after a timeframe
		// reset): reconstruct the prior ATR by walking the chain up to the
		// bar before the current one.
		p := rebuildPrevious(trs[:len(trs)-1], keys[:len(keys)-1], tf)
		prev = &p
	}

	var atr float64
	if currentTR == 0 {
		// Flat bar: carrying forward avoids artificial convergence.
		atr = *prev
	} else {
		atr = (*prev*float64(Period-1) + currentTR) / float64(Period)
	}
	st.LastATR = &atr
	return Result{TR: &currentTR, ATR: &atr, PreviousATR: prev, BarKey: barKey}
}

// merge computes TR for every bar with a predecessor and folds the values
// into the state's history. Returns the most recent bar's TR and its key.
func (e *Engine) merge(st *state.ATRState, bars []model.Bar) (float64, string) {
	last := len(bars) - 1
	var currentTR float64
	var barKey string
	for i := 1; i < len(bars); i++ {
		tr := TrueRange(bars[i-1].Close, bars[i].High, bars[i].Low)
		key := bars[i].TimestampKey()
		if i == last {
			currentTR = tr
			barKey = key
			if e.OverwriteLastBar {
				st.TRHistory[key] = tr
				continue
			}
		}
		if _, exists := st.TRHistory[key]; !exists {
			st.TRHistory[key] = tr
		}
	}
	return currentTR, barKey
}

// sortedTRs returns the state's True Ranges in chronological order along
// with their parsed timestamps. Unparseable keys are skipped.
func sortedTRs(st *state.ATRState, tf model.Timeframe) ([]float64, []int64) {
	type entry struct {
		at int64
		tr float64
	}
	entries := make([]entry, 0, len(st.TRHistory))
	for key, tr := range st.TRHistory {
		t, err := model.ParseTimestampKey(key)
		if err != nil {
			continue
		}
		entries = append(entries, entry{at: t.Unix(), tr: tr})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at < entries[j].at })

	trs := make([]float64, len(entries))
	keys := make([]int64, len(entries))
	for i, en := range entries {
		trs[i] = en.tr
		keys[i] = en.at
	}
	return trs, keys
}

// rebuildPrevious reconstructs the ATR as of the bar immediately preceding
// the current one: simple average of the first Period TRs, then Wilder
// smoothing forward one bar at a time. If the series has gaps the chain is
// untrustworthy and the plain average of the most recent Period TRs is used
// instead.
func rebuildPrevious(trs []float64, at []int64, tf model.Timeframe) float64 {
	if len(trs) < Period {
		return mean(trs)
	}
	if hasGaps(at, tf) {
		return mean(trs[len(trs)-Period:])
	}
	atr := mean(trs[:Period])
	for i := Period; i < len(trs); i++ {
		atr = (atr*float64(Period-1) + trs[i]) / float64(Period)
	}
	return atr
}

// hasGaps reports whether consecutive entries are spaced further apart than
// three bar lengths, which marks the series as discontinuous. Daily bars get
// extra slack for weekends.
func hasGaps(at []int64, tf model.Timeframe) bool {
	limit := int64(3 * tf.Duration().Seconds())
	if tf == model.Timeframe1Day {
		limit = int64(4 * tf.Duration().Seconds())
	}
	for i := 1; i < len(at); i++ {
		if at[i]-at[i-1] > limit {
			return true
		}
	}
	return false
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
