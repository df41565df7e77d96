package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StopSentinel/internal/model"
)

// SchemaVersion identifies the persisted document layout. Version 1 was the
// legacy symbol→timestamp→atr nesting; anything but the current version is
// discarded on load and rebuilt from live data.
const SchemaVersion = 2

// TRHistory maps a bar's timestamp key to its True Range.
// Order for computation always comes from parsing and sorting the keys,
// never from insertion order.
type TRHistory map[string]float64

// ATRState is the durable ATR computation state for one (symbol, timeframe).
type ATRState struct {
	LastATR   *float64  `json:"last_atr"`
	TRHistory TRHistory `json:"tr_history"`
}

// NewATRState returns an empty state ready to accumulate True Ranges.
func NewATRState() *ATRState {
	return &ATRState{TRHistory: make(TRHistory)}
}

// document is the on-disk shape of the store.
type document struct {
	SchemaVersion int                           `json:"schema_version"`
	UpdatedAt     time.Time                     `json:"updated_at"`
	ATRStates     map[string]*ATRState          `json:"atr_states"`
	ATRHistory    map[string]map[string]float64 `json:"atr_history"`
	HighestStops  map[string]float64            `json:"highest_stops"`
}

func emptyDocument() document {
	return document{
		SchemaVersion: SchemaVersion,
		ATRStates:     make(map[string]*ATRState),
		ATRHistory:    make(map[string]map[string]float64),
		HighestStops:  make(map[string]float64),
	}
}

// Key builds the composite store key for a (symbol, timeframe) pair.
func Key(symbol string, tf model.Timeframe) string {
	return symbol + "|" + string(tf)
}

// Store owns all persisted engine state: ATR computation state and published
// ATR history per (symbol, timeframe), and the stop-loss ratchet per symbol.
// One refresh cycle is the unit of mutation; Save after each mutating cycle.
type Store struct {
	mu     sync.Mutex
	path   string
	doc    document
	logger zerolog.Logger
}

// Load reads the store from disk. A missing file or an unrecognized schema
// yields a fresh empty store, never an error the caller has to handle as
// fatal: stale state is rebuilt from live data.
func Load(path string) (*Store, error) {
	s := &Store{
		path:   path,
		doc:    emptyDocument(),
		logger: log.With().Str("component", "state_store").Logger(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn().Err(err).Str("path", path).
			Msg("state file unreadable, starting fresh")
		return s, nil
	}
	if doc.SchemaVersion != SchemaVersion {
		s.logger.Warn().Int("found", doc.SchemaVersion).Int("want", SchemaVersion).
			Msg("state schema mismatch, discarding persisted state")
		return s, nil
	}

	if doc.ATRStates == nil {
		doc.ATRStates = make(map[string]*ATRState)
	}
	if doc.ATRHistory == nil {
		doc.ATRHistory = make(map[string]map[string]float64)
	}
	if doc.HighestStops == nil {
		doc.HighestStops = make(map[string]float64)
	}
	for _, st := range doc.ATRStates {
		if st.TRHistory == nil {
			st.TRHistory = make(TRHistory)
		}
	}
	s.doc = doc
	return s, nil
}

// Save writes the store to disk atomically, keeping a .bak of the previous
// content.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	if prev, err := os.ReadFile(s.path); err == nil {
		_ = os.WriteFile(s.path+".bak", prev, 0o600)
	}
	return writeFileAtomic(s.path, data, 0o600)
}

// State returns the ATR state for a (symbol, timeframe), creating it on
// first use.
func (s *Store) State(symbol string, tf model.Timeframe) *ATRState {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(symbol, tf)
	st, ok := s.doc.ATRStates[key]
	if !ok {
		st = NewATRState()
		s.doc.ATRStates[key] = st
	}
	return st
}

// RecordATR publishes one ATR value into the display/audit history, keyed by
// the triggering bar's timestamp.
func (s *Store) RecordATR(symbol string, tf model.Timeframe, tsKey string, atr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(symbol, tf)
	hist, ok := s.doc.ATRHistory[key]
	if !ok {
		hist = make(map[string]float64)
		s.doc.ATRHistory[key] = hist
	}
	hist[tsKey] = atr
}

// ATRHistory returns a copy of the published ATR series for one pair.
func (s *Store) ATRHistory(symbol string, tf model.Timeframe) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]float64)
	for ts, v := range s.doc.ATRHistory[Key(symbol, tf)] {
		out[ts] = v
	}
	return out
}

// HighestStop returns the ratchet value for a symbol, if one is tracked.
func (s *Store) HighestStop(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.doc.HighestStops[symbol]
	return v, ok
}

// SetHighestStop stores the ratchet value for a symbol.
func (s *Store) SetHighestStop(symbol string, stop float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.HighestStops[symbol] = stop
}

// ResetStop removes a symbol's ratchet. Called when the user disables stop
// submission for the symbol or reconciliation finds no active stop order.
func (s *Store) ResetStop(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.HighestStops[symbol]; ok {
		delete(s.doc.HighestStops, symbol)
		s.logger.Info().Str("symbol", symbol).Msg("stop ratchet reset")
	}
}

// ChangeTimeframe invalidates all ATR state and history for a symbol. Bars
// of different granularities must never mix in one TR series.
func (s *Store) ChangeTimeframe(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.doc.ATRStates {
		if keySymbol(key) == symbol {
			delete(s.doc.ATRStates, key)
			removed++
		}
	}
	for key := range s.doc.ATRHistory {
		if keySymbol(key) == symbol {
			delete(s.doc.ATRHistory, key)
		}
	}
	if removed > 0 {
		s.logger.Info().Str("symbol", symbol).
			Msg("timeframe changed, ATR state invalidated")
	}
}

// HasOtherTimeframe reports whether any ATR state exists for the symbol
// under a timeframe other than tf. Used to detect a timeframe change.
func (s *Store) HasOtherTimeframe(symbol string, tf model.Timeframe) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := Key(symbol, tf)
	for key := range s.doc.ATRStates {
		if keySymbol(key) == symbol && key != want {
			return true
		}
	}
	return false
}

// Cleanup drops symbols no longer in the portfolio from every map and TR or
// history entries older than the retention cutoff. Keys that fail to parse
// are treated as stale and dropped. Run once per full refresh cycle.
func (s *Store) Cleanup(currentSymbols []string, retention time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(currentSymbols))
	for _, sym := range currentSymbols {
		keep[sym] = true
	}
	cutoff := now.Add(-retention)

	for key, st := range s.doc.ATRStates {
		if !keep[keySymbol(key)] {
			delete(s.doc.ATRStates, key)
			s.logger.Info().Str("key", key).Msg("cleanup: symbol left portfolio")
			continue
		}
		pruneByCutoff(st.TRHistory, cutoff)
	}
	for key, hist := range s.doc.ATRHistory {
		if !keep[keySymbol(key)] {
			delete(s.doc.ATRHistory, key)
			continue
		}
		pruneByCutoff(hist, cutoff)
	}
	for sym := range s.doc.HighestStops {
		if !keep[sym] {
			delete(s.doc.HighestStops, sym)
			s.logger.Info().Str("symbol", sym).Msg("cleanup: ratchet dropped")
		}
	}
}

func pruneByCutoff(m map[string]float64, cutoff time.Time) {
	for ts := range m {
		t, err := model.ParseTimestampKey(ts)
		if err != nil || t.Before(cutoff) {
			delete(m, ts)
		}
	}
}

func keySymbol(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i]
		}
	}
	return key
}
