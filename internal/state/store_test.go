package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StopSentinel/internal/model"
)

func tsKey(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Load(path)
	require.NoError(t, err)

	atr := 2.75
	st := s.State("MES", model.Timeframe15Min)
	st.LastATR = &atr
	st.TRHistory["2026-08-28T14:30:00Z"] = 3.1
	s.RecordATR("MES", model.Timeframe15Min, "2026-08-28T14:30:00Z", 2.75)
	s.SetHighestStop("MES", 5830.25)
	require.NoError(t, s.Save())

	s2, err := Load(path)
	require.NoError(t, err)

	st2 := s2.State("MES", model.Timeframe15Min)
	require.NotNil(t, st2.LastATR)
	assert.Equal(t, 2.75, *st2.LastATR)
	assert.Equal(t, 3.1, st2.TRHistory["2026-08-28T14:30:00Z"])
	assert.Equal(t, map[string]float64{"2026-08-28T14:30:00Z": 2.75},
		s2.ATRHistory("MES", model.Timeframe15Min))

	stop, ok := s2.HighestStop("MES")
	require.True(t, ok)
	assert.Equal(t, 5830.25, stop)
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	_, ok := s.HighestStop("MES")
	assert.False(t, ok)
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, s.ATRHistory("MES", model.Timeframe15Min))
}

func TestLoadSchemaMismatchDiscards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	old, err := json.Marshal(map[string]any{
		"schema_version": 1,
		"highest_stops":  map[string]float64{"MES": 5000},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, old, 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	_, ok := s.HighestStop("MES")
	assert.False(t, ok, "v1 state must be discarded, not migrated")
}

func TestSaveKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path)
	require.NoError(t, err)

	s.SetHighestStop("MES", 100)
	require.NoError(t, s.Save())
	s.SetHighestStop("MES", 200)
	require.NoError(t, s.Save())

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	var doc struct {
		HighestStops map[string]float64 `json:"highest_stops"`
	}
	require.NoError(t, json.Unmarshal(bak, &doc))
	assert.Equal(t, 100.0, doc.HighestStops["MES"])
}

func TestCleanupPurgesDepartedSymbol(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	for _, sym := range []string{"A", "B"} {
		st := s.State(sym, model.Timeframe15Min)
		st.TRHistory[tsKey(now)] = 1.0
		s.RecordATR(sym, model.Timeframe15Min, tsKey(now), 1.0)
		s.SetHighestStop(sym, 99)
	}

	s.Cleanup([]string{"A"}, 4*24*time.Hour, now)

	assert.NotEmpty(t, s.State("A", model.Timeframe15Min).TRHistory)
	assert.Empty(t, s.State("B", model.Timeframe15Min).TRHistory,
		"departed symbol recreated empty")
	assert.Empty(t, s.ATRHistory("B", model.Timeframe15Min))
	_, ok := s.HighestStop("B")
	assert.False(t, ok)
	_, ok = s.HighestStop("A")
	assert.True(t, ok)
}

func TestCleanupPrunesByRetention(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	fresh := tsKey(now.Add(-time.Hour))
	stale := tsKey(now.Add(-5 * 24 * time.Hour))
	garbage := "not-a-timestamp"

	st := s.State("MES", model.Timeframe15Min)
	st.TRHistory[fresh] = 1.0
	st.TRHistory[stale] = 2.0
	st.TRHistory[garbage] = 3.0
	s.RecordATR("MES", model.Timeframe15Min, fresh, 1.5)
	s.RecordATR("MES", model.Timeframe15Min, stale, 2.5)

	s.Cleanup([]string{"MES"}, 4*24*time.Hour, now)

	assert.Equal(t, TRHistory{fresh: 1.0}, st.TRHistory)
	assert.Equal(t, map[string]float64{fresh: 1.5},
		s.ATRHistory("MES", model.Timeframe15Min))
}

func TestChangeTimeframeInvalidatesAll(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	atr := 2.0
	st := s.State("MES", model.Timeframe15Min)
	st.LastATR = &atr
	st.TRHistory["2026-08-28T14:30:00Z"] = 1.0
	s.RecordATR("MES", model.Timeframe15Min, "2026-08-28T14:30:00Z", 2.0)
	s.SetHighestStop("MES", 5800)

	require.True(t, s.HasOtherTimeframe("MES", model.Timeframe1Hour))
	require.False(t, s.HasOtherTimeframe("MES", model.Timeframe15Min))

	s.ChangeTimeframe("MES")

	fresh := s.State("MES", model.Timeframe1Hour)
	assert.Nil(t, fresh.LastATR)
	assert.Empty(t, fresh.TRHistory)
	assert.Empty(t, s.ATRHistory("MES", model.Timeframe15Min))

	// The ratchet survives a timeframe change; only ATR state resets.
	stop, ok := s.HighestStop("MES")
	require.True(t, ok)
	assert.Equal(t, 5800.0, stop)
}
