package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"StopSentinel/internal/atr"
	"StopSentinel/internal/broker"
	"StopSentinel/internal/engine"
	"StopSentinel/internal/model"
	"StopSentinel/internal/orders"
	"StopSentinel/internal/recorder"
	"StopSentinel/internal/state"
	"StopSentinel/internal/stops"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	st, err := state.Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	proc := engine.NewProcessor(
		&broker.MockFetcher{},
		atr.New(true),
		stops.NewCalculator(st, 6000),
		st,
		recorder.NewNoopRecorder(),
		orders.NewLogSubmitter(),
		func(string) engine.SymbolSettings {
			return engine.SymbolSettings{Ratio: 1.5, Timeframe: model.Timeframe15Min}
		},
		4*24*time.Hour,
	)
	return NewScheduler(context.Background(), proc, nil)
}

// The default refresh and digest specs both fire at 22:00:00 on weekdays,
// and cron runs each job in its own goroutine. Run under -race.
func TestRefreshAndDigestConcurrent(t *testing.T) {
	s := newTestScheduler(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.refreshTask()
		}()
		go func() {
			defer wg.Done()
			s.digestTask()
		}()
	}
	wg.Wait()
}

func TestRunRefreshNowRecordsResults(t *testing.T) {
	s := newTestScheduler(t)
	s.RunRefreshNow()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.lastResults)
}
