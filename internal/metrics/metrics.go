package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	CyclesRun = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_refresh_cycles_total",
		Help: "Refresh cycles completed",
	})
	SymbolErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_symbol_errors_total",
		Help: "Per-symbol failures isolated during refresh cycles",
	})
	StopsImproved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_stops_improved_total",
		Help: "Stops that ratcheted to a better price",
	})
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bot_cycle_duration_seconds",
		Help:    "Wall time of one refresh cycle",
		Buckets: prometheus.DefBuckets,
	})
	PositionsTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bot_positions_tracked",
		Help: "Open positions seen in the last cycle",
	})
)

func init() {
	prometheus.MustRegister(
		CyclesRun,
		SymbolErrors,
		StopsImproved,
		CycleDuration,
		PositionsTracked,
	)
}

// Serve exposes /metrics on addr. Blocking; run in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
	}
}
