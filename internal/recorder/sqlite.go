package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"StopSentinel/internal/model"
)

// SQLiteRecorder persists cycle results and ATR points to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so chart readers don't block the bot's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{
		db:     db,
		logger: log.With().Str("component", "sqlite_recorder").Logger(),
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycle_results (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			timeframe     TEXT NOT NULL,
			tr            REAL,
			atr           REAL,
			previous_atr  REAL,
			computed_stop REAL,
			stop_status   TEXT,
			dollar_risk   REAL,
			percent_risk  REAL,
			no_risk       INTEGER,
			status        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_ts ON cycle_results(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_symbol ON cycle_results(symbol)`,

		`CREATE TABLE IF NOT EXISTS atr_points (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol    TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			bar_ts    TEXT NOT NULL,
			tr        REAL,
			atr       REAL,
			UNIQUE(symbol, timeframe, bar_ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_atr_symbol ON atr_points(symbol, timeframe)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(results []model.SymbolResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO cycle_results
		(timestamp, symbol, timeframe, tr, atr, previous_atr,
		 computed_stop, stop_status, dollar_risk, percent_risk, no_risk, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		noRisk := 0
		if res.NoRisk {
			noRisk = 1
		}
		if _, err := stmt.Exec(
			now, res.Symbol, string(res.Timeframe),
			nullable(res.TR), nullable(res.ATR), nullable(res.PreviousATR),
			res.ComputedStop, string(res.StopStatus),
			res.DollarRisk, res.PercentRisk, noRisk, res.Status,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordATRPoint(symbol string, tf model.Timeframe, barTS string, tr, atr float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Live bars replace their previous point for the same timestamp.
	_, err := r.db.Exec(`INSERT INTO atr_points (symbol, timeframe, bar_ts, tr, atr)
		VALUES (?,?,?,?,?)
		ON CONFLICT(symbol, timeframe, bar_ts) DO UPDATE SET tr=excluded.tr, atr=excluded.atr`,
		symbol, string(tf), barTS, tr, atr)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
