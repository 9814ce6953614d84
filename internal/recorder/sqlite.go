package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the audit log to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			symbol     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			price      REAL,
			change_pct REAL,
			reference  REAL,
			count      INTEGER,
			message    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol_kind ON alerts(symbol, kind)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			symbol           TEXT NOT NULL,
			price            REAL,
			signal           TEXT,
			moving_average   REAL,
			deviation_pct    REAL,
			suggested_amount TEXT,
			suggested_units  INTEGER,
			target_units     INTEGER,
			reasoning        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_ts ON recommendations(timestamp)`,

		`CREATE TABLE IF NOT EXISTS comparisons (
			batch_id        TEXT NOT NULL,
			rank            INTEGER NOT NULL,
			timestamp       INTEGER NOT NULL,
			symbol          TEXT NOT NULL,
			price           REAL,
			percentile      REAL,
			score           INTEGER,
			suggested_spend TEXT,
			suggested_units INTEGER,
			reasons         TEXT,
			PRIMARY KEY (batch_id, rank)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comparisons_ts ON comparisons(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAlert(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := evt.Alert
	_, err := r.db.Exec(`INSERT INTO alerts
		(id, timestamp, symbol, kind, price, change_pct, reference, count, message)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), a.FiredAt.Unix(), a.Symbol, string(a.Kind),
		a.Price, a.ChangePct, a.Reference, a.Count, evt.Message,
	)
	return err
}

func (r *SQLiteRecorder) RecordRecommendation(evt *RecommendationEvent) error {
	rec := evt.Recommendation
	if rec == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO recommendations
		(timestamp, symbol, price, signal, moving_average, deviation_pct,
		 suggested_amount, suggested_units, target_units, reasoning)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), evt.Symbol, evt.Price, string(rec.Signal), rec.MovingAverage, rec.DeviationPct,
		rec.SuggestedAmount.StringFixed(2), rec.SuggestedUnits, rec.TargetUnits,
		strings.Join(rec.Reasoning, "; "),
	)
	return err
}

func (r *SQLiteRecorder) RecordComparison(evt *ComparisonEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	batch := uuid.NewString()
	for i, o := range evt.Opportunities {
		if _, err := tx.Exec(`INSERT INTO comparisons
			(batch_id, rank, timestamp, symbol, price, percentile, score,
			 suggested_spend, suggested_units, reasons)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			batch, i+1, evt.At.Unix(), o.Symbol, o.Price, o.Percentile, o.Score,
			o.SuggestedSpend.StringFixed(2), o.SuggestedUnits, strings.Join(o.Reasons, "; "),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert opportunity %s: %w", o.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
