package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// Uncertainty columns are nullable: NULL round-trips to NaN, the
// not-applicable value of the active sampling mode.
const schema = `
CREATE TABLE IF NOT EXISTS intervals (
	id           TEXT PRIMARY KEY,
	condition    TEXT NOT NULL,
	interval     INTEGER NOT NULL,
	time_ps      REAL NOT NULL,
	temperature  REAL NOT NULL,
	uncert_abs_e REAL,
	uncert_rel_e REAL,
	uncert_abs_f REAL,
	uncert_rel_f REAL,
	uncert_abs_s REAL,
	uncert_rel_s REAL,
	epot         REAL,
	etot         REAL,
	s_average    REAL,
	counting     INTEGER NOT NULL,
	probability  REAL,
	acceptance   TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intervals_condition ON intervals(condition, interval);
`

// SQLiteStore persists interval entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite ledger needs a path", models.ErrConfiguration)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure ledger %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	rec := e.Record
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO intervals (
			id, condition, interval, time_ps, temperature,
			uncert_abs_e, uncert_rel_e, uncert_abs_f, uncert_rel_f,
			uncert_abs_s, uncert_rel_s, epot, etot, s_average,
			counting, probability, acceptance, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Condition, e.Interval, e.TimePs, e.Temperature,
		nullable(rec.AbsE), nullable(rec.RelE), nullable(rec.AbsF), nullable(rec.RelF),
		nullable(rec.AbsS), nullable(rec.RelS), nullable(rec.Epot), nullable(rec.Etot), nullable(rec.S),
		e.Counting, nullable(e.Probability), e.Acceptance,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, condition string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM intervals WHERE condition = ?`, condition,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) LastCounting(ctx context.Context, condition string) (int, error) {
	var counting int
	err := s.db.QueryRowContext(ctx,
		`SELECT counting FROM intervals WHERE condition = ? ORDER BY interval DESC LIMIT 1`,
		condition,
	).Scan(&counting)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last counting: %w", err)
	}
	return counting, nil
}

func (s *SQLiteStore) Window(ctx context.Context, condition string, n int) ([]models.UncertaintyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uncert_abs_e, uncert_rel_e, uncert_abs_f, uncert_rel_f,
		        uncert_abs_s, uncert_rel_s, epot, etot, s_average
		 FROM intervals WHERE condition = ? ORDER BY interval ASC LIMIT ?`,
		condition, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger window: %w", err)
	}
	defer rows.Close()

	var recs []models.UncertaintyRecord
	for rows.Next() {
		var cols [9]sql.NullFloat64
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6], &cols[7], &cols[8]); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		rec := models.UncertaintyRecord{
			AbsE: floatOrNaN(cols[0]), RelE: floatOrNaN(cols[1]),
			AbsF: floatOrNaN(cols[2]), RelF: floatOrNaN(cols[3]),
			AbsS: floatOrNaN(cols[4]), RelS: floatOrNaN(cols[5]),
			Epot: floatOrNaN(cols[6]), Etot: floatOrNaN(cols[7]), S: floatOrNaN(cols[8]),
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger window: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, condition string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM intervals WHERE condition = ?`, condition,
	); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
