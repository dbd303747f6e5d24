// Package ledger persists the per-interval sampling record so a run
// can calibrate its baseline and warm-restart without rescanning the
// text outputs. The memory backend lives for one process; the sqlite
// backend survives restarts.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/yanliu110/ALmoMD/internal/criteria"
	"github.com/yanliu110/ALmoMD/pkg/config"
	"github.com/yanliu110/ALmoMD/pkg/models"
)

// Entry is one logged interval of a sampling run.
type Entry struct {
	ID          string // assigned on append when empty
	Condition   string // run condition label, e.g. "300K-0bar_1"
	Interval    int    // 1-based logged-interval ordinal within the run
	TimePs      float64
	Temperature float64
	Record      models.UncertaintyRecord
	Counting    int     // cumulative accepted samples after this interval
	Probability float64 // acceptance probability, NaN during calibration
	Acceptance  string  // verdict string as written to the table
	CreatedAt   time.Time
}

// Store persists interval entries keyed by run condition.
type Store interface {
	// Append records one interval.
	Append(ctx context.Context, e Entry) error

	// Count returns the number of intervals recorded for a condition.
	Count(ctx context.Context, condition string) (int, error)

	// LastCounting returns the cumulative accepted count of the most
	// recent interval, or zero when none exist.
	LastCounting(ctx context.Context, condition string) (int, error)

	// Window returns the uncertainty records of the oldest n
	// intervals, or all of them when fewer exist.
	Window(ctx context.Context, condition string, n int) ([]models.UncertaintyRecord, error)

	// Reset drops every interval recorded for a condition.
	Reset(ctx context.Context, condition string) error

	Close() error
}

// New builds a store from configuration. An absent section defaults to
// the in-memory backend.
func New(cfg *config.Ledger) (Store, error) {
	if cfg == nil {
		return NewMemoryStore(), nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unsupported ledger backend %q", models.ErrConfiguration, cfg.Backend)
	}
}

// CalibrationSource binds a store and condition to the calibration
// window interface of the criteria package.
func CalibrationSource(ctx context.Context, store Store, condition string) criteria.Source {
	return windowSource{ctx: ctx, store: store, condition: condition}
}

type windowSource struct {
	ctx       context.Context
	store     Store
	condition string
}

func (s windowSource) Window(n int) ([]models.UncertaintyRecord, error) {
	return s.store.Window(s.ctx, s.condition, n)
}
