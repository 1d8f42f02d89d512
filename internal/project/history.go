package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/piwi3910/CutYield/internal/model"
)

// ErrRunNotFound is returned when a run ID is not in the history.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// createdAtLayout keeps a fixed-width fraction so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    created_at       TEXT NOT NULL,
    sheet_width      REAL NOT NULL,
    sheet_height     REAL NOT NULL,
    kerf             REAL NOT NULL,
    requested        INTEGER NOT NULL,
    placed           INTEGER NOT NULL,
    utilization      REAL NOT NULL,
    unplaced_summary TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// Run is one recorded optimization.
type Run struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	SheetWidth      float64   `json:"sheet_width"`
	SheetHeight     float64   `json:"sheet_height"`
	Kerf            float64   `json:"kerf"`
	Requested       int       `json:"requested"`
	Placed          int       `json:"placed"`
	Utilization     float64   `json:"utilization"`
	UnplacedSummary string    `json:"unplaced_summary"`
}

// NewRun summarises a packing result for the history with a fresh ID.
func NewRun(result model.PackingResult) Run {
	groups := result.UnplacedSummary()
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, g.String())
	}
	return Run{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		SheetWidth:      result.Sheet.Width,
		SheetHeight:     result.Sheet.Height,
		Kerf:            result.Kerf,
		Requested:       result.RequestedCount(),
		Placed:          len(result.Placements),
		Utilization:     result.UtilizationPercent,
		UnplacedSummary: strings.Join(parts, ", "),
	}
}

// HistoryStore records runs in a SQLite database.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path and
// applies the schema.
func OpenHistory(ctx context.Context, path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir history dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Record inserts a run.
func (s *HistoryStore) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO runs (id, created_at, sheet_width, sheet_height, kerf, requested, placed, utilization, unplaced_summary)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		run.ID,
		run.CreatedAt.UTC().Format(createdAtLayout),
		run.SheetWidth,
		run.SheetHeight,
		run.Kerf,
		run.Requested,
		run.Placed,
		run.Utilization,
		run.UnplacedSummary,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, created_at, sheet_width, sheet_height, kerf, requested, placed, utilization, unplaced_summary
        FROM runs
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with the given ID.
func (s *HistoryStore) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, created_at, sheet_width, sheet_height, kerf, requested, placed, utilization, unplaced_summary
        FROM runs
        WHERE id = ?
    `, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// Close releases the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var created string
	if err := sc.Scan(&run.ID, &created, &run.SheetWidth, &run.SheetHeight, &run.Kerf,
		&run.Requested, &run.Placed, &run.Utilization, &run.UnplacedSummary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	t, err := time.Parse(createdAtLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", run.ID, created, err)
	}
	run.CreatedAt = t
	return run, nil
}
