// ABOUTME: SQLite implementation of the CounterStore interface using modernc.org/sqlite
// ABOUTME: Provides atomic counter increments with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the CounterStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// modernc.org/sqlite allows one writer at a time; give contended
	// increments a chance to queue instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS experiments (
			experiment_name       TEXT NOT NULL,
			variant               TEXT NOT NULL,
			total_views           INTEGER NOT NULL DEFAULT 0,
			conversions           INTEGER NOT NULL DEFAULT 0,
			secondary_conversions INTEGER NOT NULL DEFAULT 0,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL,

			PRIMARY KEY (experiment_name, variant),
			CHECK (total_views >= 0),
			CHECK (conversions >= 0),
			CHECK (secondary_conversions >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_experiments_created
			ON experiments(created_at DESC);

		CREATE TABLE IF NOT EXISTS visitor_tokens (
			user_id    TEXT PRIMARY KEY,
			token      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// ensureRow creates the counter row with zero defaults if it doesn't exist.
// The primary key makes this safe under concurrent first-writers: losers of
// the insert race hit the conflict clause and proceed to the increment.
func (s *SQLiteStore) ensureRow(ctx context.Context, experiment, variant string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experiments (experiment_name, variant, total_views, conversions, secondary_conversions, created_at, updated_at)
		VALUES (?, ?, 0, 0, 0, ?, ?)
		ON CONFLICT (experiment_name, variant) DO NOTHING
	`, experiment, variant, now, now)
	if err != nil {
		return fmt.Errorf("inserting counter row: %w", err)
	}
	return nil
}

// IncrementViews records one view for the normalized variant. The returned
// row reflects the state before this increment.
func (s *SQLiteStore) IncrementViews(ctx context.Context, experiment, variant string) (*VariantCounter, error) {
	variant = NormalizeVariant(variant)

	if err := s.ensureRow(ctx, experiment, variant); err != nil {
		return nil, err
	}

	row, err := s.getCounter(ctx, experiment, variant)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE experiments
		SET total_views = total_views + 1, updated_at = ?
		WHERE experiment_name = ? AND variant = ?
	`, time.Now().UTC().Format(time.RFC3339), experiment, variant)
	if err != nil {
		return nil, fmt.Errorf("incrementing views: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		// Row vanished between find-or-create and increment. Not retried.
		s.logger.Warn("failed to increment experiment views",
			"experiment", experiment,
			"variant", variant,
		)
	}

	return row, nil
}

// IncrementConversions records one conversion of the given kind for the
// normalized variant. The returned row reflects the state before this
// increment.
func (s *SQLiteStore) IncrementConversions(ctx context.Context, experiment, variant string, kind ConversionKind) (*VariantCounter, error) {
	variant = NormalizeVariant(variant)

	if variant == "" {
		s.logger.Error("empty variant for conversion increment",
			"experiment", experiment,
			"kind", string(kind),
		)
		return nil, ErrEmptyVariant
	}

	column := "conversions"
	if kind == ConversionSecondary {
		column = "secondary_conversions"
	}

	if err := s.ensureRow(ctx, experiment, variant); err != nil {
		return nil, err
	}

	row, err := s.getCounter(ctx, experiment, variant)
	if err != nil {
		return nil, err
	}

	// column is one of two fixed identifiers, never user input
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE experiments
		SET %s = %s + 1, updated_at = ?
		WHERE experiment_name = ? AND variant = ?
	`, column, column), time.Now().UTC().Format(time.RFC3339), experiment, variant)
	if err != nil {
		return nil, fmt.Errorf("incrementing %s: %w", column, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		s.logger.Warn("failed to increment experiment conversions",
			"experiment", experiment,
			"variant", variant,
			"column", column,
		)
	}

	return row, nil
}

// getCounter retrieves a single counter row.
// Returns ErrNotFound if the row doesn't exist.
func (s *SQLiteStore) getCounter(ctx context.Context, experiment, variant string) (*VariantCounter, error) {
	query := `
		SELECT experiment_name, variant, total_views, conversions, secondary_conversions, created_at, updated_at
		FROM experiments
		WHERE experiment_name = ? AND variant = ?
	`

	var vc VariantCounter
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, experiment, variant).Scan(
		&vc.ExperimentName,
		&vc.Variant,
		&vc.TotalViews,
		&vc.Conversions,
		&vc.SecondaryConversions,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying counter: %w", err)
	}

	vc.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	vc.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &vc, nil
}

// ListVariants returns all counter rows for one experiment.
func (s *SQLiteStore) ListVariants(ctx context.Context, experiment string) ([]*VariantCounter, error) {
	query := `
		SELECT experiment_name, variant, total_views, conversions, secondary_conversions, created_at, updated_at
		FROM experiments
		WHERE experiment_name = ?
		ORDER BY variant ASC
	`

	rows, err := s.db.QueryContext(ctx, query, experiment)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	return scanCounters(rows)
}

// ListExperiments returns all counter rows grouped by experiment name, most
// recently created experiment first.
func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]ExperimentGroup, error) {
	query := `
		SELECT experiment_name, variant, total_views, conversions, secondary_conversions, created_at, updated_at
		FROM experiments
		ORDER BY created_at DESC, variant ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying experiments: %w", err)
	}
	defer rows.Close()

	counters, err := scanCounters(rows)
	if err != nil {
		return nil, err
	}

	var groups []ExperimentGroup
	index := make(map[string]int)
	for _, vc := range counters {
		i, ok := index[vc.ExperimentName]
		if !ok {
			i = len(groups)
			index[vc.ExperimentName] = i
			groups = append(groups, ExperimentGroup{Name: vc.ExperimentName})
		}
		groups[i].Variants = append(groups[i].Variants, vc)
	}

	return groups, nil
}

// scanCounters reads all counter rows from a result set.
func scanCounters(rows *sql.Rows) ([]*VariantCounter, error) {
	var counters []*VariantCounter
	for rows.Next() {
		var vc VariantCounter
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(
			&vc.ExperimentName,
			&vc.Variant,
			&vc.TotalViews,
			&vc.Conversions,
			&vc.SecondaryConversions,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning counter row: %w", err)
		}

		var err error
		vc.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		vc.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		counters = append(counters, &vc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counter rows: %w", err)
	}

	return counters, nil
}

// Ensure SQLiteStore implements CounterStore interface
var _ CounterStore = (*SQLiteStore)(nil)
