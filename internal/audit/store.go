package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the persistence contract for audit records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, f Filter) ([]*Record, error)
	Delete(ctx context.Context, id string) error
	Summarize(ctx context.Context, from, to time.Time) (*Summary, error)
	Close() error
}

// SQLiteStore persists audit records in a single SQLite file via the
// pure-Go driver.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the database at path and
// bootstraps the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("audit: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		test_type TEXT NOT NULL,
		test_name TEXT NOT NULL,
		field_count INTEGER NOT NULL DEFAULT 0,
		sample_size INTEGER NOT NULL DEFAULT 0,
		statistic TEXT,
		p_value TEXT,
		methodology_score REAL NOT NULL DEFAULT 0,
		reproducibility_score REAL NOT NULL DEFAULT 0,
		transparency_score REAL NOT NULL DEFAULT 0,
		integrity_score REAL NOT NULL DEFAULT 0,
		guardian_report TEXT,
		assumptions_checked INTEGER NOT NULL DEFAULT 0,
		assumptions_failed INTEGER NOT NULL DEFAULT 0,
		client_id TEXT,
		client_version TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_test_type ON audit_records(test_type);
	CREATE INDEX IF NOT EXISTS idx_audit_test_name ON audit_records(test_name);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_records(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save finalizes the record (derived fields, timestamps, id) and inserts
// it. Saving an existing id replaces the stored row.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if err := rec.finalize(time.Now().UTC()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audit_records (
			id, test_type, test_name, field_count, sample_size,
			statistic, p_value,
			methodology_score, reproducibility_score, transparency_score, integrity_score,
			guardian_report, assumptions_checked, assumptions_failed,
			client_id, client_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TestType, rec.TestName, rec.FieldCount, rec.SampleSize,
		rec.Statistic, rec.PValue,
		rec.MethodologyScore, rec.ReproducibilityScore, rec.TransparencyScore, rec.IntegrityScore,
		string(rec.GuardianReport), rec.AssumptionsChecked, rec.AssumptionsFailed,
		rec.ClientID, rec.ClientVersion, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("audit: save record: %w", err)
	}
	return nil
}

const selectColumns = `
	id, test_type, test_name, field_count, sample_size,
	statistic, p_value,
	methodology_score, reproducibility_score, transparency_score, integrity_score,
	guardian_report, assumptions_checked, assumptions_failed,
	client_id, client_version, created_at, updated_at`

// Get returns the record with the given id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM audit_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audit: get record: %w", err)
	}
	return rec, nil
}

// List returns records matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []interface{}
	if f.TestType != "" {
		where = append(where, "test_type = ?")
		args = append(args, f.TestType)
	}
	if f.TestName != "" {
		where = append(where, "test_name = ?")
		args = append(args, f.TestName)
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(f.To))
	}

	query := `SELECT ` + selectColumns + ` FROM audit_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the record with the given id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("audit: delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("audit: delete record: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Summarize aggregates runs created in [from, to).
func (s *SQLiteStore) Summarize(ctx context.Context, from, to time.Time) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &Summary{
		PeriodStart: from,
		PeriodEnd:   to,
		ByTestType:  make(map[string]int),
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN assumptions_failed = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(integrity_score), 0)
		FROM audit_records WHERE created_at >= ? AND created_at < ?`,
		formatTime(from), formatTime(to))
	if err := row.Scan(&sum.TotalRuns, &sum.PassedRuns, &sum.AvgIntegrity); err != nil {
		return nil, fmt.Errorf("audit: summarize: %w", err)
	}
	if sum.TotalRuns > 0 {
		sum.PassRate = float64(sum.PassedRuns) / float64(sum.TotalRuns)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT test_type, COUNT(*) FROM audit_records
		WHERE created_at >= ? AND created_at < ?
		GROUP BY test_type`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("audit: summarize by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tt string
		var n int
		if err := rows.Scan(&tt, &n); err != nil {
			return nil, fmt.Errorf("audit: summarize by type: %w", err)
		}
		sum.ByTestType[tt] = n
	}
	return sum, rows.Err()
}

// timeLayout is fixed width so lexicographic comparison in SQL matches
// chronological order. All stored times are UTC.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var report sql.NullString
	var statistic, pvalue, clientID, clientVersion sql.NullString
	var created, updated string
	err := row.Scan(
		&rec.ID, &rec.TestType, &rec.TestName, &rec.FieldCount, &rec.SampleSize,
		&statistic, &pvalue,
		&rec.MethodologyScore, &rec.ReproducibilityScore, &rec.TransparencyScore, &rec.IntegrityScore,
		&report, &rec.AssumptionsChecked, &rec.AssumptionsFailed,
		&clientID, &clientVersion, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	rec.Statistic = statistic.String
	rec.PValue = pvalue.String
	rec.ClientID = clientID.String
	rec.ClientVersion = clientVersion.String
	if report.Valid && report.String != "" {
		rec.GuardianReport = []byte(report.String)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, err
	}
	return &rec, nil
}
