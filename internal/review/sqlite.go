package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/biomatch-server/internal/domain"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens dbPath, creating the file and schema if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_requests (
		id TEXT PRIMARY KEY,
		match_id TEXT NOT NULL UNIQUE,
		sample_id TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		donor_id TEXT NOT NULL,
		sample_type TEXT NOT NULL,
		composite_score INTEGER NOT NULL,
		urgency TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'pending',
		patient_notes TEXT NOT NULL DEFAULT '',
		doctor_notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_review_status ON review_requests(status);
	CREATE INDEX IF NOT EXISTS idx_review_created_at ON review_requests(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, req *domain.ReviewRequest) (*domain.ReviewRequest, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_requests (
			id, match_id, sample_id, subject_id, donor_id, sample_type,
			composite_score, urgency, status, patient_notes, doctor_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO NOTHING
	`,
		req.ID, req.MatchID, req.SampleID, req.SubjectID, req.DonorID, string(req.SampleType),
		req.CompositeScore, string(req.Urgency), string(req.Status), req.PatientNotes, req.DoctorNotes,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert review request: %w", err)
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM review_requests WHERE match_id = ?", req.MatchID)
	stored, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read review request: %w", err)
	}
	return stored, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.ReviewRequest, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM review_requests WHERE id = ?", id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return req, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, status domain.ReviewStatus, limit, offset int) ([]*domain.ReviewRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM review_requests
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, string(status), string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.ReviewRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// Transition implements Store.
func (s *SQLiteStore) Transition(ctx context.Context, id string, from, to domain.ReviewStatus, notes string, at time.Time) (*domain.ReviewRequest, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_requests SET status = ?, doctor_notes = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), notes, at, id, string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to update review request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, invalidTransition(req, to)
	}
	return req, nil
}

// Counts implements Store.
func (s *SQLiteStore) Counts(ctx context.Context) (domain.ReviewCounts, error) {
	var counts domain.ReviewCounts

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM review_requests GROUP BY status")
	if err != nil {
		return counts, fmt.Errorf("failed to count: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan count: %w", err)
		}
		addCount(&counts, status, n)
	}
	return counts, rows.Err()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
