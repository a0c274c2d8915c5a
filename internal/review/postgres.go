package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/domain"
)

// PostgresStore implements Store on PostgreSQL. The schema comes from migrations.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewPostgresStore wraps an established pool
func NewPostgresStore(pool *pgxpool.Pool, logger *logrus.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, req *domain.ReviewRequest) (*domain.ReviewRequest, error) {
	query := `
		INSERT INTO review_requests (
			id, match_id, sample_id, subject_id, donor_id, sample_type,
			composite_score, urgency, status, patient_notes, doctor_notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (match_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		req.ID, req.MatchID, req.SampleID, req.SubjectID, req.DonorID, string(req.SampleType),
		req.CompositeScore, string(req.Urgency), string(req.Status), req.PatientNotes, req.DoctorNotes,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		s.logger.WithError(err).WithField("match_id", req.MatchID).Error("Failed to create review request")
		return nil, fmt.Errorf("creating review request: %w", err)
	}

	row := s.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM review_requests WHERE match_id = $1", req.MatchID)
	stored, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("reading review request: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"review_id": stored.ID,
		"match_id":  stored.MatchID,
		"created":   tag.RowsAffected() == 1,
	}).Debug("Review request stored")

	return stored, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.ReviewRequest, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM review_requests WHERE id = $1", id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting review request: %w", err)
	}
	return req, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, status domain.ReviewStatus, limit, offset int) ([]*domain.ReviewRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM review_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing review requests: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.ReviewRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review request: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// Transition implements Store.
func (s *PostgresStore) Transition(ctx context.Context, id string, from, to domain.ReviewStatus, notes string, at time.Time) (*domain.ReviewRequest, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE review_requests SET status = $1, doctor_notes = $2, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING `+selectColumns, string(to), notes, at, id, string(from))

	req, err := scanRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating review request: %w", err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, invalidTransition(current, to)
}

// Counts implements Store.
func (s *PostgresStore) Counts(ctx context.Context) (domain.ReviewCounts, error) {
	var counts domain.ReviewCounts

	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM review_requests GROUP BY status")
	if err != nil {
		return counts, fmt.Errorf("counting review requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scanning count: %w", err)
		}
		addCount(&counts, status, n)
	}
	return counts, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
