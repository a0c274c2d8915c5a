// Package review implements the doctor review queue: matches a patient sends
// to a doctor, who approves or declines them.
package review

import (
	"context"
	"time"

	"github.com/biomatch-server/internal/domain"
)

// Store persists review requests.
type Store interface {
	// Create inserts req unless a request for the same match exists, in
	// which case the existing request is returned unchanged.
	Create(ctx context.Context, req *domain.ReviewRequest) (*domain.ReviewRequest, error)

	// Get returns the request with id, or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ReviewRequest, error)

	// List returns requests newest first. An empty status lists all.
	List(ctx context.Context, status domain.ReviewStatus, limit, offset int) ([]*domain.ReviewRequest, error)

	// Transition moves a request from one status to another, recording notes.
	// It fails with domain.ErrInvalidTransition if the request is not in from.
	Transition(ctx context.Context, id string, from, to domain.ReviewStatus, notes string, at time.Time) (*domain.ReviewRequest, error)

	// Counts tallies requests per status.
	Counts(ctx context.Context) (domain.ReviewCounts, error)

	Close() error
}

const selectColumns = `id, match_id, sample_id, subject_id, donor_id, sample_type,
	composite_score, urgency, status, patient_notes, doctor_notes, created_at, updated_at`

// scanner is satisfied by database/sql and pgx rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(s scanner) (*domain.ReviewRequest, error) {
	req := &domain.ReviewRequest{}
	var sampleType, urgency, status string

	err := s.Scan(
		&req.ID, &req.MatchID, &req.SampleID, &req.SubjectID, &req.DonorID, &sampleType,
		&req.CompositeScore, &urgency, &status, &req.PatientNotes, &req.DoctorNotes,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.SampleType = domain.SampleType(sampleType)
	req.Urgency = domain.Urgency(urgency)
	req.Status = domain.ReviewStatus(status)
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return req, nil
}

func notFound(id string) error {
	return domain.NewValidationError("review_id", "review request not found", id).Wrap(domain.ErrNotFound)
}

func invalidTransition(req *domain.ReviewRequest, to domain.ReviewStatus) error {
	return domain.NewValidationError("status", "cannot move "+string(req.Status)+" request to "+string(to), req.ID).
		Wrap(domain.ErrInvalidTransition)
}

func addCount(c *domain.ReviewCounts, status string, n int64) {
	switch domain.ReviewStatus(status) {
	case domain.ReviewPending:
		c.Pending = n
	case domain.ReviewApproved:
		c.Approved = n
	case domain.ReviewDeclined:
		c.Declined = n
	}
}
