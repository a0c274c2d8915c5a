package review

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/domain"
)

// DefaultApprovalNotes is recorded when a doctor approves without notes.
const DefaultApprovalNotes = "Approved by doctor"

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Service enforces the review lifecycle: pending then approved or declined.
type Service struct {
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

// NewService creates a review service over store
func NewService(store Store, logger *logrus.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Submit queues match for doctor review. Submitting a match twice returns the first request.
func (s *Service) Submit(ctx context.Context, match *domain.MatchResult, sample *domain.BioSample, patientNotes string) (*domain.ReviewRequest, error) {
	if match == nil || sample == nil {
		return nil, domain.NewValidationError("match", "match and sample are required", nil).Wrap(domain.ErrInvalidArgument)
	}
	if match.SampleID != sample.ID {
		return nil, domain.NewValidationError("match", "match does not belong to sample", match.ID).Wrap(domain.ErrInvalidArgument)
	}

	now := s.timestamp()
	req := &domain.ReviewRequest{
		ID:             "review_" + uuid.New().String(),
		MatchID:        match.ID,
		SampleID:       sample.ID,
		SubjectID:      sample.SubjectID,
		DonorID:        match.DonorID,
		SampleType:     sample.SampleType,
		CompositeScore: match.CompositeScore,
		Urgency:        sample.Urgency,
		Status:         domain.ReviewPending,
		PatientNotes:   strings.TrimSpace(patientNotes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stored, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"review_id": stored.ID,
		"match_id":  stored.MatchID,
		"urgency":   stored.Urgency,
	}).Info("Match sent for doctor review")

	return stored, nil
}

// Approve marks a pending request approved
func (s *Service) Approve(ctx context.Context, id, notes string) (*domain.ReviewRequest, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = DefaultApprovalNotes
	}
	return s.transition(ctx, id, domain.ReviewApproved, notes)
}

// Decline marks a pending request declined. A reason is required.
func (s *Service) Decline(ctx context.Context, id, notes string) (*domain.ReviewRequest, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, domain.NewValidationError("notes", "a reason is required to decline", nil).Wrap(domain.ErrInvalidArgument)
	}
	return s.transition(ctx, id, domain.ReviewDeclined, notes)
}

func (s *Service) transition(ctx context.Context, id string, to domain.ReviewStatus, notes string) (*domain.ReviewRequest, error) {
	req, err := s.store.Transition(ctx, id, domain.ReviewPending, to, notes, s.timestamp())
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"review_id": req.ID,
		"status":    req.Status,
	}).Info("Review request decided")

	return req, nil
}

// Get returns a request by id
func (s *Service) Get(ctx context.Context, id string) (*domain.ReviewRequest, error) {
	return s.store.Get(ctx, id)
}

// List returns requests newest first, optionally filtered by status
func (s *Service) List(ctx context.Context, status domain.ReviewStatus, limit, offset int) ([]*domain.ReviewRequest, error) {
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", "must be pending, approved or declined", status).Wrap(domain.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, status, limit, offset)
}

// Counts tallies requests per status
func (s *Service) Counts(ctx context.Context) (domain.ReviewCounts, error) {
	return s.store.Counts(ctx)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
