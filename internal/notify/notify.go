// Package notify delivers "contact donor" requests raised from match results.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/domain"
)

func validate(req *domain.ContactRequest) error {
	if req.MatchID == "" {
		return domain.NewValidationError("match_id", "match id is required", nil).Wrap(domain.ErrInvalidArgument)
	}
	if req.DonorID == "" {
		return domain.NewValidationError("donor_id", "donor id is required", nil).Wrap(domain.ErrInvalidArgument)
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	return nil
}

// LogNotifier records contact requests in the log only
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ContactDonor implements domain.Notifier
func (n *LogNotifier) ContactDonor(ctx context.Context, req domain.ContactRequest) error {
	if err := validate(&req); err != nil {
		return err
	}
	n.logger.WithFields(logrus.Fields{
		"match_id":     req.MatchID,
		"donor_id":     req.DonorID,
		"recipient_id": req.RecipientID,
	}).Info("Donor contact requested")
	return nil
}

// New builds the notifier selected by cfg.Driver
func New(ctx context.Context, cfg domain.NotifyConfig, logger *logrus.Logger) (domain.Notifier, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "redis":
		pub, err := NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisNotifier(pub, cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown notify driver: %s", cfg.Driver)
}
