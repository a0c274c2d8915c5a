package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/biomatch-server/internal/domain"
)

// Publisher sends a payload to a pub/sub channel
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes through a go-redis client
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to redisURL
func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisPublisher{client: client}, nil
}

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Close closes the client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisNotifier publishes contact requests as JSON, guarded by a circuit breaker
type RedisNotifier struct {
	pub     Publisher
	channel string
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewRedisNotifier wraps pub with breaker settings from cfg
func NewRedisNotifier(pub Publisher, cfg domain.NotifyConfig, logger *logrus.Logger) *RedisNotifier {
	trip := cfg.FailureTrigger
	if trip == 0 {
		trip = 5
	}

	settings := gobreaker.Settings{
		Name:        "DonorContact",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &RedisNotifier{
		pub:     pub,
		channel: cfg.Channel,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// ContactDonor implements domain.Notifier
func (n *RedisNotifier) ContactDonor(ctx context.Context, req domain.ContactRequest) error {
	if err := validate(&req); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal contact request: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.pub.Publish(ctx, n.channel, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrNotifierUnavailable, err)
	}
	if err != nil {
		n.logger.WithError(err).WithField("match_id", req.MatchID).Warn("Failed to publish donor contact")
		return fmt.Errorf("publishing donor contact: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"match_id": req.MatchID,
		"donor_id": req.DonorID,
		"channel":  n.channel,
	}).Info("Donor contact published")
	return nil
}

// State reports the breaker state
func (n *RedisNotifier) State() gobreaker.State {
	return n.breaker.State()
}

// Close closes the publisher if it holds a connection
func (n *RedisNotifier) Close() error {
	if c, ok := n.pub.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
