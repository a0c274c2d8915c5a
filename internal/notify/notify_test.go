package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomatch-server/internal/domain"
)

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	channels []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func contact() domain.ContactRequest {
	return domain.ContactRequest{MatchID: "match_1", DonorID: "D007", RecipientID: "subject_1", Message: "hello"}
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)

	require.NoError(t, n.ContactDonor(context.Background(), contact()))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "Donor contact requested", hook.LastEntry().Message)
	assert.Equal(t, "D007", hook.LastEntry().Data["donor_id"])

	err := n.ContactDonor(context.Background(), domain.ContactRequest{DonorID: "D001"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRedisNotifier_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, domain.NotifyConfig{Channel: "donors"}, quietLogger())

	require.NoError(t, n.ContactDonor(context.Background(), contact()))

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "donors", pub.channels[0])

	var sent domain.ContactRequest
	require.NoError(t, json.Unmarshal(pub.payloads[0], &sent))
	assert.Equal(t, "match_1", sent.MatchID)
	assert.Equal(t, "subject_1", sent.RecipientID)
	assert.False(t, sent.RequestedAt.IsZero())
}

func TestRedisNotifier_Validation(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, domain.NotifyConfig{Channel: "donors"}, quietLogger())

	err := n.ContactDonor(context.Background(), domain.ContactRequest{MatchID: "m"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, pub.payloads)
}

func TestRedisNotifier_BreakerOpens(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	n := NewRedisNotifier(pub, domain.NotifyConfig{
		Channel:        "donors",
		FailureTrigger: 2,
		Timeout:        time.Minute,
	}, quietLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := n.ContactDonor(ctx, contact())
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotifierUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, n.State())

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	err := n.ContactDonor(ctx, contact())
	assert.ErrorIs(t, err, domain.ErrNotifierUnavailable)
	assert.Equal(t, domain.ErrCodeNotifierUnavailable, domain.ErrorCode(err))
	assert.Empty(t, pub.payloads)
}

func TestNew(t *testing.T) {
	n, err := New(context.Background(), domain.NotifyConfig{Driver: "log"}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	_, err = New(context.Background(), domain.NotifyConfig{Driver: "pigeon"}, quietLogger())
	assert.Error(t, err)

	_, err = New(context.Background(), domain.NotifyConfig{Driver: "redis", RedisURL: "not a url"}, quietLogger())
	assert.Error(t, err)
}
