// Package cache retains ingested samples and returned match results for the
// callers that need to refer back to them (HTTP handlers, MCP tools).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/domain"
)

// ResultTier is a shared second tier for match results and the per-sample
// index listing them, so any replica can rebuild a sample's result set.
type ResultTier interface {
	SetResult(ctx context.Context, result *domain.MatchResult, ttl time.Duration) error
	GetResult(ctx context.Context, id string) (*domain.MatchResult, bool, error)
	AppendSampleIndex(ctx context.Context, sampleID string, ids []string, ttl time.Duration) error
	SampleIndex(ctx context.Context, sampleID string) ([]string, error)
}

// Store keeps samples and results in expiring in-process LRUs, optionally
// mirroring results into a ResultTier.
type Store struct {
	samples  *expirable.LRU[string, *domain.BioSample]
	results  *expirable.LRU[string, *domain.MatchResult]
	bySample *expirable.LRU[string, []string]
	indexMu  sync.Mutex // serializes read-modify-write of bySample
	tier     ResultTier
	ttl      time.Duration
	logger   *logrus.Logger
}

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithResultTier mirrors results into tier
func WithResultTier(tier ResultTier) StoreOption {
	return func(s *Store) { s.tier = tier }
}

// NewStore creates a store holding at most maxItems entries of each kind for ttl
func NewStore(maxItems int, ttl time.Duration, logger *logrus.Logger, opts ...StoreOption) *Store {
	if maxItems <= 0 {
		maxItems = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	s := &Store{
		samples:  expirable.NewLRU[string, *domain.BioSample](maxItems, nil, ttl),
		results:  expirable.NewLRU[string, *domain.MatchResult](maxItems, nil, ttl),
		bySample: expirable.NewLRU[string, []string](maxItems, nil, ttl),
		ttl:      ttl,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutSample retains an ingested sample
func (s *Store) PutSample(sample *domain.BioSample) {
	s.samples.Add(sample.ID, sample)
}

// GetSample returns a retained sample or ErrNotFound
func (s *Store) GetSample(id string) (*domain.BioSample, error) {
	sample, ok := s.samples.Get(id)
	if !ok {
		return nil, domain.NewValidationError("sample_id", "sample not found", id).Wrap(domain.ErrNotFound)
	}
	return sample, nil
}

// PutResults retains results returned for a sample, appending to any earlier batch.
// A failing shared tier is logged and does not fail the call.
func (s *Store) PutResults(ctx context.Context, sampleID string, results []*domain.MatchResult) {
	if len(results) == 0 {
		return
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		s.results.Add(r.ID, r)
		ids = append(ids, r.ID)

		if s.tier != nil {
			if err := s.tier.SetResult(ctx, r, s.ttl); err != nil {
				s.logger.WithError(err).WithField("match_id", r.ID).Warn("Failed to write result to shared tier")
			}
		}
	}

	s.indexMu.Lock()
	prev, _ := s.bySample.Get(sampleID)
	merged := make([]string, 0, len(prev)+len(ids))
	merged = append(merged, prev...)
	merged = append(merged, ids...)
	s.bySample.Add(sampleID, merged)
	s.indexMu.Unlock()

	if s.tier != nil {
		if err := s.tier.AppendSampleIndex(ctx, sampleID, ids, s.ttl); err != nil {
			s.logger.WithError(err).WithField("sample_id", sampleID).Warn("Failed to write sample index to shared tier")
		}
	}
}

// GetResult resolves a match result by id, consulting the shared tier on a local miss
func (s *Store) GetResult(ctx context.Context, id string) (*domain.MatchResult, error) {
	if r, ok := s.results.Get(id); ok {
		return r, nil
	}

	if s.tier != nil {
		r, ok, err := s.tier.GetResult(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("match_id", id).Warn("Shared tier lookup failed")
		} else if ok {
			s.results.Add(r.ID, r)
			return r, nil
		}
	}

	return nil, domain.NewValidationError("match_id", "match result not found", id).Wrap(domain.ErrNotFound)
}

// ResultsForSample returns every retained result for a sample in the order they were returned.
// With a shared tier its index is authoritative, so results written by other
// replicas are included. Expired results are skipped.
func (s *Store) ResultsForSample(ctx context.Context, sampleID string) []*domain.MatchResult {
	ids := s.sampleIndex(ctx, sampleID)
	out := make([]*domain.MatchResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.results.Peek(id); ok {
			out = append(out, r)
			continue
		}
		if s.tier == nil {
			continue
		}
		r, ok, err := s.tier.GetResult(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("match_id", id).Warn("Shared tier lookup failed")
			continue
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) sampleIndex(ctx context.Context, sampleID string) []string {
	if s.tier != nil {
		ids, err := s.tier.SampleIndex(ctx, sampleID)
		if err == nil && len(ids) > 0 {
			return ids
		}
		if err != nil {
			s.logger.WithError(err).WithField("sample_id", sampleID).Warn("Shared tier index lookup failed")
		}
	}

	ids, _ := s.bySample.Get(sampleID)
	return ids
}

// Stats reports current entry counts
func (s *Store) Stats() map[string]int {
	return map[string]int{
		"samples": s.samples.Len(),
		"results": s.results.Len(),
	}
}
