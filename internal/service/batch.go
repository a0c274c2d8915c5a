package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/biomatch-server/internal/domain"
)

// BatchMatcher runs FindMatches for many samples on a bounded worker pool
type BatchMatcher struct {
	engine      domain.MatchingEngine
	concurrency int
	logger      *logrus.Logger
}

// NewBatchMatcher creates a batch matcher; concurrency below 1 means 4
func NewBatchMatcher(engine domain.MatchingEngine, concurrency int, logger *logrus.Logger) *BatchMatcher {
	if concurrency < 1 {
		concurrency = 4
	}
	return &BatchMatcher{
		engine:      engine,
		concurrency: concurrency,
		logger:      logger,
	}
}

// MatchAll matches every sample and returns results keyed by sample ID.
// The first failure cancels the remaining work.
func (b *BatchMatcher) MatchAll(ctx context.Context, samples []*domain.BioSample, count int) (map[string][]*domain.MatchResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	var mu sync.Mutex
	out := make(map[string][]*domain.MatchResult, len(samples))

	for _, sample := range samples {
		g.Go(func() error {
			results, err := b.engine.FindMatches(gctx, sample, count)
			if err != nil {
				id := ""
				if sample != nil {
					id = sample.ID
				}
				return fmt.Errorf("matching sample %q: %w", id, err)
			}
			mu.Lock()
			out[sample.ID] = results
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.logger.WithFields(logrus.Fields{
		"samples":     len(samples),
		"count":       count,
		"concurrency": b.concurrency,
	}).Debug("Batch matching completed")

	return out, nil
}
