package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biomatch-server/internal/domain"
)

// MaxBatchSamples bounds the samples matched by one batch request
const MaxBatchSamples = 100

type batchRequest struct {
	SampleIDs []string `json:"sample_ids" binding:"required"`
	Count     int      `json:"count"`
}

func (s *Server) handleBatchMatches(c *gin.Context) {
	var body batchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, badRequest("body", "malformed JSON body or missing sample_ids", err.Error()))
		return
	}
	if len(body.SampleIDs) == 0 || len(body.SampleIDs) > MaxBatchSamples {
		s.respondError(c, badRequest("sample_ids", "must list between 1 and 100 samples", len(body.SampleIDs)))
		return
	}

	seen := make(map[string]bool, len(body.SampleIDs))
	samples := make([]*domain.BioSample, 0, len(body.SampleIDs))
	for _, id := range body.SampleIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		sample, err := s.deps.Store.GetSample(id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		samples = append(samples, sample)
	}

	count := body.Count
	if count == 0 {
		count = s.cfg.Matching.DefaultCount
	}

	ctx := c.Request.Context()
	results, err := s.batch.MatchAll(ctx, samples, count)
	if err != nil {
		s.respondError(c, err)
		return
	}
	for id, rs := range results {
		s.deps.Store.PutResults(ctx, id, rs)
	}

	c.JSON(http.StatusOK, gin.H{
		"samples": len(results),
		"count":   count,
		"results": results,
	})
}
