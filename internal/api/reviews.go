package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/review"
)

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name, "must be an integer", raw)
	}
	return n, nil
}

func (s *Server) handleListReviews(c *gin.Context) {
	limit, err := intQuery(c, "limit", review.DefaultListLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}

	reqs, err := s.deps.Reviews.List(c.Request.Context(), domain.ReviewStatus(c.Query("status")), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reqs,
		"count":   len(reqs),
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleReviewStats(c *gin.Context) {
	counts, err := s.deps.Reviews.Counts(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) handleGetReview(c *gin.Context) {
	req, err := s.deps.Reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleApproveReview(c *gin.Context) {
	s.decide(c, s.deps.Reviews.Approve)
}

func (s *Server) handleDeclineReview(c *gin.Context) {
	s.decide(c, s.deps.Reviews.Decline)
}

type decideFunc func(ctx context.Context, id, notes string) (*domain.ReviewRequest, error)

func (s *Server) decide(c *gin.Context, fn decideFunc) {
	var body notesRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		s.respondError(c, err)
		return
	}

	req, err := fn(c.Request.Context(), c.Param("id"), body.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.observeReview(req)
	c.JSON(http.StatusOK, req)
}
