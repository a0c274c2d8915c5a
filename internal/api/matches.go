package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/biomatch-server/internal/domain"
)

type notesRequest struct {
	Notes string `json:"notes"`
}

type contactRequest struct {
	Message string `json:"message"`
}

// bindOptionalJSON decodes the body into dst; an empty body is allowed
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("body", "malformed JSON body", err.Error())
	}
	return nil
}

func (s *Server) handleGetMatch(c *gin.Context) {
	result, err := s.deps.Store.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleContactDonor(c *gin.Context) {
	var body contactRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.deps.Store.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	req := domain.ContactRequest{
		MatchID:     result.ID,
		DonorID:     result.DonorID,
		RecipientID: result.RecipientID,
		Message:     body.Message,
		RequestedAt: time.Now().UTC(),
	}
	err = s.deps.Notifier.ContactDonor(c.Request.Context(), req)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveContact(err)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, req)
}

func (s *Server) handleSubmitReview(c *gin.Context) {
	var body notesRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := s.deps.Store.GetResult(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	sample, err := s.deps.Store.GetSample(result.SampleID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	req, err := s.deps.Reviews.Submit(ctx, result, sample, body.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.observeReview(req)
	c.JSON(http.StatusCreated, req)
}

func (s *Server) observeReview(req *domain.ReviewRequest) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveReview(req.Status)
	}
}
