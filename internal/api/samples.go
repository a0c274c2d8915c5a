package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/service"
)

func (s *Server) handleIngest(c *gin.Context) {
	if max := s.cfg.Server.MaxUploadBytes; max > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(c, badRequest("file", "upload exceeds size limit", maxErr.Limit))
			return
		}
		s.respondError(c, badRequest("file", "multipart field 'file' is required", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		s.respondError(c, err)
		return
	}

	attrs, err := attributesFromForm(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	upload := domain.Upload{
		Filename: fh.Filename,
		Size:     size,
		SHA256:   hex.EncodeToString(hasher.Sum(nil)),
	}

	sample, err := s.deps.Engine.Ingest(c.Request.Context(), upload, c.PostForm("sample_type"), attrs)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.deps.Store.PutSample(sample)
	c.JSON(http.StatusCreated, sample)
}

func attributesFromForm(c *gin.Context) (domain.SampleAttributes, error) {
	attrs := domain.SampleAttributes{
		SubjectID:      strings.TrimSpace(c.PostForm("subject_id")),
		HLATyping:      listField(c, "hla_typing"),
		BloodType:      strings.TrimSpace(c.PostForm("blood_type")),
		GeneticMarkers: listField(c, "genetic_markers"),
		MedicalHistory: listField(c, "medical_history"),
		Location:       strings.TrimSpace(c.PostForm("location")),
	}

	if u := strings.TrimSpace(c.PostForm("urgency")); u != "" {
		urgency, err := domain.ParseUrgency(u)
		if err != nil {
			return attrs, err
		}
		attrs.Urgency = urgency
	}

	if a := strings.TrimSpace(c.PostForm("age")); a != "" {
		age, err := strconv.Atoi(a)
		if err != nil {
			return attrs, badRequest("age", "must be an integer", a)
		}
		attrs.Age = age
	}

	return attrs, nil
}

// listField accepts repeated fields and comma separated values
func listField(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.PostFormArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) handleGetSample(c *gin.Context) {
	sample, err := s.deps.Store.GetSample(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

func countParam(c *gin.Context, fallback int) (int, error) {
	raw := c.Query("count")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("count", "must be an integer", raw)
	}
	return n, nil
}

func (s *Server) handleFindMatches(c *gin.Context) {
	s.findMatches(c, s.cfg.Matching.DefaultCount, s.deps.Engine.FindMatches)
}

func (s *Server) handleFindMoreMatches(c *gin.Context) {
	s.findMatches(c, s.cfg.Matching.DefaultMoreCount, s.deps.Engine.FindMoreMatches)
}

type matchFunc func(context.Context, *domain.BioSample, int) ([]*domain.MatchResult, error)

func (s *Server) findMatches(c *gin.Context, fallback int, find matchFunc) {
	sample, err := s.deps.Store.GetSample(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	count, err := countParam(c, fallback)
	if err != nil {
		s.respondError(c, err)
		return
	}

	results, err := find(c.Request.Context(), sample, count)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.deps.Store.PutResults(c.Request.Context(), sample.ID, results)
	c.JSON(http.StatusOK, gin.H{
		"sample_id": sample.ID,
		"count":     len(results),
		"results":   results,
	})
}

func (s *Server) handleReport(c *gin.Context) {
	format, err := service.ParseReportFormat(c.Query("format"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	sample, err := s.deps.Store.GetSample(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	report := s.deps.Reports.Generate(sample, s.deps.Store.ResultsForSample(c.Request.Context(), sample.ID))

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", "attachment; filename=\""+report.ID+"."+string(format)+"\"")
	c.Status(http.StatusOK)
	if err := s.deps.Reports.Encode(c.Writer, report, format); err != nil {
		s.logger.WithError(err).WithField("sample_id", sample.ID).Error("Failed to write report")
	}
}
