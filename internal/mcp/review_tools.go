package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/service"
)

// SendToDoctorParams defines parameters for the send_to_doctor tool
type SendToDoctorParams struct {
	MatchID      string `json:"match_id"`
	PatientNotes string `json:"patient_notes,omitempty"`
}

// ListReviewsParams defines parameters for the list_reviews tool
type ListReviewsParams struct {
	Status string `json:"status,omitempty" jsonschema:"pending, approved or declined"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ListReviewsResult is the payload of list_reviews
type ListReviewsResult struct {
	Reviews []*domain.ReviewRequest `json:"reviews"`
	Counts  domain.ReviewCounts     `json:"counts"`
}

// ExportReportParams defines parameters for the export_report tool
type ExportReportParams struct {
	SampleID string `json:"sample_id"`
	Format   string `json:"format,omitempty" jsonschema:"json or yaml"`
}

// ExportReportResult describes the written report
type ExportReportResult struct {
	ReportID string `json:"report_id"`
	Path     string `json:"path"`
	Count    int    `json:"count"`
}

func (s *Server) handleSendToDoctor(ctx context.Context, _ *mcp.CallToolRequest, params SendToDoctorParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "send_to_doctor").Debug("Tool invoked")

	if params.MatchID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("match_id is required")), nil, nil
	}
	match, err := s.store.GetResult(ctx, params.MatchID)
	if err != nil {
		return s.createErrorResult("Unknown match", err), nil, nil
	}
	sample, err := s.store.GetSample(match.SampleID)
	if err != nil {
		return s.createErrorResult("Unknown sample", err), nil, nil
	}

	req, err := s.queue.Submit(ctx, match, sample, params.PatientNotes)
	if err != nil {
		return s.createErrorResult("Review submission failed", err), nil, nil
	}
	return s.createJSONResult(fmt.Sprintf("Review %s is %s", req.ID, req.Status), req)
}

func (s *Server) handleListReviews(ctx context.Context, _ *mcp.CallToolRequest, params ListReviewsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_reviews").Debug("Tool invoked")

	reviews, err := s.queue.List(ctx, domain.ReviewStatus(params.Status), params.Limit, params.Offset)
	if err != nil {
		return s.createErrorResult("Listing reviews failed", err), nil, nil
	}
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return s.createErrorResult("Counting reviews failed", err), nil, nil
	}
	if reviews == nil {
		reviews = []*domain.ReviewRequest{}
	}
	return s.createJSONResult(fmt.Sprintf("%d reviews", len(reviews)), ListReviewsResult{Reviews: reviews, Counts: counts})
}

func (s *Server) handleExportReport(ctx context.Context, _ *mcp.CallToolRequest, params ExportReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_report").Debug("Tool invoked")

	format, err := service.ParseReportFormat(params.Format)
	if err != nil {
		return s.createErrorResult("Invalid format", err), nil, nil
	}
	sample, err := s.store.GetSample(params.SampleID)
	if err != nil {
		return s.createErrorResult("Unknown sample", err), nil, nil
	}

	report := s.reports.Generate(sample, s.store.ResultsForSample(ctx, sample.ID))
	path := filepath.Join(s.config.ReportDir(), report.ID+"."+string(format))

	f, err := os.Create(path)
	if err != nil {
		return s.createErrorResult("Failed to create report file", err), nil, nil
	}
	defer f.Close()

	if err := s.reports.Encode(f, report, format); err != nil {
		return s.createErrorResult("Failed to write report", err), nil, nil
	}

	out := ExportReportResult{ReportID: report.ID, Path: path, Count: report.Summary.Count}
	return s.createJSONResult(fmt.Sprintf("Report written to %s", path), out)
}
