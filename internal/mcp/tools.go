package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/biomatch-server/internal/domain"
)

// IngestSampleParams defines parameters for the ingest_sample tool.
// Either content (base64) or sha256 identifies the upload.
type IngestSampleParams struct {
	SampleType     string   `json:"sample_type" jsonschema:"one of stem-cells, blood-cells, bone-marrow, tissue-biopsy, saliva, peripheral-blood"`
	Filename       string   `json:"filename,omitempty"`
	Content        string   `json:"content,omitempty" jsonschema:"base64 encoded upload bytes"`
	SHA256         string   `json:"sha256,omitempty" jsonschema:"hex digest of the upload when content is not sent"`
	Size           int64    `json:"size,omitempty"`
	SubjectID      string   `json:"subject_id,omitempty"`
	BloodType      string   `json:"blood_type,omitempty"`
	HLATyping      []string `json:"hla_typing,omitempty"`
	GeneticMarkers []string `json:"genetic_markers,omitempty"`
	MedicalHistory []string `json:"medical_history,omitempty"`
	Age            int      `json:"age,omitempty"`
	Urgency        string   `json:"urgency,omitempty" jsonschema:"low, medium or high"`
	Location       string   `json:"location,omitempty"`
}

// FindMatchesParams defines parameters for find_matches and find_more_matches
type FindMatchesParams struct {
	SampleID string `json:"sample_id"`
	Count    int    `json:"count,omitempty"`
}

// ListModelsParams takes no arguments
type ListModelsParams struct{}

// MatchesResult is the payload of the match tools
type MatchesResult struct {
	SampleID string                `json:"sample_id"`
	Count    int                   `json:"count"`
	Results  []*domain.MatchResult `json:"results"`
}

func (s *Server) handleIngestSample(ctx context.Context, _ *mcp.CallToolRequest, params IngestSampleParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "ingest_sample").Debug("Tool invoked")

	upload, err := uploadFromParams(params)
	if err != nil {
		return s.createErrorResult("Invalid upload", err), nil, nil
	}

	attrs := domain.SampleAttributes{
		SubjectID:      strings.TrimSpace(params.SubjectID),
		HLATyping:      params.HLATyping,
		BloodType:      strings.TrimSpace(params.BloodType),
		GeneticMarkers: params.GeneticMarkers,
		Age:            params.Age,
		MedicalHistory: params.MedicalHistory,
		Location:       strings.TrimSpace(params.Location),
	}
	if params.Urgency != "" {
		urgency, err := domain.ParseUrgency(params.Urgency)
		if err != nil {
			return s.createErrorResult("Invalid urgency", err), nil, nil
		}
		attrs.Urgency = urgency
	}

	sample, err := s.engine.Ingest(ctx, upload, params.SampleType, attrs)
	if err != nil {
		return s.createErrorResult("Ingestion failed", err), nil, nil
	}
	s.store.PutSample(sample)

	return s.createJSONResult(fmt.Sprintf("Ingested %s sample %s", sample.SampleType, sample.ID), sample)
}

func uploadFromParams(params IngestSampleParams) (domain.Upload, error) {
	upload := domain.Upload{Filename: params.Filename, Size: params.Size}

	if params.Content != "" {
		raw, err := base64.StdEncoding.DecodeString(params.Content)
		if err != nil {
			return upload, domain.NewValidationError("content", "must be base64 encoded", nil).Wrap(domain.ErrInvalidArgument)
		}
		sum := sha256.Sum256(raw)
		upload.SHA256 = hex.EncodeToString(sum[:])
		upload.Size = int64(len(raw))
		return upload, nil
	}

	digest := strings.ToLower(strings.TrimSpace(params.SHA256))
	if _, err := hex.DecodeString(digest); err != nil || len(digest) != sha256.Size*2 {
		return upload, domain.NewValidationError("sha256", "content or a hex sha256 digest is required", params.SHA256).Wrap(domain.ErrInvalidArgument)
	}
	if upload.Size < 0 {
		return upload, domain.NewValidationError("size", "must not be negative", upload.Size).Wrap(domain.ErrInvalidArgument)
	}
	upload.SHA256 = digest
	return upload, nil
}

func (s *Server) handleFindMatches(ctx context.Context, _ *mcp.CallToolRequest, params FindMatchesParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "find_matches").Debug("Tool invoked")
	return s.findMatches(ctx, params, s.matching.DefaultCount, s.engine.FindMatches)
}

func (s *Server) handleFindMoreMatches(ctx context.Context, _ *mcp.CallToolRequest, params FindMatchesParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "find_more_matches").Debug("Tool invoked")
	return s.findMatches(ctx, params, s.matching.DefaultMoreCount, s.engine.FindMoreMatches)
}

func (s *Server) findMatches(
	ctx context.Context,
	params FindMatchesParams,
	fallback int,
	find func(context.Context, *domain.BioSample, int) ([]*domain.MatchResult, error),
) (*mcp.CallToolResult, any, error) {
	if params.SampleID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("sample_id is required")), nil, nil
	}
	sample, err := s.store.GetSample(params.SampleID)
	if err != nil {
		return s.createErrorResult("Unknown sample", err), nil, nil
	}

	count := params.Count
	if count == 0 {
		count = fallback
	}
	results, err := find(ctx, sample, count)
	if err != nil {
		return s.createErrorResult("Matching failed", err), nil, nil
	}
	s.store.PutResults(ctx, sample.ID, results)

	out := MatchesResult{SampleID: sample.ID, Count: len(results), Results: results}
	summary := fmt.Sprintf("Found %d matches for %s", len(results), sample.ID)
	if len(results) > 0 {
		best := results[0]
		summary += fmt.Sprintf("; best %s at %d (%s)", best.DonorID, best.CompositeScore, best.CompatibilityTier)
	}
	return s.createJSONResult(summary, out)
}

func (s *Server) handleListModels(_ context.Context, _ *mcp.CallToolRequest, _ ListModelsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_models").Debug("Tool invoked")
	models := s.engine.ListModels()
	return s.createJSONResult(fmt.Sprintf("%d models registered", len(models)), models)
}

// createJSONResult returns a summary line followed by the JSON payload
func (s *Server) createJSONResult(summary string, payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	text := fmt.Sprintf("Error: %s", message)
	if err != nil {
		text += fmt.Sprintf(" - %v", err)
		s.logger.WithError(err).WithField("code", domain.ErrorCode(err)).Warn(message)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
