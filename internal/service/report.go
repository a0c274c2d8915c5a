package service

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/biomatch-server/internal/domain"
)

// ReportFormat selects the report encoding
type ReportFormat string

const (
	ReportJSON ReportFormat = "json"
	ReportYAML ReportFormat = "yaml"
)

// ParseReportFormat accepts json, yaml or yml; empty means json
func ParseReportFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return ReportJSON, nil
	case "yaml", "yml":
		return ReportYAML, nil
	}
	return "", domain.NewValidationError("format", "must be json or yaml", s).Wrap(domain.ErrInvalidArgument)
}

// ContentType returns the MIME type for the format
func (f ReportFormat) ContentType() string {
	if f == ReportYAML {
		return "application/yaml"
	}
	return "application/json"
}

// MatchReport is the downloadable summary of a sample's matches
type MatchReport struct {
	ID          string                   `json:"id" yaml:"id"`
	Sample      *domain.BioSample        `json:"sample" yaml:"sample"`
	Summary     ReportSummary            `json:"summary" yaml:"summary"`
	Results     []*domain.MatchResult    `json:"results" yaml:"results"`
	Models      []domain.ModelDescriptor `json:"models" yaml:"models"`
	GeneratedAt time.Time                `json:"generated_at" yaml:"generated_at"`
}

// ReportSummary aggregates a set of results
type ReportSummary struct {
	Count      int                              `json:"count" yaml:"count"`
	BestScore  int                              `json:"best_score" yaml:"best_score"`
	MeanScore  float64                          `json:"mean_score" yaml:"mean_score"`
	TierCounts map[domain.CompatibilityTier]int `json:"tier_counts" yaml:"tier_counts"`
	RiskCounts map[domain.RiskTier]int          `json:"risk_counts" yaml:"risk_counts"`
}

// ReportGenerator builds match reports
type ReportGenerator struct {
	models []domain.ModelDescriptor
	now    func() time.Time
}

// NewReportGenerator creates a generator stamping reports with models
func NewReportGenerator(models []domain.ModelDescriptor) *ReportGenerator {
	return &ReportGenerator{models: models, now: time.Now}
}

// Generate summarizes results for sample
func (g *ReportGenerator) Generate(sample *domain.BioSample, results []*domain.MatchResult) *MatchReport {
	summary := ReportSummary{
		Count:      len(results),
		TierCounts: make(map[domain.CompatibilityTier]int),
		RiskCounts: make(map[domain.RiskTier]int),
	}

	var total int
	for _, r := range results {
		total += r.CompositeScore
		if r.CompositeScore > summary.BestScore {
			summary.BestScore = r.CompositeScore
		}
		summary.TierCounts[r.CompatibilityTier]++
		summary.RiskCounts[r.RiskTier]++
	}
	if len(results) > 0 {
		summary.MeanScore = float64(total) / float64(len(results))
	}

	return &MatchReport{
		ID:          "report_" + uuid.New().String(),
		Sample:      sample,
		Summary:     summary,
		Results:     results,
		Models:      g.models,
		GeneratedAt: g.now().UTC(),
	}
}

// Encode writes report to w in the requested format
func (g *ReportGenerator) Encode(w io.Writer, report *MatchReport, format ReportFormat) error {
	switch format {
	case ReportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding json report: %w", err)
		}
		return nil
	}
}
