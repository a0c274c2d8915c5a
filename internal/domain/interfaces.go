package domain

import (
	"context"
)

// FeatureExtractor derives sample attributes from an upload.
// Declared attributes are passed in; the extractor fills what it can and
// returns the completed set. Failures must wrap ErrFeatureExtraction.
type FeatureExtractor interface {
	Extract(ctx context.Context, upload Upload, sampleType SampleType, declared SampleAttributes) (SampleAttributes, error)
}

// FactorScorer scores one factor of a sample against a candidate in [0,100]
type FactorScorer interface {
	Score(factorName string, sample *BioSample, candidate Candidate) float64
}

// BaselinePrior draws the donor-pool quality prior in [70,100]
type BaselinePrior interface {
	Baseline(sample *BioSample, candidate Candidate) float64
}

// MatchingEngine ingests samples and produces ranked match results
type MatchingEngine interface {
	Ingest(ctx context.Context, upload Upload, declaredType string, attrs SampleAttributes) (*BioSample, error)
	FindMatches(ctx context.Context, sample *BioSample, count int) ([]*MatchResult, error)
	FindMoreMatches(ctx context.Context, sample *BioSample, additionalCount int) ([]*MatchResult, error)
	ListModels() []ModelDescriptor
}

// Notifier delivers donor contact requests
type Notifier interface {
	ContactDonor(ctx context.Context, req ContactRequest) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetMatchingConfig() *MatchingConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
