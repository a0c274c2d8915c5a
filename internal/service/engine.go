package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/domain"
)

// DefaultMaxCount bounds a single matching call when configuration leaves it unset
const DefaultMaxCount = 50

// Observer receives engine events, e.g. for metrics
type Observer interface {
	ObserveIngest(sampleType domain.SampleType, err error)
	ObserveMatches(sampleType domain.SampleType, results []*domain.MatchResult, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveIngest(domain.SampleType, error) {}

func (noopObserver) ObserveMatches(domain.SampleType, []*domain.MatchResult, time.Duration) {}

// Engine implements domain.MatchingEngine.
// It holds no per-call state; concurrent calls are safe.
type Engine struct {
	logger     *logrus.Logger
	extractor  domain.FeatureExtractor
	scorer     domain.FactorScorer
	baseline   domain.BaselinePrior
	rng        *Rand
	observer   Observer
	models     []domain.ModelDescriptor
	modelNames []string
	maxCount   int
	now        func() time.Time
	newID      func() string
}

// Option customizes an Engine
type Option func(*Engine)

// WithExtractor replaces the feature extractor
func WithExtractor(x domain.FeatureExtractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithScorer replaces the factor scorer
func WithScorer(s domain.FactorScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithBaseline replaces the baseline prior
func WithBaseline(b domain.BaselinePrior) Option {
	return func(e *Engine) { e.baseline = b }
}

// WithRand replaces the source used for confidence and donor labels
func WithRand(r *Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithObserver attaches an engine observer
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock replaces the submission clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the identifier source
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates a matching engine from configuration.
// The model registry is copied and never mutated afterwards.
func NewEngine(cfg domain.MatchingConfig, logger *logrus.Logger, opts ...Option) *Engine {
	rng := NewRand(cfg.Seed)

	models := cfg.Models
	if len(models) == 0 {
		models = domain.DefaultModels()
	}
	registry := make([]domain.ModelDescriptor, len(models))
	copy(registry, models)

	names := make([]string, 0, len(registry))
	for _, m := range registry {
		names = append(names, m.Name)
	}
	sort.Strings(names)

	maxCount := cfg.MaxCount
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}

	e := &Engine{
		logger:     logger,
		rng:        rng,
		scorer:     NewRandomFactorScorer(rng),
		baseline:   NewUniformBaseline(rng),
		observer:   noopObserver{},
		models:     registry,
		modelNames: names,
		maxCount:   maxCount,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	if cfg.SynthesizeAttributes {
		e.extractor = NewSyntheticExtractor(rng)
	} else {
		e.extractor = DeclaredExtractor{}
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListModels returns a copy of the model registry
func (e *Engine) ListModels() []domain.ModelDescriptor {
	out := make([]domain.ModelDescriptor, len(e.models))
	copy(out, e.models)
	return out
}

// MaxCount is the largest count accepted by FindMatches
func (e *Engine) MaxCount() int {
	return e.maxCount
}

// Ingest normalizes an upload and its declared type into a BioSample
func (e *Engine) Ingest(ctx context.Context, upload domain.Upload, declaredType string, attrs domain.SampleAttributes) (*domain.BioSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sampleType, err := domain.ParseSampleType(declaredType)
	if err != nil {
		e.observer.ObserveIngest("", err)
		return nil, fmt.Errorf("ingesting sample: %w", err)
	}

	if err := attrs.Validate(); err != nil {
		e.observer.ObserveIngest(sampleType, err)
		return nil, fmt.Errorf("ingesting sample: %w", err)
	}

	extracted, err := e.extractor.Extract(ctx, upload, sampleType, attrs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, domain.ErrFeatureExtraction) {
			err = fmt.Errorf("%w: %v", domain.ErrFeatureExtraction, err)
		}
		e.observer.ObserveIngest(sampleType, err)
		return nil, fmt.Errorf("ingesting sample: %w", err)
	}
	if err := extracted.Validate(); err != nil {
		err = fmt.Errorf("%w: extractor produced invalid attributes: %v", domain.ErrFeatureExtraction, err)
		e.observer.ObserveIngest(sampleType, err)
		return nil, fmt.Errorf("ingesting sample: %w", err)
	}

	subjectID := extracted.SubjectID
	if subjectID == "" {
		subjectID = "subject_" + e.newID()
	}
	urgency := extracted.Urgency
	if urgency == "" {
		urgency = domain.UrgencyMedium
	}

	sample := &domain.BioSample{
		ID:             "sample_" + e.newID(),
		SubjectID:      subjectID,
		SampleType:     sampleType,
		HLATyping:      extracted.HLATyping,
		BloodType:      extracted.BloodType,
		GeneticMarkers: extracted.GeneticMarkers,
		Age:            extracted.Age,
		MedicalHistory: extracted.MedicalHistory,
		Urgency:        urgency,
		Location:       extracted.Location,
		SubmittedAt:    e.now().UTC(),
		Upload:         upload,
	}

	e.observer.ObserveIngest(sampleType, nil)
	e.logger.WithFields(logrus.Fields{
		"sample_id":   sample.ID,
		"sample_type": sample.SampleType,
		"urgency":     sample.Urgency,
		"upload_size": upload.Size,
	}).Info("Sample ingested")

	return sample, nil
}

// FindMatches synthesizes count candidates, scores them against sample and
// returns them sorted by composite score descending. Ties keep generation order.
func (e *Engine) FindMatches(ctx context.Context, sample *domain.BioSample, count int) ([]*domain.MatchResult, error) {
	return e.match(ctx, sample, count, "Matches generated")
}

// FindMoreMatches produces additional results for a sample already matched.
// Result IDs never repeat those of earlier calls; accumulation is the caller's.
func (e *Engine) FindMoreMatches(ctx context.Context, sample *domain.BioSample, additionalCount int) ([]*domain.MatchResult, error) {
	return e.match(ctx, sample, additionalCount, "Additional matches generated")
}

func (e *Engine) match(ctx context.Context, sample *domain.BioSample, count int, logMsg string) ([]*domain.MatchResult, error) {
	if count < 1 || count > e.maxCount {
		return nil, domain.NewValidationError("count", fmt.Sprintf("must be between 1 and %d", e.maxCount), count).Wrap(domain.ErrInvalidArgument)
	}
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]*domain.MatchResult, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, e.generateMatch(sample, i))
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].CompositeScore > results[b].CompositeScore
	})

	elapsed := time.Since(start)
	e.observer.ObserveMatches(sample.SampleType, results, elapsed)
	e.logger.WithFields(logrus.Fields{
		"sample_id":  sample.ID,
		"count":      len(results),
		"best_score": results[0].CompositeScore,
		"elapsed":    elapsed,
	}).Info(logMsg)

	return results, nil
}

func (e *Engine) generateMatch(sample *domain.BioSample, index int) *domain.MatchResult {
	start := time.Now()
	candidate := domain.Candidate{
		DonorID: fmt.Sprintf("D%03d", e.rng.IntN(999)+1),
		Index:   index,
	}

	factors := make([]domain.MatchFactor, 0, len(domain.FactorSpecs))
	for _, spec := range domain.FactorSpecs {
		if !spec.Applies(sample) {
			continue
		}
		factors = append(factors, domain.MatchFactor{
			Name:        spec.Name,
			Score:       clamp(e.scorer.Score(spec.Name, sample, candidate), 0, 100),
			Weight:      spec.Weight,
			Description: spec.Description,
		})
	}

	baseline := clamp(e.baseline.Baseline(sample, candidate), 0, 100)
	composite := CompositeScore(factors, baseline)

	models := make([]string, len(e.modelNames))
	copy(models, e.modelNames)

	return &domain.MatchResult{
		ID:                "match_" + e.newID(),
		SampleID:          sample.ID,
		DonorID:           candidate.DonorID,
		RecipientID:       sample.SubjectID,
		CompositeScore:    composite,
		CompatibilityTier: ClassifyCompatibility(composite),
		Factors:           factors,
		RiskTier:          AssessRisk(composite, domain.MeanScore(factors)),
		Recommendations:   Recommend(composite, sample.Urgency),
		Confidence:        e.rng.Uniform(80, 100),
		LatencyMs:         float64(time.Since(start).Microseconds()) / 1000,
		Models:            models,
	}
}
