package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomatch-server/internal/domain"
)

// fixedScorer returns a fixed score per factor name
type fixedScorer map[string]float64

func (s fixedScorer) Score(name string, _ *domain.BioSample, _ domain.Candidate) float64 {
	return s[name]
}

// indexScorer scores later candidates higher
type indexScorer struct{}

func (indexScorer) Score(_ string, _ *domain.BioSample, c domain.Candidate) float64 {
	return float64(60 + c.Index*4)
}

type fixedBaseline float64

func (b fixedBaseline) Baseline(*domain.BioSample, domain.Candidate) float64 {
	return float64(b)
}

type failingExtractor struct{ err error }

func (x failingExtractor) Extract(context.Context, domain.Upload, domain.SampleType, domain.SampleAttributes) (domain.SampleAttributes, error) {
	return domain.SampleAttributes{}, x.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%03d", n.Add(1))
	}
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(domain.MatchingConfig{Seed: 42}, testLogger(), opts...)
}

func ingest(t *testing.T, e *Engine, sampleType string, attrs domain.SampleAttributes) *domain.BioSample {
	t.Helper()
	sample, err := e.Ingest(context.Background(), domain.Upload{Filename: "sample.csv", Size: 128}, sampleType, attrs)
	require.NoError(t, err)
	return sample
}

func factorNames(r *domain.MatchResult) []string {
	names := make([]string, 0, len(r.Factors))
	for _, f := range r.Factors {
		names = append(names, f.Name)
	}
	return names
}

func TestEngine_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects unknown type", func(t *testing.T) {
		e := newTestEngine()
		_, err := e.Ingest(ctx, domain.Upload{}, "unknown-type", domain.SampleAttributes{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidSampleType)
	})

	t.Run("Declared type is case-insensitive", func(t *testing.T) {
		e := newTestEngine()
		for declared, expected := range map[string]domain.SampleType{
			"Blood-Cells":      domain.BloodCells,
			"STEM-CELLS":       domain.StemCells,
			"bone marrow":      domain.BoneMarrow,
			"peripheral_blood": domain.PeripheralBlood,
		} {
			sample := ingest(t, e, declared, domain.SampleAttributes{})
			assert.Equal(t, expected, sample.SampleType, declared)
		}
	})

	t.Run("Assigns unique identifiers", func(t *testing.T) {
		e := newTestEngine()
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			sample := ingest(t, e, "saliva", domain.SampleAttributes{})
			assert.False(t, seen[sample.ID], "duplicate id %s", sample.ID)
			seen[sample.ID] = true
			assert.NotEmpty(t, sample.SubjectID)
			assert.False(t, sample.SubmittedAt.IsZero())
		}
	})

	t.Run("Declared extractor leaves absent attributes unset", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "saliva", domain.SampleAttributes{})
		assert.Empty(t, sample.HLATyping)
		assert.Empty(t, sample.BloodType)
		assert.Empty(t, sample.GeneticMarkers)
		assert.Equal(t, domain.UrgencyMedium, sample.Urgency)
		assert.Equal(t, UnknownLocation, sample.Location)
	})

	t.Run("Declared attributes are kept", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "bone-marrow", domain.SampleAttributes{
			SubjectID: "patient_1",
			HLATyping: []string{"A*02:01"},
			BloodType: "AB-",
			Age:       34,
			Urgency:   domain.UrgencyHigh,
			Location:  "Austin, TX",
		})
		assert.Equal(t, "patient_1", sample.SubjectID)
		assert.Equal(t, []string{"A*02:01"}, sample.HLATyping)
		assert.Equal(t, "AB-", sample.BloodType)
		assert.Equal(t, 34, sample.Age)
		assert.Equal(t, domain.UrgencyHigh, sample.Urgency)
		assert.Equal(t, "Austin, TX", sample.Location)
	})

	t.Run("Synthetic extractor fills absent attributes", func(t *testing.T) {
		e := NewEngine(domain.MatchingConfig{Seed: 7, SynthesizeAttributes: true}, testLogger())
		sample := ingest(t, e, "stem-cells", domain.SampleAttributes{BloodType: "O-"})
		assert.Equal(t, "O-", sample.BloodType)
		assert.GreaterOrEqual(t, len(sample.HLATyping), 2)
		assert.LessOrEqual(t, len(sample.HLATyping), 5)
		assert.NotEmpty(t, sample.GeneticMarkers)
		assert.GreaterOrEqual(t, sample.Age, 18)
		assert.True(t, sample.Urgency.Valid())
		assert.Equal(t, SyntheticLocation, sample.Location)
	})

	t.Run("Rejects invalid declared attributes", func(t *testing.T) {
		e := newTestEngine()
		_, err := e.Ingest(ctx, domain.Upload{}, "saliva", domain.SampleAttributes{BloodType: "Z+"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = e.Ingest(ctx, domain.Upload{}, "saliva", domain.SampleAttributes{Urgency: "urgent"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Extractor failures surface as feature extraction errors", func(t *testing.T) {
		e := newTestEngine(WithExtractor(failingExtractor{err: fmt.Errorf("unreadable upload")}))
		_, err := e.Ingest(ctx, domain.Upload{}, "saliva", domain.SampleAttributes{})
		assert.ErrorIs(t, err, domain.ErrFeatureExtraction)
		assert.NotErrorIs(t, err, domain.ErrInvalidSampleType)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		e := newTestEngine()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Ingest(cctx, domain.Upload{}, "saliva", domain.SampleAttributes{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEngine_FindMatches(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns count results", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "blood-cells", domain.SampleAttributes{BloodType: "A+"})
		for _, count := range []int{1, 5, 10} {
			results, err := e.FindMatches(ctx, sample, count)
			require.NoError(t, err)
			assert.Len(t, results, count)
		}
	})

	t.Run("Scores are bounded and sorted", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "bone-marrow", domain.SampleAttributes{
			HLATyping:      []string{"A*01:01", "B*08:01"},
			BloodType:      "B+",
			GeneticMarkers: []string{"TP53"},
		})
		results, err := e.FindMatches(ctx, sample, 25)
		require.NoError(t, err)

		for i, r := range results {
			assert.GreaterOrEqual(t, r.CompositeScore, 0)
			assert.LessOrEqual(t, r.CompositeScore, 100)
			assert.GreaterOrEqual(t, r.Confidence, 80.0)
			assert.LessOrEqual(t, r.Confidence, 100.0)
			assert.NotEmpty(t, r.Recommendations)
			assert.Len(t, r.Factors, 5)
			for _, f := range r.Factors {
				assert.GreaterOrEqual(t, f.Score, 0.0)
				assert.LessOrEqual(t, f.Score, 100.0)
			}
			assert.Equal(t, ClassifyCompatibility(r.CompositeScore), r.CompatibilityTier)
			if i > 0 {
				assert.GreaterOrEqual(t, results[i-1].CompositeScore, r.CompositeScore)
			}
		}
	})

	t.Run("Out of range scorer output is clamped", func(t *testing.T) {
		e := newTestEngine(
			WithScorer(fixedScorer{domain.FactorAgeCompatibility: 250, domain.FactorGeographicProximity: -40}),
			WithBaseline(fixedBaseline(100)),
		)
		sample := ingest(t, e, "saliva", domain.SampleAttributes{})
		results, err := e.FindMatches(ctx, sample, 1)
		require.NoError(t, err)
		assert.Equal(t, 100.0, results[0].Factors[0].Score)
		assert.Equal(t, 0.0, results[0].Factors[1].Score)
		assert.Equal(t, 60, results[0].CompositeScore)
	})

	t.Run("Only age and geography without optional attributes", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "saliva", domain.SampleAttributes{HLATyping: []string{}})
		results, err := e.FindMatches(ctx, sample, 5)
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, []string{domain.FactorAgeCompatibility, domain.FactorGeographicProximity}, factorNames(r))
		}
	})

	t.Run("Deterministic scorer", func(t *testing.T) {
		e := newTestEngine(
			WithScorer(fixedScorer{
				domain.FactorBloodType:           80,
				domain.FactorAgeCompatibility:    90,
				domain.FactorGeographicProximity: 70,
			}),
			WithBaseline(fixedBaseline(90)),
		)
		sample := ingest(t, e, "blood-cells", domain.SampleAttributes{BloodType: "O+", Urgency: domain.UrgencyLow})
		results, err := e.FindMatches(ctx, sample, 3)
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, 82, r.CompositeScore)
			assert.Equal(t, domain.TierGood, r.CompatibilityTier)
			assert.Equal(t, domain.RiskHigh, r.RiskTier)
			assert.Equal(t, moderateRecommendations, r.Recommendations)
			assert.Equal(t, sample.SubjectID, r.RecipientID)
			assert.Equal(t, sample.ID, r.SampleID)
			assert.Equal(t, []string{"deep_learning", "random_forest", "svm", "xgboost"}, r.Models)
			assert.Regexp(t, `^D\d{3}$`, r.DonorID)
		}
	})

	t.Run("Sorted descending by composite", func(t *testing.T) {
		e := newTestEngine(WithScorer(indexScorer{}), WithBaseline(fixedBaseline(70)))
		sample := ingest(t, e, "saliva", domain.SampleAttributes{})
		results, err := e.FindMatches(ctx, sample, 8)
		require.NoError(t, err)
		for i := 1; i < len(results); i++ {
			assert.Greater(t, results[i-1].CompositeScore, results[i].CompositeScore)
		}
	})

	t.Run("Ties keep generation order", func(t *testing.T) {
		e := newTestEngine(
			WithScorer(fixedScorer{domain.FactorAgeCompatibility: 90, domain.FactorGeographicProximity: 90}),
			WithBaseline(fixedBaseline(90)),
			WithIDGenerator(sequentialIDs()),
		)
		sample := &domain.BioSample{ID: "sample_x", SubjectID: "subject_x", SampleType: domain.Saliva, Urgency: domain.UrgencyLow}
		results, err := e.FindMatches(ctx, sample, 4)
		require.NoError(t, err)
		for i, r := range results {
			assert.Equal(t, fmt.Sprintf("match_%03d", i+1), r.ID)
		}
	})

	t.Run("Urgency escalation", func(t *testing.T) {
		e := newTestEngine()
		high := ingest(t, e, "stem-cells", domain.SampleAttributes{Urgency: domain.UrgencyHigh})
		low := ingest(t, e, "stem-cells", domain.SampleAttributes{Urgency: domain.UrgencyLow})

		highResults, err := e.FindMatches(ctx, high, 5)
		require.NoError(t, err)
		for _, r := range highResults {
			assert.Subset(t, r.Recommendations, UrgencyRecommendations)
		}

		lowResults, err := e.FindMatches(ctx, low, 5)
		require.NoError(t, err)
		for _, r := range lowResults {
			for _, esc := range UrgencyRecommendations {
				assert.NotContains(t, r.Recommendations, esc)
			}
		}
	})

	t.Run("Rejects non-positive count", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "saliva", domain.SampleAttributes{})
		for _, count := range []int{0, -1} {
			_, err := e.FindMatches(ctx, sample, count)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		}
	})

	t.Run("Rejects count above maximum", func(t *testing.T) {
		e := NewEngine(domain.MatchingConfig{MaxCount: 3}, testLogger())
		sample := ingest(t, e, "saliva", domain.SampleAttributes{})
		_, err := e.FindMatches(ctx, sample, 4)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Rejects malformed sample", func(t *testing.T) {
		e := newTestEngine()
		_, err := e.FindMatches(ctx, nil, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = e.FindMatches(ctx, &domain.BioSample{SampleType: domain.Saliva}, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = e.FindMatches(ctx, &domain.BioSample{ID: "sample_1"}, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Cancelled context yields no partial results", func(t *testing.T) {
		e := newTestEngine()
		sample := ingest(t, e, "saliva", domain.SampleAttributes{})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		results, err := e.FindMatches(cctx, sample, 5)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, results)
	})
}

func TestEngine_EndToEndBloodCells(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	sample, err := e.Ingest(ctx, domain.Upload{Filename: "cbc.pdf", Size: 2048}, "blood-cells", domain.SampleAttributes{
		BloodType: "O+",
		Urgency:   domain.UrgencyHigh,
		HLATyping: []string{},
	})
	require.NoError(t, err)

	results, err := e.FindMatches(ctx, sample, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Contains(t, factorNames(r), domain.FactorBloodType)
		assert.NotContains(t, factorNames(r), domain.FactorHLATyping)
		assert.Subset(t, r.Recommendations, UrgencyRecommendations)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].CompositeScore, r.CompositeScore)
		}
	}
}

func TestEngine_FindMoreMatches(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	sample := ingest(t, e, "tissue-biopsy", domain.SampleAttributes{})

	first, err := e.FindMatches(ctx, sample, 5)
	require.NoError(t, err)
	more, err := e.FindMoreMatches(ctx, sample, 3)
	require.NoError(t, err)
	assert.Len(t, more, 3)

	ids := make(map[string]bool)
	for _, r := range append(first, more...) {
		assert.False(t, ids[r.ID], "duplicate result id %s", r.ID)
		ids[r.ID] = true
	}

	_, err = e.FindMoreMatches(ctx, sample, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestEngine_ListModels(t *testing.T) {
	e := newTestEngine()
	models := e.ListModels()
	require.Len(t, models, 4)

	models[0].Name = "mutated"
	assert.NotEqual(t, "mutated", e.ListModels()[0].Name)

	custom := NewEngine(domain.MatchingConfig{Models: []domain.ModelDescriptor{{Name: "gbm", Type: "boosting", Accuracy: 0.9}}}, testLogger())
	assert.Equal(t, []domain.ModelDescriptor{{Name: "gbm", Type: "boosting", Accuracy: 0.9}}, custom.ListModels())
}

func TestEngine_ConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sample, err := e.Ingest(ctx, domain.Upload{}, "peripheral-blood", domain.SampleAttributes{BloodType: "A-"})
			if err != nil {
				errs <- err
				return
			}
			if _, err := e.FindMatches(ctx, sample, 5); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
