package domain

// Factor names. Each has a fixed weight and description.
const (
	FactorHLATyping           = "HLA Typing"
	FactorBloodType           = "Blood Type"
	FactorGeneticMarkers      = "Genetic Markers"
	FactorAgeCompatibility    = "Age Compatibility"
	FactorGeographicProximity = "Geographic Proximity"
)

// FactorSpec is the static definition of a scored dimension
type FactorSpec struct {
	Name        string
	Weight      float64
	Description string
}

// FactorSpecs holds every factor in evaluation order
var FactorSpecs = []FactorSpec{
	{FactorHLATyping, 0.35, "Human Leukocyte Antigen compatibility analysis"},
	{FactorBloodType, 0.25, "ABO and Rh blood group compatibility"},
	{FactorGeneticMarkers, 0.20, "Genetic marker compatibility and disease risk factors"},
	{FactorAgeCompatibility, 0.10, "Age-related compatibility factors"},
	{FactorGeographicProximity, 0.10, "Distance and logistics considerations"},
}

// Applies reports whether the factor participates in scoring for s.
// Age and geography always apply; the rest need the attribute to be set.
func (f FactorSpec) Applies(s *BioSample) bool {
	switch f.Name {
	case FactorHLATyping:
		return len(s.HLATyping) > 0
	case FactorBloodType:
		return s.BloodType != ""
	case FactorGeneticMarkers:
		return len(s.GeneticMarkers) > 0
	default:
		return true
	}
}

// MatchFactor is one scored dimension of a match
type MatchFactor struct {
	Name        string  `json:"name" yaml:"name"`
	Score       float64 `json:"score" yaml:"score"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Description string  `json:"description" yaml:"description"`
}

// CompatibilityTier is the coarse label derived from the composite score
type CompatibilityTier string

const (
	TierExcellent CompatibilityTier = "Excellent"
	TierVeryGood  CompatibilityTier = "Very Good"
	TierGood      CompatibilityTier = "Good"
	TierFair      CompatibilityTier = "Fair"
	TierPoor      CompatibilityTier = "Poor"
)

// RiskTier is the coarse transplant risk label
type RiskTier string

const (
	RiskLow      RiskTier = "Low"
	RiskMedium   RiskTier = "Medium"
	RiskHigh     RiskTier = "High"
	RiskCritical RiskTier = "Critical"
)

// Candidate is a synthesized donor scored against a sample
type Candidate struct {
	DonorID string
	Index   int
}

// MatchResult is the immutable outcome of scoring a sample against one candidate
type MatchResult struct {
	ID                string            `json:"id" yaml:"id"`
	SampleID          string            `json:"sample_id" yaml:"sample_id"`
	DonorID           string            `json:"donor_id" yaml:"donor_id"`
	RecipientID       string            `json:"recipient_id" yaml:"recipient_id"`
	CompositeScore    int               `json:"composite_score" yaml:"composite_score"`
	CompatibilityTier CompatibilityTier `json:"compatibility_tier" yaml:"compatibility_tier"`
	Factors           []MatchFactor     `json:"factors" yaml:"factors"`
	RiskTier          RiskTier          `json:"risk_tier" yaml:"risk_tier"`
	Recommendations   []string          `json:"recommendations" yaml:"recommendations"`
	Confidence        float64           `json:"confidence" yaml:"confidence"`
	LatencyMs         float64           `json:"latency_ms" yaml:"latency_ms"`
	Models            []string          `json:"models" yaml:"models"`
}

// MeanFactorScore returns the unweighted mean of the factor scores
func (m *MatchResult) MeanFactorScore() float64 {
	return MeanScore(m.Factors)
}

// MeanScore returns the unweighted mean of scores, or 0 for no factors
func MeanScore(factors []MatchFactor) float64 {
	if len(factors) == 0 {
		return 0
	}
	var sum float64
	for _, f := range factors {
		sum += f.Score
	}
	return sum / float64(len(factors))
}

// ModelDescriptor is provenance metadata for a named scoring model.
// It carries no executable behaviour.
type ModelDescriptor struct {
	Name     string  `json:"name" yaml:"name" mapstructure:"name"`
	Type     string  `json:"type" yaml:"type" mapstructure:"type"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy" mapstructure:"accuracy"`
}

// DefaultModels is the registry used when configuration supplies none
func DefaultModels() []ModelDescriptor {
	return []ModelDescriptor{
		{Name: "xgboost", Type: "gradient_boosting", Accuracy: 0.97},
		{Name: "random_forest", Type: "ensemble", Accuracy: 0.95},
		{Name: "deep_learning", Type: "neural_network", Accuracy: 0.98},
		{Name: "svm", Type: "support_vector", Accuracy: 0.93},
	}
}
