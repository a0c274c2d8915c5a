package service

import (
	"math"

	"github.com/biomatch-server/internal/domain"
)

// Composite score blend
const (
	factorBlend   = 0.8
	baselineBlend = 0.2
)

// UrgencyRecommendations are appended for high-urgency samples
var UrgencyRecommendations = []string{
	"Expedite all testing procedures",
	"Prepare backup donor options",
}

// recommendation ladder keyed by composite thresholds 95 / 85 / 75 / else
var (
	excellentRecommendations = []string{
		"Proceed with standard matching protocol",
		"Schedule compatibility confirmation tests",
	}
	strongRecommendations = []string{
		"Conduct additional HLA typing",
		"Consider crossmatch testing",
		"Monitor for potential complications",
	}
	moderateRecommendations = []string{
		"Extensive pre-transplant testing required",
		"Consider alternative donors",
		"Implement enhanced monitoring protocols",
	}
	weakRecommendations = []string{
		"High-risk match - extensive evaluation needed",
		"Consider experimental protocols",
		"Seek second opinion from specialist",
	}
)

// CompositeScore blends the weighted factor average with the baseline prior,
// rounded and clamped to [0,100]
func CompositeScore(factors []domain.MatchFactor, baseline float64) int {
	var weighted, totalWeight float64
	for _, f := range factors {
		weighted += f.Score * f.Weight
		totalWeight += f.Weight
	}

	var weightedAvg float64
	if totalWeight > 0 {
		weightedAvg = weighted / totalWeight
	}

	composite := math.Round(weightedAvg*factorBlend + baseline*baselineBlend)
	return int(clamp(composite, 0, 100))
}

// ClassifyCompatibility maps a composite score onto its tier
func ClassifyCompatibility(composite int) domain.CompatibilityTier {
	switch {
	case composite >= 95:
		return domain.TierExcellent
	case composite >= 90:
		return domain.TierVeryGood
	case composite >= 80:
		return domain.TierGood
	case composite >= 70:
		return domain.TierFair
	default:
		return domain.TierPoor
	}
}

// AssessRisk derives the risk tier. Branches are evaluated in order and the
// first match wins, so a high mean cannot lift a composite below 85 out of High.
func AssessRisk(composite int, meanFactorScore float64) domain.RiskTier {
	switch {
	case composite >= 95 && meanFactorScore >= 90:
		return domain.RiskLow
	case composite >= 85 && meanFactorScore >= 80:
		return domain.RiskMedium
	case composite >= 75:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// Recommend returns the advisory actions for a composite score and urgency
func Recommend(composite int, urgency domain.Urgency) []string {
	var base []string
	switch {
	case composite >= 95:
		base = excellentRecommendations
	case composite >= 85:
		base = strongRecommendations
	case composite >= 75:
		base = moderateRecommendations
	default:
		base = weakRecommendations
	}

	recs := make([]string, 0, len(base)+len(UrgencyRecommendations))
	recs = append(recs, base...)
	if urgency == domain.UrgencyHigh {
		recs = append(recs, UrgencyRecommendations...)
	}
	return recs
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
