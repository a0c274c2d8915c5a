package service

import (
	"context"

	"github.com/biomatch-server/internal/domain"
)

// UnknownLocation is recorded when no locality is declared
const UnknownLocation = "unknown"

// DeclaredExtractor keeps the caller's declared attributes and leaves
// everything else unset, so absent factors drop out of scoring.
type DeclaredExtractor struct{}

// Extract implements domain.FeatureExtractor
func (DeclaredExtractor) Extract(ctx context.Context, _ domain.Upload, _ domain.SampleType, declared domain.SampleAttributes) (domain.SampleAttributes, error) {
	if err := ctx.Err(); err != nil {
		return domain.SampleAttributes{}, err
	}
	out := copyAttributes(declared)
	if out.Urgency == "" {
		out.Urgency = domain.UrgencyMedium
	}
	if out.Location == "" {
		out.Location = UnknownLocation
	}
	return out, nil
}

var (
	mockHLATypes = []string{"A*01:01", "A*02:01", "B*07:02", "B*08:01", "C*07:01", "C*07:02"}
	mockMarkers  = []string{"BRCA1", "BRCA2", "TP53", "KRAS", "EGFR", "PIK3CA"}
	mockHistory  = []string{"Hypertension", "Diabetes Type 2", "Asthma", "Allergies", "Previous Surgery"}
	mockUrgency  = []domain.Urgency{domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh}
)

// SyntheticLocation is the locality assigned by SyntheticExtractor
const SyntheticLocation = "San Francisco, CA"

// SyntheticExtractor fabricates plausible placeholder values for every
// attribute the caller left unset. Fabricated values take part in scoring.
type SyntheticExtractor struct {
	rng *Rand
}

// NewSyntheticExtractor creates an extractor drawing from rng
func NewSyntheticExtractor(rng *Rand) *SyntheticExtractor {
	return &SyntheticExtractor{rng: rng}
}

// Extract implements domain.FeatureExtractor
func (x *SyntheticExtractor) Extract(ctx context.Context, _ domain.Upload, _ domain.SampleType, declared domain.SampleAttributes) (domain.SampleAttributes, error) {
	if err := ctx.Err(); err != nil {
		return domain.SampleAttributes{}, err
	}
	out := copyAttributes(declared)

	if len(out.HLATyping) == 0 {
		out.HLATyping = prefix(mockHLATypes, x.rng.IntN(4)+2)
	}
	if out.BloodType == "" {
		out.BloodType = domain.BloodTypes[x.rng.IntN(len(domain.BloodTypes))]
	}
	if len(out.GeneticMarkers) == 0 {
		out.GeneticMarkers = prefix(mockMarkers, x.rng.IntN(3)+1)
	}
	if len(out.MedicalHistory) == 0 {
		out.MedicalHistory = prefix(mockHistory, x.rng.IntN(3))
	}
	if out.Age == 0 {
		out.Age = x.rng.IntN(60) + 18
	}
	if out.Urgency == "" {
		out.Urgency = mockUrgency[x.rng.IntN(len(mockUrgency))]
	}
	if out.Location == "" {
		out.Location = SyntheticLocation
	}
	return out, nil
}

func prefix(values []string, n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	copy(out, values[:n])
	return out
}

func copyAttributes(a domain.SampleAttributes) domain.SampleAttributes {
	out := a
	out.HLATyping = cloneStrings(a.HLATyping)
	out.GeneticMarkers = cloneStrings(a.GeneticMarkers)
	out.MedicalHistory = cloneStrings(a.MedicalHistory)
	return out
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
