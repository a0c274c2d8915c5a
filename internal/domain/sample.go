// Package domain contains the bio-sample matching entities: samples, scored
// match results, review requests, configuration and the error taxonomy.
package domain

import (
	"strings"
	"time"
)

// SampleType is the closed set of bio-sample kinds accepted at ingestion
type SampleType string

const (
	StemCells       SampleType = "stem-cells"
	BloodCells      SampleType = "blood-cells"
	BoneMarrow      SampleType = "bone-marrow"
	TissueBiopsy    SampleType = "tissue-biopsy"
	Saliva          SampleType = "saliva"
	PeripheralBlood SampleType = "peripheral-blood"
)

// SampleTypes lists every accepted sample type in display order
var SampleTypes = []SampleType{
	StemCells, BloodCells, BoneMarrow, TissueBiopsy, Saliva, PeripheralBlood,
}

// String returns the hyphenated form of the sample type
func (s SampleType) String() string {
	return string(s)
}

// Valid reports whether s is one of the closed enumeration
func (s SampleType) Valid() bool {
	for _, t := range SampleTypes {
		if s == t {
			return true
		}
	}
	return false
}

// ParseSampleType maps a declared type onto the enumeration.
// Matching is case-insensitive; spaces and underscores are read as hyphens.
func ParseSampleType(declared string) (SampleType, error) {
	normalized := strings.ToLower(strings.TrimSpace(declared))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)

	st := SampleType(normalized)
	if !st.Valid() {
		return "", NewValidationError("sample_type", ErrInvalidSampleType.Error(), declared).Wrap(ErrInvalidSampleType)
	}
	return st, nil
}

// Urgency expresses how quickly the subject needs a match
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is low, medium or high
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// ParseUrgency parses a case-insensitive urgency label
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", NewValidationError("urgency", "must be one of low, medium, high", s).Wrap(ErrInvalidArgument)
	}
	return u, nil
}

// BloodTypes are the accepted ABO/Rh designations
var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// ValidBloodType reports whether bt is a known ABO/Rh designation
func ValidBloodType(bt string) bool {
	for _, t := range BloodTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// BioSample is the normalized, immutable record produced by ingestion
type BioSample struct {
	ID             string     `json:"id" yaml:"id"`
	SubjectID      string     `json:"subject_id" yaml:"subject_id"`
	SampleType     SampleType `json:"sample_type" yaml:"sample_type"`
	HLATyping      []string   `json:"hla_typing,omitempty" yaml:"hla_typing,omitempty"`
	BloodType      string     `json:"blood_type,omitempty" yaml:"blood_type,omitempty"`
	GeneticMarkers []string   `json:"genetic_markers,omitempty" yaml:"genetic_markers,omitempty"`
	Age            int        `json:"age" yaml:"age"`
	MedicalHistory []string   `json:"medical_history,omitempty" yaml:"medical_history,omitempty"`
	Urgency        Urgency    `json:"urgency" yaml:"urgency"`
	Location       string     `json:"location" yaml:"location"`
	SubmittedAt    time.Time  `json:"submitted_at" yaml:"submitted_at"`
	Upload         Upload     `json:"upload" yaml:"upload"`
}

// Validate checks the fields the matcher depends on
func (s *BioSample) Validate() error {
	if s == nil {
		return NewValidationError("sample", "sample is required", nil).Wrap(ErrInvalidArgument)
	}
	if s.ID == "" {
		return NewValidationError("id", "sample id is required", s.ID).Wrap(ErrInvalidArgument)
	}
	if !s.SampleType.Valid() {
		return NewValidationError("sample_type", "sample type is missing or unknown", s.SampleType).Wrap(ErrInvalidArgument)
	}
	return nil
}

// Upload identifies the uploaded payload. Contents are never inspected.
type Upload struct {
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Size     int64  `json:"size" yaml:"size"`
	SHA256   string `json:"sha256" yaml:"sha256"`
}

// SampleAttributes are the caller-declared ancillary attributes of a sample.
// Zero values mean "not supplied".
type SampleAttributes struct {
	SubjectID      string   `json:"subject_id,omitempty"`
	HLATyping      []string `json:"hla_typing,omitempty"`
	BloodType      string   `json:"blood_type,omitempty"`
	GeneticMarkers []string `json:"genetic_markers,omitempty"`
	Age            int      `json:"age,omitempty"`
	MedicalHistory []string `json:"medical_history,omitempty"`
	Urgency        Urgency  `json:"urgency,omitempty"`
	Location       string   `json:"location,omitempty"`
}

// Validate rejects supplied attributes that are out of range
func (a SampleAttributes) Validate() error {
	if a.BloodType != "" && !ValidBloodType(a.BloodType) {
		return NewValidationError("blood_type", "unknown ABO/Rh designation", a.BloodType).Wrap(ErrInvalidArgument)
	}
	if a.Urgency != "" && !a.Urgency.Valid() {
		return NewValidationError("urgency", "must be one of low, medium, high", a.Urgency).Wrap(ErrInvalidArgument)
	}
	if a.Age < 0 || a.Age > 150 {
		return NewValidationError("age", "must be between 0 and 150", a.Age).Wrap(ErrInvalidArgument)
	}
	return nil
}
