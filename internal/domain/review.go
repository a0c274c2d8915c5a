package domain

import (
	"time"
)

// ReviewStatus is the state of a doctor review request
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewDeclined ReviewStatus = "declined"
)

// Valid reports whether s is a known review status
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewDeclined:
		return true
	}
	return false
}

// ReviewRequest is a match sent to a doctor for approval
type ReviewRequest struct {
	ID             string       `json:"id"`
	MatchID        string       `json:"match_id"`
	SampleID       string       `json:"sample_id"`
	SubjectID      string       `json:"subject_id"`
	DonorID        string       `json:"donor_id"`
	SampleType     SampleType   `json:"sample_type"`
	CompositeScore int          `json:"composite_score"`
	Urgency        Urgency      `json:"urgency"`
	Status         ReviewStatus `json:"status"`
	PatientNotes   string       `json:"patient_notes,omitempty"`
	DoctorNotes    string       `json:"doctor_notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ReviewCounts tallies requests per status
type ReviewCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Declined int64 `json:"declined"`
}

// ContactRequest asks the notification service to reach a donor for a match
type ContactRequest struct {
	MatchID     string    `json:"match_id"`
	DonorID     string    `json:"donor_id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
