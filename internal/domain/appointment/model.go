// Package appointment manages OPD visit bookings. Appointments are created
// pending, ranked by the triage batch, and either approved into the day's
// queue or marked for rebooking.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status of an appointment relative to the triage flow.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRebook   = "rebook"
)

// Visiting status categories, in descending scheduling priority.
const (
	VisitDischargedInpatient = "discharged_inpatient"
	VisitInternalReferral    = "internal_referral"
	VisitExternalReferral    = "external_referral"
	VisitReviewPatient       = "review_patient"
	VisitGeneral             = "general"
)

type Appointment struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	PatientID          uuid.UUID `json:"patient_id" db:"patient_id"`
	ScheduledDate      time.Time `json:"scheduled_date" db:"scheduled_date"`
	VisitingStatus     string    `json:"visiting_status" db:"visiting_status"`
	MedicalDescription string    `json:"medical_description" db:"medical_description"`
	Status             string    `json:"status" db:"status"`
	PriorityRank       *int      `json:"priority_rank,omitempty" db:"priority_rank"`
	SeverityScore      *float64  `json:"severity_score,omitempty" db:"severity_score"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// TriageCase is the per-appointment payload sent to the triage ranker.
type TriageCase struct {
	AppointmentID    uuid.UUID `json:"appointment_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	Age              int       `json:"age"`
	Gender           string    `json:"gender"`
	VisitingStatus   string    `json:"visiting_status"`
	MedicalCondition string    `json:"medical_condition"`
}

// TriageResult is one ranked decision coming back from the ranker.
type TriageResult struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PriorityRank  int       `json:"priority_rank"`
	SeverityScore float64   `json:"severity_score"`
	Status        string    `json:"status"` // approved or rebook
}
