// Package queue implements the OPD triage queue: building the day's queue
// from ranked triage decisions, advancing patients through the visit
// lifecycle, and answering operator dashboard queries.
package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusApproved    Status = "approved"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusUnavailable Status = "unavailable"
)

// transitions is the closed set of allowed status edges. Absence of a key
// (or an empty set) means the state is terminal.
var transitions = map[Status][]Status{
	StatusApproved:    {StatusInProgress, StatusUnavailable},
	StatusInProgress:  {StatusCompleted, StatusUnavailable},
	StatusCompleted:   {},
	StatusUnavailable: {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// allowedFrom returns the statuses from which the edge into target is allowed.
func allowedFrom(target Status) []Status {
	var from []Status
	for s, nexts := range transitions {
		for _, t := range nexts {
			if t == target {
				from = append(from, s)
			}
		}
	}
	return from
}

// Outcome is the triage decision for one appointment.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRebook   Outcome = "rebook"
)

// Decision is one ranked triage result consumed by the queue builder.
// Rebook decisions are never inserted into the queue.
type Decision struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	PriorityRank  int       `json:"priority_rank"`
	SeverityScore float64   `json:"severity_score"`
	Outcome       Outcome   `json:"outcome"`
}

// Entry is one patient's slot in a day's queue. Position, rank and score are
// assigned at creation and never change; only status, updated_at and
// completed_time move afterwards.
type Entry struct {
	ID            int64      `json:"id" db:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id" db:"appointment_id"`
	PatientID     uuid.UUID  `json:"patient_id" db:"patient_id"`
	QueuePosition int        `json:"queue_position" db:"queue_position"`
	Status        Status     `json:"status" db:"status"`
	PriorityRank  int        `json:"priority_rank" db:"priority_rank"`
	SeverityScore float64    `json:"severity_score" db:"severity_score"`
	CompletedTime *time.Time `json:"completed_time,omitempty" db:"completed_time"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// RosterEntry is an Entry enriched with patient and appointment attributes
// for the operator dashboard. The extra fields carry no queue invariants.
type RosterEntry struct {
	Entry
	PatientFirstName   string `json:"patient_first_name"`
	PatientLastName    string `json:"patient_last_name"`
	PatientGender      string `json:"patient_gender"`
	PatientAge         int    `json:"patient_age"`
	MedicalDescription string `json:"medical_description"`
	VisitingStatus     string `json:"visiting_status"`
}

// Stats aggregates today's queue by status. AvgWaitMinutes is computed over
// completed entries only and is nil while none have completed.
type Stats struct {
	Total          int      `json:"total"`
	Waiting        int      `json:"waiting"`
	InProgress     int      `json:"in_progress"`
	Completed      int      `json:"completed"`
	Unavailable    int      `json:"unavailable"`
	AvgWaitMinutes *float64 `json:"avg_wait_minutes,omitempty"`
}

// Sentinel errors for the queue engine. Handlers map these to HTTP statuses;
// only ErrStore is safe to retry.
var (
	// ErrValidation marks malformed input rejected before any store write.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidTransition marks a status edge outside the allowed set.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound marks a queue id that references no entry.
	ErrNotFound = errors.New("queue entry not found")
	// ErrQueueBusy marks a call-next attempt while a patient is being served.
	ErrQueueBusy = errors.New("a patient is already being served")
	// ErrQueueEmpty marks a call-next attempt with no approved entries left.
	ErrQueueEmpty = errors.New("no patients waiting in queue")
	// ErrStore wraps timeouts, lost connections and transaction conflicts.
	ErrStore = errors.New("queue store unavailable")
)
