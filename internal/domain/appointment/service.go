package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var validVisitingStatuses = map[string]bool{
	VisitDischargedInpatient: true,
	VisitInternalReferral:    true,
	VisitExternalReferral:    true,
	VisitReviewPatient:       true,
	VisitGeneral:             true,
}

var validDecisionStatuses = map[string]bool{
	StatusApproved: true,
	StatusRebook:   true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.ScheduledDate.IsZero() {
		return fmt.Errorf("scheduled_date is required")
	}
	if a.VisitingStatus == "" {
		a.VisitingStatus = VisitGeneral
	}
	if !validVisitingStatuses[a.VisitingStatus] {
		return fmt.Errorf("invalid visiting_status: %s", a.VisitingStatus)
	}
	if a.MedicalDescription == "" {
		return fmt.Errorf("medical_description is required")
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Appointment, int, error) {
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusApproved && status != StatusRebook {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// PendingCases returns the triage payload for all unranked appointments.
func (s *Service) PendingCases(ctx context.Context) ([]*TriageCase, error) {
	return s.repo.ListPendingCases(ctx)
}

// ApplyTriageDecisions writes ranked results back onto their appointments.
// Results with an unknown status or missing rank are rejected up front so a
// bad batch never half-applies.
func (s *Service) ApplyTriageDecisions(ctx context.Context, results []TriageResult) error {
	for i, res := range results {
		if res.AppointmentID == uuid.Nil {
			return fmt.Errorf("result %d: appointment_id is required", i)
		}
		if !validDecisionStatuses[res.Status] {
			return fmt.Errorf("result %d: invalid status %q", i, res.Status)
		}
		if res.Status == StatusApproved && res.PriorityRank <= 0 {
			return fmt.Errorf("result %d: priority_rank must be positive", i)
		}
	}
	for _, res := range results {
		if err := s.repo.ApplyDecision(ctx, res); err != nil {
			return fmt.Errorf("apply decision for %s: %w", res.AppointmentID, err)
		}
	}
	return nil
}
