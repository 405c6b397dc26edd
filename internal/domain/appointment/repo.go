package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Appointment, int, error)
	// ListPendingCases returns pending appointments joined with patient
	// attributes, shaped for the triage ranker.
	ListPendingCases(ctx context.Context) ([]*TriageCase, error)
	// ApplyDecision writes the triage outcome back onto one appointment.
	ApplyDecision(ctx context.Context, res TriageResult) error
}
