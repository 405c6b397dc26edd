package triage

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/opd/opd/internal/domain/appointment"
)

func caseWith(visiting, condition string) *appointment.TriageCase {
	return &appointment.TriageCase{
		AppointmentID:    uuid.New(),
		PatientID:        uuid.New(),
		VisitingStatus:   visiting,
		MedicalCondition: condition,
	}
}

func TestSimulatorRankByVisitingStatus(t *testing.T) {
	general := caseWith(appointment.VisitGeneral, "cough")
	discharged := caseWith(appointment.VisitDischargedInpatient, "cough")
	referral := caseWith(appointment.VisitInternalReferral, "cough")

	sim := NewSimulator(0)
	results, err := sim.Rank(context.Background(), []*appointment.TriageCase{general, discharged, referral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []uuid.UUID{discharged.AppointmentID, referral.AppointmentID, general.AppointmentID}
	for i, res := range results {
		if res.AppointmentID != want[i] {
			t.Errorf("position %d: unexpected appointment order", i)
		}
		if res.Status != appointment.StatusApproved {
			t.Errorf("expected approved within capacity, got %s", res.Status)
		}
	}
	if results[0].PriorityRank != 1 || results[2].PriorityRank != 5 {
		t.Errorf("unexpected ranks: %d, %d", results[0].PriorityRank, results[2].PriorityRank)
	}
}

func TestSimulatorSeverityFromDescription(t *testing.T) {
	sim := NewSimulator(0)
	severe := caseWith(appointment.VisitGeneral, "sudden chest pain and fever")
	mild := caseWith(appointment.VisitGeneral, "routine check")

	results, err := sim.Rank(context.Background(), []*appointment.TriageCase{mild, severe})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Severe case sorts first despite later input position.
	if results[0].AppointmentID != severe.AppointmentID {
		t.Error("expected severe case ranked first")
	}
	if results[0].SeverityScore <= results[1].SeverityScore {
		t.Errorf("expected higher severity for severe case: %f vs %f",
			results[0].SeverityScore, results[1].SeverityScore)
	}
	for _, res := range results {
		if res.SeverityScore < 1 || res.SeverityScore > 10 {
			t.Errorf("severity out of range: %f", res.SeverityScore)
		}
	}
}

func TestSimulatorCapacityRebooksOverflow(t *testing.T) {
	sim := NewSimulator(2)
	cases := []*appointment.TriageCase{
		caseWith(appointment.VisitDischargedInpatient, "cough"),
		caseWith(appointment.VisitGeneral, "cough"),
		caseWith(appointment.VisitGeneral, "cough"),
	}
	results, err := sim.Rank(context.Background(), cases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var approved, rebooked int
	for _, res := range results {
		switch res.Status {
		case appointment.StatusApproved:
			approved++
		case appointment.StatusRebook:
			rebooked++
		}
	}
	if approved != 2 || rebooked != 1 {
		t.Errorf("expected 2 approved and 1 rebooked, got %d and %d", approved, rebooked)
	}
	// The overflow must be the lowest-priority case.
	if results[len(results)-1].Status != appointment.StatusRebook {
		t.Error("expected last-ranked case to be rebooked")
	}
}
