package appointment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Status = StatusPending
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s not found", id)
	}
	return a, nil
}

func (m *mockRepo) ListByStatus(_ context.Context, status string, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.Status == status {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) ListPendingCases(_ context.Context) ([]*TriageCase, error) {
	var cases []*TriageCase
	for _, a := range m.appts {
		if a.Status == StatusPending {
			cases = append(cases, &TriageCase{
				AppointmentID:    a.ID,
				PatientID:        a.PatientID,
				VisitingStatus:   a.VisitingStatus,
				MedicalCondition: a.MedicalDescription,
			})
		}
	}
	return cases, nil
}

func (m *mockRepo) ApplyDecision(_ context.Context, res TriageResult) error {
	a, ok := m.appts[res.AppointmentID]
	if !ok {
		return fmt.Errorf("appointment %s not found", res.AppointmentID)
	}
	rank := res.PriorityRank
	score := res.SeverityScore
	a.PriorityRank = &rank
	a.SeverityScore = &score
	a.Status = res.Status
	a.UpdatedAt = time.Now()
	return nil
}

func validAppointment() *Appointment {
	return &Appointment{
		PatientID:          uuid.New(),
		ScheduledDate:      time.Now().Add(24 * time.Hour),
		VisitingStatus:     VisitInternalReferral,
		MedicalDescription: "persistent chest pain",
	}
}

func TestCreateAppointment(t *testing.T) {
	svc := NewService(newMockRepo())
	a := validAppointment()
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("expected pending, got %s", a.Status)
	}
	if a.PriorityRank != nil || a.SeverityScore != nil {
		t.Error("rank and score must be unset before triage")
	}
}

func TestCreateAppointment_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Appointment)
	}{
		{"missing patient", func(a *Appointment) { a.PatientID = uuid.Nil }},
		{"missing date", func(a *Appointment) { a.ScheduledDate = time.Time{} }},
		{"bad visiting status", func(a *Appointment) { a.VisitingStatus = "walk_in" }},
		{"missing description", func(a *Appointment) { a.MedicalDescription = "" }},
	}
	for _, tc := range cases {
		a := validAppointment()
		tc.mutate(a)
		if err := svc.CreateAppointment(ctx, a); err == nil {
			t.Errorf("%s: expected error, got none", tc.name)
		}
	}
}

func TestCreateAppointment_DefaultVisitingStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	a := validAppointment()
	a.VisitingStatus = ""
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.VisitingStatus != VisitGeneral {
		t.Errorf("expected general, got %s", a.VisitingStatus)
	}
}

func TestApplyTriageDecisions(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a := validAppointment()
	b := validAppointment()
	if err := svc.CreateAppointment(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateAppointment(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := []TriageResult{
		{AppointmentID: a.ID, PriorityRank: 1, SeverityScore: 0.9, Status: StatusApproved},
		{AppointmentID: b.ID, Status: StatusRebook},
	}
	if err := svc.ApplyTriageDecisions(ctx, results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Status != StatusApproved || a.PriorityRank == nil || *a.PriorityRank != 1 {
		t.Errorf("approved decision not applied: %+v", a)
	}
	if b.Status != StatusRebook {
		t.Errorf("rebook decision not applied: %+v", b)
	}
}

func TestApplyTriageDecisions_RejectsBadBatchUpFront(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a := validAppointment()
	if err := svc.CreateAppointment(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := []TriageResult{
		{AppointmentID: a.ID, PriorityRank: 1, SeverityScore: 0.9, Status: StatusApproved},
		{AppointmentID: uuid.New(), Status: "deferred"},
	}
	if err := svc.ApplyTriageDecisions(ctx, results); err == nil {
		t.Fatal("expected error for invalid status")
	}
	// Validation happens before any write.
	if a.Status != StatusPending {
		t.Errorf("expected pending after rejected batch, got %s", a.Status)
	}
}

func TestApplyTriageDecisions_ApprovedNeedsRank(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.ApplyTriageDecisions(context.Background(), []TriageResult{
		{AppointmentID: uuid.New(), Status: StatusApproved},
	})
	if err == nil {
		t.Error("expected error for approved result without rank")
	}
}

func TestListByStatus_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, _, err := svc.ListByStatus(context.Background(), "archived", 10, 0); err == nil {
		t.Error("expected error for unknown status")
	}
}
