package triage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opd/opd/internal/domain/appointment"
	"github.com/opd/opd/internal/domain/identity"
	"github.com/opd/opd/internal/domain/queue"
	"github.com/opd/opd/internal/platform/notify"
)

// AppointmentService is the slice of the appointment domain the batch needs.
type AppointmentService interface {
	PendingCases(ctx context.Context) ([]*appointment.TriageCase, error)
	ApplyTriageDecisions(ctx context.Context, results []appointment.TriageResult) error
}

// QueueBuilder materializes approved decisions into queue entries.
type QueueBuilder interface {
	BuildQueue(ctx context.Context, decisions []queue.Decision) ([]*queue.Entry, error)
}

// PatientLookup resolves patients for notification.
type PatientLookup interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// Report summarizes one triage batch run.
type Report struct {
	Cases    int `json:"cases"`
	Approved int `json:"approved"`
	Rebooked int `json:"rebooked"`
	Queued   int `json:"queued"`
	Notified int `json:"notified"`
}

// Service runs the triage batch: pending cases -> ranker -> appointment
// write-back -> queue build -> patient notification.
type Service struct {
	appointments AppointmentService
	queues       QueueBuilder
	patients     PatientLookup
	ranker       Ranker
	notifier     notify.Notifier
	logger       zerolog.Logger
}

func NewService(appointments AppointmentService, queues QueueBuilder, patients PatientLookup,
	ranker Ranker, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appointments,
		queues:       queues,
		patients:     patients,
		ranker:       ranker,
		notifier:     notifier,
		logger:       logger,
	}
}

// RunBatch executes one full triage batch. Notification failures are logged
// and counted but never fail the batch; the queue is already durable by then.
func (s *Service) RunBatch(ctx context.Context) (*Report, error) {
	cases, err := s.appointments.PendingCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect pending cases: %w", err)
	}
	report := &Report{Cases: len(cases)}
	if len(cases) == 0 {
		return report, nil
	}

	results, err := s.ranker.Rank(ctx, cases)
	if err != nil {
		return nil, fmt.Errorf("rank cases: %w", err)
	}

	if err := s.appointments.ApplyTriageDecisions(ctx, results); err != nil {
		return nil, fmt.Errorf("apply decisions: %w", err)
	}

	patientByAppt := make(map[uuid.UUID]uuid.UUID, len(cases))
	for _, c := range cases {
		patientByAppt[c.AppointmentID] = c.PatientID
	}

	decisions := make([]queue.Decision, 0, len(results))
	for _, res := range results {
		outcome := queue.OutcomeApproved
		if res.Status == appointment.StatusRebook {
			outcome = queue.OutcomeRebook
			report.Rebooked++
		} else {
			report.Approved++
		}
		decisions = append(decisions, queue.Decision{
			AppointmentID: res.AppointmentID,
			PatientID:     patientByAppt[res.AppointmentID],
			PriorityRank:  res.PriorityRank,
			SeverityScore: res.SeverityScore,
			Outcome:       outcome,
		})
	}

	entries, err := s.queues.BuildQueue(ctx, decisions)
	if err != nil {
		return nil, fmt.Errorf("build queue: %w", err)
	}
	report.Queued = len(entries)

	for _, res := range results {
		patientID := patientByAppt[res.AppointmentID]
		patient, err := s.patients.GetPatient(ctx, patientID)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("skip notification, patient lookup failed")
			continue
		}
		if err := s.notifier.NotifyDecision(ctx, patient, res.Status); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("notification failed")
			continue
		}
		report.Notified++
	}

	s.logger.Info().
		Int("cases", report.Cases).
		Int("approved", report.Approved).
		Int("rebooked", report.Rebooked).
		Int("queued", report.Queued).
		Msg("triage batch complete")
	return report, nil
}
