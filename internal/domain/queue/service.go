package queue

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Event types broadcast on queue mutations.
const (
	EventBuilt         = "queue.built"
	EventCalled        = "queue.called"
	EventStatusChanged = "queue.status_changed"
)

// Publisher receives queue mutation events. Publishing is best-effort and
// must never block or fail a mutation.
type Publisher interface {
	PublishQueue(ctx context.Context, eventType string, entry *Entry)
}

// Service is the queue engine: builder, state machine and query views over
// a Repository.
type Service struct {
	repo   Repository
	events Publisher
}

// NewService creates a queue Service. events may be nil.
func NewService(repo Repository, events Publisher) *Service {
	return &Service{repo: repo, events: events}
}

func (s *Service) publish(ctx context.Context, eventType string, e *Entry) {
	if s.events != nil {
		s.events.PublishQueue(ctx, eventType, e)
	}
}

// BuildQueue converts one triage batch into queue entries for today.
// Rebook decisions are dropped; the rest are ordered by priority_rank
// ascending, severity_score descending, input order on full ties, and
// inserted atomically with positions continuing after today's maximum.
func (s *Service) BuildQueue(ctx context.Context, decisions []Decision) ([]*Entry, error) {
	approved := make([]Decision, 0, len(decisions))
	for i, d := range decisions {
		switch d.Outcome {
		case OutcomeRebook:
			continue
		case OutcomeApproved:
		default:
			return nil, fmt.Errorf("%w: decision %d: unknown outcome %q", ErrValidation, i, d.Outcome)
		}
		if d.AppointmentID == uuid.Nil {
			return nil, fmt.Errorf("%w: decision %d: appointment_id is required", ErrValidation, i)
		}
		if d.PatientID == uuid.Nil {
			return nil, fmt.Errorf("%w: decision %d: patient_id is required", ErrValidation, i)
		}
		if d.PriorityRank <= 0 {
			return nil, fmt.Errorf("%w: decision %d: priority_rank must be positive", ErrValidation, i)
		}
		approved = append(approved, d)
	}
	if len(approved) == 0 {
		return []*Entry{}, nil
	}

	// Stable so full rank/score ties keep their input order.
	sort.SliceStable(approved, func(i, j int) bool {
		if approved[i].PriorityRank != approved[j].PriorityRank {
			return approved[i].PriorityRank < approved[j].PriorityRank
		}
		return approved[i].SeverityScore > approved[j].SeverityScore
	})

	entries := make([]*Entry, len(approved))
	for i, d := range approved {
		entries[i] = &Entry{
			AppointmentID: d.AppointmentID,
			PatientID:     d.PatientID,
			Status:        StatusApproved,
			PriorityRank:  d.PriorityRank,
			SeverityScore: d.SeverityScore,
		}
	}

	created, err := s.repo.InsertBatch(ctx, entries)
	if err != nil {
		return nil, err
	}
	for _, e := range created {
		s.publish(ctx, EventBuilt, e)
	}
	return created, nil
}

// UpdateStatus applies one lifecycle transition to a queue entry. The edge
// is validated against the transition table and the store-side guard, so a
// concurrent mutation between validation and write cannot slip through.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (*Entry, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	from := allowedFrom(to)
	if len(from) == 0 {
		// approved is entry-creation only; nothing transitions into it.
		return nil, fmt.Errorf("%w: no entry may move to %q", ErrInvalidTransition, to)
	}

	e, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventStatusChanged, e)
	return e, nil
}

// CallNext promotes the next approved patient to in_progress. At most one
// concurrent call succeeds; the rest observe ErrQueueBusy, or ErrQueueEmpty
// when nobody is waiting.
func (s *Service) CallNext(ctx context.Context) (*Entry, error) {
	e, err := s.repo.CallNext(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventCalled, e)
	return e, nil
}

// CurrentQueue returns today's roster ordered by position.
func (s *Service) CurrentQueue(ctx context.Context) ([]*RosterEntry, error) {
	return s.repo.ListToday(ctx)
}

// NextPatient returns the entry the next CallNext would select.
func (s *Service) NextPatient(ctx context.Context) (*Entry, error) {
	return s.repo.NextApproved(ctx)
}

// CurrentPatient returns the entry currently being served.
func (s *Service) CurrentPatient(ctx context.Context) (*Entry, error) {
	return s.repo.CurrentInProgress(ctx)
}

// Stats returns today's per-status counts and average wait.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
