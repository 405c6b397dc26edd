package triage

import (
	"context"
	"sort"
	"strings"

	"github.com/opd/opd/internal/domain/appointment"
)

// DefaultCapacity is the number of patients one OPD day can absorb; anything
// ranked beyond it is sent to rebooking.
const DefaultCapacity = 170

// Simulator is a local stand-in for the external ranker, used when no ranker
// URL is configured. Rank comes from the visiting status, severity from a
// keyword scan of the medical description.
type Simulator struct {
	Capacity int
}

func NewSimulator(capacity int) *Simulator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Simulator{Capacity: capacity}
}

func rankForVisitingStatus(status string) int {
	switch status {
	case appointment.VisitDischargedInpatient:
		return 1
	case appointment.VisitInternalReferral:
		return 2
	case appointment.VisitExternalReferral:
		return 3
	case appointment.VisitReviewPatient:
		return 4
	default:
		return 5
	}
}

var severeKeywords = []string{
	"chest pain", "bleeding", "breath", "unconscious", "stroke", "seizure",
}

var moderateKeywords = []string{
	"fever", "fracture", "vomiting", "pain",
}

func severityForDescription(desc string) float64 {
	d := strings.ToLower(desc)
	score := 5.0
	for _, kw := range severeKeywords {
		if strings.Contains(d, kw) {
			score += 3
			break
		}
	}
	for _, kw := range moderateKeywords {
		if strings.Contains(d, kw) {
			score += 1
			break
		}
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Rank orders cases by visiting-status rank then severity, approves up to
// Capacity of them and marks the rest for rebooking.
func (s *Simulator) Rank(_ context.Context, cases []*appointment.TriageCase) ([]appointment.TriageResult, error) {
	results := make([]appointment.TriageResult, len(cases))
	for i, c := range cases {
		results[i] = appointment.TriageResult{
			AppointmentID: c.AppointmentID,
			PriorityRank:  rankForVisitingStatus(c.VisitingStatus),
			SeverityScore: severityForDescription(c.MedicalCondition),
			Status:        appointment.StatusApproved,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PriorityRank != results[j].PriorityRank {
			return results[i].PriorityRank < results[j].PriorityRank
		}
		return results[i].SeverityScore > results[j].SeverityScore
	})

	for i := range results {
		if i >= s.Capacity {
			results[i].Status = appointment.StatusRebook
		}
	}
	return results, nil
}
