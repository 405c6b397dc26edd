// Package notify delivers post-triage messages to patients. Delivery is
// behind an interface so a real mail or SMS provider can be plugged in; the
// default implementation writes to the service log.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opd/opd/internal/domain/identity"
)

// Notifier tells a patient the outcome of their triage decision.
type Notifier interface {
	NotifyDecision(ctx context.Context, patient *identity.Patient, status string) error
}

// LogNotifier logs each notification instead of sending it.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func message(status string) string {
	switch status {
	case "approved":
		return "Your appointment has been approved. Please arrive at the OPD reception desk."
	case "rebook":
		return "Today's clinic is full. Please rebook your appointment for another day."
	default:
		return fmt.Sprintf("Your appointment status is now %q.", status)
	}
}

func (n *LogNotifier) NotifyDecision(_ context.Context, patient *identity.Patient, status string) error {
	address := patient.Email
	if patient.PreferredContact == identity.ContactSMS {
		address = patient.Phone
	}
	n.logger.Info().
		Str("patient_id", patient.ID.String()).
		Str("channel", patient.PreferredContact).
		Str("address", address).
		Str("status", status).
		Msg(message(status))
	return nil
}
