// Package identity holds the patient registry. The queue roster and the
// triage ranker both join against it; the queue engine itself only ever
// sees patient ids.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Contact channels a patient can choose for triage notifications.
const (
	ContactEmail = "email"
	ContactSMS   = "sms"
)

type Patient struct {
	ID               uuid.UUID `json:"id" db:"id"`
	FirstName        string    `json:"first_name" db:"first_name"`
	LastName         string    `json:"last_name" db:"last_name"`
	DateOfBirth      time.Time `json:"date_of_birth" db:"date_of_birth"`
	Gender           string    `json:"gender" db:"gender"`
	Email            string    `json:"email,omitempty" db:"email"`
	Phone            string    `json:"phone,omitempty" db:"phone"`
	PreferredContact string    `json:"preferred_contact" db:"preferred_contact"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Age returns the patient's age in whole years at the given time.
func (p *Patient) Age(at time.Time) int {
	years := at.Year() - p.DateOfBirth.Year()
	if at.YearDay() < p.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
