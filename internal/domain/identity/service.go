package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

var validContacts = map[string]bool{
	ContactEmail: true, ContactSMS: true,
}

type Service struct {
	repo PatientRepository
}

func NewService(repo PatientRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("date_of_birth is required")
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if p.PreferredContact == "" {
		p.PreferredContact = ContactEmail
	}
	if !validContacts[p.PreferredContact] {
		return fmt.Errorf("invalid preferred_contact: %s", p.PreferredContact)
	}
	if p.PreferredContact == ContactEmail && p.Email == "" {
		return fmt.Errorf("email is required when preferred_contact is email")
	}
	if p.PreferredContact == ContactSMS && p.Phone == "" {
		return fmt.Errorf("phone is required when preferred_contact is sms")
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, p.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) SearchPatients(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, name, limit, offset)
}
