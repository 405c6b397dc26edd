package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, patient_id, scheduled_date, visiting_status, medical_description,
	status, priority_rank, severity_score, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ScheduledDate, &a.VisitingStatus,
		&a.MedicalDescription, &a.Status, &a.PriorityRank, &a.SeverityScore,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, scheduled_date, visiting_status, medical_description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.ScheduledDate, a.VisitingStatus, a.MedicalDescription, StatusPending)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return err
	}
	a.Status = StatusPending
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s not found", id)
	}
	return a, err
}

func (r *repoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE status = $1
		ORDER BY scheduled_date, created_at
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListPendingCases(ctx context.Context) ([]*TriageCase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.patient_id,
			EXTRACT(YEAR FROM AGE(p.date_of_birth))::int AS age,
			p.gender, a.visiting_status, a.medical_description
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.status = 'pending'
		ORDER BY a.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*TriageCase
	for rows.Next() {
		var tc TriageCase
		if err := rows.Scan(&tc.AppointmentID, &tc.PatientID, &tc.Age, &tc.Gender,
			&tc.VisitingStatus, &tc.MedicalCondition); err != nil {
			return nil, err
		}
		cases = append(cases, &tc)
	}
	return cases, rows.Err()
}

func (r *repoPG) ApplyDecision(ctx context.Context, res TriageResult) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET priority_rank=$2, severity_score=$3, status=$4, updated_at=NOW()
		WHERE id = $1`,
		res.AppointmentID, res.PriorityRank, res.SeverityScore, res.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s not found", res.AppointmentID)
	}
	return nil
}
