package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the PostgreSQL-backed queue repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const entryCols = `id, appointment_id, patient_id, queue_position, status,
	priority_rank, severity_score, completed_time, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.AppointmentID, &e.PatientID, &e.QueuePosition, &e.Status,
		&e.PriorityRank, &e.SeverityScore, &e.CompletedTime, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

// storeErr classifies driver failures. Unique violations on the
// per-day appointment index are caller errors, everything else is transient.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: appointment already queued today", ErrValidation)
	}
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

// lockDay serializes today's partition. hashtext folds the date into the
// advisory lock keyspace so each queue-day gets its own lock.
func lockDay(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('opd_queue:' || CURRENT_DATE::text))`)
	return err
}

func (r *repoPG) InsertBatch(ctx context.Context, entries []*Entry) ([]*Entry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDay(ctx, tx); err != nil {
		return nil, storeErr("lock day", err)
	}

	var maxPos int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_position), 0) FROM opd_queue
		WHERE created_at::date = CURRENT_DATE`).Scan(&maxPos); err != nil {
		return nil, storeErr("max position", err)
	}

	created := make([]*Entry, 0, len(entries))
	for i, e := range entries {
		row := tx.QueryRow(ctx, `
			INSERT INTO opd_queue (appointment_id, patient_id, queue_position, status,
				priority_rank, severity_score)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+entryCols,
			e.AppointmentID, e.PatientID, maxPos+i+1, StatusApproved,
			e.PriorityRank, e.SeverityScore)
		stored, err := scanEntry(row)
		if err != nil {
			return nil, storeErr("insert entry", err)
		}
		created = append(created, stored)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit", err)
	}
	return created, nil
}

func (r *repoPG) Get(ctx context.Context, id int64) (*Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM opd_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get entry", err)
	}
	return e, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id int64, from []Status, to Status) (*Entry, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE opd_queue
		SET status = $2,
		    updated_at = NOW(),
		    completed_time = CASE WHEN $2 = 'completed' THEN NOW() ELSE completed_time END
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+entryCols,
		id, to, fromStrs)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Guard missed: tell not-found apart from a disallowed edge.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, storeErr("update status", err)
	}
	return e, nil
}

func (r *repoPG) CallNext(ctx context.Context) (*Entry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDay(ctx, tx); err != nil {
		return nil, storeErr("lock day", err)
	}

	var busy bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM opd_queue
			WHERE status = 'in_progress' AND created_at::date = CURRENT_DATE
		)`).Scan(&busy); err != nil {
		return nil, storeErr("check in_progress", err)
	}
	if busy {
		return nil, ErrQueueBusy
	}

	row := tx.QueryRow(ctx, `
		UPDATE opd_queue
		SET status = 'in_progress', updated_at = NOW()
		WHERE id = (
			SELECT id FROM opd_queue
			WHERE status = 'approved' AND created_at::date = CURRENT_DATE
			ORDER BY queue_position
			LIMIT 1
		)
		RETURNING `+entryCols)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, storeErr("promote next", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit", err)
	}
	return e, nil
}

func (r *repoPG) ListToday(ctx context.Context) ([]*RosterEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.appointment_id, q.patient_id, q.queue_position, q.status,
			q.priority_rank, q.severity_score, q.completed_time, q.created_at, q.updated_at,
			p.first_name, p.last_name, p.gender,
			EXTRACT(YEAR FROM AGE(p.date_of_birth))::int AS age,
			a.medical_description, a.visiting_status
		FROM opd_queue q
		JOIN patients p ON p.id = q.patient_id
		JOIN appointments a ON a.id = q.appointment_id
		WHERE q.created_at::date = CURRENT_DATE
		ORDER BY q.queue_position`)
	if err != nil {
		return nil, storeErr("list today", err)
	}
	defer rows.Close()

	var items []*RosterEntry
	for rows.Next() {
		var re RosterEntry
		if err := rows.Scan(&re.ID, &re.AppointmentID, &re.PatientID, &re.QueuePosition,
			&re.Status, &re.PriorityRank, &re.SeverityScore, &re.CompletedTime,
			&re.CreatedAt, &re.UpdatedAt,
			&re.PatientFirstName, &re.PatientLastName, &re.PatientGender, &re.PatientAge,
			&re.MedicalDescription, &re.VisitingStatus); err != nil {
			return nil, storeErr("scan roster entry", err)
		}
		items = append(items, &re)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate roster", err)
	}
	return items, nil
}

func (r *repoPG) NextApproved(ctx context.Context) (*Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		SELECT `+entryCols+` FROM opd_queue
		WHERE status = 'approved' AND created_at::date = CURRENT_DATE
		ORDER BY queue_position
		LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, storeErr("next approved", err)
	}
	return e, nil
}

func (r *repoPG) CurrentInProgress(ctx context.Context) (*Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `
		SELECT `+entryCols+` FROM opd_queue
		WHERE status = 'in_progress' AND created_at::date = CURRENT_DATE
		LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("current in_progress", err)
	}
	return e, nil
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'unavailable'),
			AVG(EXTRACT(EPOCH FROM (completed_time - created_at)) / 60)
				FILTER (WHERE status = 'completed')
		FROM opd_queue
		WHERE created_at::date = CURRENT_DATE`).Scan(
		&s.Total, &s.Waiting, &s.InProgress, &s.Completed, &s.Unavailable, &s.AvgWaitMinutes)
	if err != nil {
		return nil, storeErr("stats", err)
	}
	return &s, nil
}
