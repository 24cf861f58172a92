package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, name, phone, email, visit_date, slot_time, room,
	case_description, case_form_id, status, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var email, caseDescription *string
	var caseFormID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Phone,
		&email,
		&a.Date,
		&a.TimeSlot,
		&a.Room,
		&caseDescription,
		&caseFormID,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Email = email
	a.CaseDescription = caseDescription
	a.CaseFormID = caseFormID
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) BookedRooms(ctx context.Context, date, timeSlot string) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT room
		FROM appointments
		WHERE visit_date = $1 AND slot_time = $2 AND status <> 'cancelled'
		ORDER BY room
	`, date, timeSlot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []int
	for rows.Next() {
		var room int
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment, form *CaseForm) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, name, phone, email, visit_date, slot_time, room,
			case_description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.Name, appt.Phone, appt.Email, appt.Date, appt.TimeSlot, appt.Room,
		appt.CaseDescription, appt.Status)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoomTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if form != nil {
		formID := uuid.New()
		payload, err := json.Marshal(form.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal case form: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO case_forms (id, appointment_id, payload, created_at)
			VALUES ($1, $2, $3, now())
		`, formID, created.ID, payload)
		if err != nil {
			return nil, fmt.Errorf("insert case form: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE appointments SET case_form_id = $2, updated_at = now()
			WHERE id = $1
		`, created.ID, formID)
		if err != nil {
			return nil, fmt.Errorf("link case form: %w", err)
		}
		created.CaseFormID = &formID
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoomTaken
		}
		return nil, fmt.Errorf("commit: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetCaseFormByID(ctx context.Context, id uuid.UUID) (*CaseForm, error) {
	var f CaseForm
	var payload []byte

	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, payload, created_at
		FROM case_forms
		WHERE id = $1
	`, id)

	err := row.Scan(&f.ID, &f.AppointmentID, &payload, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseFormNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(payload, &f.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal case form payload: %w", err)
	}
	return &f, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE visit_date = $1 AND status <> 'cancelled'
		ORDER BY slot_time, room
	`, date)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET updated_at = CASE WHEN status = $2 THEN updated_at ELSE now() END,
		    status = $2
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, status)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			// Re-activating a cancelled booking can collide with a booking
			// that took the freed room in the meantime.
			return nil, ErrRoomTaken
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) FindPendingForDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE visit_date = $1 AND status = 'pending'
		ORDER BY slot_time, room
	`, date)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) HasEvent(ctx context.Context, appointmentID uuid.UUID, eventType string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment_events
			WHERE appointment_id = $1 AND event_type = $2
		)
	`, appointmentID, eventType).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, ev.EventType, ev.AppointmentID, ev.Payload)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
