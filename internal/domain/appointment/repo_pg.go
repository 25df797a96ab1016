package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type appointmentRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &appointmentRepoPG{q: q} }

const apptCols = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_type, a.status,
	a.notes, a.created_at, a.updated_at, pu.display_name, pu.email, du.display_name`

const apptFrom = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN users du ON du.id = a.doctor_id`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.Type, &a.Status,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt, &a.PatientName, &a.PatientEmail, &a.DoctorName)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_type, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.Type, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.q.QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, id uuid.UUID, from []Status, to Status, at *time.Time) error {
	fromText := make([]string, len(from))
	for i, st := range from {
		fromText[i] = string(st)
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET status = $2, appointment_date = COALESCE($3, appointment_date), updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`, id, to, at, fromText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRepoPG) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO appointment_reminders (appointment_id, appointment_date)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepoPG) ReleaseReminder(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.q.Exec(ctx, `
		DELETE FROM appointment_reminders WHERE appointment_id = $1 AND appointment_date = $2`, id, at)
	return err
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND a.appointment_date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND a.appointment_date < $%d`, idx)
		args = append(args, *f.To)
		idx++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.appointment_date ASC, a.id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
