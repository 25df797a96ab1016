package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type adminRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &adminRepoPG{q: q} }

func (r *adminRepoPG) countBy(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *adminRepoPG) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
}

func (r *adminRepoPG) CountAppointmentsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
}

func (r *adminRepoPG) CountPending(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE status = 'pending' AND appointment_date >= $1 AND appointment_date < $2`,
		from, to).Scan(&n)
	return n, err
}

func (r *adminRepoPG) CountReports(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM medical_reports`).Scan(&n)
	return n, err
}

func (r *adminRepoPG) CountUnreadMessages(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE NOT is_read`).Scan(&n)
	return n, err
}

func (r *adminRepoPG) ExportAppointments(ctx context.Context, f ExportFilter, limit int) ([]*ExportRow, error) {
	query := `
		SELECT a.id, a.appointment_date, a.appointment_type, a.status,
			pu.display_name, pu.email, du.display_name, a.notes, a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users pu ON pu.id = p.user_id
		JOIN users du ON du.id = a.doctor_id
		WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.From != nil {
		query += fmt.Sprintf(` AND a.appointment_date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		query += fmt.Sprintf(` AND a.appointment_date < $%d`, idx)
		args = append(args, *f.To)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	query += fmt.Sprintf(` ORDER BY a.appointment_date ASC, a.id ASC LIMIT $%d`, idx)
	args = append(args, limit)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ExportRow
	for rows.Next() {
		var e ExportRow
		if err := rows.Scan(&e.ID, &e.AppointmentDate, &e.AppointmentType, &e.Status,
			&e.PatientName, &e.PatientEmail, &e.DoctorName, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
