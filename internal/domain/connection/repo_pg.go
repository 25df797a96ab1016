package connection

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type connectionRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &connectionRepoPG{q: q} }

const connCols = `id, patient_id, doctor_id, created_at`

func (r *connectionRepoPG) scanConnection(row pgx.Row) (*Connection, error) {
	var c Connection
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.CreatedAt)
	return &c, err
}

// Create inserts the connection. A duplicate pair surfaces as a unique
// violation for the caller to interpret.
func (r *connectionRepoPG) Create(ctx context.Context, c *Connection) error {
	c.ID = uuid.New()
	return r.q.QueryRow(ctx, `
		INSERT INTO doctor_patient_connections (id, patient_id, doctor_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		c.ID, c.PatientID, c.DoctorID,
	).Scan(&c.CreatedAt)
}

func (r *connectionRepoPG) Get(ctx context.Context, patientID, doctorID uuid.UUID) (*Connection, error) {
	return r.scanConnection(r.q.QueryRow(ctx,
		`SELECT `+connCols+` FROM doctor_patient_connections WHERE patient_id = $1 AND doctor_id = $2`,
		patientID, doctorID))
}

func (r *connectionRepoPG) Exists(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM doctor_patient_connections WHERE doctor_id = $1 AND patient_id = $2)`,
		doctorID, patientID).Scan(&ok)
	return ok, err
}

func (r *connectionRepoPG) ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*ConnectedPatient, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM doctor_patient_connections WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT p.id, p.user_id, u.display_name, u.email, c.created_at
		FROM doctor_patient_connections c
		JOIN patients p ON p.id = c.patient_id
		JOIN users u ON u.id = p.user_id
		WHERE c.doctor_id = $1
		ORDER BY u.display_name, p.id
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ConnectedPatient
	for rows.Next() {
		var cp ConnectedPatient
		if err := rows.Scan(&cp.PatientID, &cp.UserID, &cp.DisplayName, &cp.Email, &cp.ConnectedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &cp)
	}
	return items, total, rows.Err()
}

func (r *connectionRepoPG) ListDoctors(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ConnectedDoctor, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM doctor_patient_connections WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT u.id, u.display_name, u.email, u.phone, c.created_at
		FROM doctor_patient_connections c
		JOIN users u ON u.id = c.doctor_id
		WHERE c.patient_id = $1
		ORDER BY u.display_name, u.id
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ConnectedDoctor
	for rows.Next() {
		var cd ConnectedDoctor
		if err := rows.Scan(&cd.DoctorID, &cd.DisplayName, &cd.Email, &cd.Phone, &cd.ConnectedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &cd)
	}
	return items, total, rows.Err()
}
