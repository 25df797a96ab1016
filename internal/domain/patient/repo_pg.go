package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type patientRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &patientRepoPG{q: q} }

const patientCols = `p.id, p.user_id, p.date_of_birth, p.blood_group, p.marital_status,
	p.emergency_contact_name, p.emergency_contact_phone, p.created_at, p.updated_at,
	u.display_name, u.email`

const patientFrom = ` FROM patients p JOIN users u ON u.id = p.user_id`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.DateOfBirth, &p.BloodGroup, &p.MaritalStatus,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.CreatedAt, &p.UpdatedAt,
		&p.DisplayName, &p.Email)
	return &p, err
}

func (r *patientRepoPG) EnsureForUser(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO patients (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID)
	if err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.q.QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.id = $1`, id))
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.q.QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.user_id = $1`, userID))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	return r.q.QueryRow(ctx, `
		UPDATE patients SET date_of_birth=$2, blood_group=$3, marital_status=$4,
			emergency_contact_name=$5, emergency_contact_phone=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.DateOfBirth, p.BloodGroup, p.MaritalStatus,
		p.EmergencyContactName, p.EmergencyContactPhone,
	).Scan(&p.UpdatedAt)
}
