package symptom

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type symptomRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &symptomRepoPG{q: q} }

const logCols = `id, patient_id, log_date, symptoms, pain_level, fatigue_level, bleeding,
	bleeding_severity, notes, created_at`

func (r *symptomRepoPG) scanLog(row pgx.Row) (*Log, error) {
	var l Log
	err := row.Scan(&l.ID, &l.PatientID, &l.LogDate, &l.Symptoms, &l.PainLevel, &l.FatigueLevel,
		&l.Bleeding, &l.BleedingSeverity, &l.Notes, &l.CreatedAt)
	return &l, err
}

func (r *symptomRepoPG) Create(ctx context.Context, l *Log) error {
	l.ID = uuid.New()
	return r.q.QueryRow(ctx, `
		INSERT INTO symptom_logs (id, patient_id, log_date, symptoms, pain_level, fatigue_level,
			bleeding, bleeding_severity, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		l.ID, l.PatientID, l.LogDate, l.Symptoms, l.PainLevel, l.FatigueLevel,
		l.Bleeding, l.BleedingSeverity, l.Notes,
	).Scan(&l.CreatedAt)
}

func (r *symptomRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, rng Range, limit, offset int) ([]*Log, int, error) {
	where := ` WHERE patient_id = $1`
	args := []interface{}{patientID}
	idx := 2

	if rng.From != nil {
		where += fmt.Sprintf(` AND log_date >= $%d`, idx)
		args = append(args, *rng.From)
		idx++
	}
	if rng.To != nil {
		where += fmt.Sprintf(` AND log_date <= $%d`, idx)
		args = append(args, *rng.To)
		idx++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM symptom_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + logCols + ` FROM symptom_logs` + where +
		fmt.Sprintf(` ORDER BY log_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Log
	for rows.Next() {
		l, err := r.scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}
