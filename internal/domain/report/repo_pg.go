package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type reportRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &reportRepoPG{q: q} }

const reportCols = `id, patient_id, doctor_id, uploaded_by, file_name, storage_path, mime_type,
	size_bytes, report_type, description, created_at`

func (r *reportRepoPG) scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.DoctorID, &rep.UploadedBy, &rep.FileName,
		&rep.StoragePath, &rep.MimeType, &rep.SizeBytes, &rep.ReportType, &rep.Description, &rep.CreatedAt)
	return &rep, err
}

func (r *reportRepoPG) Create(ctx context.Context, rep *Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO medical_reports (id, patient_id, doctor_id, uploaded_by, file_name, storage_path,
			mime_type, size_bytes, report_type, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		rep.ID, rep.PatientID, rep.DoctorID, rep.UploadedBy, rep.FileName, rep.StoragePath,
		rep.MimeType, rep.SizeBytes, rep.ReportType, rep.Description,
	).Scan(&rep.CreatedAt)
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return r.scanReport(r.q.QueryRow(ctx, `SELECT `+reportCols+` FROM medical_reports WHERE id = $1`, id))
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM medical_reports WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+reportCols+` FROM medical_reports WHERE patient_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rep, err := r.scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}

func (r *reportRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM medical_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
