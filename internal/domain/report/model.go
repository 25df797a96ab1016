package report

import (
	"io"
	"time"

	"github.com/google/uuid"
)

var validReportTypes = map[string]bool{
	"lab_result":        true,
	"imaging":           true,
	"pathology":         true,
	"prescription":      true,
	"discharge_summary": true,
	"other":             true,
}

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// Report is the metadata of an uploaded medical document. The bytes live in
// the object store under StoragePath.
type Report struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	UploadedBy  uuid.UUID  `db:"uploaded_by" json:"uploaded_by"`
	FileName    string     `db:"file_name" json:"file_name"`
	StoragePath string     `db:"storage_path" json:"storage_path"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	ReportType  string     `db:"report_type" json:"report_type"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`

	URL string `json:"url,omitempty"`
}

type UploadInput struct {
	FileName     string
	DeclaredType string
	Size         int64
	Body         io.Reader
	ReportType   string
	Description  string
}
