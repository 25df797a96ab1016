package admin

import (
	"time"

	"github.com/google/uuid"
)

// Dashboard holds count-only figures for the admin overview.
type Dashboard struct {
	UsersByRole          map[string]int `json:"users_by_role"`
	AppointmentsByStatus map[string]int `json:"appointments_by_status"`
	PendingToday         int            `json:"pending_today"`
	Reports              int            `json:"reports"`
	UnreadMessages       int            `json:"unread_messages"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// ExportRow is one appointment line of the spreadsheet export.
type ExportRow struct {
	ID              uuid.UUID `db:"id"`
	AppointmentDate time.Time `db:"appointment_date"`
	AppointmentType string    `db:"appointment_type"`
	Status          string    `db:"status"`
	PatientName     string    `db:"patient_name"`
	PatientEmail    string    `db:"patient_email"`
	DoctorName      string    `db:"doctor_name"`
	Notes           *string   `db:"notes"`
	CreatedAt       time.Time `db:"created_at"`
}

// ExportFilter bounds the export by appointment date: From inclusive, To
// exclusive.
type ExportFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
}
