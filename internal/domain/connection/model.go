package connection

import (
	"time"

	"github.com/google/uuid"
)

// Connection links a doctor to a patient. It is the only grant that lets a
// doctor read a patient's data.
type Connection struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ConnectedPatient struct {
	PatientID   uuid.UUID `json:"patient_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	ConnectedAt time.Time `json:"connected_at"`
}

type ConnectedDoctor struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

type DoctorSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// ScanResult is returned after a patient scans a doctor's code. BookingURL is
// where the client should navigate next.
type ScanResult struct {
	Connection       *Connection   `json:"connection"`
	Doctor           DoctorSummary `json:"doctor"`
	BookingURL       string        `json:"booking_url"`
	AlreadyConnected bool          `json:"already_connected"`
}
