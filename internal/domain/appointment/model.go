package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusScheduled: true, StatusCancelled: true,
	StatusCompleted: true, StatusNoShow: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// transitions lists the statuses reachable from each status. scheduled to
// scheduled is a reschedule.
var transitions = map[Status][]Status{
	StatusPending:   {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusScheduled, StatusCancelled, StatusCompleted, StatusNoShow},
}

// CanTransition reports whether an appointment in from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeConsultation     Type = "consultation"
	TypeFollowUp         Type = "follow_up"
	TypeScreening        Type = "screening"
	TypeTreatment        Type = "treatment"
	TypeTeleconsultation Type = "teleconsultation"
)

var validTypes = map[Type]bool{
	TypeConsultation: true, TypeFollowUp: true, TypeScreening: true,
	TypeTreatment: true, TypeTeleconsultation: true,
}

func (t Type) Valid() bool { return validTypes[t] }

// Appointment is a booking between a patient and a doctor. A pending
// appointment's date is midnight UTC of the requested day; confirming sets
// the exact time.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	Type            Type      `db:"appointment_type" json:"appointment_type"`
	Status          Status    `db:"status" json:"status"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	PatientName  string `json:"patient_name,omitempty"`
	PatientEmail string `json:"-"`
	DoctorName   string `json:"doctor_name,omitempty"`
}

type RequestInput struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Type     string    `json:"appointment_type"`
	Notes    string    `json:"notes"`
}

// ListFilter narrows a listing. From is inclusive and To exclusive.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    Status
	From      *time.Time
	To        *time.Time
}
