package symptom

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLight    Severity = "light"
	SeverityModerate Severity = "moderate"
	SeverityHeavy    Severity = "heavy"
)

var validSeverities = map[Severity]bool{
	SeverityLight: true, SeverityModerate: true, SeverityHeavy: true,
}

// Log is one patient-authored symptom entry. A patient may log any number
// of entries per day.
type Log struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	PatientID        uuid.UUID       `db:"patient_id" json:"patient_id"`
	LogDate          time.Time       `db:"log_date" json:"log_date"`
	Symptoms         map[string]bool `db:"symptoms" json:"symptoms"`
	PainLevel        int             `db:"pain_level" json:"pain_level"`
	FatigueLevel     int             `db:"fatigue_level" json:"fatigue_level"`
	Bleeding         bool            `db:"bleeding" json:"bleeding"`
	BleedingSeverity *Severity       `db:"bleeding_severity" json:"bleeding_severity,omitempty"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`

	// ClientRef echoes the caller's correlation id so optimistic entries can
	// be reconciled. It is not stored.
	ClientRef string `json:"client_ref,omitempty"`
}

type CreateInput struct {
	LogDate          string          `json:"log_date"`
	Symptoms         map[string]bool `json:"symptoms"`
	PainLevel        *int            `json:"pain_level"`
	FatigueLevel     *int            `json:"fatigue_level"`
	Bleeding         bool            `json:"bleeding"`
	BleedingSeverity string          `json:"bleeding_severity"`
	Notes            string          `json:"notes"`
	ClientRef        string          `json:"client_ref"`
}

// Range bounds a listing by log date, both ends inclusive.
type Range struct {
	From *time.Time
	To   *time.Time
}
