package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the clinical profile attached to a patient account. DisplayName
// and Email are read from the owning user.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	UserID                uuid.UUID  `db:"user_id" json:"user_id"`
	DateOfBirth           *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	BloodGroup            *string    `db:"blood_group" json:"blood_group,omitempty"`
	MaritalStatus         *string    `db:"marital_status" json:"marital_status,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`

	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// UpdateInput is the self-service profile update. Empty strings clear a field.
type UpdateInput struct {
	DateOfBirth           string `json:"date_of_birth"`
	BloodGroup            string `json:"blood_group"`
	MaritalStatus         string `json:"marital_status"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
}
