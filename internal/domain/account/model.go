package account

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated account. Role never changes after creation.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Role         string    `db:"role" json:"role"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Profile is the public view returned by /auth/me.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	Phone       *string   `json:"phone,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Role: u.Role, DisplayName: u.DisplayName, Phone: u.Phone}
}

type SignUpInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	DisplayName     string `json:"display_name"`
	Phone           string `json:"phone"`
	Role            string `json:"role"`
}

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// ListFilter narrows an admin user listing. Zero values match everything.
type ListFilter struct {
	Role   string
	Query  string
	Active *bool
}
