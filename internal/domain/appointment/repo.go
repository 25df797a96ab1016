package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update sets the status and, when at is non-nil, the appointment date,
	// provided the stored status is one of from. It returns pgx.ErrNoRows
	// when no row matched.
	Update(ctx context.Context, id uuid.UUID, from []Status, to Status, at *time.Time) error
	// ClaimReminder records a reminder for the appointment at its current
	// time. It reports false when one was already recorded.
	ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ReleaseReminder drops a claim whose email could not be sent.
	ReleaseReminder(ctx context.Context, id uuid.UUID, at time.Time) error
	// List returns matching appointments in ascending date order.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}
