package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// EnsureForUser returns the user's patient row, inserting it first if it
	// does not exist.
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*Patient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
}
