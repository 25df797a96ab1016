package symptom

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *Log) error
	// ListByPatient returns logs newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, r Range, limit, offset int) ([]*Log, int, error)
}
