package connection

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Connection) error
	Get(ctx context.Context, patientID, doctorID uuid.UUID) (*Connection, error)
	Exists(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*ConnectedPatient, int, error)
	ListDoctors(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ConnectedDoctor, int, error)
}
