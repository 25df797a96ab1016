package admin

import (
	"context"
	"time"
)

type Repository interface {
	CountUsersByRole(ctx context.Context) (map[string]int, error)
	CountAppointmentsByStatus(ctx context.Context) (map[string]int, error)
	// CountPending counts pending appointments dated in [from, to).
	CountPending(ctx context.Context, from, to time.Time) (int, error)
	CountReports(ctx context.Context) (int, error)
	CountUnreadMessages(ctx context.Context) (int, error)
	// ExportAppointments returns at most limit rows ordered by date.
	ExportAppointments(ctx context.Context, f ExportFilter, limit int) ([]*ExportRow, error)
}
