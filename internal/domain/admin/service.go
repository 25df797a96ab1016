package admin

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/appointment"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
)

const maxExportRows = 10000

// ExportQuery is the raw export request. From and To are YYYY-MM-DD and both
// inclusive.
type ExportQuery struct {
	From   string
	To     string
	Status string
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop(), now: time.Now}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

func (s *Service) Dashboard(ctx context.Context, id auth.Identity) (*Dashboard, error) {
	if !id.IsAdmin() {
		return nil, apperr.Unauthorized("admin only")
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	d := &Dashboard{GeneratedAt: now}

	var err error
	if d.UsersByRole, err = s.repo.CountUsersByRole(ctx); err != nil {
		return nil, apperr.Store(err, "count users")
	}
	if d.AppointmentsByStatus, err = s.repo.CountAppointmentsByStatus(ctx); err != nil {
		return nil, apperr.Store(err, "count appointments")
	}
	if d.PendingToday, err = s.repo.CountPending(ctx, today, today.AddDate(0, 0, 1)); err != nil {
		return nil, apperr.Store(err, "count pending appointments")
	}
	if d.Reports, err = s.repo.CountReports(ctx); err != nil {
		return nil, apperr.Store(err, "count reports")
	}
	if d.UnreadMessages, err = s.repo.CountUnreadMessages(ctx); err != nil {
		return nil, apperr.Store(err, "count unread messages")
	}
	for _, role := range []string{auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin} {
		if _, ok := d.UsersByRole[role]; !ok {
			d.UsersByRole[role] = 0
		}
	}
	return d, nil
}

// ExportAppointments renders matching appointments as an XLSX workbook and
// returns it with the number of data rows.
func (s *Service) ExportAppointments(ctx context.Context, id auth.Identity, q ExportQuery) ([]byte, int, error) {
	if !id.IsAdmin() {
		return nil, 0, apperr.Unauthorized("admin only")
	}
	f, err := parseExportQuery(q)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.repo.ExportAppointments(ctx, f, maxExportRows)
	if err != nil {
		return nil, 0, apperr.Store(err, "export appointments")
	}
	if len(rows) == maxExportRows {
		s.logger.Warn().Int("limit", maxExportRows).Msg("appointment export truncated")
	}

	var buf bytes.Buffer
	if err := writeWorkbook(&buf, rows); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindUnknown, err, "render export")
	}
	return buf.Bytes(), len(rows), nil
}

func parseExportQuery(q ExportQuery) (ExportFilter, error) {
	var f ExportFilter
	if q.From != "" {
		t, err := time.Parse(time.DateOnly, q.From)
		if err != nil {
			return f, apperr.Validation("from", "from must be YYYY-MM-DD")
		}
		f.From = &t
	}
	if q.To != "" {
		t, err := time.Parse(time.DateOnly, q.To)
		if err != nil {
			return f, apperr.Validation("to", "to must be YYYY-MM-DD")
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, apperr.Validation("to", "to must not be before from")
	}
	if q.Status != "" {
		if !appointment.Status(q.Status).Valid() {
			return f, apperr.Validation("status", "invalid status: %s", q.Status)
		}
		f.Status = q.Status
	}
	return f, nil
}
