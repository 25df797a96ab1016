package admin

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
)

// -- Mocks --

type mockRepo struct {
	users        map[string]int
	appointments map[string]int
	rows         []*ExportRow
	pendingFrom  time.Time
	lastFilter   ExportFilter
	err          error
}

func (m *mockRepo) CountUsersByRole(context.Context) (map[string]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]int{}
	for k, v := range m.users {
		out[k] = v
	}
	return out, nil
}

func (m *mockRepo) CountAppointmentsByStatus(context.Context) (map[string]int, error) {
	return m.appointments, nil
}

func (m *mockRepo) CountPending(_ context.Context, from, _ time.Time) (int, error) {
	m.pendingFrom = from
	return 3, nil
}

func (m *mockRepo) CountReports(context.Context) (int, error)        { return 12, nil }
func (m *mockRepo) CountUnreadMessages(context.Context) (int, error) { return 5, nil }

func (m *mockRepo) ExportAppointments(_ context.Context, f ExportFilter, limit int) ([]*ExportRow, error) {
	m.lastFilter = f
	if len(m.rows) > limit {
		return m.rows[:limit], nil
	}
	return m.rows, nil
}

var testNow = time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := &mockRepo{
		users:        map[string]int{auth.RolePatient: 40, auth.RoleDoctor: 6},
		appointments: map[string]int{"pending": 4, "scheduled": 9},
	}
	svc := NewService(repo)
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

var adminID = auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}

// -- Tests --

func TestService_Dashboard(t *testing.T) {
	svc, repo := newTestService()
	d, err := svc.Dashboard(context.Background(), adminID)
	if err != nil {
		t.Fatal(err)
	}
	if d.UsersByRole[auth.RolePatient] != 40 || d.UsersByRole[auth.RoleAdmin] != 0 {
		t.Errorf("users by role = %v", d.UsersByRole)
	}
	if _, ok := d.UsersByRole[auth.RoleAdmin]; !ok {
		t.Error("every role should be present")
	}
	if d.PendingToday != 3 || d.Reports != 12 || d.UnreadMessages != 5 {
		t.Errorf("unexpected dashboard %+v", d)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !repo.pendingFrom.Equal(want) {
		t.Errorf("pending window starts %v, want %v", repo.pendingFrom, want)
	}
}

func TestService_Dashboard_AdminOnly(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Dashboard(context.Background(), auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor})
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestService_Dashboard_StoreFailure(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("pool closed")
	if _, err := svc.Dashboard(context.Background(), adminID); !apperr.Is(err, apperr.KindStoreFailure) {
		t.Errorf("expected store failure, got %v", err)
	}
}

func TestService_ExportAppointments(t *testing.T) {
	svc, repo := newTestService()
	notes := "Bring previous Pap results"
	repo.rows = []*ExportRow{
		{ID: uuid.New(), AppointmentDate: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), AppointmentType: "screening",
			Status: "scheduled", PatientName: "Amara Okafor", PatientEmail: "amara@example.com", DoctorName: "Dr. Lin", Notes: &notes},
		{ID: uuid.New(), AppointmentDate: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), AppointmentType: "consultation",
			Status: "pending", PatientName: "Rita Gomez", PatientEmail: "rita@example.com", DoctorName: "Dr. Lin"},
	}

	data, n, err := svc.ExportAppointments(context.Background(), adminID, ExportQuery{From: "2026-03-01", To: "2026-03-31"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC); repo.lastFilter.To == nil || !repo.lastFilter.To.Equal(want) {
		t.Errorf("to should be exclusive next day, got %v", repo.lastFilter.To)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Appointment ID" || rows[1][1] != "2026-03-02 09:00:00" || rows[1][7] != notes {
		t.Errorf("unexpected rows %v", rows[:2])
	}
	if rows[2][3] != "pending" {
		t.Errorf("status column = %q", rows[2][3])
	}
}

func TestService_ExportAppointments_Validation(t *testing.T) {
	tests := []struct {
		name string
		q    ExportQuery
	}{
		{"bad from", ExportQuery{From: "03/01/2026"}},
		{"bad to", ExportQuery{To: "tomorrow"}},
		{"inverted", ExportQuery{From: "2026-03-10", To: "2026-03-01"}},
		{"bad status", ExportQuery{Status: "archived"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			if _, _, err := svc.ExportAppointments(context.Background(), adminID, tt.q); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_ExportAppointments_Empty(t *testing.T) {
	svc, _ := newTestService()
	data, n, err := svc.ExportAppointments(context.Background(), adminID, ExportQuery{Status: "completed"})
	if err != nil || n != 0 || len(data) == 0 {
		t.Fatalf("export = %d bytes, %d rows, %v", len(data), n, err)
	}
}
