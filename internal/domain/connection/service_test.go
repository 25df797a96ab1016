package connection

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/account"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/patient"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

// -- Mocks --

type mockRepo struct {
	mu        sync.Mutex
	store     map[[2]uuid.UUID]*Connection
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[[2]uuid.UUID]*Connection)}
}

func (m *mockRepo) Create(_ context.Context, c *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	key := [2]uuid.UUID{c.PatientID, c.DoctorID}
	if _, ok := m.store[key]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	m.store[key] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, patientID, doctorID uuid.UUID) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[[2]uuid.UUID{patientID, doctorID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Exists(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[[2]uuid.UUID{patientID, doctorID}]
	return ok, nil
}

func (m *mockRepo) ListPatients(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*ConnectedPatient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*ConnectedPatient
	for _, c := range m.store {
		if c.DoctorID == doctorID {
			r = append(r, &ConnectedPatient{PatientID: c.PatientID, ConnectedAt: c.CreatedAt})
		}
	}
	return r, len(r), nil
}

func (m *mockRepo) ListDoctors(_ context.Context, patientID uuid.UUID, _, _ int) ([]*ConnectedDoctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*ConnectedDoctor
	for _, c := range m.store {
		if c.PatientID == patientID {
			r = append(r, &ConnectedDoctor{DoctorID: c.DoctorID, ConnectedAt: c.CreatedAt})
		}
	}
	return r, len(r), nil
}

type mockDoctors map[uuid.UUID]*account.User

func (m mockDoctors) GetDoctor(_ context.Context, id uuid.UUID) (*account.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("doctor")
	}
	return u, nil
}

type mockPatients struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]*patient.Patient
	err    error
}

func (m *mockPatients) EnsureForUser(_ context.Context, userID uuid.UUID) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byUser[userID]
	if !ok {
		p = &patient.Patient{ID: uuid.New(), UserID: userID}
		m.byUser[userID] = p
	}
	return p, nil
}

func (m *mockPatients) PatientIDForUser(_ context.Context, userID uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUser[userID]
	if !ok {
		return uuid.Nil, false, nil
	}
	return p.ID, true, nil
}

type recordingPublisher struct {
	changes []realtime.Change
}

func (p *recordingPublisher) Publish(_ context.Context, c realtime.Change) {
	p.changes = append(p.changes, c)
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	patients *mockPatients
	pub      *recordingPublisher
	doctor   *account.User
}

func newFixture() *fixture {
	doctor := &account.User{ID: uuid.New(), Role: auth.RoleDoctor, DisplayName: "Dr. Rao", Active: true}
	f := &fixture{
		repo:     newMockRepo(),
		patients: &mockPatients{byUser: make(map[uuid.UUID]*patient.Patient)},
		pub:      &recordingPublisher{},
		doctor:   doctor,
	}
	f.svc = NewService(f.repo, mockDoctors{doctor.ID: doctor}, f.patients)
	f.svc.SetPublisher(f.pub)
	f.svc.qrSize = 256
	return f
}

func patientIdentity() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}
}

// -- Tests --

func TestService_Scan_CreatesConnection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := patientIdentity()

	res, err := f.svc.Scan(ctx, id, EncodePayload(f.doctor.ID))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.AlreadyConnected {
		t.Error("first scan should create the connection")
	}
	if res.BookingURL != "/appointments/new?doctorId="+f.doctor.ID.String() {
		t.Errorf("booking url = %s", res.BookingURL)
	}
	if res.Doctor.DisplayName != "Dr. Rao" {
		t.Errorf("doctor = %+v", res.Doctor)
	}

	// The patient profile was repaired on demand.
	patientID, ok, _ := f.patients.PatientIDForUser(ctx, id.UserID)
	if !ok || res.Connection.PatientID != patientID {
		t.Errorf("connection patient = %s, want %s", res.Connection.PatientID, patientID)
	}
	if ok, _ := f.svc.CanAccessPatient(ctx, f.doctor.ID, patientID); !ok {
		t.Error("doctor should have access after scanning")
	}
	if len(f.pub.changes) != 1 || f.pub.changes[0].Filters["doctor_id"] != f.doctor.ID.String() {
		t.Errorf("unexpected changes %+v", f.pub.changes)
	}
}

func TestService_Scan_Twice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := patientIdentity()

	first, err := f.svc.Scan(ctx, id, EncodePayload(f.doctor.ID))
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Scan(ctx, id, EncodePayload(f.doctor.ID))
	if err != nil {
		t.Fatalf("second scan should succeed, got %v", err)
	}
	if !second.AlreadyConnected || second.Connection.ID != first.Connection.ID {
		t.Errorf("expected the existing connection, got %+v", second.Connection)
	}
	if len(f.repo.store) != 1 {
		t.Errorf("expected a single connection row, got %d", len(f.repo.store))
	}
	if second.BookingURL != first.BookingURL {
		t.Error("both scans should redirect to booking")
	}
}

func TestService_Scan_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		text  func(f *fixture) string
		id    func() auth.Identity
		want  apperr.Kind
	}{
		{
			name: "doctor cannot scan",
			text: func(f *fixture) string { return EncodePayload(f.doctor.ID) },
			id:   func() auth.Identity { return auth.Identity{UserID: uuid.New(), Role: auth.RoleDoctor} },
			want: apperr.KindUnauthorized,
		},
		{
			name: "not json",
			text: func(*fixture) string { return "https://example.com" },
			want: apperr.KindMalformedPayload,
		},
		{
			name: "not a uuid",
			text: func(*fixture) string { return `{"doctorId":"dr-who"}` },
			want: apperr.KindMalformedPayload,
		},
		{
			name: "unknown doctor",
			text: func(*fixture) string { return EncodePayload(uuid.New()) },
			want: apperr.KindNotFound,
		},
		{
			name:  "insert fails",
			setup: func(f *fixture) { f.repo.createErr = errors.New("connection reset") },
			text:  func(f *fixture) string { return EncodePayload(f.doctor.ID) },
			want:  apperr.KindConnectionFailed,
		},
		{
			name:  "profile fails",
			setup: func(f *fixture) { f.patients.err = errors.New("timeout") },
			text:  func(f *fixture) string { return EncodePayload(f.doctor.ID) },
			want:  apperr.KindConnectionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			id := patientIdentity()
			if tt.id != nil {
				id = tt.id()
			}
			_, err := f.svc.Scan(context.Background(), id, tt.text(f))
			if !apperr.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if len(f.pub.changes) != 0 {
				t.Error("failed scans must not publish changes")
			}
		})
	}
}

func TestService_ScanImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doctorIdentity := auth.Identity{UserID: f.doctor.ID, Role: auth.RoleDoctor}

	qr, err := f.svc.QRCode(ctx, doctorIdentity)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	res, err := f.svc.ScanImage(ctx, patientIdentity(), qr)
	if err != nil {
		t.Fatalf("ScanImage: %v", err)
	}
	if res.Doctor.ID != f.doctor.ID {
		t.Errorf("connected to %s, want %s", res.Doctor.ID, f.doctor.ID)
	}
}

func TestService_ScanImage_NoCode(t *testing.T) {
	f := newFixture()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(10, 10, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ScanImage(context.Background(), patientIdentity(), buf.Bytes()); !apperr.Is(err, apperr.KindMalformedPayload) {
		t.Errorf("expected malformed payload, got %v", err)
	}
}

func TestService_QRCode_DoctorOnly(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.QRCode(context.Background(), patientIdentity()); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestService_AreConnected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := patientIdentity()

	if ok, err := f.svc.AreConnected(ctx, f.doctor.ID, id.UserID); ok || err != nil {
		t.Fatalf("expected not connected, got %v %v", ok, err)
	}
	if _, err := f.svc.Scan(ctx, id, EncodePayload(f.doctor.ID)); err != nil {
		t.Fatal(err)
	}
	if ok, err := f.svc.AreConnected(ctx, f.doctor.ID, id.UserID); !ok || err != nil {
		t.Errorf("expected connected, got %v %v", ok, err)
	}
}

func TestService_Lists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := patientIdentity()
	if _, err := f.svc.Scan(ctx, id, EncodePayload(f.doctor.ID)); err != nil {
		t.Fatal(err)
	}

	doctors, total, err := f.svc.ListDoctors(ctx, id, 20, 0)
	if err != nil || total != 1 || doctors[0].DoctorID != f.doctor.ID {
		t.Errorf("ListDoctors = %v, %d, %v", doctors, total, err)
	}
	patients, total, err := f.svc.ListPatients(ctx, auth.Identity{UserID: f.doctor.ID, Role: auth.RoleDoctor}, 20, 0)
	if err != nil || total != 1 || len(patients) != 1 {
		t.Errorf("ListPatients = %v, %d, %v", patients, total, err)
	}

	other := patientIdentity()
	doctors, total, err = f.svc.ListDoctors(ctx, other, 20, 0)
	if err != nil || total != 0 || len(doctors) != 0 {
		t.Errorf("patient without profile: %v, %d, %v", doctors, total, err)
	}

	if _, _, err := f.svc.ListPatients(ctx, id, 20, 0); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized for patient, got %v", err)
	}
}
