package connection

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/account"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/patient"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

// DoctorDirectory resolves active doctor accounts.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*account.User, error)
}

// PatientProfiles resolves and lazily creates patient profiles.
type PatientProfiles interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*patient.Patient, error)
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)
}

// BookingURL is where a patient lands after connecting to a doctor.
func BookingURL(doctorID uuid.UUID) string {
	return fmt.Sprintf("/appointments/new?doctorId=%s", doctorID)
}

type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	patients PatientProfiles
	changes  realtime.Publisher
	qrSize   int
}

func NewService(repo Repository, doctors DoctorDirectory, patients PatientProfiles) *Service {
	return &Service{repo: repo, doctors: doctors, patients: patients, changes: realtime.Nop{}, qrSize: defaultQRSize}
}

func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }

// QRCode renders the calling doctor's connection code as a PNG.
func (s *Service) QRCode(_ context.Context, id auth.Identity) ([]byte, error) {
	if !id.IsDoctor() {
		return nil, apperr.Unauthorized("only doctors have a connection code")
	}
	png, err := EncodeQR(EncodePayload(id.UserID), s.qrSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "render QR code")
	}
	return png, nil
}

// ScanImage decodes a QR code image and connects as Scan does.
func (s *Service) ScanImage(ctx context.Context, id auth.Identity, image []byte) (*ScanResult, error) {
	if !id.IsPatient() {
		return nil, apperr.Unauthorized("only patients can scan a doctor's code")
	}
	text, err := DecodeQR(image)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, id, text)
}

// Scan connects the calling patient to the doctor named in the QR text.
// Scanning a doctor the patient is already connected to succeeds.
func (s *Service) Scan(ctx context.Context, id auth.Identity, text string) (*ScanResult, error) {
	if !id.IsPatient() {
		return nil, apperr.Unauthorized("only patients can scan a doctor's code")
	}
	raw, err := DecodePayload(text)
	if err != nil {
		return nil, err
	}
	doctorID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.New(apperr.KindMalformedPayload, "invalid QR code: unknown doctor")
	}
	doctor, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	p, err := s.patients.EnsureForUser(ctx, id.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConnectionFailed, err, "ensure patient profile")
	}

	result := &ScanResult{
		Doctor:     DoctorSummary{ID: doctor.ID, DisplayName: doctor.DisplayName},
		BookingURL: BookingURL(doctor.ID),
	}
	conn := &Connection{PatientID: p.ID, DoctorID: doctor.ID}
	if err := s.repo.Create(ctx, conn); err != nil {
		if !db.IsUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.KindConnectionFailed, err, "create connection")
		}
		existing, err := s.repo.Get(ctx, p.ID, doctor.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConnectionFailed, err, "load connection")
		}
		result.Connection = existing
		result.AlreadyConnected = true
		return result, nil
	}

	result.Connection = conn
	s.changes.Publish(ctx, realtime.Change{
		Table: "doctor_patient_connections", Op: realtime.OpInsert, ID: conn.ID.String(),
		Filters: map[string]string{"patient_id": p.ID.String(), "doctor_id": doctor.ID.String()},
	})
	return result, nil
}

// CanAccessPatient reports whether doctorID is currently connected to
// patientID.
func (s *Service) CanAccessPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, doctorID, patientID)
}

// AreConnected reports whether the doctor and patient accounts are connected.
// A patient account without a profile has no connections.
func (s *Service) AreConnected(ctx context.Context, doctorUserID, patientUserID uuid.UUID) (bool, error) {
	patientID, ok, err := s.patients.PatientIDForUser(ctx, patientUserID)
	if err != nil || !ok {
		return false, err
	}
	return s.repo.Exists(ctx, doctorUserID, patientID)
}

func (s *Service) ListPatients(ctx context.Context, id auth.Identity, limit, offset int) ([]*ConnectedPatient, int, error) {
	if !id.IsDoctor() {
		return nil, 0, apperr.Unauthorized("only doctors have connected patients")
	}
	items, total, err := s.repo.ListPatients(ctx, id.UserID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list connected patients")
	}
	return items, total, nil
}

func (s *Service) ListDoctors(ctx context.Context, id auth.Identity, limit, offset int) ([]*ConnectedDoctor, int, error) {
	if !id.IsPatient() {
		return nil, 0, apperr.Unauthorized("only patients have connected doctors")
	}
	patientID, ok, err := s.patients.PatientIDForUser(ctx, id.UserID)
	if err != nil {
		return nil, 0, apperr.Store(err, "load patient profile")
	}
	if !ok {
		return []*ConnectedDoctor{}, 0, nil
	}
	items, total, err := s.repo.ListDoctors(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list connected doctors")
	}
	return items, total, nil
}
