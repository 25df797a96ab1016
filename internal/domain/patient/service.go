package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/phone"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

var validMaritalStatuses = map[string]bool{
	"single": true, "married": true, "divorced": true, "widowed": true, "separated": true,
}

// AccessChecker reports whether a doctor is connected to a patient.
type AccessChecker interface {
	CanAccessPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

type Service struct {
	repo        Repository
	access      AccessChecker
	phoneRegion string
	changes     realtime.Publisher
	now         func() time.Time
}

func NewService(repo Repository, phoneRegion string) *Service {
	return &Service{repo: repo, phoneRegion: phoneRegion, changes: realtime.Nop{}, now: time.Now}
}

func (s *Service) SetAccessChecker(a AccessChecker)  { s.access = a }
func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }

// EnsureForUser returns the patient profile for userID, creating it if a
// previous provisioning step never ran.
func (s *Service) EnsureForUser(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := s.repo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Store(err, "ensure patient profile")
	}
	return p, nil
}

// Provision creates the profile for a newly registered patient.
func (s *Service) Provision(ctx context.Context, userID uuid.UUID) error {
	p, err := s.EnsureForUser(ctx, userID)
	if err != nil {
		return err
	}
	s.changes.Publish(ctx, realtime.Change{
		Table: "patients", Op: realtime.OpInsert, ID: p.ID.String(),
		Filters: map[string]string{"user_id": userID.String()},
	})
	return nil
}

// PatientIDForUser returns the patient id owned by userID without creating one.
func (s *Service) PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return p.ID, true, nil
}

// Me returns the caller's own profile. Only patients have one.
func (s *Service) Me(ctx context.Context, id auth.Identity) (*Patient, error) {
	if !id.IsPatient() {
		return nil, apperr.Unauthorized("only patients have a patient profile")
	}
	return s.EnsureForUser(ctx, id.UserID)
}

func (s *Service) UpdateMe(ctx context.Context, id auth.Identity, in UpdateInput) (*Patient, error) {
	p, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperr.Store(err, "update patient profile")
	}
	s.changes.Publish(ctx, realtime.Change{
		Table: "patients", Op: realtime.OpUpdate, ID: p.ID.String(),
		Filters: map[string]string{"user_id": p.UserID.String()},
	})
	return p, nil
}

func (s *Service) apply(p *Patient, in UpdateInput) error {
	p.DateOfBirth = nil
	if v := strings.TrimSpace(in.DateOfBirth); v != "" {
		dob, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return apperr.Validation("date_of_birth", "date of birth must be YYYY-MM-DD")
		}
		if dob.After(s.now().UTC()) {
			return apperr.Validation("date_of_birth", "date of birth cannot be in the future")
		}
		p.DateOfBirth = &dob
	}

	p.BloodGroup = nil
	if v := strings.ToUpper(strings.TrimSpace(in.BloodGroup)); v != "" {
		if !validBloodGroups[v] {
			return apperr.Validation("blood_group", "invalid blood group: %s", in.BloodGroup)
		}
		p.BloodGroup = &v
	}

	p.MaritalStatus = nil
	if v := strings.ToLower(strings.TrimSpace(in.MaritalStatus)); v != "" {
		if !validMaritalStatuses[v] {
			return apperr.Validation("marital_status", "invalid marital status: %s", in.MaritalStatus)
		}
		p.MaritalStatus = &v
	}

	p.EmergencyContactName = optional(in.EmergencyContactName)

	num, err := phone.Normalize(in.EmergencyContactPhone, s.phoneRegion)
	if err != nil {
		return apperr.Validation("emergency_contact_phone", "emergency contact phone is not valid")
	}
	p.EmergencyContactPhone = optional(num)
	return nil
}

// Authorize loads a patient and checks that the caller may see their data:
// the patient themself, an admin, or a connected doctor.
func (s *Service) Authorize(ctx context.Context, id auth.Identity, patientID uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("patient")
		}
		return nil, apperr.Store(err, "load patient")
	}

	switch {
	case id.IsAdmin():
		return p, nil
	case id.IsPatient() && p.UserID == id.UserID:
		return p, nil
	case id.IsDoctor() && s.access != nil:
		ok, err := s.access.CanAccessPatient(ctx, id.UserID, p.ID)
		if err != nil {
			return nil, apperr.Store(err, "check connection")
		}
		if ok {
			return p, nil
		}
	}
	return nil, apperr.Unauthorized("you do not have access to this patient")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
