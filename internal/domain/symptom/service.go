package symptom

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/patient"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

const (
	minLevel        = 0
	maxLevel        = 10
	maxSymptoms     = 32
	maxSymptomName  = 40
	maxNotesLength  = 2000
	maxClientRefLen = 64
)

// PatientAccess resolves the caller's own profile and gates access to other
// patients' data.
type PatientAccess interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*patient.Patient, error)
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)
	Authorize(ctx context.Context, id auth.Identity, patientID uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientAccess
	changes  realtime.Publisher
	now      func() time.Time
}

func NewService(repo Repository, patients PatientAccess) *Service {
	return &Service{repo: repo, patients: patients, changes: realtime.Nop{}, now: time.Now}
}

func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }

// Create records a symptom entry for the calling patient.
func (s *Service) Create(ctx context.Context, id auth.Identity, in CreateInput) (*Log, error) {
	if !id.IsPatient() {
		return nil, apperr.Unauthorized("only patients can log symptoms")
	}
	l, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.EnsureForUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	l.PatientID = p.ID

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, apperr.Store(err, "create symptom log")
	}
	l.ClientRef = in.ClientRef
	s.changes.Publish(ctx, realtime.Change{
		Table: "symptom_logs", Op: realtime.OpInsert, ID: l.ID.String(),
		Filters: map[string]string{"patient_id": p.ID.String()},
	})
	return l, nil
}

func (s *Service) validate(in CreateInput) (*Log, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	l := &Log{LogDate: today, Bleeding: in.Bleeding, Symptoms: map[string]bool{}}

	if v := strings.TrimSpace(in.LogDate); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, apperr.Validation("log_date", "log_date must be YYYY-MM-DD")
		}
		if d.After(today) {
			return nil, apperr.Validation("log_date", "log_date cannot be in the future")
		}
		l.LogDate = d
	}

	if len(in.Symptoms) > maxSymptoms {
		return nil, apperr.Validation("symptoms", "at most %d symptoms can be logged", maxSymptoms)
	}
	for name, present := range in.Symptoms {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || len(key) > maxSymptomName {
			return nil, apperr.Validation("symptoms", "invalid symptom name %q", name)
		}
		l.Symptoms[key] = present
	}

	if in.PainLevel == nil || *in.PainLevel < minLevel || *in.PainLevel > maxLevel {
		return nil, apperr.Validation("pain_level", "pain_level must be between %d and %d", minLevel, maxLevel)
	}
	l.PainLevel = *in.PainLevel
	if in.FatigueLevel == nil || *in.FatigueLevel < minLevel || *in.FatigueLevel > maxLevel {
		return nil, apperr.Validation("fatigue_level", "fatigue_level must be between %d and %d", minLevel, maxLevel)
	}
	l.FatigueLevel = *in.FatigueLevel

	if sev := Severity(strings.ToLower(strings.TrimSpace(in.BleedingSeverity))); sev != "" {
		if !in.Bleeding {
			return nil, apperr.Validation("bleeding_severity", "bleeding_severity requires bleeding")
		}
		if !validSeverities[sev] {
			return nil, apperr.Validation("bleeding_severity", "invalid bleeding severity: %s", in.BleedingSeverity)
		}
		l.BleedingSeverity = &sev
	}

	if notes := strings.TrimSpace(in.Notes); notes != "" {
		if len(notes) > maxNotesLength {
			return nil, apperr.Validation("notes", "notes must be at most %d characters", maxNotesLength)
		}
		l.Notes = &notes
	}
	if len(in.ClientRef) > maxClientRefLen {
		return nil, apperr.Validation("client_ref", "client_ref is too long")
	}
	return l, nil
}

// ListOwn returns the calling patient's logs, newest first.
func (s *Service) ListOwn(ctx context.Context, id auth.Identity, r Range, limit, offset int) ([]*Log, int, error) {
	if !id.IsPatient() {
		return nil, 0, apperr.Unauthorized("only patients have symptom logs")
	}
	patientID, ok, err := s.patients.PatientIDForUser(ctx, id.UserID)
	if err != nil {
		return nil, 0, apperr.Store(err, "load patient profile")
	}
	if !ok {
		return []*Log{}, 0, nil
	}
	return s.list(ctx, patientID, r, limit, offset)
}

// ListForPatient returns a patient's logs to anyone allowed to see the
// patient: the patient, an admin or a connected doctor.
func (s *Service) ListForPatient(ctx context.Context, id auth.Identity, patientID uuid.UUID, r Range, limit, offset int) ([]*Log, int, error) {
	if _, err := s.patients.Authorize(ctx, id, patientID); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, patientID, r, limit, offset)
}

func (s *Service) list(ctx context.Context, patientID uuid.UUID, r Range, limit, offset int) ([]*Log, int, error) {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return nil, 0, apperr.Validation("to", "to must not be before from")
	}
	items, total, err := s.repo.ListByPatient(ctx, patientID, r, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list symptom logs")
	}
	return items, total, nil
}
