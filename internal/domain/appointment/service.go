package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/account"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/patient"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/notification"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

const maxNotesLength = 2000

// reminderBatch bounds one page of the reminder scan.
const reminderBatch = 100

type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*account.User, error)
}

type PatientProfiles interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*patient.Patient, error)
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, to, templateID string, data map[string]string) error
}

type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	patients PatientProfiles
	notifier Notifier
	changes  realtime.Publisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, doctors DoctorDirectory, patients PatientProfiles) *Service {
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		changes:  realtime.Nop{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

func (s *Service) SetNotifier(n Notifier)            { s.notifier = n }
func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }

func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// Request books a pending appointment for the calling patient on a calendar
// day. The doctor picks the exact time when confirming.
func (s *Service) Request(ctx context.Context, id auth.Identity, in RequestInput) (*Appointment, error) {
	if !id.IsPatient() {
		return nil, apperr.Unauthorized("only patients can request appointments")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctor_id", "doctor is required")
	}
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, apperr.Validation("date", "date must be YYYY-MM-DD")
	}
	if day.Before(s.today()) {
		return nil, apperr.Validation("date", "date cannot be in the past")
	}
	typ := Type(strings.TrimSpace(in.Type))
	if !typ.Valid() {
		return nil, apperr.Validation("appointment_type", "invalid appointment type: %s", in.Type)
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLength {
		return nil, apperr.Validation("notes", "notes must be at most %d characters", maxNotesLength)
	}

	doctor, err := s.doctors.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.EnsureForUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:       p.ID,
		DoctorID:        doctor.ID,
		AppointmentDate: day,
		Type:            typ,
		Status:          StatusPending,
		PatientName:     p.DisplayName,
		PatientEmail:    p.Email,
		DoctorName:      doctor.DisplayName,
	}
	if notes != "" {
		a.Notes = &notes
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, apperr.Store(err, "create appointment")
	}
	s.publish(ctx, realtime.OpInsert, a)
	return a, nil
}

// Get returns an appointment visible to the caller.
func (s *Service) Get(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.load(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, id, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Confirm accepts a pending request at an exact time.
func (s *Service) Confirm(ctx context.Context, id auth.Identity, apptID uuid.UUID, dateTime string) (*Appointment, error) {
	at, err := s.parseDateTime(dateTime)
	if err != nil {
		return nil, err
	}
	a, err := s.loadForDoctor(ctx, id, apptID)
	if err != nil {
		return nil, err
	}
	updated, err := s.move(ctx, a, []Status{StatusPending}, StatusScheduled, &at)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated, notification.TemplateAppointmentConfirmed)
	return updated, nil
}

// Decline rejects a pending request.
func (s *Service) Decline(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.loadForDoctor(ctx, id, apptID)
	if err != nil {
		return nil, err
	}
	updated, err := s.move(ctx, a, []Status{StatusPending}, StatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated, notification.TemplateAppointmentDeclined)
	return updated, nil
}

// Reschedule moves a scheduled appointment to a new time.
func (s *Service) Reschedule(ctx context.Context, id auth.Identity, apptID uuid.UUID, dateTime string) (*Appointment, error) {
	at, err := s.parseDateTime(dateTime)
	if err != nil {
		return nil, err
	}
	a, err := s.loadForDoctor(ctx, id, apptID)
	if err != nil {
		return nil, err
	}
	updated, err := s.move(ctx, a, []Status{StatusScheduled}, StatusScheduled, &at)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated, notification.TemplateAppointmentMoved)
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.loadForDoctor(ctx, id, apptID)
	if err != nil {
		return nil, err
	}
	return s.move(ctx, a, []Status{StatusScheduled}, StatusCompleted, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.loadForDoctor(ctx, id, apptID)
	if err != nil {
		return nil, err
	}
	return s.move(ctx, a, []Status{StatusScheduled}, StatusNoShow, nil)
}

// Cancel withdraws a pending or scheduled appointment. The owning doctor,
// the patient and admins may cancel.
func (s *Service) Cancel(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.load(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, id, a); err != nil {
		return nil, err
	}
	return s.move(ctx, a, []Status{StatusPending, StatusScheduled}, StatusCancelled, nil)
}

// ListQuery is the caller-facing listing request. PatientID and DoctorID are
// honoured for admins only.
type ListQuery struct {
	Status    string
	Upcoming  bool
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}

// List returns the caller's appointments in ascending date order.
func (s *Service) List(ctx context.Context, id auth.Identity, q ListQuery, limit, offset int) ([]*Appointment, int, error) {
	var f ListFilter
	if q.Status != "" {
		st := Status(q.Status)
		if !st.Valid() {
			return nil, 0, apperr.Validation("status", "invalid status: %s", q.Status)
		}
		f.Status = st
	}
	if q.Upcoming {
		now := s.now().UTC()
		f.From = &now
	}

	switch {
	case id.IsAdmin():
		f.PatientID, f.DoctorID = q.PatientID, q.DoctorID
	case id.IsDoctor():
		f.DoctorID = &id.UserID
	case id.IsPatient():
		patientID, ok, err := s.patients.PatientIDForUser(ctx, id.UserID)
		if err != nil {
			return nil, 0, apperr.Store(err, "load patient profile")
		}
		if !ok {
			return []*Appointment{}, 0, nil
		}
		f.PatientID = &patientID
	default:
		return nil, 0, apperr.Unauthorized("role cannot list appointments")
	}

	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list appointments")
	}
	return items, total, nil
}

// SendReminders emails every patient with a scheduled appointment tomorrow
// (UTC). Each appointment time is claimed before sending, so overlapping or
// repeated runs send at most one reminder per time. A failed send releases
// its claim and is retried on the next run.
func (s *Service) SendReminders(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	from := s.today().Add(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	f := ListFilter{Status: StatusScheduled, From: &from, To: &to}

	sent, failed, skipped := 0, 0, 0
	for offset := 0; ; offset += reminderBatch {
		items, total, err := s.repo.List(ctx, f, reminderBatch, offset)
		if err != nil {
			return apperr.Store(err, "list appointments for reminders")
		}
		for _, a := range items {
			claimed, err := s.repo.ClaimReminder(ctx, a.ID, a.AppointmentDate)
			if err != nil {
				return apperr.Store(err, "claim appointment reminder")
			}
			if !claimed {
				skipped++
				continue
			}
			if err := s.notifier.Notify(ctx, a.PatientEmail, notification.TemplateAppointmentReminder, templateData(a)); err != nil {
				failed++
				s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("reminder not sent")
				if err := s.repo.ReleaseReminder(ctx, a.ID, a.AppointmentDate); err != nil {
					s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("release reminder claim")
				}
				continue
			}
			sent++
		}
		if offset+reminderBatch >= total || len(items) == 0 {
			break
		}
	}
	s.logger.Info().Int("sent", sent).Int("failed", failed).Int("already_sent", skipped).Time("day", from).
		Msg("appointment reminders")
	return nil
}

func (s *Service) load(ctx context.Context, apptID uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("appointment")
		}
		return nil, apperr.Store(err, "load appointment")
	}
	return a, nil
}

func (s *Service) loadForDoctor(ctx context.Context, id auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	if !id.IsDoctor() && !id.IsAdmin() {
		return nil, apperr.Unauthorized("only the doctor can change this appointment")
	}
	a, err := s.load(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if id.IsDoctor() && a.DoctorID != id.UserID {
		return nil, apperr.Unauthorized("this appointment belongs to another doctor")
	}
	return a, nil
}

func (s *Service) authorizeRead(ctx context.Context, id auth.Identity, a *Appointment) error {
	switch {
	case id.IsAdmin():
		return nil
	case id.IsDoctor():
		if a.DoctorID == id.UserID {
			return nil
		}
	case id.IsPatient():
		patientID, ok, err := s.patients.PatientIDForUser(ctx, id.UserID)
		if err != nil {
			return apperr.Store(err, "load patient profile")
		}
		if ok && patientID == a.PatientID {
			return nil
		}
	}
	return apperr.Unauthorized("you do not have access to this appointment")
}

// move applies a transition after checking the current status. The write
// re-checks the stored status, so a request that lost a race to a concurrent
// transition fails with InvalidTransition instead of overwriting it.
func (s *Service) move(ctx context.Context, a *Appointment, from []Status, to Status, at *time.Time) (*Appointment, error) {
	allowed := false
	for _, st := range from {
		if a.Status == st {
			allowed = true
			break
		}
	}
	if !allowed || !CanTransition(a.Status, to) {
		return nil, apperr.InvalidTransition(string(a.Status), string(to))
	}

	if err := s.repo.Update(ctx, a.ID, from, to, at); err != nil {
		if !db.IsNoRows(err) {
			return nil, apperr.Store(err, "update appointment")
		}
		current, err := s.load(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.InvalidTransition(string(current.Status), string(to))
	}
	updated, err := s.load(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.OpUpdate, updated)
	return updated, nil
}

func (s *Service) parseDateTime(v string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, apperr.Validation("date_time", "date_time must be an RFC 3339 timestamp")
	}
	if at.Before(s.now()) {
		return time.Time{}, apperr.Validation("date_time", "date_time cannot be in the past")
	}
	return at.UTC(), nil
}

func (s *Service) publish(ctx context.Context, op realtime.Op, a *Appointment) {
	s.changes.Publish(ctx, realtime.Change{
		Table: "appointments", Op: op, ID: a.ID.String(),
		Filters: map[string]string{"patient_id": a.PatientID.String(), "doctor_id": a.DoctorID.String()},
	})
}

func (s *Service) notify(ctx context.Context, a *Appointment, templateID string) {
	if s.notifier == nil || a.PatientEmail == "" {
		return
	}
	if err := s.notifier.Notify(ctx, a.PatientEmail, templateID, templateData(a)); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Str("template", templateID).Msg("appointment email not sent")
	}
}

func templateData(a *Appointment) map[string]string {
	when := a.AppointmentDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	if a.Status == StatusPending || a.Status == StatusCancelled {
		when = a.AppointmentDate.UTC().Format("Mon, 02 Jan 2006")
	}
	return map[string]string{
		"name":   a.PatientName,
		"doctor": a.DoctorName,
		"type":   strings.ReplaceAll(string(a.Type), "_", " "),
		"when":   when,
	}
}
