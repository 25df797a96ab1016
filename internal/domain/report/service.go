package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/patient"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/objectstore"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

const (
	MaxFileSize       = 50 << 20
	maxFileNameLength = 120
	maxDescriptionLen = 2000
	sniffLength       = 512
	downloadURLTTL    = 5 * time.Minute
	defaultReportType = "other"
)

// PatientAccess gates access to a patient's data.
type PatientAccess interface {
	Authorize(ctx context.Context, id auth.Identity, patientID uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	store    objectstore.Store
	patients PatientAccess
	changes  realtime.Publisher
	logger   zerolog.Logger
	presign  bool
}

func NewService(repo Repository, store objectstore.Store, patients PatientAccess) *Service {
	return &Service{repo: repo, store: store, patients: patients, changes: realtime.Nop{}, logger: zerolog.Nop()}
}

func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }

// EnablePresignedDownloads makes downloads redirect to a short-lived URL when
// the store supports it.
func (s *Service) EnablePresignedDownloads(on bool) { s.presign = on }

// Upload stores the file and then records it. If recording fails the stored
// object is removed.
func (s *Service) Upload(ctx context.Context, id auth.Identity, patientID uuid.UUID, in UploadInput) (*Report, error) {
	if _, err := s.patients.Authorize(ctx, id, patientID); err != nil {
		return nil, err
	}

	reportType := strings.ToLower(strings.TrimSpace(in.ReportType))
	if reportType == "" {
		reportType = defaultReportType
	}
	if !validReportTypes[reportType] {
		return nil, apperr.Validation("report_type", "invalid report type: %s", in.ReportType)
	}
	desc := strings.TrimSpace(in.Description)
	if len(desc) > maxDescriptionLen {
		return nil, apperr.Validation("description", "description must be at most %d characters", maxDescriptionLen)
	}
	if in.Size > MaxFileSize {
		return nil, apperr.Validation("file", "file must be at most %d MB", MaxFileSize>>20)
	}
	if in.Body == nil || in.Size == 0 {
		return nil, apperr.Validation("file", "file is required")
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Validation("file", "file could not be read")
	}
	head = head[:n]
	mimeType, err := detectMimeType(head, in.DeclaredType)
	if err != nil {
		return nil, err
	}

	name := sanitizeFileName(in.FileName)
	rep := &Report{
		ID:          uuid.New(),
		PatientID:   patientID,
		UploadedBy:  id.UserID,
		FileName:    name,
		StoragePath: fmt.Sprintf("reports/%s/%s-%s", patientID, uuid.New(), name),
		MimeType:    mimeType,
		ReportType:  reportType,
	}
	if id.IsDoctor() {
		rep.DoctorID = &id.UserID
	}
	if desc != "" {
		rep.Description = &desc
	}

	body := io.MultiReader(bytes.NewReader(head), in.Body)
	obj, err := s.store.Put(ctx, rep.StoragePath, mimeType, body, in.Size)
	if err != nil {
		if errors.Is(err, objectstore.ErrTooLarge) {
			return nil, apperr.Validation("file", "file must be at most %d MB", MaxFileSize>>20)
		}
		return nil, apperr.Store(err, "store report file")
	}
	rep.SizeBytes = obj.Size

	if err := s.repo.Create(ctx, rep); err != nil {
		if delErr := s.store.Delete(ctx, rep.StoragePath); delErr != nil {
			s.logger.Error().Err(delErr).Str("path", rep.StoragePath).Msg("orphaned report object")
		}
		return nil, apperr.Store(err, "create report record")
	}

	rep.URL = s.store.URL(rep.StoragePath)
	s.changes.Publish(ctx, realtime.Change{
		Table: "medical_reports", Op: realtime.OpInsert, ID: rep.ID.String(),
		Filters: map[string]string{"patient_id": patientID.String()},
	})
	return rep, nil
}

func (s *Service) ListForPatient(ctx context.Context, id auth.Identity, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	if _, err := s.patients.Authorize(ctx, id, patientID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list reports")
	}
	for _, r := range items {
		r.URL = s.store.URL(r.StoragePath)
	}
	return items, total, nil
}

// Get returns report metadata including its public URL.
func (s *Service) Get(ctx context.Context, id auth.Identity, reportID uuid.UUID) (*Report, error) {
	r, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.Authorize(ctx, id, r.PatientID); err != nil {
		return nil, err
	}
	r.URL = s.store.URL(r.StoragePath)
	return r, nil
}

// DownloadURL returns a presigned link when the store can issue one.
func (s *Service) DownloadURL(ctx context.Context, id auth.Identity, reportID uuid.UUID) (string, bool, error) {
	if !s.presign {
		return "", false, nil
	}
	p, ok := s.store.(objectstore.Presigner)
	if !ok {
		return "", false, nil
	}
	r, err := s.Get(ctx, id, reportID)
	if err != nil {
		return "", false, err
	}
	url, err := p.PresignGet(ctx, r.StoragePath, downloadURLTTL)
	if err != nil {
		return "", false, apperr.Store(err, "presign report download")
	}
	return url, true, nil
}

// Open streams the report bytes. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id auth.Identity, reportID uuid.UUID) (io.ReadCloser, *Report, error) {
	r, err := s.Get(ctx, id, reportID)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, r.StoragePath)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil, apperr.NotFound("report file")
		}
		return nil, nil, apperr.Store(err, "read report file")
	}
	return rc, r, nil
}

// Delete removes the record and then the stored object. Only the uploader
// and admins may delete.
func (s *Service) Delete(ctx context.Context, id auth.Identity, reportID uuid.UUID) error {
	r, err := s.load(ctx, reportID)
	if err != nil {
		return err
	}
	if !id.IsAdmin() && r.UploadedBy != id.UserID {
		return apperr.Unauthorized("only the uploader can delete this report")
	}
	if err := s.repo.Delete(ctx, r.ID); err != nil {
		if db.IsNoRows(err) {
			return apperr.NotFound("report")
		}
		return apperr.Store(err, "delete report record")
	}
	if err := s.store.Delete(ctx, r.StoragePath); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		s.logger.Error().Err(err).Str("path", r.StoragePath).Msg("orphaned report object")
	}
	s.changes.Publish(ctx, realtime.Change{
		Table: "medical_reports", Op: realtime.OpDelete, ID: r.ID.String(),
		Filters: map[string]string{"patient_id": r.PatientID.String()},
	})
	return nil
}

func (s *Service) load(ctx context.Context, reportID uuid.UUID) (*Report, error) {
	r, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("report")
		}
		return nil, apperr.Store(err, "load report")
	}
	return r, nil
}

// detectMimeType sniffs the content and checks it against the declared type.
func detectMimeType(head []byte, declared string) (string, error) {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	if !allowedMimeTypes[sniffed] {
		return "", apperr.Validation("file", "only PDF, JPEG and PNG files are allowed")
	}
	if declared != "" {
		d, _, err := mime.ParseMediaType(declared)
		if err == nil && d != "application/octet-stream" && d != sniffed {
			return "", apperr.Validation("file", "file content does not match its type %s", d)
		}
	}
	return sniffed, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "report"
	}
	if len(out) > maxFileNameLength {
		ext := filepath.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		out = out[:maxFileNameLength-len(ext)] + ext
	}
	return out
}
