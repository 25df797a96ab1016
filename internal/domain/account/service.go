package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/notification"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/phone"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

const minPasswordLength = 8

// bcrypt rejects longer inputs.
const maxPasswordBytes = 72

// Provisioner creates the role-specific profile for a new account.
type Provisioner interface {
	Provision(ctx context.Context, userID uuid.UUID) error
}

// Notifier sends templated email.
type Notifier interface {
	Notify(ctx context.Context, to, templateID string, data map[string]string) error
}

type Service struct {
	users       UserRepository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	phoneRegion string
	hashCost    int

	profiles Provisioner
	notifier Notifier
	appURL   string
	changes  realtime.Publisher
	logger   zerolog.Logger
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, revocations auth.RevocationStore, phoneRegion string) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		phoneRegion: phoneRegion,
		hashCost:    bcrypt.DefaultCost,
		changes:     realtime.Nop{},
		logger:      zerolog.Nop(),
	}
}

func (s *Service) SetProvisioner(p Provisioner) { s.profiles = p }

func (s *Service) SetNotifier(n Notifier, appURL string) {
	s.notifier = n
	s.appURL = appURL
}

func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }

// SignUp registers a patient or doctor. Admin accounts are only created
// through CreateAdmin.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	if in.Role != auth.RolePatient && in.Role != auth.RoleDoctor {
		return nil, apperr.Validation("role", "role must be patient or doctor")
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	if u.Role == auth.RolePatient && s.profiles != nil {
		// The profile is repaired on demand if this fails.
		if err := s.profiles.Provision(ctx, u.ID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("patient profile provisioning failed")
		}
	}
	if s.notifier != nil {
		err := s.notifier.Notify(ctx, u.Email, notification.TemplateWelcome, map[string]string{
			"name": u.DisplayName, "role": u.Role, "app_url": s.appURL,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("welcome email failed")
		}
	}
	return u, nil
}

// CreateAdmin creates an administrator account. Used by the CLI only.
func (s *Service) CreateAdmin(ctx context.Context, in SignUpInput) (*User, error) {
	in.Role = auth.RoleAdmin
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in SignUpInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, apperr.Validation("display_name", "display name is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password", "password must be at least %d characters", minPasswordLength)
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, apperr.Validation("password", "password must be at most %d bytes", maxPasswordBytes)
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperr.Validation("password_confirm", "passwords do not match")
	}
	phoneNum, err := phone.Normalize(in.Phone, s.phoneRegion)
	if err != nil {
		return nil, apperr.Validation("phone", "phone number is not valid")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "hash password")
	}

	u := &User{
		Role:         in.Role,
		DisplayName:  name,
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
	}
	if phoneNum != "" {
		u.Phone = &phoneNum
	}
	if err := s.users.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.New(apperr.KindConflict, "an account with this email already exists")
		}
		return nil, apperr.Store(err, "create user")
	}
	s.changes.Publish(ctx, realtime.Change{Table: "users", Op: realtime.OpInsert, ID: u.ID.String()})
	return u, nil
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperr.Unauthenticated("invalid email or password")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, apperr.Store(err, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if !u.Active {
		return nil, apperr.Unauthenticated("account is disabled")
	}

	token, claims, err := s.tokens.Issue(u.ID, u.Role, u.Email)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "issue token")
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u.Profile()}, nil
}

// SignOut revokes the caller's token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, id auth.Identity) error {
	exp := id.ExpiresAt
	if exp.IsZero() {
		exp = time.Now().Add(s.tokens.TTL())
	}
	if err := s.revocations.Revoke(ctx, id.TokenID, exp); err != nil {
		return apperr.Store(err, "revoke session")
	}
	return nil
}

// GetUser returns the user or a NotFound error.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Store(err, "load user")
	}
	return u, nil
}

// CurrentUser resolves the identity to a profile. A deleted or disabled
// account is treated as signed out.
func (s *Service) CurrentUser(ctx context.Context, id auth.Identity) (*Profile, error) {
	u, err := s.GetUser(ctx, id.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated("not signed in")
		}
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Unauthenticated("account is disabled")
	}
	p := u.Profile()
	return &p, nil
}

// GetDoctor returns an active doctor account.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RoleDoctor || !u.Active {
		return nil, apperr.NotFound("doctor")
	}
	return u, nil
}

func (s *Service) ListDoctors(ctx context.Context, query string, limit, offset int) ([]*User, int, error) {
	active := true
	items, total, err := s.users.List(ctx, ListFilter{Role: auth.RoleDoctor, Query: query, Active: &active}, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list doctors")
	}
	return items, total, nil
}

func (s *Service) ListUsers(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	if f.Role != "" && !auth.ValidRole(f.Role) {
		return nil, 0, apperr.Validation("role", "invalid role: %s", f.Role)
	}
	items, total, err := s.users.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list users")
	}
	return items, total, nil
}

// SetActive enables or disables an account. Disabling also cuts off every
// session the account already holds. Admins cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, actor auth.Identity, id uuid.UUID, active bool) (*User, error) {
	if !active && actor.UserID == id {
		return nil, apperr.Validation("active", "you cannot disable your own account")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Store(err, "update user")
	}
	if !active {
		now := time.Now()
		if err := s.revocations.RevokeUser(ctx, id, now, now.Add(s.tokens.TTL())); err != nil {
			return nil, apperr.Store(err, "revoke user sessions")
		}
	}
	s.changes.Publish(ctx, realtime.Change{Table: "users", Op: realtime.OpUpdate, ID: id.String()})
	return s.GetUser(ctx, id)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email", "email is not valid")
	}
	return email, nil
}
