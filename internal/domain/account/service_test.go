package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
)

// -- Mock Repository --

type mockUserRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if strings.EqualFold(existing.Email, u.Email) {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*User
	for _, u := range m.store {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(u.DisplayName+" "+u.Email), strings.ToLower(f.Query)) {
			continue
		}
		r = append(r, u)
	}
	total := len(r)
	if offset > len(r) {
		offset = len(r)
	}
	r = r[offset:]
	if limit < len(r) {
		r = r[:limit]
	}
	return r, total, nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Active = active
	return nil
}

type recordingProvisioner struct {
	users []uuid.UUID
	err   error
}

func (p *recordingProvisioner) Provision(_ context.Context, userID uuid.UUID) error {
	p.users = append(p.users, userID)
	return p.err
}

type recordingNotifier struct {
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, to, templateID string, _ map[string]string) error {
	n.sent = append(n.sent, templateID+":"+to)
	return nil
}

func newTestService(t *testing.T) (*Service, *mockUserRepo) {
	t.Helper()
	repo := newMockUserRepo()
	tokens := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "medconnect", time.Hour)
	revocations := auth.NewTokenRevocationStore(time.Minute)
	t.Cleanup(revocations.Close)
	svc := NewService(repo, tokens, revocations, "US")
	svc.hashCost = bcrypt.MinCost
	return svc, repo
}

func validSignUp(role string) SignUpInput {
	return SignUpInput{
		Email:           "  Jane.Doe@Example.com ",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
		DisplayName:     "Jane Doe",
		Phone:           "(650) 253-0000",
		Role:            role,
	}
}

// -- Tests --

func TestService_SignUp(t *testing.T) {
	svc, _ := newTestService(t)
	prov := &recordingProvisioner{}
	notifier := &recordingNotifier{}
	svc.SetProvisioner(prov)
	svc.SetNotifier(notifier, "https://app.example.com")

	u, err := svc.SignUp(context.Background(), validSignUp(auth.RolePatient))
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.Email != "jane.doe@example.com" {
		t.Errorf("email = %q, want lower-cased", u.Email)
	}
	if u.Phone == nil || *u.Phone != "+16502530000" {
		t.Errorf("phone = %v, want +16502530000", u.Phone)
	}
	if u.PasswordHash == "correct-horse" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse")) != nil {
		t.Error("password was not hashed with bcrypt")
	}
	if len(prov.users) != 1 || prov.users[0] != u.ID {
		t.Errorf("expected patient profile provisioned, got %v", prov.users)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("expected welcome email, got %v", notifier.sent)
	}
}

func TestService_SignUp_DoctorNotProvisioned(t *testing.T) {
	svc, _ := newTestService(t)
	prov := &recordingProvisioner{}
	svc.SetProvisioner(prov)
	if _, err := svc.SignUp(context.Background(), validSignUp(auth.RoleDoctor)); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if len(prov.users) != 0 {
		t.Errorf("doctor should not get a patient profile")
	}
}

func TestService_SignUp_ProvisionFailureIgnored(t *testing.T) {
	svc, _ := newTestService(t)
	svc.SetProvisioner(&recordingProvisioner{err: context.DeadlineExceeded})
	if _, err := svc.SignUp(context.Background(), validSignUp(auth.RolePatient)); err != nil {
		t.Fatalf("provisioning failure should not fail sign-up: %v", err)
	}
}

func TestService_SignUp_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*SignUpInput)
		field string
	}{
		{"admin role", func(in *SignUpInput) { in.Role = auth.RoleAdmin }, "role"},
		{"unknown role", func(in *SignUpInput) { in.Role = "nurse" }, "role"},
		{"missing email", func(in *SignUpInput) { in.Email = "" }, "email"},
		{"bad email", func(in *SignUpInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *SignUpInput) { in.Password, in.PasswordConfirm = "short", "short" }, "password"},
		{"long password", func(in *SignUpInput) {
			in.Password = strings.Repeat("p", 80)
			in.PasswordConfirm = in.Password
		}, "password"},
		{"mismatch", func(in *SignUpInput) { in.PasswordConfirm = "something-else" }, "password_confirm"},
		{"missing name", func(in *SignUpInput) { in.DisplayName = "  " }, "display_name"},
		{"bad phone", func(in *SignUpInput) { in.Phone = "12" }, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			in := validSignUp(auth.RolePatient)
			tt.edit(&in)
			_, err := svc.SignUp(context.Background(), in)
			var e *apperr.Error
			if !errors.As(err, &e) || e.Kind != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if e.Field != tt.field {
				t.Errorf("field = %q, want %q", e.Field, tt.field)
			}
		})
	}
}

func TestService_SignUp_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, validSignUp(auth.RolePatient)); err != nil {
		t.Fatal(err)
	}
	in := validSignUp(auth.RoleDoctor)
	in.Email = "JANE.DOE@example.com"
	_, err := svc.SignUp(ctx, in)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_SignIn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.SignUp(ctx, validSignUp(auth.RoleDoctor))
	if err != nil {
		t.Fatal(err)
	}

	sess, err := svc.SignIn(ctx, SignInInput{Email: "JANE.DOE@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.Token == "" || sess.User.ID != u.ID || sess.User.Role != auth.RoleDoctor {
		t.Errorf("unexpected session: %+v", sess)
	}
	claims, err := svc.tokens.Parse(sess.Token)
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != auth.RoleDoctor || claims.ID == "" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestService_SignIn_Failures(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	u, err := svc.SignUp(ctx, validSignUp(auth.RolePatient))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SignIn(ctx, SignInInput{Email: u.Email, Password: "wrong-password"}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("wrong password: expected unauthenticated, got %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInInput{Email: "nobody@example.com", Password: "correct-horse"}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("unknown user: expected unauthenticated, got %v", err)
	}

	_ = repo.SetActive(ctx, u.ID, false)
	if _, err := svc.SignIn(ctx, SignInInput{Email: u.Email, Password: "correct-horse"}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("disabled user: expected unauthenticated, got %v", err)
	}
}

func TestService_SignOut_RevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	id := auth.Identity{UserID: uuid.New(), TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := svc.SignOut(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.revocations.IsRevoked(context.Background(), "jti-1"); !ok {
		t.Error("expected token to be revoked")
	}
}

func TestService_CurrentUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, _ := svc.SignUp(ctx, validSignUp(auth.RolePatient))

	p, err := svc.CurrentUser(ctx, auth.Identity{UserID: u.ID})
	if err != nil {
		t.Fatal(err)
	}
	if p.Email != u.Email || p.DisplayName != "Jane Doe" {
		t.Errorf("unexpected profile %+v", p)
	}

	if _, err := svc.CurrentUser(ctx, auth.Identity{UserID: uuid.New()}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Errorf("expected unauthenticated for unknown user, got %v", err)
	}
}

func TestService_CreateAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	in := validSignUp(auth.RolePatient)
	u, err := svc.CreateAdmin(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}
}

func TestService_GetDoctor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, _ := svc.SignUp(ctx, validSignUp(auth.RoleDoctor))
	in := validSignUp(auth.RolePatient)
	in.Email = "pat@example.com"
	pat, _ := svc.SignUp(ctx, in)

	if _, err := svc.GetDoctor(ctx, doc.ID); err != nil {
		t.Errorf("GetDoctor(doctor): %v", err)
	}
	if _, err := svc.GetDoctor(ctx, pat.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("GetDoctor(patient): expected not found, got %v", err)
	}
	if _, err := svc.GetDoctor(ctx, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("GetDoctor(unknown): expected not found, got %v", err)
	}
}

func TestService_ListDoctors_ActiveOnly(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	a, _ := svc.SignUp(ctx, validSignUp(auth.RoleDoctor))
	in := validSignUp(auth.RoleDoctor)
	in.Email = "other@example.com"
	b, _ := svc.SignUp(ctx, in)
	_ = repo.SetActive(ctx, b.ID, false)

	items, total, err := svc.ListDoctors(ctx, "", 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].ID != a.ID {
		t.Errorf("expected only the active doctor, got %d items", total)
	}
}

func TestService_ListUsers_InvalidRole(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.ListUsers(context.Background(), ListFilter{Role: "nurse"}, 20, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_SetActive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, _ := svc.SignUp(ctx, validSignUp(auth.RoleDoctor))
	admin := auth.Identity{UserID: uuid.New(), Role: auth.RoleAdmin}

	got, err := svc.SetActive(ctx, admin, u.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Active {
		t.Error("expected account disabled")
	}
	if _, ok, _ := svc.revocations.UserRevokedAt(ctx, u.ID); !ok {
		t.Error("disabling should cut off existing sessions")
	}
	if _, err := svc.SetActive(ctx, admin, uuid.New(), false); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.SetActive(ctx, admin, admin.UserID, false); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error disabling self, got %v", err)
	}
}
