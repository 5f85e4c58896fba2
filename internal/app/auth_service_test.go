package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
)

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	session, err := env.container.Auth.Login(ctx, "Investor@Demo.Fund", testPassword).Unwrap()
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" || session.User.ID != env.investor.ID {
		t.Fatalf("unexpected session %+v", session)
	}

	userID, err := env.container.Auth.VerifyToken(session.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != env.investor.ID {
		t.Fatalf("expected subject %s, got %s", env.investor.ID, userID)
	}

	mirrored, err := env.container.Mirror.Load(ctx, env.investor.ID)
	if err != nil {
		t.Fatalf("expected the session to be mirrored: %v", err)
	}
	if mirrored.PasswordHash != "" {
		t.Fatal("expected the password hash to stay out of the mirror")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: DemoInvestorEmail, password: "nope-nope-nope"},
		{name: "unknown email", email: "ghost@demo.fund", password: testPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.container.Auth.Login(ctx, tt.email, tt.password)
			if _, err := res.Unwrap(); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestVerifyToken_Rejections(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	session, err := env.container.Auth.Login(ctx, DemoInvestorEmail, testPassword).Unwrap()
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewAuthService(env.container.Repo, env.container.Mirror, AuthConfig{Secret: "another-secret-0123456789", Issuer: "fund-service-test"})
	if _, err := other.VerifyToken(session.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected a foreign signature to be rejected, got %v", err)
	}

	expired := NewAuthService(env.container.Repo, env.container.Mirror, AuthConfig{Secret: testSecret, Issuer: "fund-service-test"})
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.VerifyToken(session.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected an expired token to be rejected, got %v", err)
	}

	if _, err := env.container.Auth.VerifyToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to be rejected, got %v", err)
	}
}

func TestLogoutAndCurrentUser(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	auth := env.container.Auth

	if _, err := auth.Login(ctx, DemoInvestorEmail, testPassword).Unwrap(); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := auth.Logout(ctx, env.investor.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.container.Mirror.Load(ctx, env.investor.ID); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected the mirror to be cleared, got %v", err)
	}

	user, err := auth.CurrentUser(ctx, env.investor.ID)
	if err != nil || user == nil || user.Email != DemoInvestorEmail {
		t.Fatalf("expected the user from the store, got %+v, %v", user, err)
	}

	missing, err := auth.CurrentUser(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for an unknown user; got %+v, %v", missing, err)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	if _, err := env.container.Auth.Register(ctx, "bad-email", "X", testPassword, "").Unwrap(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile for email, got %v", err)
	}
	if _, err := env.container.Auth.Register(ctx, "new@demo.fund", "X", "short", "").Unwrap(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile for password, got %v", err)
	}
	if _, err := env.container.Auth.Register(ctx, DemoInvestorEmail, "X", testPassword, "").Unwrap(); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	user, err := env.container.Auth.Register(ctx, "new@demo.fund", "New", testPassword, "").Unwrap()
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleInvestor {
		t.Fatalf("expected default investor role, got %q", user.Role)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	users := env.container.Users

	name := "  Ada Investor "
	user, err := users.UpdateProfile(ctx, env.investor.ID, domain.ProfileUpdate{Name: &name}).Unwrap()
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if user.Name != "Ada Investor" {
		t.Fatalf("expected trimmed name, got %q", user.Name)
	}
	mirrored, err := env.container.Mirror.Load(ctx, env.investor.ID)
	if err != nil || mirrored.Name != "Ada Investor" {
		t.Fatalf("expected the mirror to be refreshed, got %+v, %v", mirrored, err)
	}

	blank := "   "
	if _, err := users.UpdateProfile(ctx, env.investor.ID, domain.ProfileUpdate{Name: &blank}).Unwrap(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	if _, err := users.UpdateProfile(ctx, uuid.New(), domain.ProfileUpdate{Name: &name}).Unwrap(); !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

type userLookupRepo struct {
	store.Repository
	err error
}

func (r *userLookupRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return nil, r.err
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	user, err := env.container.Users.GetProfile(ctx, env.investor.ID)
	if err != nil || user == nil || user.ID != env.investor.ID {
		t.Fatalf("expected the investor, got %+v, %v", user, err)
	}
	missing, err := env.container.Users.GetProfile(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for an unknown user; got %+v, %v", missing, err)
	}
}

func TestCurrentUser_FallsBackToProfileLookup(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection refused")
	auth := NewAuthService(&userLookupRepo{err: dbErr}, store.NewMemorySessionMirror(), AuthConfig{Secret: testSecret})

	if _, err := auth.CurrentUser(ctx, uuid.New()); !errors.Is(err, dbErr) {
		t.Fatalf("expected the store error from the profile lookup, got %v", err)
	}

	auth = NewAuthService(&userLookupRepo{err: store.ErrUserNotFound}, store.NewMemorySessionMirror(), AuthConfig{Secret: testSecret})
	user, err := auth.CurrentUser(ctx, uuid.New())
	if err != nil || user != nil {
		t.Fatalf("expected nil, nil for a deleted account; got %+v, %v", user, err)
	}
}
