package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"spendly/internal/auth"
	"spendly/internal/core"
	"spendly/internal/storage/memory"
)

func newUserService(t *testing.T) (*UserService, *auth.Issuer) {
	t.Helper()
	issuer := auth.NewIssuer("test-secret-0123456789", time.Hour)
	return NewUserService(memory.New(), issuer), issuer
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, issuer := newUserService(t)

	reg, err := svc.Register(ctx, RegisterInput{Name: " Ann ", Email: "ann@example.com", Password: "s3cret", Budget: core.Cents(100000)})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Name != "Ann" || reg.User.Budget.Cents != 100000 {
		t.Fatalf("unexpected user %+v", reg.User)
	}
	if reg.User.PasswordHash == "s3cret" || reg.User.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if uid, err := issuer.Verify(reg.Token); err != nil || uid != reg.User.ID {
		t.Fatalf("registration token unusable: uid=%q err=%v", uid, err)
	}

	login, err := svc.Login(ctx, "ann@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if uid, err := issuer.Verify(login.Token); err != nil || uid != reg.User.ID {
		t.Fatalf("login token unusable: uid=%q err=%v", uid, err)
	}
}

func TestUserService_RegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "pw"}); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate email", RegisterInput{Name: "Other", Email: "ann@example.com", Password: "pw"}, core.ErrEmailTaken},
		{"missing name", RegisterInput{Email: "b@example.com", Password: "pw"}, core.ErrEmptyName},
		{"missing email", RegisterInput{Name: "Bob", Password: "pw"}, core.ErrEmptyEmail},
		{"missing password", RegisterInput{Name: "Bob", Email: "b@example.com"}, core.ErrEmptyPassword},
		{"negative budget", RegisterInput{Name: "Bob", Email: "b@example.com", Password: "pw", Budget: core.Cents(-1)}, core.ErrNegativeBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("Register() error %v should be a validation error", err)
			}
		})
	}
}

func TestUserService_RegisterLongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)
	password := strings.Repeat("x", 80)

	if _, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: password}); err != nil {
		t.Fatalf("Register with 80-byte password: %v", err)
	}
	if _, err := svc.Login(ctx, "ann@example.com", password); err != nil {
		t.Fatalf("Login with 80-byte password: %v", err)
	}
	if _, err := svc.Login(ctx, "ann@example.com", password[:72]); !errors.Is(err, core.ErrBadCredentials) {
		t.Fatalf("Login with truncated password error = %v, want ErrBadCredentials", err)
	}
}

func TestUserService_LoginRejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct{ email, password string }{
		{"ann@example.com", "wrong"},
		{"nobody@example.com", "pw"},
		{"ANN@example.com", "pw"},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.password); !errors.Is(err, core.ErrBadCredentials) {
			t.Errorf("Login(%q, %q) error = %v, want ErrBadCredentials", tc.email, tc.password, err)
		}
	}
}

func TestUserService_MeAndUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)
	reg, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Me(ctx, "missing"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("Me(missing) error = %v", err)
	}

	blank := "   "
	budget := core.Cents(50000)
	u, err := svc.UpdateProfile(ctx, reg.User.ID, ProfilePatch{Name: &blank, Budget: &budget})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Name != "Ann" || u.Budget.Cents != 50000 {
		t.Fatalf("blank name must be ignored and budget applied: %+v", u)
	}

	name := "Annie"
	if u, err = svc.UpdateProfile(ctx, reg.User.ID, ProfilePatch{Name: &name}); err != nil || u.Name != "Annie" || u.Budget.Cents != 50000 {
		t.Fatalf("UpdateProfile(name) = %+v, %v", u, err)
	}

	negative := core.Cents(-100)
	if _, err := svc.UpdateProfile(ctx, reg.User.ID, ProfilePatch{Budget: &negative}); !errors.Is(err, core.ErrNegativeBudget) {
		t.Fatalf("negative budget error = %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", ProfilePatch{Name: &name}); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("UpdateProfile(missing) error = %v", err)
	}

	me, err := svc.Me(ctx, reg.User.ID)
	if err != nil || me.Name != "Annie" {
		t.Fatalf("Me = %+v, %v", me, err)
	}
}
