package auth

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	apperrors "teslo/internal/errors"
	"teslo/internal/models"
	"teslo/internal/storage"
)

// Helper to create a token manager for tests
func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{Secret: []byte("test-secret"), TTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create token manager: %v", err)
	}
	return tm
}

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	f, err := os.CreateTemp("", "teslo-auth-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	store, err := storage.NewSQLiteStore(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store, newTestTokenManager(t)), store
}

func TestTokenManager_SignAndVerify(t *testing.T) {
	tm := newTestTokenManager(t)

	token, err := tm.Sign("user-1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	id, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id != "user-1" {
		t.Errorf("id = %q, want user-1", id)
	}
}

func TestTokenManager_Expired(t *testing.T) {
	tm := newTestTokenManager(t)
	tm.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	token, err := tm.Sign("user-1")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	_, err = tm.Verify(token)
	if !errors.Is(err, apperrors.ErrAuthentication) {
		t.Errorf("Verify() error = %v, want ErrAuthentication", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	other, err := NewTokenManager(TokenConfig{Secret: []byte("other"), TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	token, _ := other.Sign("user-1")

	if _, err := newTestTokenManager(t).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenManager_Malformed(t *testing.T) {
	if _, err := newTestTokenManager(t).Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestNewTokenManager_FailsWithoutSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	if err != ErrMissingSecret {
		t.Errorf("Expected ErrMissingSecret, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc.def":  "abc.def",
		"bearer  abc.def": "abc.def",
		"abc.def":         "abc.def",
		"":                "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStrongPassword(t *testing.T) {
	tests := map[string]bool{
		"Abc123":  true,
		"Abc$def": true,
		"abc123":  false,
		"ABC123":  false,
		"Abcdef":  false,
	}
	for in, want := range tests {
		if got := StrongPassword(in); got != want {
			t.Errorf("StrongPassword(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)

	reg, err := svc.Register(RegisterInput{Email: "Test1@Google.com", Password: "Abc123", FullName: "Test One"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.Token == "" {
		t.Error("Register() should issue a token")
	}
	if reg.Email != "test1@google.com" {
		t.Errorf("Email = %q, want normalized", reg.Email)
	}
	if reg.Password == "Abc123" {
		t.Error("password must be stored hashed")
	}

	login, err := svc.Login(LoginInput{Email: "test1@google.com", Password: "Abc123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.ID != reg.ID {
		t.Errorf("Login() user = %s, want %s", login.ID, reg.ID)
	}

	user, err := svc.Authenticate(login.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != reg.ID {
		t.Errorf("Authenticate() user = %s, want %s", user.ID, reg.ID)
	}
}

func TestService_RegisterRejectsWeakPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(RegisterInput{Email: "a@b.com", Password: "abcdef", FullName: "A"})
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Register() error = %v, want ErrWeakPassword", err)
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	in := RegisterInput{Email: "a@b.com", Password: "Abc123", FullName: "A"}

	if _, err := svc.Register(in); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(in); !errors.Is(err, apperrors.ErrDuplicateKey) {
		t.Errorf("Register() error = %v, want ErrDuplicateKey", err)
	}
}

func TestService_LoginFailures(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register(RegisterInput{Email: "a@b.com", Password: "Abc123", FullName: "A"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(LoginInput{Email: "x@b.com", Password: "Abc123"}); !errors.Is(err, ErrBadEmail) {
		t.Errorf("unknown email: got %v, want ErrBadEmail", err)
	}
	if _, err := svc.Login(LoginInput{Email: "a@b.com", Password: "Wrong1"}); !errors.Is(err, ErrBadPassword) {
		t.Errorf("wrong password: got %v, want ErrBadPassword", err)
	}
}

func TestService_FindActiveUser(t *testing.T) {
	svc, store := newTestService(t)

	inactive := &models.User{Email: "off@b.com", Password: "x", FullName: "Off"}
	if err := store.CreateUser(inactive); err != nil {
		t.Fatal(err)
	}
	// IsActive defaults to true on insert, so flip it through an update.
	inactive.IsActive = false
	if err := store.UpdateUser(inactive); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.FindActiveUser(context.Background(), inactive.ID); !errors.Is(err, apperrors.ErrInactiveUser) {
		t.Errorf("inactive: got %v, want ErrInactiveUser", err)
	}
	if _, err := svc.FindActiveUser(context.Background(), "missing"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("missing: got %v, want ErrInvalidToken", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.FindActiveUser(ctx, inactive.ID); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v, want context.Canceled", err)
	}
}
