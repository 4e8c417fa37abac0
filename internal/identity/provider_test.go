package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cwrk-planet/glasschat/internal/backend/backendtest"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/identity"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/security"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

var (
	signerOnce sync.Once
	signer     *security.JWTSigner
)

func signerFor(t *testing.T) *security.JWTSigner {
	t.Helper()
	signerOnce.Do(func() {
		k, err := security.GenerateEphemeralKey()
		if err != nil {
			panic(err)
		}
		signer = security.NewJWTSigner(k, &k.PublicKey, "chatd", "", time.Minute, time.Second)
	})
	return signer
}

func newProvider(t *testing.T) (*identity.Provider, *backendtest.Env) {
	t.Helper()
	env := backendtest.New(t)
	p := identity.NewProvider(env.Repos.Credentials, env.Repos.Sessions, env.Backend, signerFor(t),
		time.Hour, security.BcryptConfig{Cost: bcrypt.MinCost, MinLength: 6}, nil)
	return p, env
}

func TestSignUp_CreatesOnlineProfileAndSignsIn(t *testing.T) {
	p, env := newProvider(t)
	ctx := context.Background()

	var events []identity.AuthEvent
	unsub := p.OnAuthStateChange(func(e identity.AuthEvent) { events = append(events, e) })
	defer unsub()

	s, err := p.SignUp(ctx, "Alice@Example.com", "secret1", "Alice")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if s.Email != "alice@example.com" || s.AccessToken == "" || s.RefreshToken == "" {
		t.Fatalf("session = %+v", s)
	}
	u, err := env.Backend.GetUser(ctx, s.UserID)
	if err != nil || u.Status != domain.StatusOnline || u.Name != "Alice" {
		t.Fatalf("profile = %+v, %v", u, err)
	}
	if len(events) != 1 || events[0].Type != identity.SignedIn {
		t.Fatalf("events = %+v", events)
	}
	if id, err := p.VerifyAccessToken(s.AccessToken); err != nil || id != s.UserID {
		t.Fatalf("verify = %q, %v", id, err)
	}

	if _, err := p.SignUp(ctx, "alice@example.com", "secret1", "Again"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("duplicate sign-up: %v", err)
	}
}

func TestSignUp_Validation(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "bob@example.com", "123", "Bob"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("short password: %v", err)
	}
	if _, err := p.SignUp(ctx, "bob@example.com", "secret1", "  "); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := p.SignUp(ctx, "bob", "secret1", "Bob"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("bad email: %v", err)
	}
	if p.Session() != nil {
		t.Fatal("failed sign-up must not sign in")
	}
}

func TestSignIn_RefreshAndSignOut(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "carol@example.com", "secret1", "Carol"); err != nil {
		t.Fatal(err)
	}
	if err := p.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Session() != nil {
		t.Fatal("still signed in")
	}

	if _, err := p.SignIn(ctx, "carol@example.com", "wrong-pass"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := p.SignIn(ctx, "nobody@example.com", "secret1"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("unknown email: %v", err)
	}

	var types []identity.AuthEventType
	p.OnAuthStateChange(func(e identity.AuthEvent) { types = append(types, e.Type) })

	s, err := p.SignIn(ctx, "carol@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	r, err := p.Refresh(ctx, "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if r.RefreshToken == s.RefreshToken || r.UserID != s.UserID || r.Email != s.Email {
		t.Fatalf("refreshed = %+v", r)
	}
	if _, err := p.Refresh(ctx, s.RefreshToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("rotated token reused: %v", err)
	}
	if err := p.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Refresh(ctx, r.RefreshToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("revoked token: %v", err)
	}

	want := []identity.AuthEventType{identity.SignedIn, identity.TokenRefreshed, identity.SignedOut}
	if len(types) != len(want) {
		t.Fatalf("events = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v", types)
		}
	}
	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("signing out twice: %v", err)
	}
}

func TestOnAuthStateChange_Unsubscribe(t *testing.T) {
	p, _ := newProvider(t)
	calls := 0
	unsub := p.OnAuthStateChange(func(identity.AuthEvent) { calls++ })
	unsub()
	unsub()
	if _, err := p.SignUp(context.Background(), "dan@example.com", "secret1", "Dan"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d", calls)
	}
	if _, err := p.VerifyAccessToken("garbage"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefresh_TokenIsSingleUse(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	s, err := p.SignUp(ctx, "erin@example.com", "secret1", "Erin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Refresh(ctx, s.RefreshToken); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := p.Refresh(ctx, s.RefreshToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("replayed refresh: %v", err)
	}
}

// racingCreds reports the email as taken on insert, as when a concurrent
// sign-up wins between the lookup and the insert.
type racingCreds struct {
	repository.CredentialRepository
}

func (racingCreds) Create(context.Context, *domain.Credential) error {
	return repository.ErrAlreadyExists
}

func TestSignUp_CredentialFailureRemovesProfile(t *testing.T) {
	env := backendtest.New(t)
	p := identity.NewProvider(racingCreds{env.Repos.Credentials}, env.Repos.Sessions, env.Backend, signerFor(t),
		time.Hour, security.BcryptConfig{Cost: bcrypt.MinCost, MinLength: 6}, nil)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "frank@example.com", "secret1", "Frank"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("SignUp: %v", err)
	}
	users, err := env.Backend.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Fatalf("orphan profiles: %+v", users)
	}
	if p.Session() != nil {
		t.Fatal("failed sign-up must not sign in")
	}
}
