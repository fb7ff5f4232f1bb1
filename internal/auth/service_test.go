package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardroom-app/wardroom/internal/store"
	"github.com/wardroom-app/wardroom/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:     []byte("test-secret-change-me"),
		Issuer:     "test",
		SessionTTL: 24 * time.Hour,
		ChatTTL:    time.Minute,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "ab", "password123", ""); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, _, err := svc.Register(ctx, " ab ", "password123", ""); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "abc", "12345", ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_FirstIdentityIsApprovedSuperadmin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	first, token, err := svc.Register(ctx, "founder", "password123", "")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if first.Role != store.RoleSuperadmin || !first.Approved {
		t.Fatalf("expected first identity to be approved superadmin, got %+v", first)
	}

	second, _, err := svc.Register(ctx, "member", "password123", "")
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if second.Role != store.RoleUser || second.Approved {
		t.Fatalf("expected later identities to be unapproved users, got %+v", second)
	}
}

func TestRegister_DisplayName(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	named, _, err := svc.Register(ctx, "alice", "password123", "Alice in Ops")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if named.DisplayName != "Alice in Ops" {
		t.Fatalf("expected display name to be stored, got %q", named.DisplayName)
	}

	// Blank display name falls back to the username.
	unnamed, _, err := svc.Register(ctx, "bob", "password123", "  ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if unnamed.DisplayName != "bob" {
		t.Fatalf("expected username fallback, got %q", unnamed.DisplayName)
	}
}

func TestRegister_TrimsUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, " alice ", "password123", ""); err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}

	// Should collide because the stored username is trimmed.
	if _, _, err := svc.Register(ctx, "alice", "password123", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin_DisabledIdentityRejected(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	ident, _, err := svc.Register(ctx, "mallory", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "mallory", "password123"); err != nil {
		t.Fatalf("login before disable: %v", err)
	}

	if err := svc.store.SetEnabled(ctx, ident.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	if _, _, err := svc.Login(ctx, "mallory", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for disabled identity, got %v", err)
	}
}

func TestAuthenticate_ReadsFlagsFresh(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	ident, token, err := svc.Register(ctx, "trent", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != ident.ID {
		t.Fatalf("wrong identity: %d", got.ID)
	}

	// Disabling after token issuance must invalidate the session.
	if err := svc.store.SetEnabled(ctx, ident.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); err == nil {
		t.Fatalf("expected authenticate to fail for disabled identity")
	}
}

func TestAuthenticateChat_RevokedApprovalRejected(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	ident, _, err := svc.Register(ctx, "victor", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	chatToken, err := svc.ChatToken(ident)
	if err != nil {
		t.Fatalf("chat token: %v", err)
	}
	if _, err := svc.AuthenticateChat(ctx, chatToken); err != nil {
		t.Fatalf("authenticate chat before revocation: %v", err)
	}

	// Revoking approval must lock the identity out of messaging even while
	// an already-issued chat token is still within its TTL.
	if err := svc.store.SetApproved(ctx, ident.ID, false); err != nil {
		t.Fatalf("revoke approval: %v", err)
	}
	if _, err := svc.AuthenticateChat(ctx, chatToken); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved for revoked identity, got %v", err)
	}
}

func TestChatToken_ScopedAudience(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	ident, sessionToken, err := svc.Register(ctx, "peggy", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	chatToken, err := svc.ChatToken(ident)
	if err != nil {
		t.Fatalf("chat token: %v", err)
	}

	// Chat tokens must not authenticate HTTP sessions and vice versa.
	if _, err := svc.Authenticate(ctx, chatToken); err == nil {
		t.Fatalf("chat token accepted as session token")
	}
	if _, err := svc.AuthenticateChat(ctx, sessionToken); err == nil {
		t.Fatalf("session token accepted as chat token")
	}

	got, err := svc.AuthenticateChat(ctx, chatToken)
	if err != nil {
		t.Fatalf("authenticate chat: %v", err)
	}
	if got.ID != ident.ID {
		t.Fatalf("wrong identity: %d", got.ID)
	}

	// Every call mints a distinct messaging session.
	other, err := svc.ChatToken(ident)
	if err != nil {
		t.Fatalf("second chat token: %v", err)
	}
	if other == chatToken {
		t.Fatalf("expected fresh chat token per request")
	}
}
