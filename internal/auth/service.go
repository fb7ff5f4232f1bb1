package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/wardroom-app/wardroom/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match
	// or the identity has been disabled.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNotApproved is returned when the identity is valid but has not been
	// approved for dashboard access.
	ErrNotApproved = errors.New("identity not approved")
)

// Service provides authentication operations.
type Service struct {
	store     store.IdentityStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(identityStore store.IdentityStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     identityStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new identity with hashed password and returns it with
// a session token. The first identity ever registered becomes an approved
// superadmin; everyone after that starts unapproved and waits for an admin.
// An empty display name falls back to the username.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*store.Identity, string, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, "", ErrInvalidPassword
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	existing, err := s.store.GetIdentityByUsername(ctx, username)
	if err == nil && existing != nil {
		return nil, "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	role := store.RoleUser
	approved := false
	count, err := s.store.CountIdentities(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("count identities: %w", err)
	}
	if count == 0 {
		role = store.RoleSuperadmin
		approved = true
	}

	ident, err := s.store.CreateIdentity(ctx, username, hashedPassword, displayName, role, approved)
	if err != nil {
		return nil, "", fmt.Errorf("create identity: %w", err)
	}

	token, err := GenerateSessionToken(s.jwtConfig, ident.ID, ident.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return ident, token, nil
}

// Login validates credentials and returns the identity with a session token.
// A disabled identity fails exactly like wrong credentials.
func (s *Service) Login(ctx context.Context, username, password string) (*store.Identity, string, error) {
	ident, err := s.store.GetIdentityByUsername(ctx, username)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(ident.PasswordHash, password); errPwd != nil {
		return nil, "", ErrInvalidCredentials
	}

	if !ident.Enabled {
		return nil, "", ErrInvalidCredentials
	}

	token, err := GenerateSessionToken(s.jwtConfig, ident.ID, ident.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return ident, token, nil
}

// Authenticate validates a session token and loads the current identity.
// The store is the source of truth: role and flags are read fresh, never
// trusted from the token.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*store.Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString, AudienceSession)
	if err != nil {
		return nil, fmt.Errorf("validate session token: %w", err)
	}

	ident, err := s.store.GetIdentityByID(ctx, claims.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	if !ident.Enabled {
		return nil, ErrInvalidCredentials
	}

	return ident, nil
}

// ChatToken issues a short-lived token scoped to the identity and a fresh
// messaging session. Requested anew on every connection attempt.
func (s *Service) ChatToken(ident *store.Identity) (string, error) {
	sessionID := uuid.NewString()
	token, err := GenerateChatToken(s.jwtConfig, ident.ID, ident.Username, sessionID)
	if err != nil {
		return "", fmt.Errorf("generate chat token: %w", err)
	}
	return token, nil
}

// AuthenticateChat validates a chat token and loads the identity it is
// scoped to. Session tokens are rejected here: the messaging backend only
// accepts the short-lived scoped kind. Flags are read fresh from the store,
// so revoking approval locks an identity out even while its token is still
// within its TTL.
func (s *Service) AuthenticateChat(ctx context.Context, tokenString string) (*store.Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString, AudienceChat)
	if err != nil {
		return nil, fmt.Errorf("validate chat token: %w", err)
	}

	ident, err := s.store.GetIdentityByID(ctx, claims.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	if !ident.Enabled {
		return nil, ErrInvalidCredentials
	}
	if !ident.Approved {
		return nil, ErrNotApproved
	}

	return ident, nil
}
