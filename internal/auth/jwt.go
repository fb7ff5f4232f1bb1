package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AudienceSession marks tokens that authenticate HTTP requests.
	AudienceSession = "wardroom-session"
	// AudienceChat marks short-lived tokens scoped to one messaging session.
	AudienceChat = "wardroom-chat"
)

// Claims represents JWT claims for wardroom authentication.
//
// SessionID is set only on chat tokens: it binds the token to a single
// messaging session so a leaked token cannot be replayed as a login.
type Claims struct {
	IdentityID int64  `json:"identity_id"`
	Username   string `json:"username"`
	SessionID  string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	ChatTTL    time.Duration
}

// GenerateSessionToken creates a session JWT for the given identity.
func GenerateSessionToken(cfg *JWTConfig, identityID int64, username string) (string, error) {
	return generate(cfg, identityID, username, "", AudienceSession, cfg.SessionTTL)
}

// GenerateChatToken creates a short-lived token scoped to one identity and
// one messaging session.
func GenerateChatToken(cfg *JWTConfig, identityID int64, username, sessionID string) (string, error) {
	return generate(cfg, identityID, username, sessionID, AudienceChat, cfg.ChatTTL)
}

func generate(cfg *JWTConfig, identityID int64, username, sessionID, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		IdentityID: identityID,
		Username:   username,
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a JWT token for the expected audience.
func ValidateToken(cfg *JWTConfig, tokenString, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}

	validAudience := false
	for _, aud := range claims.Audience {
		if aud == audience {
			validAudience = true
			break
		}
	}
	if !validAudience {
		return nil, fmt.Errorf("invalid audience")
	}

	return claims, nil
}
