package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Scopes granted to bot clients.
const (
	ScopeRead  = "read"  // query regions, expands and paths
	ScopeWrite = "write" // open maps and report destroyed units
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims holds the JWT payload.
type Claims struct {
	ClientID  string   `json:"client_id"`
	Scopes    []string `json:"scopes,omitempty"`
	TokenType string   `json:"token_type"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// JWTManager handles token creation and validation.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewJWTManager creates a JWTManager with the given secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  time.Hour,
		refreshExpiry: 7 * 24 * time.Hour,
	}
}

func (m *JWTManager) sign(clientID, tokenType string, scopes []string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ClientID:  clientID,
		Scopes:    scopes,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   clientID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// GenerateAccessToken creates a short-lived access token for a bot client.
func (m *JWTManager) GenerateAccessToken(clientID string, scopes ...string) (string, error) {
	return m.sign(clientID, tokenAccess, scopes, m.accessExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token. It carries the
// scopes so Refresh can mint an equivalent access token.
func (m *JWTManager) GenerateRefreshToken(clientID string, scopes ...string) (string, error) {
	return m.sign(clientID, tokenRefresh, scopes, m.refreshExpiry)
}

func (m *JWTManager) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken parses and validates an access token, returning the claims.
// Refresh tokens are rejected.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenPair holds an access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// GenerateTokenPair creates both tokens for a client.
func (m *JWTManager) GenerateTokenPair(clientID string, scopes ...string) (*TokenPair, error) {
	access, err := m.GenerateAccessToken(clientID, scopes...)
	if err != nil {
		return nil, err
	}
	refresh, err := m.GenerateRefreshToken(clientID, scopes...)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(m.accessExpiry.Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (m *JWTManager) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := m.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenRefresh {
		return nil, ErrInvalidToken
	}
	return m.GenerateTokenPair(claims.ClientID, claims.Scopes...)
}
