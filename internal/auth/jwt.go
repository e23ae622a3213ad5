// Package auth issues and verifies the HMAC-signed bearer tokens the
// API uses: short-lived access tokens plus longer-lived refresh
// tokens, both carrying the username as subject.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bitstore/internal/errors"
)

const (
	accessToken  = "access"
	refreshToken = "refresh"
)

type claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (m *Manager) IssuePair(username string) (*TokenPair, error) {
	access, err := m.sign(username, accessToken, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(username, refreshToken, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess returns the username an access token was issued to.
func (m *Manager) VerifyAccess(token string) (string, error) {
	return m.verify(token, accessToken)
}

// Refresh trades a valid refresh token for a fresh access token.
func (m *Manager) Refresh(token string) (string, error) {
	username, err := m.verify(token, refreshToken)
	if err != nil {
		return "", err
	}
	return m.sign(username, accessToken, m.accessTTL)
}

func (m *Manager) sign(username, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (m *Manager) verify(tokenString, wantType string) (string, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.Unauthorized("invalid or expired token")
	}
	if c.TokenType != wantType || c.Subject == "" {
		return "", errors.Unauthorized("invalid or expired token")
	}
	return c.Subject, nil
}
