package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the content of an admin token.
type Claims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// TokenVerifier checks the credentials of admin connections.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// HMACTokens signs and verifies HS256 JWTs with a shared secret.
type HMACTokens struct {
	secret []byte
	now    func() time.Time
}

// NewHMACTokens creates a signer for secret, which must not be empty.
func NewHMACTokens(secret string) (*HMACTokens, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &HMACTokens{secret: []byte(secret), now: time.Now}, nil
}

var tokenHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Sign issues a token for subject, valid for ttl.
func (h *HMACTokens) Sign(subject string, ttl time.Duration) (string, error) {
	now := h.now()
	claims, err := json.Marshal(Claims{Subject: subject, IssuedAt: now.Unix(), ExpiresAt: now.Add(ttl).Unix()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}
	signing := tokenHeader + "." + base64.RawURLEncoding.EncodeToString(claims)
	return signing + "." + h.sign(signing), nil
}

// Verify implements TokenVerifier.
func (h *HMACTokens) Verify(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	if parts[0] != tokenHeader {
		return Claims{}, fmt.Errorf("%w: unsupported header", ErrInvalidToken)
	}
	expected := h.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return Claims{}, fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt != 0 && h.now().Unix() >= claims.ExpiresAt {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func (h *HMACTokens) sign(s string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(s))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
