// Package auth implements the token codec: creation and verification of
// signed access and refresh tokens, and the one-way hash under which sessions
// are stored. The codec is stateless and never touches storage.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/server/models"
)

// Claims carried by both token kinds: the user identity plus the registered
// issued-at/expiry claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// CodecConfig is the explicit construction-time configuration for a Codec.
// Access and refresh tokens are signed with independent secrets so that
// compromising one does not forge the other. Now is optional and exists so
// tests can pin the clock; it defaults to time.Now.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// Codec signs and verifies access/refresh token pairs (HS256).
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewCodec(cfg CodecConfig) *Codec {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           now,
	}
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccessToken signs a short-lived access token for user.
func (c *Codec) IssueAccessToken(user *models.User) (string, error) {
	return c.sign(user, c.accessSecret, c.accessTTL)
}

// IssueRefreshToken signs a refresh token for user with the refresh secret.
func (c *Codec) IssueRefreshToken(user *models.User) (string, error) {
	return c.sign(user, c.refreshSecret, c.refreshTTL)
}

func (c *Codec) sign(user *models.User, secret []byte, ttl time.Duration) (string, error) {
	now := c.now()
	// The jti keeps two tokens minted for the same user within the same
	// second from colliding; the session store hashes the whole token.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	return token.SignedString(secret)
}

// VerifyAccessToken checks signature and expiry of an access token and
// returns its claims.
func (c *Codec) VerifyAccessToken(raw string) (*Claims, error) {
	return c.verify(raw, c.accessSecret)
}

// VerifyRefreshToken checks signature and expiry of a refresh token and
// returns the claimed user id. It is used only on the reuse-detection path,
// where a structurally valid token with no live session identifies the owner
// whose sessions must be revoked.
func (c *Codec) VerifyRefreshToken(raw string) (string, error) {
	claims, err := c.verify(raw, c.refreshSecret)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (c *Codec) verify(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
