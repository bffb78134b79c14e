package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/seedpool/seedpool-backend/internal/adapter"
	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

const (
	denylistKeyPrefix = "auth:denylist:"
	refreshKeyPrefix  = "auth:refresh:"
)

// IssuerConfig holds token issuance configuration
type IssuerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration // 15 minutes
	RefreshTTL    time.Duration // 7 days
	RotateLeft    time.Duration // rotate refresh tokens with less than this lifetime remaining
}

// AccessClaims is the payload of an access token
type AccessClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// Issuer mints and validates session credentials. Access tokens are
// verified statelessly with a denylist for revocation; refresh tokens are
// only honored while their jti is present in the server-side allow-set.
type Issuer struct {
	cfg   IssuerConfig
	kv    adapter.KV
	clock adapter.Clock
}

// NewIssuer creates a credential issuer
func NewIssuer(cfg IssuerConfig, kv adapter.KV, clock adapter.Clock) *Issuer {
	return &Issuer{cfg: cfg, kv: kv, clock: clock}
}

// IssueAccessToken signs a short-lived access token for the user
func (i *Issuer) IssueAccessToken(user *schema.User) (string, error) {
	now := i.clock.Now()
	claims := AccessClaims{
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// IssueRefreshToken signs a long-lived refresh token and records its jti
// server-side. The record is written before the token is returned so a
// refresh call can never race ahead of it.
func (i *Issuer) IssueRefreshToken(ctx context.Context, userID int64) (string, error) {
	now := i.clock.Now()
	jti := uuid.NewString()
	subject := strconv.FormatInt(userID, 10)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTTL)),
		},
	}

	if err := i.kv.SetEX(ctx, refreshKeyPrefix+jti, subject, i.cfg.RefreshTTL); err != nil {
		return "", fmt.Errorf("failed to record refresh token: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, nil
}

// VerifyAccessToken validates an access token's signature and expiry.
// The denylist is checked separately via IsAccessTokenRevoked.
func (i *Issuer) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.cfg.AccessSecret, nil
	}, jwt.WithTimeFunc(i.clock.Now))
	if err != nil || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token's signature and expiry and
// requires its jti to still be present in the server-side allow-set.
func (i *Issuer) VerifyRefreshToken(ctx context.Context, tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.cfg.RefreshSecret, nil
	}, jwt.WithTimeFunc(i.clock.Now))
	if err != nil || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	recorded, found, err := i.kv.Get(ctx, refreshKeyPrefix+claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token record: %w", err)
	}
	if !found || recorded != claims.Subject {
		return nil, domain.ErrTokenInvalid
	}

	return claims, nil
}

// RevokeAccessToken denylists an access token's jti for its remaining
// lifetime. Entries never outlive the tokens they block, which bounds
// denylist growth.
func (i *Issuer) RevokeAccessToken(ctx context.Context, jti string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	if err := i.kv.SetEX(ctx, denylistKeyPrefix+jti, "1", remaining); err != nil {
		return fmt.Errorf("failed to denylist access token: %w", err)
	}
	return nil
}

// IsAccessTokenRevoked reports whether an access token's jti is denylisted
func (i *Issuer) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := i.kv.Exists(ctx, denylistKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("failed to check denylist: %w", err)
	}
	return revoked, nil
}

// DeleteRefreshRecord removes a refresh token's jti from the allow-set,
// invalidating it for any subsequent refresh attempt
func (i *Issuer) DeleteRefreshRecord(ctx context.Context, jti string) error {
	if err := i.kv.Del(ctx, refreshKeyPrefix+jti); err != nil {
		return fmt.Errorf("failed to delete refresh token record: %w", err)
	}
	return nil
}

// RotateIfNearExpiry issues a replacement refresh token when the presented
// one has strictly less than the configured rotation window remaining.
// The old jti record is deleted before the new token is minted. Returns
// the empty string when no rotation happened.
func (i *Issuer) RotateIfNearExpiry(ctx context.Context, claims *RefreshClaims) (string, error) {
	remaining := claims.ExpiresAt.Time.Sub(i.clock.Now())
	if remaining >= i.cfg.RotateLeft {
		return "", nil
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return "", domain.ErrTokenInvalid
	}

	if err := i.DeleteRefreshRecord(ctx, claims.ID); err != nil {
		return "", err
	}

	return i.IssueRefreshToken(ctx, userID)
}
