package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

func newTestIssuer(clock *fakeClock) (*Issuer, *memKV) {
	kv := newMemKV()
	issuer := NewIssuer(IssuerConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    168 * time.Hour,
		RotateLeft:    24 * time.Hour,
	}, kv, clock)
	return issuer, kv
}

func TestAccessTokenLifecycle(t *testing.T) {
	clock := newFakeClock()
	issuer, _ := newTestIssuer(clock)
	user := &schema.User{ID: 42, Username: "alice", Email: "alice@example.com"}

	token, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)

	// still valid just before expiry
	clock.Advance(15*time.Minute - time.Second)
	_, err = issuer.VerifyAccessToken(token)
	assert.NoError(t, err)

	// expired
	clock.Advance(2 * time.Second)
	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	clock := newFakeClock()
	issuer, _ := newTestIssuer(clock)

	token, err := issuer.IssueAccessToken(&schema.User{ID: 1})
	require.NoError(t, err)

	other := NewIssuer(IssuerConfig{
		AccessSecret:  []byte("a-different-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    168 * time.Hour,
		RotateLeft:    24 * time.Hour,
	}, newMemKV(), clock)

	_, err = other.VerifyAccessToken(token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestAccessTokenRevocation(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	issuer, _ := newTestIssuer(clock)

	token, err := issuer.IssueAccessToken(&schema.User{ID: 7})
	require.NoError(t, err)
	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)

	revoked, err := issuer.IsAccessTokenRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, issuer.RevokeAccessToken(ctx, claims.ID, 10*time.Minute))

	revoked, err = issuer.IsAccessTokenRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	// revoking with no remaining lifetime is a no-op
	require.NoError(t, issuer.RevokeAccessToken(ctx, "expired-jti", 0))
	revoked, err = issuer.IsAccessTokenRevoked(ctx, "expired-jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	issuer, _ := newTestIssuer(clock)

	token, err := issuer.IssueRefreshToken(ctx, 42)
	require.NoError(t, err)

	claims, err := issuer.VerifyRefreshToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)

	// deleting the server-side record invalidates the token even though
	// its signature and expiry are still fine
	require.NoError(t, issuer.DeleteRefreshRecord(ctx, claims.ID))
	_, err = issuer.VerifyRefreshToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestRefreshTokenExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	issuer, _ := newTestIssuer(clock)

	token, err := issuer.IssueRefreshToken(ctx, 42)
	require.NoError(t, err)

	clock.Advance(168*time.Hour + time.Second)
	_, err = issuer.VerifyRefreshToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestRotateIfNearExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	issuer, _ := newTestIssuer(clock)

	token, err := issuer.IssueRefreshToken(ctx, 42)
	require.NoError(t, err)
	claims, err := issuer.VerifyRefreshToken(ctx, token)
	require.NoError(t, err)

	// exactly the rotation window remaining: no rotation yet
	clock.Advance(168*time.Hour - 24*time.Hour)
	rotated, err := issuer.RotateIfNearExpiry(ctx, claims)
	require.NoError(t, err)
	assert.Empty(t, rotated)
	_, err = issuer.VerifyRefreshToken(ctx, token)
	assert.NoError(t, err)

	// strictly less than the window remaining: rotate
	clock.Advance(time.Second)
	rotated, err = issuer.RotateIfNearExpiry(ctx, claims)
	require.NoError(t, err)
	require.NotEmpty(t, rotated)

	// the old token's record is gone, the replacement verifies
	_, err = issuer.VerifyRefreshToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	newClaims, err := issuer.VerifyRefreshToken(ctx, rotated)
	require.NoError(t, err)
	assert.Equal(t, "42", newClaims.Subject)
}
