package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// fakeUserStore implements the user operations the service touches.
// The embedded interface panics on anything else, which is what we want.
type fakeUserStore struct {
	store.Store
	mu     sync.Mutex
	nextID int64
	users  map[string]*schema.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*schema.User)}
}

func (s *fakeUserStore) CreateUser(_ context.Context, user *schema.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Address]; ok {
		return domain.ErrUserExists
	}
	s.nextID++
	user.ID = s.nextID
	s.users[user.Address] = user
	return nil
}

func (s *fakeUserStore) GetUserByAddress(_ context.Context, address string) (*schema.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[address], nil
}

func (s *fakeUserStore) GetUserByID(_ context.Context, id int64) (*schema.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

type serviceFixture struct {
	service *Service
	issuer  *Issuer
	store   *fakeUserStore
	clock   *fakeClock
}

func newServiceFixture() *serviceFixture {
	clock := newFakeClock()
	issuer, kv := newTestIssuer(clock)
	st := newFakeUserStore()
	nonces := NewNonceStore(kv, 5*time.Minute)
	return &serviceFixture{
		service: NewService(nonces, issuer, st, clock),
		issuer:  issuer,
		store:   st,
		clock:   clock,
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	nonce, err := f.service.IssueNonce(ctx)
	require.NoError(t, err)
	message := siweMessage(address, nonce)

	credentials, err := f.service.SignUp(ctx, SignUpParams{
		Address:   address,
		Username:  "alice",
		Email:     "alice@example.com",
		Message:   message,
		Signature: signMessage(t, priv, message),
		Nonce:     nonce,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, credentials.AccessToken)
	assert.NotEmpty(t, credentials.RefreshToken)
	assert.Equal(t, address, credentials.User.Address)
	assert.True(t, credentials.User.Completed)

	// replaying the same challenge fails on the nonce, not the signature
	_, err = f.service.SignUp(ctx, SignUpParams{
		Address:   address,
		Message:   message,
		Signature: signMessage(t, priv, message),
		Nonce:     nonce,
	})
	assert.ErrorIs(t, err, domain.ErrNonceInvalid)

	// signing in with a fresh challenge resolves the same user
	nonce2, err := f.service.IssueNonce(ctx)
	require.NoError(t, err)
	message2 := siweMessage(address, nonce2)
	signedIn, err := f.service.SignIn(ctx, SignInParams{
		Address:   address,
		Message:   message2,
		Signature: signMessage(t, priv, message2),
		Nonce:     nonce2,
	})
	require.NoError(t, err)
	assert.Equal(t, credentials.User.ID, signedIn.User.ID)
}

func TestSignUpWithoutProfileIsIncomplete(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	nonce, err := f.service.IssueNonce(ctx)
	require.NoError(t, err)
	message := siweMessage(address, nonce)

	credentials, err := f.service.SignUp(ctx, SignUpParams{
		Address:   address,
		Message:   message,
		Signature: signMessage(t, priv, message),
		Nonce:     nonce,
	})
	require.NoError(t, err)
	assert.False(t, credentials.User.Completed)
}

func TestSignUpAddressMismatchBurnsNonce(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	nonce, err := f.service.IssueNonce(ctx)
	require.NoError(t, err)
	message := siweMessage(address, nonce)
	signature := signMessage(t, priv, message)

	// stated address does not own the signature
	_, err = f.service.SignUp(ctx, SignUpParams{
		Address:   "0x0000000000000000000000000000000000000001",
		Message:   message,
		Signature: signature,
		Nonce:     nonce,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	// the failed attempt consumed the nonce
	_, err = f.service.SignUp(ctx, SignUpParams{
		Address:   address,
		Message:   message,
		Signature: signature,
		Nonce:     nonce,
	})
	assert.ErrorIs(t, err, domain.ErrNonceInvalid)
}

func TestSignInUnknownAddress(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	nonce, err := f.service.IssueNonce(ctx)
	require.NoError(t, err)
	message := siweMessage(address, nonce)

	_, err = f.service.SignIn(ctx, SignInParams{
		Address:   address,
		Message:   message,
		Signature: signMessage(t, priv, message),
		Nonce:     nonce,
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	credentials := signUpTestUser(t, ctx, f)

	refreshed, err := f.service.Refresh(ctx, credentials.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	// far from expiry, no rotation
	assert.Empty(t, refreshed.RefreshToken)

	// close to expiry, the refresh token is silently rotated
	f.clock.Advance(168*time.Hour - 23*time.Hour)
	rotated, err := f.service.Refresh(ctx, credentials.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.RefreshToken)

	// the rotated-out token no longer refreshes
	_, err = f.service.Refresh(ctx, credentials.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = f.service.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshGarbageToken(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	_, err := f.service.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	credentials := signUpTestUser(t, ctx, f)

	claims, err := f.issuer.VerifyAccessToken(credentials.AccessToken)
	require.NoError(t, err)

	f.service.SignOut(ctx, credentials.RefreshToken, credentials.AccessToken)

	// refresh token record is gone
	_, err = f.service.Refresh(ctx, credentials.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	// access token is denylisted for its remaining lifetime
	revoked, err := f.issuer.IsAccessTokenRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

// SignOut never fails, whatever the tokens look like
func TestSignOutGarbageTokens(t *testing.T) {
	f := newServiceFixture()
	f.service.SignOut(context.Background(), "bogus", "also-bogus")
	f.service.SignOut(context.Background(), "", "")
}

func signUpTestUser(t *testing.T, ctx context.Context, f *serviceFixture) *Credentials {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	nonce, err := f.service.IssueNonce(ctx)
	require.NoError(t, err)
	message := siweMessage(address, nonce)

	credentials, err := f.service.SignUp(ctx, SignUpParams{
		Address:   address,
		Username:  "bob",
		Email:     "bob@example.com",
		Message:   message,
		Signature: signMessage(t, priv, message),
		Nonce:     nonce,
	})
	require.NoError(t, err)
	return credentials
}
