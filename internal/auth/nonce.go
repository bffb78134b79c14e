package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/seedpool/seedpool-backend/internal/adapter"
)

const nonceKeyPrefix = "auth:nonce:"

// nonceMarker is the stored value; the nonce itself lives in the key
const nonceMarker = "valid"

// NonceStore issues short-lived single-use challenge values backing SIWE.
// Consumption is atomic (GETDEL) so a nonce can never be redeemed twice,
// even under concurrent verification attempts.
type NonceStore struct {
	kv  adapter.KV
	ttl time.Duration
}

// NewNonceStore creates a nonce store with the given TTL
func NewNonceStore(kv adapter.KV, ttl time.Duration) *NonceStore {
	return &NonceStore{kv: kv, ttl: ttl}
}

// Issue generates a fresh random nonce and stores it with the configured TTL
func (s *NonceStore) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	if err := s.kv.SetEX(ctx, nonceKeyPrefix+nonce, nonceMarker, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce, nil
}

// Consume atomically invalidates a nonce. Returns true iff the nonce
// existed and is now deleted; a second call for the same nonce returns false.
func (s *NonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}

	_, found, err := s.kv.GetDel(ctx, nonceKeyPrefix+nonce)
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	return found, nil
}
