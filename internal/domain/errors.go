package domain

import "errors"

var (
	// ErrNonceInvalid is returned when a nonce is unknown, expired or already consumed
	ErrNonceInvalid = errors.New("nonce is invalid or already used")

	// ErrNonceMismatch is returned when the SIWE message states a different nonce
	ErrNonceMismatch = errors.New("message nonce does not match expected nonce")

	// ErrInvalidSignature is returned when signature recovery fails or the
	// recovered address does not match the message address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrTokenInvalid is returned for any access/refresh token verification
	// failure. Callers must not distinguish expired from malformed.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrUserNotFound is returned when no user matches the given address or id
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when signing up an already registered address
	ErrUserExists = errors.New("user already exists")

	// ErrPoolNotFound is returned when an event references an unknown pool
	ErrPoolNotFound = errors.New("donation pool not found")

	// ErrSubscriptionNotFound is returned when an event references an unknown subscription
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
