package auth

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/adapter"
	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// Credentials is the result of a successful sign-up, sign-in or refresh
type Credentials struct {
	User         *schema.User
	AccessToken  string
	RefreshToken string // empty on refresh calls when no rotation happened
}

// SignUpParams carries the sign-up request payload
type SignUpParams struct {
	Address   string
	Username  string
	Email     string
	Message   string
	Signature string
	Nonce     string
}

// SignInParams carries the sign-in request payload
type SignInParams struct {
	Address   string
	Message   string
	Signature string
	Nonce     string
}

// Service orchestrates the authentication lifecycle: nonce consumption,
// SIWE verification, user lookup/creation and credential issuance.
type Service struct {
	nonces *NonceStore
	issuer *Issuer
	store  store.Store
	clock  adapter.Clock
}

// NewService creates the authentication service
func NewService(nonces *NonceStore, issuer *Issuer, st store.Store, clock adapter.Clock) *Service {
	return &Service{nonces: nonces, issuer: issuer, store: st, clock: clock}
}

// IssueNonce hands out a fresh single-use challenge
func (s *Service) IssueNonce(ctx context.Context) (string, error) {
	return s.nonces.Issue(ctx)
}

// SignUp registers a new wallet. The nonce is consumed before signature
// verification so a replayed request fails on the nonce check.
func (s *Service) SignUp(ctx context.Context, params SignUpParams) (*Credentials, error) {
	address, err := s.verifyChallenge(ctx, params.Message, params.Signature, params.Nonce)
	if err != nil {
		return nil, err
	}

	if !domain.SameAddress(address, params.Address) {
		return nil, domain.ErrInvalidSignature
	}

	user := &schema.User{
		Address:   domain.NormalizeAddress(address),
		Username:  params.Username,
		Email:     params.Email,
		Completed: params.Username != "" && params.Email != "",
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return s.issueCredentials(ctx, user)
}

// SignIn authenticates an already registered wallet
func (s *Service) SignIn(ctx context.Context, params SignInParams) (*Credentials, error) {
	address, err := s.verifyChallenge(ctx, params.Message, params.Signature, params.Nonce)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByAddress(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	return s.issueCredentials(ctx, user)
}

// Refresh exchanges a valid refresh token for a fresh access token,
// silently rotating the refresh token when it is close to expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	claims, err := s.issuer.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrTokenInvalid
	}

	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	rotated, err := s.issuer.RotateIfNearExpiry(ctx, claims)
	if err != nil {
		return nil, err
	}

	return &Credentials{User: user, AccessToken: accessToken, RefreshToken: rotated}, nil
}

// SignOut tears down a session. Both token teardowns are independent and
// best-effort: verification failures are logged, never surfaced, so
// sign-out always succeeds from the caller's perspective.
func (s *Service) SignOut(ctx context.Context, refreshToken, accessToken string) {
	if refreshToken != "" {
		if claims, err := s.issuer.VerifyRefreshToken(ctx, refreshToken); err != nil {
			logger.WarnCtx(ctx, "Ignoring invalid refresh token on sign-out", zap.Error(err))
		} else if err := s.issuer.DeleteRefreshRecord(ctx, claims.ID); err != nil {
			logger.WarnCtx(ctx, "Failed to delete refresh token record on sign-out", zap.Error(err))
		}
	}

	if accessToken != "" {
		if claims, err := s.issuer.VerifyAccessToken(accessToken); err != nil {
			logger.WarnCtx(ctx, "Ignoring invalid access token on sign-out", zap.Error(err))
		} else {
			remaining := claims.ExpiresAt.Time.Sub(s.clock.Now())
			if err := s.issuer.RevokeAccessToken(ctx, claims.ID, remaining); err != nil {
				logger.WarnCtx(ctx, "Failed to denylist access token on sign-out", zap.Error(err))
			}
		}
	}
}

// verifyChallenge consumes the nonce then verifies the SIWE message.
// Consumption happens first: even a failed signature burns the nonce.
func (s *Service) verifyChallenge(ctx context.Context, message, signature, nonce string) (string, error) {
	consumed, err := s.nonces.Consume(ctx, nonce)
	if err != nil {
		return "", fmt.Errorf("failed to check nonce: %w", err)
	}
	if !consumed {
		return "", domain.ErrNonceInvalid
	}

	return VerifySIWE(message, signature, nonce)
}

func (s *Service) issueCredentials(ctx context.Context, user *schema.User) (*Credentials, error) {
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.issuer.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Credentials{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
