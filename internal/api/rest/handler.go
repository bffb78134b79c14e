package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seedpool/seedpool-backend/internal/api/middleware"
	"github.com/seedpool/seedpool-backend/internal/auth"
	"github.com/seedpool/seedpool-backend/internal/domain"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/notifier"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// CookieConfig holds the refresh token cookie settings
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // seconds, the refresh token TTL
}

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetNonce hands out a fresh single-use sign-in challenge
	// GET /api/v1/auth/nonce
	GetNonce(c *gin.Context)

	// SignUp registers a new wallet with a signed SIWE message
	// POST /api/v1/auth/signup
	SignUp(c *gin.Context)

	// SignIn authenticates a registered wallet
	// POST /api/v1/auth/signin
	SignIn(c *gin.Context)

	// SignOut tears down the session, always succeeding
	// POST /api/v1/auth/signout
	SignOut(c *gin.Context)

	// RefreshToken exchanges the refresh cookie for a fresh access token
	// GET /api/v1/auth/refresh-token
	RefreshToken(c *gin.Context)

	// Me returns the authenticated user
	// GET /api/v1/auth/me
	Me(c *gin.Context)

	// ListNotifications lists the caller's notifications
	// GET /api/v1/notifications?limit=<limit>&offset=<offset>
	ListNotifications(c *gin.Context)

	// NotificationSSE streams the caller's notifications as server-sent events
	// GET /api/v1/notifications/sse
	NotificationSSE(c *gin.Context)

	// MarkNotificationRead marks one of the caller's notifications as read
	// PATCH /api/v1/notifications/:id
	MarkNotificationRead(c *gin.Context)

	// CreatePool creates a donation pool in publishing state
	// POST /api/v1/pools
	CreatePool(c *gin.Context)

	// GetPool retrieves a pool by its id hash
	// GET /api/v1/pools/:idHash
	GetPool(c *gin.Context)

	// ListPools lists pools
	// GET /api/v1/pools?limit=<limit>&offset=<offset>
	ListPools(c *gin.Context)

	// ListPoolDonations lists a pool's donations
	// GET /api/v1/pools/:idHash/donations?limit=<limit>&offset=<offset>
	ListPoolDonations(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	authService *auth.Service
	store       store.Store
	registry    *notifier.Registry
	cookies     CookieConfig
}

// NewHandler creates a new REST API handler
func NewHandler(authService *auth.Service, st store.Store, registry *notifier.Registry, cookies CookieConfig) Handler {
	return &handler{
		authService: authService,
		store:       st,
		registry:    registry,
		cookies:     cookies,
	}
}

// GetNonce hands out a fresh single-use sign-in challenge
func (h *handler) GetNonce(c *gin.Context) {
	nonce, err := h.authService.IssueNonce(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to issue nonce"))
		respondInternalError(c, "Failed to issue nonce")
		return
	}
	c.JSON(http.StatusOK, NonceResponse{Nonce: nonce})
}

// SignUp registers a new wallet
func (h *handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if !req.AcceptedTerms {
		respondBadRequest(c, "Terms must be accepted")
		return
	}

	credentials, err := h.authService.SignUp(c.Request.Context(), auth.SignUpParams{
		Address:   req.Address,
		Username:  req.Username,
		Email:     req.Email,
		Message:   req.Message,
		Signature: req.Signature,
		Nonce:     req.Nonce,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, credentials.RefreshToken)
	c.JSON(http.StatusCreated, TokenResponse{AccessToken: credentials.AccessToken})
}

// SignIn authenticates a registered wallet
func (h *handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	credentials, err := h.authService.SignIn(c.Request.Context(), auth.SignInParams{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
		Nonce:     req.Nonce,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, credentials.RefreshToken)
	c.JSON(http.StatusOK, TokenResponse{AccessToken: credentials.AccessToken})
}

// SignOut tears down the session. Teardown is best-effort and the
// response is 204 regardless of what the tokens looked like.
func (h *handler) SignOut(c *gin.Context) {
	refreshToken, _ := c.Cookie(refreshCookieName)
	accessToken := extractBearer(c.GetHeader("Authorization"))

	h.authService.SignOut(c.Request.Context(), refreshToken, accessToken)

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

// RefreshToken exchanges the refresh cookie for a fresh access token,
// silently rotating the cookie when the refresh token nears expiry
func (h *handler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookieName)
	if err != nil || refreshToken == "" {
		respondUnauthorized(c)
		return
	}

	credentials, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			respondUnauthorized(c)
			return
		}
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Refresh failed"))
		respondInternalError(c, "Failed to refresh session")
		return
	}

	if credentials.RefreshToken != "" {
		h.setRefreshCookie(c, credentials.RefreshToken)
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: credentials.AccessToken})
}

// Me returns the authenticated user
func (h *handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// ListNotifications lists the caller's notifications, newest first
func (h *handler) ListNotifications(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	limit, offset := parsePagination(c)
	notifications, err := h.store.ListNotifications(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to list notifications"))
		respondInternalError(c, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// NotificationSSE streams the caller's notifications as server-sent
// events until the client disconnects
func (h *handler) NotificationSSE(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	stream := h.registry.Register(user.ID)
	defer h.registry.Unregister(user.ID, stream)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, open := <-stream:
			if !open {
				// replaced by a newer connection for the same user
				return false
			}
			c.SSEvent("notification", n)
			return true
		}
	})
}

// MarkNotificationRead marks one of the caller's notifications as read
func (h *handler) MarkNotificationRead(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid notification id")
		return
	}

	rows, err := h.store.MarkNotificationRead(c.Request.Context(), id, user.ID)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to mark notification read"))
		respondInternalError(c, "Failed to mark notification read")
		return
	}
	if rows == 0 {
		respondNotFound(c, "Notification not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// CreatePool creates a donation pool in publishing state. The returned
// id hash is what the client passes to the contract publish call; the
// pool transitions to published when the matching event is reconciled.
func (h *handler) CreatePool(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}

	var req CreatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if !domain.IsValidChain(req.Chain) {
		respondBadRequest(c, "Unsupported chain")
		return
	}

	pool := &schema.DonationPool{
		IDHash:      domain.NewPoolIDHash(),
		Chain:       req.Chain,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.PoolStatusPublishing,
		OwnerUserID: user.ID,
	}
	if err := h.store.CreatePool(c.Request.Context(), pool); err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to create pool"))
		respondInternalError(c, "Failed to create pool")
		return
	}

	c.JSON(http.StatusCreated, toPoolResponse(pool))
}

// GetPool retrieves a pool by its id hash
func (h *handler) GetPool(c *gin.Context) {
	pool, err := h.store.GetPoolByIDHash(c.Request.Context(), c.Param("idHash"))
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to get pool"))
		respondInternalError(c, "Failed to get pool")
		return
	}
	if pool == nil {
		respondNotFound(c, "Pool not found")
		return
	}
	c.JSON(http.StatusOK, toPoolResponse(pool))
}

// ListPools lists pools, newest first
func (h *handler) ListPools(c *gin.Context) {
	limit, offset := parsePagination(c)
	pools, err := h.store.ListPools(c.Request.Context(), limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to list pools"))
		respondInternalError(c, "Failed to list pools")
		return
	}

	responses := make([]PoolResponse, 0, len(pools))
	for _, pool := range pools {
		responses = append(responses, toPoolResponse(pool))
	}
	c.JSON(http.StatusOK, gin.H{"pools": responses})
}

// ListPoolDonations lists a pool's donations, newest first
func (h *handler) ListPoolDonations(c *gin.Context) {
	pool, err := h.store.GetPoolByIDHash(c.Request.Context(), c.Param("idHash"))
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to get pool"))
		respondInternalError(c, "Failed to get pool")
		return
	}
	if pool == nil {
		respondNotFound(c, "Pool not found")
		return
	}

	limit, offset := parsePagination(c)
	donations, err := h.store.ListDonationsByPool(c.Request.Context(), pool.ID, limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Failed to list donations"))
		respondInternalError(c, "Failed to list donations")
		return
	}

	responses := make([]DonationResponse, 0, len(donations))
	for _, donation := range donations {
		responses = append(responses, toDonationResponse(donation))
	}
	c.JSON(http.StatusOK, gin.H{"donations": responses})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondAuthError maps authentication flow errors to their status codes
func (h *handler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNonceInvalid), errors.Is(err, domain.ErrNonceMismatch):
		respondValidationError(c, "Invalid or expired nonce")
	case errors.Is(err, domain.ErrInvalidSignature):
		respondBadRequest(c, "Invalid signature")
	case errors.Is(err, domain.ErrUserExists):
		respondConflict(c, "Address already registered")
	case errors.Is(err, domain.ErrUserNotFound):
		respondNotFound(c, "Address not registered")
	default:
		logger.ErrorCtx(c.Request.Context(), err, zap.String("message", "Authentication flow failed"))
		respondInternalError(c, "Authentication failed")
	}
}

func (h *handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, h.cookies.MaxAge, refreshCookiePath, h.cookies.Domain, h.cookies.Secure, true)
}

func (h *handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, h.cookies.Domain, h.cookies.Secure, true)
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parsePagination reads limit/offset query parameters with sane bounds
func parsePagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
