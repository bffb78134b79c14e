package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedpool/seedpool-backend/internal/auth"
	"github.com/seedpool/seedpool-backend/internal/logger"
	"github.com/seedpool/seedpool-backend/internal/store"
	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// memKV is an in-memory KV fake; TTLs are not enforced
type memKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemKV() *memKV {
	return &memKV{values: make(map[string]string)}
}

func (m *memKV) SetEX(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memKV) GetDel(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if ok {
		delete(m.values, key)
	}
	return value, ok, nil
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok, nil
}

func (m *memKV) Ping(context.Context) error { return nil }
func (m *memKV) Close() error               { return nil }

type stubClock struct{}

func (stubClock) Now() time.Time                         { return time.Now() }
func (stubClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (stubClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// userStore resolves the single user the tests know about
type userStore struct {
	store.Store
	user *schema.User
}

func (s *userStore) GetUserByID(_ context.Context, id int64) (*schema.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, nil
}

func newTestGuard() (*auth.Issuer, *gin.Engine) {
	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    168 * time.Hour,
		RotateLeft:    24 * time.Hour,
	}, newMemKV(), stubClock{})

	st := &userStore{user: &schema.User{ID: 7, Address: "0xaaa", Username: "alice"}}

	router := gin.New()
	router.GET("/probe", Session(issuer, st), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	return issuer, router
}

func probe(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionAcceptsValidToken(t *testing.T) {
	issuer, router := newTestGuard()

	token, err := issuer.IssueAccessToken(&schema.User{ID: 7, Username: "alice"})
	require.NoError(t, err)

	w := probe(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":7`)
}

func TestSessionRejections(t *testing.T) {
	issuer, router := newTestGuard()

	unknownUserToken, err := issuer.IssueAccessToken(&schema.User{ID: 99})
	require.NoError(t, err)

	revokedToken, err := issuer.IssueAccessToken(&schema.User{ID: 7})
	require.NoError(t, err)
	claims, err := issuer.VerifyAccessToken(revokedToken)
	require.NoError(t, err)
	require.NoError(t, issuer.RevokeAccessToken(context.Background(), claims.ID, time.Hour))

	testCases := []struct {
		name          string
		authorization string
	}{
		{name: "missing header", authorization: ""},
		{name: "not a bearer header", authorization: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer", authorization: "Bearer "},
		{name: "literal null placeholder", authorization: "Bearer null"},
		{name: "literal undefined placeholder", authorization: "Bearer undefined"},
		{name: "garbage token", authorization: "Bearer not.a.jwt"},
		{name: "token for unknown user", authorization: "Bearer " + unknownUserToken},
		{name: "revoked token", authorization: "Bearer " + revokedToken},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := probe(router, tc.authorization)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			// a uniform body, whatever the rejection reason
			assert.Contains(t, w.Body.String(), "Authentication failed")
		})
	}
}

// refresh tokens never authorize a request directly
func TestSessionRejectsRefreshToken(t *testing.T) {
	issuer, router := newTestGuard()

	refreshToken, err := issuer.IssueRefreshToken(context.Background(), 7)
	require.NoError(t, err)

	w := probe(router, "Bearer "+refreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
