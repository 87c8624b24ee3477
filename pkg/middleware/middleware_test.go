package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesNew(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headerID := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, headerID)
	assert.Equal(t, headerID, w.Body.String())
}

func TestRequestID_UsesExisting(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "existing-request-id-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "existing-request-id-123", w.Body.String())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func authRouter(cfg AuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(Auth(cfg))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})
	return r
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	cfg := AuthConfig{Secret: secret, Issuer: "concert-booking"}

	valid := signToken(t, secret, jwt.MapClaims{
		"user_id": "user-1",
		"iss":     "concert-booking",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, secret, jwt.MapClaims{
		"user_id": "user-1",
		"iss":     "concert-booking",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	wrongSecret := signToken(t, "other", jwt.MapClaims{
		"user_id": "user-1",
		"iss":     "concert-booking",
	})
	subOnly := signToken(t, secret, jwt.MapClaims{
		"sub": "user-2",
		"iss": "concert-booking",
	})

	tests := []struct {
		name       string
		header     string
		userHeader string
		allowHdr   bool
		wantStatus int
		wantUser   string
	}{
		{"valid token", "Bearer " + valid, "", false, http.StatusOK, "user-1"},
		{"subject claim", "Bearer " + subOnly, "", false, http.StatusOK, "user-2"},
		{"expired token", "Bearer " + expired, "", false, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + wrongSecret, "", false, http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", "", false, http.StatusUnauthorized, ""},
		{"missing header", "", "", false, http.StatusUnauthorized, ""},
		{"user header rejected", "", "user-3", false, http.StatusUnauthorized, ""},
		{"user header allowed", "", "user-3", true, http.StatusOK, "user-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.AllowUserIDHeader = tt.allowHdr
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.userHeader != "" {
				req.Header.Set(UserIDHeader, tt.userHeader)
			}
			w := httptest.NewRecorder()
			authRouter(c).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser, w.Body.String())
			}
		})
	}
}

func TestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	r := gin.New()
	r.Use(RequestID(), Logger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/bad", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

// fakeRedis is a map-backed RedisClient
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func idempotentRouter(store *fakeRedis, calls *int, status int) *gin.Engine {
	r := gin.New()
	r.Use(IdempotencyMiddleware(DefaultIdempotencyConfig(store)))
	r.POST("/reservations", func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"call": *calls})
	})
	return r
}

func post(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := idempotentRouter(store, &calls, http.StatusCreated)

	first := post(r, "key-1", `{"seat_id":"s1"}`)
	second := post(r, "key-1", `{"seat_id":"s1"}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_RejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := idempotentRouter(store, &calls, http.StatusCreated)

	post(r, "key-1", `{"seat_id":"s1"}`)
	w := post(r, "key-1", `{"seat_id":"s2"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_MissingKey(t *testing.T) {
	calls := 0
	w := post(idempotentRouter(newFakeRedis(), &calls, http.StatusCreated), "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotency_ServerErrorIsNotCached(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := idempotentRouter(store, &calls, http.StatusInternalServerError)

	post(r, "key-1", `{}`)
	post(r, "key-1", `{}`)

	assert.Equal(t, 2, calls)
}

func TestIdempotency_LockTimeoutIsNotCached(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := gin.New()
	r.Use(IdempotencyMiddleware(DefaultIdempotencyConfig(store)))
	r.POST("/reservations", func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusLocked, gin.H{"code": "LOCK_TIMEOUT"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"reservation_id": "r-1"})
	})

	first := post(r, "key-1", `{"seat_id":"s1"}`)
	assert.Equal(t, http.StatusLocked, first.Code)
	assert.Empty(t, store.data, "a lock timeout frees the key")

	second := post(r, "key-1", `{"seat_id":"s1"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)

	third := post(r, "key-1", `{"seat_id":"s1"}`)
	assert.Equal(t, second.Body.String(), third.Body.String())
	assert.Equal(t, 2, calls)
}

func TestIdempotency_PendingKeyConflicts(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := idempotentRouter(store, &calls, http.StatusCreated)

	// the same request is still running elsewhere
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/reservations", nil)
	claim := storedReply{Fingerprint: requestFingerprint(c, []byte(`{}`)), Pending: true}
	claimed, err := replyStore{client: store}.claim(context.Background(), idempotencyKeyPrefix+"key-1", claim, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	w := post(r, "key-1", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, calls)

	w = post(r, "key-1", `{"seat_id":"s2"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIdempotency_KeyIsScopedToUser(t *testing.T) {
	store := newFakeRedis()
	calls := 0
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextKeyUserID, c.GetHeader("X-Test-User"))
	})
	r.Use(IdempotencyMiddleware(DefaultIdempotencyConfig(store)))
	r.POST("/payments", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(`{"reservation_id":"r-1"}`))
		req.Header.Set(IdempotencyKeyHeader, "shared")
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusUnprocessableEntity, send("bob"), "another user cannot replay alice's reply")
	assert.Equal(t, 1, calls)
}
