package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/pkg/response"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader carries the client's key for a reserve or pay call
	IdempotencyKeyHeader = "X-Idempotency-Key"

	// DefaultIdempotencyTTL covers client retries for the lifetime of a hold
	DefaultIdempotencyTTL = 5 * time.Minute
	// DefaultPendingTTL bounds how long a crashed request blocks its key
	DefaultPendingTTL = 60 * time.Second

	idempotencyKeyPrefix = "idempotency:"
)

// RedisClient is the subset of go-redis the replay store needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig configures Idempotency
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL of a stored reply
	TTL time.Duration
	// PendingTTL of the claim held while the handler runs
	PendingTTL time.Duration
}

// DefaultIdempotencyConfig returns the configuration used by the API
func DefaultIdempotencyConfig(client RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:      client,
		TTL:        DefaultIdempotencyTTL,
		PendingTTL: DefaultPendingTTL,
	}
}

// storedReply is what a key maps to in Redis. A reply with Pending set is a
// claim by a request that has not finished yet.
type storedReply struct {
	Fingerprint string    `json:"fingerprint"`
	Pending     bool      `json:"pending"`
	Status      int       `json:"status,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	At          time.Time `json:"at"`
}

// replayable reports whether a handler outcome is final for its key.
// Server errors and lock timeouts are transient: the same request may
// succeed on retry, so the key is freed instead of pinned to the failure.
func replayable(status int) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return false
	case status == http.StatusLocked, status == http.StatusTooManyRequests:
		return false
	}
	return true
}

// IdempotencyMiddleware makes reserve and pay calls safe to retry. The first
// request with a key claims it and runs; a retry with the same user, route
// and body gets the stored reply back without touching seats or balances.
func IdempotencyMiddleware(config *IdempotencyConfig) gin.HandlerFunc {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	pendingTTL := config.PendingTTL
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	store := replyStore{client: config.Redis}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			response.Abort(c, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", IdempotencyKeyHeader+" header is required")
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		fingerprint := requestFingerprint(c, body)
		redisKey := idempotencyKeyPrefix + key
		ctx := c.Request.Context()

		claim := storedReply{Fingerprint: fingerprint, Pending: true, At: time.Now()}
		claimed, err := store.claim(ctx, redisKey, claim, pendingTTL)
		if err != nil {
			// Redis down: run unprotected
			c.Next()
			return
		}
		if !claimed {
			prior, err := store.load(ctx, redisKey)
			switch {
			case errors.Is(err, redis.Nil):
				// the holder just released it; ask the client to retry
				response.Abort(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed")
			case err != nil:
				c.Next()
			case prior.Fingerprint != fingerprint:
				response.Abort(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with different request")
			case prior.Pending:
				response.Abort(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed")
			default:
				c.Data(prior.Status, "application/json", prior.Body)
				c.Abort()
			}
			return
		}

		rec := &replyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if !replayable(status) {
			store.release(ctx, redisKey)
			return
		}
		store.save(ctx, redisKey, storedReply{
			Fingerprint: fingerprint,
			Status:      status,
			Body:        rec.body.Bytes(),
			At:          time.Now(),
		}, ttl)
	}
}

// requestFingerprint binds a key to the caller, the route and the payload
func requestFingerprint(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(GetUserID(c)))
	h.Write([]byte{0})
	h.Write([]byte(c.Request.Method + " " + c.Request.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type replyStore struct {
	client RedisClient
}

func (s replyStore) claim(ctx context.Context, key string, reply storedReply, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(reply)
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, key, string(data), ttl).Result()
}

func (s replyStore) load(ctx context.Context, key string) (*storedReply, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var reply storedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (s replyStore) save(ctx context.Context, key string, reply storedReply, ttl time.Duration) {
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	_ = s.client.Set(ctx, key, string(data), ttl).Err()
}

func (s replyStore) release(ctx context.Context, key string) {
	_ = s.client.Del(ctx, key).Err()
}

// replyRecorder tees the response body so it can be stored
type replyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *replyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *replyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
