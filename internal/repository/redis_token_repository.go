package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed scripts/save_token.lua
var saveTokenScript string

// Script name for caching
const scriptSaveToken = "save_token"

const (
	waitingTokensKey = "admission:waiting"
	activeTokensKey  = "admission:active"
)

func tokenKey(id string) string         { return "admission:token:" + id }
func userTokenKey(userID string) string { return "admission:user:" + userID }

// RedisTokenRepository implements TokenRepository using Redis hashes indexed
// by two sorted sets
type RedisTokenRepository struct {
	client *pkgredis.Client
}

// NewRedisTokenRepository creates a new RedisTokenRepository
func NewRedisTokenRepository(client *pkgredis.Client) *RedisTokenRepository {
	return &RedisTokenRepository{client: client}
}

// LoadScripts loads all token Lua scripts into Redis
func (r *RedisTokenRepository) LoadScripts(ctx context.Context) error {
	if _, err := r.client.LoadScript(ctx, scriptSaveToken, saveTokenScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptSaveToken, err)
	}
	return nil
}

// Save writes the token hash and its index entries atomically
func (r *RedisTokenRepository) Save(ctx context.Context, token *domain.AdmissionToken) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.token.save")
	defer span.End()

	span.SetAttributes(
		attribute.String("token_id", token.ID),
		attribute.String("status", string(token.Status)),
	)

	var expiresScore int64
	if token.ExpiresAt != nil {
		expiresScore = token.ExpiresAt.UnixMicro()
	}

	keys := []string{tokenKey(token.ID), userTokenKey(token.UserID), waitingTokensKey, activeTokensKey}
	args := []interface{}{
		token.ID,                      // ARGV[1]
		token.UserID,                  // ARGV[2]
		string(token.Status),          // ARGV[3]
		token.Position,                // ARGV[4]
		formatTime(&token.IssuedAt),   // ARGV[5]
		formatTime(token.ActivatedAt), // ARGV[6]
		formatTime(token.ExpiresAt),   // ARGV[7]
		token.IssuedAt.UnixMicro(),    // ARGV[8]
		expiresScore,                  // ARGV[9]
	}

	result := r.client.EvalWithFallback(ctx, scriptSaveToken, saveTokenScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return fmt.Errorf("failed to execute save_token script: %w", result.Err())
	}
	if saved, _ := result.Int64(); saved == 0 {
		span.SetStatus(codes.Error, "stale waiting write")
		return fmt.Errorf("%w: token %s already left the queue", domain.ErrInvalidTransition, token.ID)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID loads a token hash
func (r *RedisTokenRepository) GetByID(ctx context.Context, id string) (*domain.AdmissionToken, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.token.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("token_id", id))

	fields, err := r.client.HGetAll(ctx, tokenKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if len(fields) == 0 {
		span.SetStatus(codes.Error, "not found")
		return nil, domain.ErrTokenNotFound
	}

	token, err := parseToken(fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return token, nil
}

// GetLatestByUserID follows the user pointer to the newest token
func (r *RedisTokenRepository) GetLatestByUserID(ctx context.Context, userID string) (*domain.AdmissionToken, error) {
	id, err := r.client.Get(ctx, userTokenKey(userID)).Result()
	if err != nil {
		if pkgredis.IsNil(err) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get user token: %w", err)
	}
	return r.GetByID(ctx, id)
}

// FindWaiting returns waiting tokens, oldest first
func (r *RedisTokenRepository) FindWaiting(ctx context.Context, limit int) ([]*domain.AdmissionToken, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.token.find_waiting")
	defer span.End()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRange(ctx, waitingTokensKey, 0, stop).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list waiting tokens: %w", err)
	}

	tokens, err := r.loadAll(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(tokens)))
	span.SetStatus(codes.Ok, "")
	return tokens, nil
}

// FindLapsedActive returns active tokens whose lease ended before now
func (r *RedisTokenRepository) FindLapsedActive(ctx context.Context, now time.Time) ([]*domain.AdmissionToken, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.token.find_lapsed_active")
	defer span.End()

	ids, err := r.client.ZRangeByScore(ctx, activeTokensKey, "-inf", "("+strconv.FormatInt(now.UnixMicro(), 10), 0).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list lapsed tokens: %w", err)
	}

	tokens, err := r.loadAll(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	lapsed := tokens[:0]
	for _, t := range tokens {
		if t.IsLeaseElapsed(now) {
			lapsed = append(lapsed, t)
		}
	}

	span.SetAttributes(attribute.Int("count", len(lapsed)))
	span.SetStatus(codes.Ok, "")
	return lapsed, nil
}

// WaitingRank returns the 1-based rank in the waiting index, 0 if absent
func (r *RedisTokenRepository) WaitingRank(ctx context.Context, id string) (int64, error) {
	rank, err := r.client.ZRank(ctx, waitingTokensKey, id).Result()
	if err != nil {
		if pkgredis.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get waiting rank: %w", err)
	}
	return rank + 1, nil
}

func (r *RedisTokenRepository) CountWaiting(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, waitingTokensKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count waiting tokens: %w", err)
	}
	return n, nil
}

func (r *RedisTokenRepository) CountActive(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, activeTokensKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active tokens: %w", err)
	}
	return n, nil
}

// loadAll fetches token hashes in one pipeline, keeping the order of ids
func (r *RedisTokenRepository) loadAll(ctx context.Context, ids []string) ([]*domain.AdmissionToken, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.TxPipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, tokenKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	tokens := make([]*domain.AdmissionToken, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		token, err := parseToken(fields)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func parseToken(fields map[string]string) (*domain.AdmissionToken, error) {
	issuedAt, err := parseTime(fields["issued_at"])
	if err != nil || issuedAt == nil {
		return nil, fmt.Errorf("invalid issued_at for token %s: %v", fields["id"], err)
	}
	activatedAt, err := parseTime(fields["activated_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid activated_at for token %s: %w", fields["id"], err)
	}
	expiresAt, err := parseTime(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at for token %s: %w", fields["id"], err)
	}
	position, _ := toInt64(fields["position"])

	return &domain.AdmissionToken{
		ID:          fields["id"],
		UserID:      fields["user_id"],
		Status:      domain.TokenStatus(fields["status"]),
		Position:    position,
		IssuedAt:    *issuedAt,
		ActivatedAt: activatedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// toInt64 converts interface{} to int64
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
