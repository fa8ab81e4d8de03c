package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

const (
	redisCacheTTL  = 5 * time.Minute
	redisKeyPrefix = "qr:key:"
)

// KeyStore looks up API key metadata by hash. A nil result with a nil error
// means the key is unknown, revoked or expired.
type KeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*KeyMetadata, error)
}

// DB is the subset of pgxpool.Pool used by CachedKeyStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CachedKeyStore implements KeyStore with PostgreSQL and a Redis read-through cache.
type CachedKeyStore struct {
	db    DB
	redis *redis.Client
}

func NewCachedKeyStore(db DB, rdb *redis.Client) *CachedKeyStore {
	return &CachedKeyStore{db: db, redis: rdb}
}

func (s *CachedKeyStore) Lookup(ctx context.Context, keyHash string) (*KeyMetadata, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, redisKeyPrefix+keyHash).Bytes()
		if err == nil {
			var meta KeyMetadata
			if err := json.Unmarshal(cached, &meta); err == nil && meta.ExpiresAt.After(time.Now()) {
				return &meta, nil
			}
		}
	}

	meta, err := s.lookupDB(ctx, keyHash)
	if err != nil || meta == nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(meta); err == nil {
			if err := s.redis.Set(ctx, redisKeyPrefix+keyHash, data, redisCacheTTL).Err(); err != nil {
				slog.Warn("api key cache write failed", "error", err)
			}
		}
	}
	return meta, nil
}

const lookupKeySQL = `
	SELECT id, name, owner, allowed_tools,
	       COALESCE(rpm_limit, 0), COALESCE(daily_query_limit, 0), expires_at
	FROM api_keys
	WHERE key_hash = $1
	  AND status = 'active'
	  AND expires_at > NOW()`

func (s *CachedKeyStore) lookupDB(ctx context.Context, keyHash string) (*KeyMetadata, error) {
	var meta KeyMetadata
	err := s.db.QueryRow(ctx, lookupKeySQL, keyHash).Scan(
		&meta.ID,
		&meta.Name,
		&meta.Owner,
		&meta.AllowedTools,
		&meta.RPMLimit,
		&meta.DailyQueryLimit,
		&meta.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query api_keys: %w", err)
	}

	go func(id string) {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := s.db.Exec(bgCtx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id); err != nil {
			slog.Debug("api key last_used_at update failed", "key_id", id, "error", err)
		}
	}(meta.ID)

	return &meta, nil
}
