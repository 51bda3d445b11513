package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RevocationStore remembers logged-out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

// NewRevocationStore connects to Redis, falling back to a noop store when it is not configured or unreachable.
func NewRevocationStore(ctx context.Context, addr, password string, log *zap.Logger) RevocationStore {
	if addr == "" {
		log.Info("token_revocation_disabled", zap.String("reason", "empty redis addr"))
		return noopRevocations{reason: "empty redis addr"}
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("token_revocation_disabled", zap.String("addr", addr), zap.Error(err))
		_ = client.Close()
		return noopRevocations{reason: err.Error()}
	}

	log.Info("token_revocation_connected", zap.String("addr", addr))
	return &redisRevocations{client: client}
}

type redisRevocations struct {
	client *redis.Client
}

func revokedKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

func (s *redisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKey(jti), 1, ttl).Err()
}

func (s *redisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisRevocations) Close() error {
	return s.client.Close()
}

type noopRevocations struct {
	reason string
}

func (noopRevocations) Revoke(context.Context, string, time.Duration) error { return nil }

func (noopRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }

func (noopRevocations) Close() error { return nil }

// StoreMode reports the revocation backend for logging.
func StoreMode(s RevocationStore) string {
	switch s.(type) {
	case *redisRevocations:
		return "redis"
	case noopRevocations:
		return "noop"
	default:
		return "unknown"
	}
}
