package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// How long the in-progress marker lives if the handler never finishes
const provisionalLockTTL = 60 * time.Second

// ErrNotFound is returned by Load when the key is unknown or expired
var ErrNotFound = errors.New("idempotency key not found")

// Entry is the stored state of one idempotency key
type Entry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	BodySHA256  string    `json:"body_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps idempotency entries in redis
type Store struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewStore creates a redis backed idempotency store. ttl bounds how long a
// completed response can be replayed.
func NewStore(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		rdb:    rdb,
		ttl:    ttl,
		prefix: "hrflow:idem:",
		logger: logger,
	}
}

// Key builds the storage key of a client key within a caller's scope
func (s *Store) Key(scope, clientKey string) string {
	return s.prefix + scope + ":" + clientKey
}

// Begin claims the key with an in-progress marker. It reports false when the key already exists.
func (s *Store) Begin(ctx context.Context, key, bodyHash string) (bool, error) {
	entry := Entry{
		InProgress: true,
		BodySHA256: bodyHash,
		CreatedAt:  time.Now().UTC(),
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to marshal entry: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, key, b, provisionalLockTTL).Result()
	if err != nil {
		s.logger.Error("Failed to claim idempotency key", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Load returns the entry stored under key
func (s *Store) Load(ctx context.Context, key string) (*Entry, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load idempotency key: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency entry: %w", err)
	}
	return &entry, nil
}

// Complete stores the final response for replay
func (s *Store) Complete(ctx context.Context, key string, entry Entry) error {
	entry.InProgress = false
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release drops the key so the client may retry
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// BodyHash returns the hex SHA-256 of a request body
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
