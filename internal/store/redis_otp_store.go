/**
 * @description
 * Redis implementation of the OtpStore. Records live at one key per username
 * as JSON, with the retention window mapped onto the key TTL so stale records
 * are expunged by Redis itself without a sweeper.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: The Redis client.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/SharathVaidya/Smartpay/internal/domain"
)

// RedisOtpStore keeps the single active OTP record per username in Redis.
type RedisOtpStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisOtpStore creates a store using the given key prefix
// (default "smartpay:otp").
func NewRedisOtpStore(client redis.UniversalClient, prefix string) *RedisOtpStore {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "smartpay:otp"
	}
	trimmed = strings.TrimSuffix(trimmed, ":")

	return &RedisOtpStore{client: client, prefix: trimmed}
}

func (s *RedisOtpStore) key(username string) string {
	return fmt.Sprintf("%s:%s", s.prefix, username)
}

// Find returns the active record for a username, or ErrOtpNotFound.
func (s *RedisOtpStore) Find(ctx context.Context, username string) (*domain.OtpRecord, error) {
	payload, err := s.client.Get(ctx, s.key(username)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrOtpNotFound
		}
		return nil, err
	}

	var record domain.OtpRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert overwrites the record and restarts the retention TTL.
func (s *RedisOtpStore) Upsert(ctx context.Context, record *domain.OtpRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(record.Username), payload, domain.OtpRetention).Err()
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *RedisOtpStore) Delete(ctx context.Context, username string) error {
	return s.client.Del(ctx, s.key(username)).Err()
}
