// Package cache implements out.CacheInvalidator over Redis key-pattern
// deletes: a small set of "<prefix>:<user_id>[:<suffix>]" keys deleted per
// mutation, SCAN for the "delete everything for this user" case rather than
// a blocking KEYS call.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mailbrief/core/port/out"
	"mailbrief/pkg/logger"
)

// scopeKeySuffixes maps each CacheScope to the fixed key suffixes it should
// drop. CacheScopeAll is handled separately via a prefix scan.
var scopeKeySuffixes = map[out.CacheScope][]string{
	out.CacheScopeNewEmail:       {"emails", "stats"},
	out.CacheScopeDeleteEmail:    {"emails", "stats"},
	out.CacheScopePurgeEmail:     {"emails", "stats"},
	out.CacheScopeRestoreEmail:   {"emails", "stats"},
	out.CacheScopeClearAllEmails: {"emails", "stats", "digests"},
	out.CacheScopeNewDigest:      {"digests"},
	out.CacheScopeConfigChange:   {"config"},
}

const userPrefix = "mailbrief:user:%d:*"

// Invalidator implements out.CacheInvalidator over a redis.Client.
type Invalidator struct {
	client *redis.Client
	log    *logger.Logger
}

// New builds an Invalidator over an already-configured redis.Client.
func New(client *redis.Client, log *logger.Logger) *Invalidator {
	return &Invalidator{client: client, log: log}
}

// Invalidate drops the Redis keys a mutation of the given scope makes
// stale. CacheScopeAll scans and deletes every key under the user's prefix
// instead of enumerating suffixes, since it's the "wipe this user" case
// (e.g. after a notification, which can affect several cached views).
func (i *Invalidator) Invalidate(ctx context.Context, userID int64, scope out.CacheScope) error {
	if scope == out.CacheScopeAll {
		return i.invalidateAll(ctx, userID)
	}

	suffixes, ok := scopeKeySuffixes[scope]
	if !ok {
		return fmt.Errorf("cache: unrecognized scope %q", scope)
	}

	keys := make([]string, len(suffixes))
	for idx, suffix := range suffixes {
		keys[idx] = fmt.Sprintf("mailbrief:user:%d:%s", userID, suffix)
	}

	if err := i.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: DEL failed for user %d scope %s: %w", userID, scope, err)
	}
	return nil
}

// invalidateAll iterates the user's key space with SCAN (never KEYS, which
// blocks the Redis event loop) and deletes every match in small batches.
func (i *Invalidator) invalidateAll(ctx context.Context, userID int64) error {
	pattern := fmt.Sprintf(userPrefix, userID)
	iter := i.client.Scan(ctx, 0, pattern, 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := i.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("cache: batched DEL failed for user %d: %w", userID, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: SCAN failed for user %d: %w", userID, err)
	}
	if len(batch) > 0 {
		if err := i.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("cache: final batched DEL failed for user %d: %w", userID, err)
		}
	}
	return nil
}
