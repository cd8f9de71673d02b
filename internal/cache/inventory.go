package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	userKeyPrefix     = "user:%s"
	usernameKeyPrefix = "username:%s"
	sitKeyPrefix      = "sit:%d"
)

const (
	UserTTL = 5 * time.Minute
	SitTTL  = 10 * time.Minute
)

// UserKey is the cache key for a user addressed by external id.
func UserKey(userID string) string {
	return fmt.Sprintf(userKeyPrefix, userID)
}

// UsernameKey is the cache key for a user addressed by username.
func UsernameKey(username string) string {
	return fmt.Sprintf(usernameKeyPrefix, username)
}

// SitKey is the cache key for a sit addressed by storage id.
func SitKey(sitID uint) string {
	return fmt.Sprintf(sitKeyPrefix, sitID)
}

// Invalidate deletes a single key, best-effort.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateUser drops both lookup entries for a user.
// Callers pass the username as stored before the mutation so renames
// evict the stale entry.
func InvalidateUser(ctx context.Context, userID, username string) {
	Invalidate(ctx, UserKey(userID))
	if username != "" {
		Invalidate(ctx, UsernameKey(username))
	}
}

// InvalidateSit drops the cached sit.
func InvalidateSit(ctx context.Context, sitID uint) {
	Invalidate(ctx, SitKey(sitID))
}
