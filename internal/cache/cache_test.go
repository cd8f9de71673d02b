package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := GetClient()
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(prev) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			fetches++
			dest.UserID = "u1"
			dest.Username = "alice"
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey("u1"), &first, UserTTL, fetch(&first)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "alice", first.Username)

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey("u1"), &second, UserTTL, fetch(&second)))
	assert.Equal(t, 1, fetches, "second read should be served from cache")
	assert.Equal(t, "alice", second.Username)
}

func TestAside_FetchErrorPropagates(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	var dest cachedUser
	err := Aside(ctx, UserKey("missing"), &dest, UserTTL, func() error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	found, err := GetJSON(ctx, UserKey("missing"), &dest)
	require.NoError(t, err)
	assert.False(t, found, "failed fetch must not populate the cache")
}

func TestInvalidateUser_DropsBothKeys(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, UserKey("u1"), cachedUser{UserID: "u1"}, time.Minute))
	require.NoError(t, SetJSON(ctx, UsernameKey("alice"), cachedUser{UserID: "u1"}, time.Minute))

	InvalidateUser(ctx, "u1", "alice")

	assert.False(t, mr.Exists(UserKey("u1")))
	assert.False(t, mr.Exists(UsernameKey("alice")))
}

func TestAside_NoClientFallsThrough(t *testing.T) {
	prev := GetClient()
	SetClient(nil)
	t.Cleanup(func() { SetClient(prev) })

	var dest cachedUser
	err := Aside(context.Background(), SitKey(7), &dest, SitTTL, func() error {
		dest.Username = "direct"
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "direct", dest.Username)
}
