package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/student"
)

// Skipped unless REDIS_ADDR points to a disposable Redis, e.g. localhost:6379.
func TestRedisStudentCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, core.RedisConfig{Address: addr})
	require.NoError(t, err)
	defer client.Close()

	ids := []string{"test-s1", "test-s2", "test-s3"}
	defer client.Del(ctx, studentKey(ids[0]), studentKey(ids[1]), studentKey(ids[2]))

	c := NewRedisStudentCache(client, time.Minute)

	found, err := c.GetMany(ctx, ids)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, c.SetMany(ctx,
		student.Student{ID: ids[0], Name: "Amina", Grade: 5},
		student.Student{ID: ids[1], Name: "Baraka", ClassIDs: []string{"c1"}},
	))
	require.NoError(t, client.Set(ctx, studentKey(ids[2]), "{not json", time.Minute).Err())

	found, err = c.GetMany(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, found, 2, "undecodable entries are misses")
	assert.Equal(t, 5, found[ids[0]].Grade)
	assert.Equal(t, []string{"c1"}, found[ids[1]].ClassIDs)

	ttl, err := client.TTL(ctx, studentKey(ids[0])).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %s", ttl)

	require.NoError(t, c.Delete(ctx, ids[0]))
	found, err = c.GetMany(ctx, ids[:2])
	require.NoError(t, err)
	assert.NotContains(t, found, ids[0])
	assert.Contains(t, found, ids[1])

	t.Run("unreachable", func(t *testing.T) {
		_, err := NewRedisClient(ctx, core.RedisConfig{Address: "127.0.0.1:1"})
		assert.Error(t, err)
	})
}
