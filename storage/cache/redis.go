// Package cache implements student.Cache on Redis, or in process memory when Redis is not configured.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/student"
)

const studentKeyPrefix = "tutora:student:"

func studentKey(id string) string { return studentKeyPrefix + id }

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type redisStudentCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ student.Cache = (*redisStudentCache)(nil) // interface compliance check

// NewRedisStudentCache stores Students as JSON strings expiring after ttl.
func NewRedisStudentCache(client *redis.Client, ttl time.Duration) student.Cache {
	return &redisStudentCache{client: client, ttl: ttl}
}

func (c *redisStudentCache) GetMany(ctx context.Context, ids []string) (map[string]student.Student, error) {
	found := make(map[string]student.Student, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, studentKey(id))
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "reading cached students")
	}

	for _, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue // miss
		}
		var st student.Student
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue // stale format; reloaded from the DB
		}
		found[st.ID] = st
	}
	return found, nil
}

func (c *redisStudentCache) SetMany(ctx context.Context, students ...student.Student) error {
	if len(students) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, st := range students {
		data, err := json.Marshal(st)
		if err != nil {
			return errors.Wrapf(err, "encoding student %s", st.ID)
		}
		pipe.Set(ctx, studentKey(st.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "caching students")
}

func (c *redisStudentCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, studentKey(id))
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "evicting cached students")
}
