package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"unibook-bot/types"

	"github.com/redis/go-redis/v9"
)

const coursesCacheTTL = 24 * time.Hour

// Cache sits in front of the course catalog so repeated scan activations
// and restarts do not hit Postgres for data that never changes mid-term.
type Cache struct {
	client *redis.Client
}

func NewCache(addr, password string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: rdb}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SaveCourses caches the catalog entries for a set of course IDs.
func (c *Cache) SaveCourses(ctx context.Context, ids []int, courses []types.Course) error {
	data, err := json.Marshal(courses)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, coursesKey(ids), data, coursesCacheTTL).Err()
}

// GetCourses returns the cached catalog entries for a set of course IDs,
// or nil on a cache miss.
func (c *Cache) GetCourses(ctx context.Context, ids []int) ([]types.Course, error) {
	val, err := c.client.Get(ctx, coursesKey(ids)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var courses []types.Course
	if err := json.Unmarshal([]byte(val), &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// coursesKey builds a deterministic key from the ID set.
func coursesKey(ids []int) string {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("cache:courses:%s", strings.Join(parts, ","))
}
