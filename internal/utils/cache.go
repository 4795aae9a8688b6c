package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Sentinel comparison
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// CatalogPrefix namespaces every cached storefront response
const CatalogPrefix = "catalog:"

// UsersPrefix namespaces cached admin user listings
const UsersPrefix = "admin:users:"

// ResetPrefix namespaces outstanding password reset token IDs
const ResetPrefix = "reset:"

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Bytes() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal(val, dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// TakeCache reads and deletes a key in one step. Only one caller ever sees the value.
func TakeCache(ctx context.Context, rdb *redis.Client, key string) (string, bool, error) {
	val, err := rdb.GetDel(ctx, key).Result() // Atomic read and delete
	if errors.Is(err, redis.Nil) {
		return "", false, nil // Key does not exist or was already taken
	} else if err != nil {
		return "", false, err // Other Redis error
	}
	return val, true, nil
}

// DeleteCachePrefix deletes every key starting with prefix
func DeleteCachePrefix(ctx context.Context, rdb *redis.Client, prefix string) error {
	iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator() // Walk matching keys in batches
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()) // Collect key
	}
	if err := iter.Err(); err != nil {
		return err // Scan failed
	}
	if len(keys) == 0 {
		return nil // Nothing cached
	}
	return rdb.Del(ctx, keys...).Err() // Drop all collected keys
}
