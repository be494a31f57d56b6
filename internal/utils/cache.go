package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key building
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// CacheTTL is how long read-through entries live
const CacheTTL = 60 * time.Second

// WalletKey is the cache key of a user's wallet view
func WalletKey(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10)
}

// TxHistoryKey is the cache key of one page of a user's transaction history
func TxHistoryKey(userID uint, page, pageSize int) string {
	return "txhistory:user:" + strconv.FormatUint(uint64(userID), 10) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
}

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil // Caching disabled
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// InvalidateUser drops the wallet view and every cached history page of a user
func InvalidateUser(ctx context.Context, rdb *redis.Client, userID uint) error {
	if rdb == nil {
		return nil
	}
	keys := []string{WalletKey(userID)}
	pattern := "txhistory:user:" + strconv.FormatUint(uint64(userID), 10) + ":*"
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator() // Walk all history pages, not only the first few
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return rdb.Del(ctx, keys...).Err()
}
