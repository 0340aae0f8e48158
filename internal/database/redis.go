package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/pintoo555/SyncERP-sub001/internal/config"
	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client
var Ctx = context.Background()

func InitRedis() {
	Redis = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	_, err := Redis.Ping(Ctx).Result()
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Presence caching will be disabled.", err)
	} else {
		log.Println("Connected to Redis successfully")
	}
}

// CachePresence stores a user's last-seen timestamp so the presence badge
// survives a server restart. Best effort: callers ignore the error.
func CachePresence(userID string, lastSeen time.Time) error {
	if Redis == nil {
		return nil
	}
	key := fmt.Sprintf("presence:last_seen:%s", userID)
	return Redis.Set(Ctx, key, lastSeen.UTC().Format(time.RFC3339), 7*24*time.Hour).Err()
}

// Caching
func CacheSet(key string, value interface{}, expiration time.Duration) error {
	if Redis == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(Ctx, key, payload, expiration).Err()
}

func CacheGet(key string, dest interface{}) error {
	if Redis == nil {
		return redis.Nil
	}
	val, err := Redis.Get(Ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func CacheInvalidate(pattern string) error {
	if Redis == nil {
		return nil
	}
	keys, err := Redis.Keys(Ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return Redis.Del(Ctx, keys...).Err()
	}
	return nil
}
