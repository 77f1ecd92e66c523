package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go-antiraid/internal/config"
)

// SortedSetClient is the subset of Redis the ban counter needs.
type SortedSetClient interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZCountSince(ctx context.Context, key string, min float64) (int, error)
	ZTrimBefore(ctx context.Context, key string, max float64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// GoRedisClient adapts go-redis to SortedSetClient.
type GoRedisClient struct {
	client *redis.Client
}

func NewGoRedisClient(cfg config.RedisConfig) (*GoRedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &GoRedisClient{client: client}, nil
}

func (g *GoRedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return g.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (g *GoRedisClient) ZCountSince(ctx context.Context, key string, min float64) (int, error) {
	n, err := g.client.ZCount(ctx, key, strconv.FormatFloat(min, 'f', -1, 64), "+inf").Result()
	return int(n), err
}

func (g *GoRedisClient) ZTrimBefore(ctx context.Context, key string, max float64) error {
	return g.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatFloat(max, 'f', -1, 64)).Err()
}

func (g *GoRedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return g.client.Expire(ctx, key, ttl).Err()
}

func (g *GoRedisClient) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *GoRedisClient) Close() error {
	return g.client.Close()
}
