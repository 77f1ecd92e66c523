package cache

import (
	"context"
	"fmt"
	"time"

	"go-antiraid/internal/logging"
)

const (
	banKeyPrefix = "antiraid:bans:"
	// Covers the longest lockdown window the config accepts.
	banKeyTTL = 24 * time.Hour
)

// FallbackCounter answers ban counts when Redis is absent or failing.
type FallbackCounter interface {
	CountRecentBans(ctx context.Context, guildID uint64, window time.Duration) (int, error)
}

// BanVelocity counts bans per guild in a Redis sorted set scored by unix
// millis, so that several bot processes see the same ban rate. With no Redis
// client every count comes from the fallback.
type BanVelocity struct {
	client   SortedSetClient
	fallback FallbackCounter
	now      func() time.Time
}

func NewBanVelocity(client SortedSetClient, fallback FallbackCounter) *BanVelocity {
	return &BanVelocity{client: client, fallback: fallback, now: time.Now}
}

func banKey(guildID uint64) string {
	return fmt.Sprintf("%s%d", banKeyPrefix, guildID)
}

// RecordBan is a no-op without Redis; the fallback counts persisted incidents.
func (bv *BanVelocity) RecordBan(ctx context.Context, guildID, userID uint64) error {
	if bv.client == nil {
		return nil
	}

	now := bv.now()
	key := banKey(guildID)
	member := fmt.Sprintf("%d:%d", userID, now.UnixNano())

	if err := bv.client.ZAdd(ctx, key, float64(now.UnixMilli()), member); err != nil {
		return fmt.Errorf("failed to record ban: %w", err)
	}
	if err := bv.client.ZTrimBefore(ctx, key, float64(now.Add(-banKeyTTL).UnixMilli())); err != nil {
		logging.Warn("Failed to trim ban history for guild %d: %v", guildID, err)
	}
	if err := bv.client.Expire(ctx, key, banKeyTTL); err != nil {
		logging.Warn("Failed to refresh ban history TTL for guild %d: %v", guildID, err)
	}
	return nil
}

func (bv *BanVelocity) CountRecentBans(ctx context.Context, guildID uint64, window time.Duration) (int, error) {
	if bv.client != nil {
		since := float64(bv.now().Add(-window).UnixMilli())
		count, err := bv.client.ZCountSince(ctx, banKey(guildID), since)
		if err == nil {
			return count, nil
		}
		logging.Warn("Redis ban count failed for guild %d, using database: %v", guildID, err)
	}

	if bv.fallback == nil {
		return 0, fmt.Errorf("no ban counter available")
	}
	return bv.fallback.CountRecentBans(ctx, guildID, window)
}

func (bv *BanVelocity) Close() error {
	if bv.client == nil {
		return nil
	}
	return bv.client.Close()
}
