package util

import (
	"fmt"
	"strconv"
	"time"
)

// DiscordEpochMs is the first millisecond of 2015, the origin of Discord snowflakes.
const DiscordEpochMs int64 = 1420070400000

// Uint64ToString converts uint64 to string
func Uint64ToString(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// StringToUint64 converts string to uint64
func StringToUint64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uint64: %w", err)
	}
	return n, nil
}

// SnowflakeTime returns the creation time encoded in a Discord snowflake id.
func SnowflakeTime(id uint64) time.Time {
	ms := int64(id>>22) + DiscordEpochMs
	return time.UnixMilli(ms).UTC()
}

// ParseSnowflake parses a snowflake string, returning 0 for empty or malformed ids.
func ParseSnowflake(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
