package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeTime(t *testing.T) {
	// 175928847299117063 is the example id from the Discord developer docs.
	got := SnowflakeTime(175928847299117063)
	want := time.Date(2016, time.April, 30, 11, 18, 25, 796000000, time.UTC)
	assert.True(t, want.Equal(got), "got %s", got)
}

func TestParseSnowflake(t *testing.T) {
	assert.Equal(t, uint64(42), ParseSnowflake("42"))
	assert.Zero(t, ParseSnowflake(""))
	assert.Zero(t, ParseSnowflake("not-a-number"))
}

func TestStringToUint64(t *testing.T) {
	n, err := StringToUint64("18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), n)

	_, err = StringToUint64("-1")
	assert.Error(t, err)
}

func TestHashPairSpreads(t *testing.T) {
	seen := make(map[uint64]struct{})
	for i := uint64(1); i <= 64; i++ {
		seen[HashIndex64(HashPair(1, i), 63)] = struct{}{}
	}
	assert.Greater(t, len(seen), 16)
}
