package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsYesterdayUTC(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	t.Run("NilIsNever", func(t *testing.T) {
		assert.False(t, IsYesterdayUTC(nil, now))
	})

	t.Run("LateYesterdayCounts", func(t *testing.T) {
		last := time.Date(2025, 6, 14, 23, 59, 59, 0, time.UTC)
		assert.True(t, IsYesterdayUTC(&last, now))
	})

	t.Run("EarlyYesterdayCounts", func(t *testing.T) {
		last := time.Date(2025, 6, 14, 0, 0, 1, 0, time.UTC)
		assert.True(t, IsYesterdayUTC(&last, now))
	})

	t.Run("SameDayDoesNotCount", func(t *testing.T) {
		last := time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)
		assert.False(t, IsYesterdayUTC(&last, now))
	})

	t.Run("TwoDaysAgoDoesNotCount", func(t *testing.T) {
		last := time.Date(2025, 6, 13, 23, 0, 0, 0, time.UTC)
		assert.False(t, IsYesterdayUTC(&last, now))
	})

	t.Run("NonUTCZoneNormalizes", func(t *testing.T) {
		zone := time.FixedZone("UTC+5", 5*3600)
		// 03:00 on the 15th in UTC+5 is 22:00 on the 14th in UTC.
		last := time.Date(2025, 6, 15, 3, 0, 0, 0, zone)
		assert.True(t, IsYesterdayUTC(&last, now))
	})
}
