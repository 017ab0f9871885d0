package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTierByPoints(t *testing.T) {
	cases := []struct {
		points int
		want   Tier
	}{
		{0, TierBronze},
		{499, TierBronze},
		{500, TierSilver},
		{999, TierSilver},
		{1000, TierGold},
		{2499, TierGold},
		{2500, TierPlatinum},
		{4999, TierPlatinum},
		{5000, TierDiamond},
		{123456, TierDiamond},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveTierByPoints(tc.points), "points=%d", tc.points)
	}
}
