package utils

// Tier is a derived label recomputed whenever a user's total points change.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// ResolveTierByPoints maps a point total to a tier, highest match wins.
func ResolveTierByPoints(points int) Tier {
	switch {
	case points >= 5000:
		return TierDiamond
	case points >= 2500:
		return TierPlatinum
	case points >= 1000:
		return TierGold
	case points >= 500:
		return TierSilver
	default:
		return TierBronze
	}
}
