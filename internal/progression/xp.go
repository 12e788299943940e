package progression

import "math"

const (
	xpCurveCoef = 100.0

	// CompletionBaseXP is earned for every completed task.
	CompletionBaseXP = 50
	// StreakBonusXP is earned per full week of streak on top of the base.
	StreakBonusXP = 25
)

// XPRequiredForLevel returns the total experience needed to be at level.
// Level 1 is free.
func XPRequiredForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	req := xpCurveCoef * math.Pow(float64(level-1), 1.5)
	return int(math.Ceil(req))
}

// LevelForExperience returns the highest level L with xp >= XPRequiredForLevel(L).
func LevelForExperience(xp int) int {
	if xp <= 0 {
		return 1
	}

	low, high := 1, 2
	for XPRequiredForLevel(high) <= xp {
		low = high
		high *= 2
		if high > 1_000_000 {
			break
		}
	}
	for low+1 < high {
		mid := low + (high-low)/2
		if XPRequiredForLevel(mid) <= xp {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}

// CompletionXP is the experience for one completion at the given streak.
func CompletionXP(streak int) int {
	return CompletionBaseXP + (streak/7)*StreakBonusXP
}
