// Package progression holds the avatar state transitions. Every function is
// pure: the input avatar is never modified and a normalized copy is returned.
package progression

import (
	"errors"
	"time"

	"mineShaftAPI/internal/achievement"
	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/clock"
)

var (
	ErrOutfitLocked       = errors.New("outfit is not unlocked")
	ErrInvalidOutfit      = errors.New("outfit name is empty")
	ErrUnknownAchievement = errors.New("unknown achievement")
)

const (
	CompletionCoins = 10

	interactHappiness  = 10
	interactMotivation = 5
)

// Outcome summarizes what a transition earned.
type Outcome struct {
	Unlocked         []string `json:"unlocked,omitempty"`
	CoinsEarned      int      `json:"coins_earned"`
	ExperienceEarned int      `json:"experience_earned"`
	LevelBefore      int      `json:"level_before"`
	LevelAfter       int      `json:"level_after"`
}

func (o Outcome) LeveledUp() bool {
	return o.LevelAfter > o.LevelBefore
}

// Complete applies a task completion at now.
func Complete(a *avatar.Avatar, now time.Time) (*avatar.Avatar, Outcome) {
	n := a.Clone()
	out := Outcome{LevelBefore: n.Level}

	// No previous completion means the run starts here, whatever the stored
	// counter says.
	switch {
	case n.LastTaskCompletedAt == nil:
		n.Streak = 1
	case clock.TruncDays(now.Sub(*n.LastTaskCompletedAt)) <= 1:
		n.Streak++
	default:
		n.Streak = 1
	}
	n.ConsecutiveTasksDone++
	n.ConsecutiveTasksFailed = 0
	n.TotalTasksCompleted++

	switch {
	case n.Streak >= 7:
		n.Mood = avatar.MoodEcstatic
		n.Energy += 20
	case n.ConsecutiveTasksDone >= 3:
		n.Mood = avatar.MoodHappy
		n.Energy += 10
	default:
		n.Mood = avatar.MoodNeutral
		n.Energy += 5
	}
	n.Energy = avatar.Clamp(n.Energy)

	n.Coins += CompletionCoins
	out.CoinsEarned += CompletionCoins

	xp := CompletionXP(n.Streak)
	n.Experience += xp
	out.ExperienceEarned += xp

	t := now
	n.LastTaskCompletedAt = &t

	// Exact match only: jumping past a milestone never grants it later.
	if id, ok := achievement.StreakMilestone(n.Streak); ok {
		unlock(n, id, &out)
	}
	levelUp(n, &out)

	n.Normalize()
	out.LevelAfter = n.Level
	return n, out
}

// Fail applies a task failure. Mood looks at the energy the avatar had before
// the penalty.
func Fail(a *avatar.Avatar, now time.Time) *avatar.Avatar {
	n := a.Clone()
	prevEnergy := n.Energy

	n.ConsecutiveTasksFailed++
	n.Streak = 0
	n.ConsecutiveTasksDone = 0
	n.TotalTasksFailed++

	switch {
	case n.ConsecutiveTasksFailed >= 3:
		n.Mood = avatar.MoodSad
	case prevEnergy <= 30:
		n.Mood = avatar.MoodTired
	default:
		n.Mood = avatar.MoodNeutral
	}

	switch {
	case n.ConsecutiveTasksFailed >= 3:
		n.Energy -= 20
	case n.ConsecutiveTasksFailed == 2:
		n.Energy -= 15
	default:
		n.Energy -= 10
	}

	n.Normalize()
	return n
}

// UnlockAchievement grants id once. A repeat call returns an unchanged copy
// and an empty outcome.
func UnlockAchievement(a *avatar.Avatar, id string) (*avatar.Avatar, Outcome, error) {
	if _, ok := achievement.Lookup(id); !ok {
		return a.Clone(), Outcome{LevelBefore: a.Level, LevelAfter: a.Level}, ErrUnknownAchievement
	}

	n := a.Clone()
	out := Outcome{LevelBefore: n.Level}
	if unlock(n, id, &out) {
		levelUp(n, &out)
	}

	n.Normalize()
	out.LevelAfter = n.Level
	return n, out, nil
}

// UnlockOutfit adds name to the wardrobe. It reports whether anything changed.
func UnlockOutfit(a *avatar.Avatar, name string) (*avatar.Avatar, bool, error) {
	n := a.Clone()
	if name == "" {
		return n, false, ErrInvalidOutfit
	}
	if n.HasOutfit(name) {
		return n, false, nil
	}
	n.UnlockedOutfits = append(n.UnlockedOutfits, name)
	n.Normalize()
	return n, true, nil
}

func SelectOutfit(a *avatar.Avatar, name string) (*avatar.Avatar, error) {
	n := a.Clone()
	if !n.HasOutfit(name) {
		return n, ErrOutfitLocked
	}
	n.SelectedOutfit = name
	n.Normalize()
	return n, nil
}

// Interact is the "pet the avatar" action.
func Interact(a *avatar.Avatar, now time.Time) *avatar.Avatar {
	n := a.Clone()
	n.Happiness += interactHappiness
	n.Motivation += interactMotivation
	n.LastInteractionTime = now
	n.Normalize()
	return n
}

func unlock(n *avatar.Avatar, id string, out *Outcome) bool {
	if n.HasAchievement(id) {
		return false
	}
	def, ok := achievement.Lookup(id)
	if !ok {
		return false
	}
	n.Achievements = append(n.Achievements, id)
	n.Coins += def.Coins()
	n.Experience += def.Experience()
	out.Unlocked = append(out.Unlocked, id)
	out.CoinsEarned += def.Coins()
	out.ExperienceEarned += def.Experience()
	return true
}

// levelUp raises the level to match experience and grants level milestones.
// Milestone rewards add experience, so it repeats until nothing changes.
func levelUp(n *avatar.Avatar, out *Outcome) {
	for {
		n.Level = max(n.Level, LevelForExperience(n.Experience))
		granted := false
		for _, id := range achievement.LevelMilestones(n.Level) {
			if unlock(n, id, out) {
				granted = true
			}
		}
		if !granted {
			return
		}
	}
}
