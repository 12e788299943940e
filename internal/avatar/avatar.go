package avatar

import (
	"time"
)

type Mood string

const (
	MoodEcstatic Mood = "ECSTATIC"
	MoodHappy    Mood = "HAPPY"
	MoodNeutral  Mood = "NEUTRAL"
	MoodSad      Mood = "SAD"
	MoodTired    Mood = "TIRED"
)

type PersonalityType string

const (
	PersonalityFriendly  PersonalityType = "FRIENDLY"
	PersonalityPlayful   PersonalityType = "PLAYFUL"
	PersonalitySerious   PersonalityType = "SERIOUS"
	PersonalityLazy      PersonalityType = "LAZY"
	PersonalityEnergetic PersonalityType = "ENERGETIC"
)

const (
	DefaultOutfit = "default"
	DefaultName   = "Your Avatar"

	MinStat = 0
	MaxStat = 100
)

// Outfits is the wardrobe offered to the user, in display order.
var Outfits = []string{DefaultOutfit, "warrior", "mage", "rogue", "paladin", "ninja"}

type Avatar struct {
	ID                     int64           `json:"id" db:"id"`
	Name                   string          `json:"name" db:"name"`
	Level                  int             `json:"level" db:"level"`
	Experience             int             `json:"experience" db:"experience"`
	Coins                  int             `json:"coins" db:"coins"`
	Mood                   Mood            `json:"mood" db:"mood"`
	Energy                 int             `json:"energy" db:"energy"`
	Happiness              int             `json:"happiness" db:"happiness"`
	Motivation             int             `json:"motivation" db:"motivation"`
	PersonalityType        PersonalityType `json:"personality_type" db:"personality_type"`
	Streak                 int             `json:"streak" db:"streak"`
	ConsecutiveTasksDone   int             `json:"consecutive_tasks_done" db:"consecutive_tasks_done"`
	ConsecutiveTasksFailed int             `json:"consecutive_tasks_failed" db:"consecutive_tasks_failed"`
	TotalTasksCompleted    int             `json:"total_tasks_completed" db:"total_tasks_completed"`
	TotalTasksFailed       int             `json:"total_tasks_failed" db:"total_tasks_failed"`
	LastTaskCompletedAt    *time.Time      `json:"last_task_completed_at,omitempty" db:"last_task_completed_at"`
	LastInteractionTime    time.Time       `json:"last_interaction_time" db:"last_interaction_time"`
	SelectedOutfit         string          `json:"selected_outfit" db:"selected_outfit"`
	UnlockedOutfits        []string        `json:"unlocked_outfits" db:"unlocked_outfits"`
	Achievements           []string        `json:"achievements" db:"achievements"`
}

// New returns the avatar a fresh install starts with.
func New(now time.Time) *Avatar {
	return &Avatar{
		Name:                DefaultName,
		Level:               1,
		Mood:                MoodNeutral,
		Energy:              MaxStat,
		Happiness:           MaxStat,
		Motivation:          MaxStat,
		PersonalityType:     PersonalityFriendly,
		LastInteractionTime: now,
		SelectedOutfit:      DefaultOutfit,
		UnlockedOutfits:     []string{DefaultOutfit},
		Achievements:        []string{},
	}
}

func (a *Avatar) HasOutfit(name string) bool {
	return contains(a.UnlockedOutfits, name)
}

func (a *Avatar) HasAchievement(id string) bool {
	return contains(a.Achievements, id)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (a *Avatar) Clone() *Avatar {
	c := *a
	c.UnlockedOutfits = cloneSet(a.UnlockedOutfits)
	c.Achievements = cloneSet(a.Achievements)
	if a.LastTaskCompletedAt != nil {
		t := *a.LastTaskCompletedAt
		c.LastTaskCompletedAt = &t
	}
	return &c
}

// Normalize repairs a record so every invariant holds: stats clamped,
// counters non-negative, "default" always unlocked and the selected
// outfit always among the unlocked ones.
func (a *Avatar) Normalize() {
	a.Energy = Clamp(a.Energy)
	a.Happiness = Clamp(a.Happiness)
	a.Motivation = Clamp(a.Motivation)

	a.Level = max(a.Level, 1)
	a.Experience = max(a.Experience, 0)
	a.Coins = max(a.Coins, 0)
	a.Streak = max(a.Streak, 0)
	a.ConsecutiveTasksDone = max(a.ConsecutiveTasksDone, 0)
	a.ConsecutiveTasksFailed = max(a.ConsecutiveTasksFailed, 0)
	a.TotalTasksCompleted = max(a.TotalTasksCompleted, 0)
	a.TotalTasksFailed = max(a.TotalTasksFailed, 0)

	if a.Mood == "" {
		a.Mood = MoodNeutral
	}
	if a.PersonalityType == "" {
		a.PersonalityType = PersonalityFriendly
	}
	if a.Name == "" {
		a.Name = DefaultName
	}

	if !a.HasOutfit(DefaultOutfit) {
		a.UnlockedOutfits = append([]string{DefaultOutfit}, a.UnlockedOutfits...)
	}
	if !a.HasOutfit(a.SelectedOutfit) {
		a.SelectedOutfit = DefaultOutfit
	}
	if a.Achievements == nil {
		a.Achievements = []string{}
	}
}

// RetainAchievements drops ids missing from known and repeated ids, keeping
// the first occurrence of each.
func (a *Avatar) RetainAchievements(known []string) {
	kept := make([]string, 0, len(a.Achievements))
	for _, id := range a.Achievements {
		if contains(known, id) && !contains(kept, id) {
			kept = append(kept, id)
		}
	}
	a.Achievements = kept
}

// Clamp bounds v to the [0,100] range shared by energy, happiness and motivation.
func Clamp(v int) int {
	return min(max(v, MinStat), MaxStat)
}

func cloneSet(set []string) []string {
	if set == nil {
		return nil
	}
	out := make([]string, len(set))
	copy(out, set)
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
