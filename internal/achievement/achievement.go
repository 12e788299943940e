package achievement

import (
	"mineShaftAPI/internal/avatar"
)

const (
	FirstTask     = "FIRST_TASK"
	WeekStreak    = "WEEK_STREAK"
	MonthStreak   = "MONTH_STREAK"
	HundredStreak = "HUNDRED_STREAK"
	Level10       = "LEVEL_10"
	Level25       = "LEVEL_25"
)

const (
	DefaultRewardCoins      = 50
	DefaultRewardExperience = 100
)

type CriteriaType string

const (
	CriteriaTasksCompleted CriteriaType = "tasks_completed"
	CriteriaStreak         CriteriaType = "streak"
	CriteriaLevel          CriteriaType = "level"
)

// Definition is a catalog entry. A zero reward means "use the default".
type Definition struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	CriteriaType     CriteriaType `json:"criteria_type"`
	RequiredValue    int          `json:"required_value"`
	RewardCoins      int          `json:"reward_coins"`
	RewardExperience int          `json:"reward_experience"`
}

func (d Definition) Coins() int {
	if d.RewardCoins > 0 {
		return d.RewardCoins
	}
	return DefaultRewardCoins
}

func (d Definition) Experience() int {
	if d.RewardExperience > 0 {
		return d.RewardExperience
	}
	return DefaultRewardExperience
}

// Progress is the per-avatar view of a definition.
type Progress struct {
	Definition
	CurrentValue int  `json:"current_value"`
	IsUnlocked   bool `json:"is_unlocked"`
}

var catalog = []Definition{
	{ID: FirstTask, Name: "First Step", Description: "Complete your first task", CriteriaType: CriteriaTasksCompleted, RequiredValue: 1},
	{ID: WeekStreak, Name: "Consistency", Description: "Maintain a 7-day streak", CriteriaType: CriteriaStreak, RequiredValue: 7},
	{ID: MonthStreak, Name: "Dedication", Description: "Maintain a 30-day streak", CriteriaType: CriteriaStreak, RequiredValue: 30},
	{ID: HundredStreak, Name: "Master of Habits", Description: "Maintain a 100-day streak", CriteriaType: CriteriaStreak, RequiredValue: 100},
	{ID: Level10, Name: "Rising Star", Description: "Reach level 10", CriteriaType: CriteriaLevel, RequiredValue: 10},
	{ID: Level25, Name: "Expert", Description: "Reach level 25", CriteriaType: CriteriaLevel, RequiredValue: 25},
}

// All returns the catalog in display order.
func All() []Definition {
	return append([]Definition(nil), catalog...)
}

// IDs lists every catalog id in display order.
func IDs() []string {
	ids := make([]string, len(catalog))
	for i, d := range catalog {
		ids[i] = d.ID
	}
	return ids
}

func Lookup(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// StreakMilestone returns the achievement granted on reaching exactly streak.
func StreakMilestone(streak int) (string, bool) {
	for _, d := range catalog {
		if d.CriteriaType == CriteriaStreak && d.RequiredValue == streak {
			return d.ID, true
		}
	}
	return "", false
}

// LevelMilestones returns the level achievements reached by level, in order.
func LevelMilestones(level int) []string {
	var ids []string
	for _, d := range catalog {
		if d.CriteriaType == CriteriaLevel && level >= d.RequiredValue {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func CurrentValue(a *avatar.Avatar, id string) int {
	if a == nil {
		return 0
	}
	d, ok := Lookup(id)
	if !ok {
		return 0
	}
	switch d.CriteriaType {
	case CriteriaTasksCompleted:
		return a.TotalTasksCompleted
	case CriteriaStreak:
		return a.Streak
	case CriteriaLevel:
		return a.Level
	default:
		return 0
	}
}

func IsUnlocked(a *avatar.Avatar, id string) bool {
	return a != nil && a.HasAchievement(id)
}

func ProgressFor(a *avatar.Avatar) []Progress {
	out := make([]Progress, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, Progress{
			Definition:   d,
			CurrentValue: CurrentValue(a, d.ID),
			IsUnlocked:   IsUnlocked(a, d.ID),
		})
	}
	return out
}
