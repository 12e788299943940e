package stats

import (
	"math"
	"time"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/clock"
	"mineShaftAPI/internal/task"
)

// HistoryPoints is the length of every chart series.
const HistoryPoints = 7

type Basis string

const (
	BasisInterpolated Basis = "interpolated"
	BasisRecentDays   Basis = "recent_days"
)

type Statistics struct {
	TasksCompleted    int `json:"tasks_completed"`
	TotalTasks        int `json:"total_tasks"`
	CurrentStreak     int `json:"current_streak"`
	LongestStreak     int `json:"longest_streak"`
	CompletionRate    int `json:"completion_rate"`
	ActiveHabits      int `json:"active_habits"`
	AchievementsCount int `json:"achievements_count"`

	TasksCompletedHistory []int `json:"tasks_completed_history"`
	CurrentStreakHistory  []int `json:"current_streak_history"`
	LongestStreakHistory  []int `json:"longest_streak_history"`
	CompletionRateHistory []int `json:"completion_rate_history"`
	ActiveHabitsHistory   []int `json:"active_habits_history"`

	// HistoryBasis says which time basis the completion series used.
	HistoryBasis Basis     `json:"history_basis"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// StreakHistory is the recent-calendar-day basis.
type StreakHistory struct {
	Current      []int
	Longest      []int
	ActiveHabits []int
}

// CompletionHistory is one of the two completion-volume bases.
type CompletionHistory struct {
	TasksCompleted []int
	CompletionRate []int
}

// Compute builds a snapshot from scratch. It keeps no state between calls.
func Compute(tasks []*task.Task, a *avatar.Avatar, now time.Time, loc *time.Location) Statistics {
	s := Statistics{
		TotalTasks:  len(tasks),
		GeneratedAt: now,
	}

	for _, t := range tasks {
		if t.IsCompleted {
			s.TasksCompleted++
		}
		if t.IsHabit() {
			s.ActiveHabits++
			// current and longest intentionally share one source
			s.CurrentStreak = max(s.CurrentStreak, t.Streak)
		}
	}
	s.LongestStreak = s.CurrentStreak

	if s.TotalTasks > 0 {
		s.CompletionRate = int(math.Round(float64(s.TasksCompleted) / float64(s.TotalTasks) * 100))
	}
	if a != nil {
		s.AchievementsCount = len(a.Achievements)
	}

	sh := StreakSeries(s.CurrentStreak, s.ActiveHabits)
	s.CurrentStreakHistory = sh.Current
	s.LongestStreakHistory = sh.Longest
	s.ActiveHabitsHistory = sh.ActiveHabits

	ch, ok := ActivitySeries(tasks, loc)
	s.HistoryBasis = BasisInterpolated
	if !ok {
		ch = RecentSeries(tasks, now, loc)
		s.HistoryBasis = BasisRecentDays
	}
	s.TasksCompletedHistory = ch.TasksCompleted
	s.CompletionRateHistory = ch.CompletionRate

	return s
}

// StreakSeries spreads the current streak over the last seven days, index 0
// being six days ago and index 6 today.
func StreakSeries(currentStreak, activeHabits int) StreakHistory {
	h := StreakHistory{
		Current:      make([]int, HistoryPoints),
		Longest:      make([]int, HistoryPoints),
		ActiveHabits: make([]int, HistoryPoints),
	}

	maxSeen := 0
	for i := 0; i < HistoryPoints; i++ {
		day := 0
		if currentStreak > 0 {
			day = min(currentStreak*(i+1)/HistoryPoints, currentStreak)
		}
		maxSeen = max(maxSeen, day)

		h.Current[i] = day
		h.Longest[i] = maxSeen
		h.ActiveHabits[i] = activeHabits
	}
	return h
}

// ActivitySeries samples seven days evenly between the earliest and latest
// activity date. It reports false when the window does not span at least two
// calendar days, in which case RecentSeries should be used instead.
func ActivitySeries(tasks []*task.Task, loc *time.Location) (CompletionHistory, bool) {
	if len(tasks) == 0 {
		return CompletionHistory{}, false
	}

	first, last := tasks[0].ActivityDate(), tasks[0].ActivityDate()
	for _, t := range tasks[1:] {
		d := t.ActivityDate()
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	if clock.StartOfDay(first, loc).Equal(clock.StartOfDay(last, loc)) {
		return CompletionHistory{}, false
	}

	h := newCompletionHistory()
	span := last.Sub(first)
	for i := 0; i < HistoryPoints; i++ {
		target := first.Add(span * time.Duration(i) / (HistoryPoints - 1))
		start, end := clock.StartOfDay(target, loc), clock.EndOfDay(target, loc)

		created, completedBy := 0, 0
		for _, t := range tasks {
			if !t.CreatedAt.After(end) {
				created++
			}
			if !t.IsCompleted {
				continue
			}
			done := t.CompletionDate()
			if inDay(done, start, end) {
				h.TasksCompleted[i]++
			}
			if !done.After(end) {
				completedBy++
			}
		}
		h.CompletionRate[i] = percent(completedBy, created)
	}
	return h, true
}

// RecentSeries covers the last seven calendar days ending today, oldest first.
// The rate is a running total over the fixed task count.
func RecentSeries(tasks []*task.Task, now time.Time, loc *time.Location) CompletionHistory {
	h := newCompletionHistory()
	today := clock.StartOfDay(now, loc)

	cumulative := 0
	for i := 0; i < HistoryPoints; i++ {
		start := today.AddDate(0, 0, i-(HistoryPoints-1))
		end := clock.EndOfDay(start, loc)

		for _, t := range tasks {
			if t.IsCompleted && inDay(t.CompletionDate(), start, end) {
				h.TasksCompleted[i]++
			}
		}
		cumulative += h.TasksCompleted[i]
		h.CompletionRate[i] = percent(cumulative, len(tasks))
	}
	return h
}

func newCompletionHistory() CompletionHistory {
	return CompletionHistory{
		TasksCompleted: make([]int, HistoryPoints),
		CompletionRate: make([]int, HistoryPoints),
	}
}

func inDay(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// percent truncates and clamps to [0,100]; an empty denominator yields 0.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return min(max(part*100/whole, 0), 100)
}
