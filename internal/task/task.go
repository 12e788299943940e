package task

import (
	"time"

	"github.com/google/uuid"

	"mineShaftAPI/internal/clock"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

type Frequency string

const (
	FrequencyNone    Frequency = "NONE"
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyCustom  Frequency = "CUSTOM"
)

type Task struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	Title             string         `json:"title" db:"title"`
	Description       string         `json:"description" db:"description"`
	Category          string         `json:"category" db:"category"`
	DueDate           *time.Time     `json:"due_date,omitempty" db:"due_date"`
	ReminderTime      *time.Time     `json:"reminder_time,omitempty" db:"reminder_time"`
	Priority          Priority       `json:"priority" db:"priority"`
	IsCompleted       bool           `json:"is_completed" db:"is_completed"`
	Frequency         Frequency      `json:"frequency" db:"frequency"`
	ScheduledDays     []time.Weekday `json:"scheduled_days,omitempty" db:"scheduled_days"`
	Streak            int            `json:"streak" db:"streak"`
	LastCompletedDate *time.Time     `json:"last_completed_date,omitempty" db:"last_completed_date"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// IsHabit reports whether the task recurs.
func (t *Task) IsHabit() bool {
	return t.Frequency != "" && t.Frequency != FrequencyNone
}

// PeriodDays is the longest gap, in whole days, between two completions that
// still counts as keeping the habit streak alive.
func (t *Task) PeriodDays() int64 {
	switch t.Frequency {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly, FrequencyCustom:
		return 7
	case FrequencyMonthly:
		return 31
	default:
		return 0
	}
}

// MarkCompleted flips the task to completed and, for habits, advances the
// per-task streak.
func (t *Task) MarkCompleted(now time.Time) {
	t.IsCompleted = true
	t.UpdatedAt = now
	if !t.IsHabit() {
		t.LastCompletedDate = &now
		return
	}

	if t.LastCompletedDate != nil && clock.TruncDays(now.Sub(*t.LastCompletedDate)) <= t.PeriodDays() {
		t.Streak++
	} else {
		t.Streak = 1
	}
	t.LastCompletedDate = &now
}

// MarkFailed breaks the habit streak. The task stays open.
func (t *Task) MarkFailed(now time.Time) {
	t.Streak = 0
	t.UpdatedAt = now
}

// NextOccurrence returns when a completed habit becomes actionable again.
// The zero time is returned for one-off tasks and never-completed habits.
func (t *Task) NextOccurrence(loc *time.Location) time.Time {
	if !t.IsHabit() || t.LastCompletedDate == nil {
		return time.Time{}
	}
	day := clock.StartOfDay(*t.LastCompletedDate, loc)

	switch t.Frequency {
	case FrequencyDaily:
		return day.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return day.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return day.AddDate(0, 1, 0)
	case FrequencyCustom:
		if len(t.ScheduledDays) == 0 {
			return day.AddDate(0, 0, 7)
		}
		for i := 1; i <= 7; i++ {
			next := day.AddDate(0, 0, i)
			if t.scheduledOn(next.Weekday()) {
				return next
			}
		}
	}
	return day.AddDate(0, 0, 7)
}

// DueForRollover reports whether a completed habit should be reopened.
func (t *Task) DueForRollover(now time.Time, loc *time.Location) bool {
	if !t.IsCompleted {
		return false
	}
	next := t.NextOccurrence(loc)
	return !next.IsZero() && !now.Before(next)
}

// CompletionDate is the instant the task counts as done for charting.
func (t *Task) CompletionDate() time.Time {
	if t.LastCompletedDate != nil {
		return *t.LastCompletedDate
	}
	return t.UpdatedAt
}

// ActivityDate is the completion date of a finished task, else its creation date.
func (t *Task) ActivityDate() time.Time {
	if t.IsCompleted && t.LastCompletedDate != nil {
		return *t.LastCompletedDate
	}
	return t.CreatedAt
}

func (t *Task) scheduledOn(d time.Weekday) bool {
	for _, s := range t.ScheduledDays {
		if s == d {
			return true
		}
	}
	return false
}

func (t *Task) Clone() *Task {
	c := *t
	if t.ScheduledDays != nil {
		c.ScheduledDays = append([]time.Weekday(nil), t.ScheduledDays...)
	}
	c.DueDate = copyTime(t.DueDate)
	c.ReminderTime = copyTime(t.ReminderTime)
	c.LastCompletedDate = copyTime(t.LastCompletedDate)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
