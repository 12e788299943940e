package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrInvalidTask = errors.New("invalid task")

var validate = validator.New()

type CreateTaskRequest struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Description   string         `json:"description" validate:"max=2000"`
	Category      string         `json:"category" validate:"max=100"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	ReminderTime  *time.Time     `json:"reminder_time,omitempty"`
	Priority      Priority       `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Frequency     Frequency      `json:"frequency" validate:"omitempty,oneof=NONE DAILY WEEKLY MONTHLY CUSTOM"`
	ScheduledDays []time.Weekday `json:"scheduled_days,omitempty" validate:"omitempty,max=7,dive,min=0,max=6"`
}

type UpdateTaskRequest struct {
	Title         *string         `json:"title,omitempty" validate:"omitempty,max=200"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category      *string         `json:"category,omitempty" validate:"omitempty,max=100"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	ReminderTime  *time.Time      `json:"reminder_time,omitempty"`
	Priority      *Priority       `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Frequency     *Frequency      `json:"frequency,omitempty" validate:"omitempty,oneof=NONE DAILY WEEKLY MONTHLY CUSTOM"`
	ScheduledDays *[]time.Weekday `json:"scheduled_days,omitempty" validate:"omitempty,max=7,dive,min=0,max=6"`
}

type SetCompletionRequest struct {
	Completed bool `json:"completed"`
}

func (r *CreateTaskRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return nil
}

// ToTask builds a new task with defaults applied.
func (r *CreateTaskRequest) ToTask(now time.Time) *Task {
	t := &Task{
		ID:           uuid.New(),
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		DueDate:      r.DueDate,
		ReminderTime: r.ReminderTime,
		Priority:     r.Priority,
		Frequency:    r.Frequency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Frequency == "" {
		t.Frequency = FrequencyNone
	}
	if t.Frequency == FrequencyCustom {
		t.ScheduledDays = dedupeDays(r.ScheduledDays)
	}
	return t
}

func (r *UpdateTaskRequest) Validate() error {
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		if trimmed == "" {
			return fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
		}
		r.Title = &trimmed
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return nil
}

// Apply copies the set fields onto t. Completion state is not touched here.
func (r *UpdateTaskRequest) Apply(t *Task, now time.Time) {
	if r.Title != nil {
		t.Title = *r.Title
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Category != nil {
		t.Category = *r.Category
	}
	if r.DueDate != nil {
		t.DueDate = r.DueDate
	}
	if r.ReminderTime != nil {
		t.ReminderTime = r.ReminderTime
	}
	if r.Priority != nil {
		t.Priority = *r.Priority
	}
	if r.Frequency != nil {
		t.Frequency = *r.Frequency
	}
	if r.ScheduledDays != nil {
		t.ScheduledDays = dedupeDays(*r.ScheduledDays)
	}
	if t.Frequency != FrequencyCustom {
		t.ScheduledDays = nil
	}
	t.UpdatedAt = now
}

func dedupeDays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
