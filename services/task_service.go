package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mineShaftAPI/internal/broker"
	"mineShaftAPI/internal/clock"
	"mineShaftAPI/internal/progression"
	"mineShaftAPI/internal/storage"
	"mineShaftAPI/internal/task"
	"mineShaftAPI/utils"
)

type TaskStatus string

const (
	StatusAll       TaskStatus = "all"
	StatusActive    TaskStatus = "active"
	StatusCompleted TaskStatus = "completed"
)

type TaskFilter struct {
	Status   TaskStatus
	Category string
}

// CompletionResult is what a completion produced for the task and the avatar.
type CompletionResult struct {
	Task    *task.Task            `json:"task"`
	Outcome *progression.Outcome `json:"outcome,omitempty"`
}

type TaskService struct {
	store   storage.TaskStore
	avatars *AvatarService
	clock   clock.Clock
	loc     *time.Location
	hub     *broker.Hub[[]*task.Task]

	// serializes read-modify-write on task rows so a completion edge is
	// only observed once
	mu sync.Mutex
	// keeps list-then-publish pairs in order
	pubMu sync.Mutex
}

func NewTaskService(store storage.TaskStore, avatars *AvatarService, clk clock.Clock, loc *time.Location) *TaskService {
	return &TaskService{
		store:   store,
		avatars: avatars,
		clock:   clk,
		loc:     loc,
		hub:     broker.NewHub[[]*task.Task](),
	}
}

func (s *TaskService) Create(ctx context.Context, req *task.CreateTaskRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := req.ToTask(s.clock.Now())
	if _, err := s.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.Refresh(ctx)
	return t, nil
}

// Get returns nil, nil for an unknown id.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (s *TaskService) List(ctx context.Context, filter TaskFilter) ([]*task.Task, error) {
	var (
		tasks []*task.Task
		err   error
	)
	switch {
	case filter.Category != "":
		tasks, err = s.store.ListByCategory(ctx, filter.Category)
	case filter.Status == StatusActive:
		tasks, err = s.store.ListActive(ctx)
	default:
		tasks, err = s.store.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return filterStatus(tasks, filter.Status), nil
}

func (s *TaskService) ListInRange(ctx context.Context, start, end time.Time) ([]*task.Task, error) {
	tasks, err := s.store.ListInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks in range: %w", err)
	}
	return tasks, nil
}

// Update edits task fields. Completion state changes go through Complete,
// Fail and SetCompletion.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, req *task.UpdateTaskRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if t == nil {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}

	req.Apply(t, s.clock.Now())
	err = s.store.UpdateTask(ctx, t)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.Refresh(ctx)
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	err := s.store.DeleteTask(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.Refresh(ctx)
	return nil
}

// Complete marks the task done and feeds the avatar. Only the open-to-done
// edge counts: completing a done or unknown task is a no-op returning false.
// Storage failures are logged and also return false.
func (s *TaskService) Complete(ctx context.Context, id uuid.UUID) (CompletionResult, bool) {
	s.mu.Lock()
	t, err := s.store.GetTask(ctx, id)
	if err != nil || t == nil || t.IsCompleted {
		s.mu.Unlock()
		if err != nil {
			utils.TrackError("storage", "task_complete")
			log.Printf("CompleteTask: failed to load task %s: %v", id, err)
		}
		return CompletionResult{Task: t}, false
	}

	t.MarkCompleted(s.clock.Now())
	err = s.store.UpdateTask(ctx, t)
	s.mu.Unlock()
	if err != nil {
		utils.TrackError("storage", "task_complete")
		log.Printf("CompleteTask: failed to update task %s: %v", id, err)
		return CompletionResult{}, false
	}
	s.Refresh(ctx)

	out, ok := s.avatars.OnTaskCompleted(ctx)
	if !ok {
		return CompletionResult{Task: t}, false
	}
	return CompletionResult{Task: t, Outcome: &out}, true
}

// Fail records a missed task. Habit tasks lose their streak; the task itself
// stays open.
func (s *TaskService) Fail(ctx context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	t, err := s.store.GetTask(ctx, id)
	if err != nil || t == nil {
		s.mu.Unlock()
		if err != nil {
			utils.TrackError("storage", "task_fail")
			log.Printf("FailTask: failed to load task %s: %v", id, err)
		}
		return false
	}

	t.MarkFailed(s.clock.Now())
	err = s.store.UpdateTask(ctx, t)
	s.mu.Unlock()
	if err != nil {
		utils.TrackError("storage", "task_fail")
		log.Printf("FailTask: failed to update task %s: %v", id, err)
		return false
	}
	s.Refresh(ctx)

	return s.avatars.OnTaskFailed(ctx)
}

// SetCompletion is the checkbox toggle. Checking runs the full completion
// path; unchecking only reopens the task.
func (s *TaskService) SetCompletion(ctx context.Context, id uuid.UUID, completed bool) (bool, error) {
	if completed {
		_, ok := s.Complete(ctx, id)
		return ok, nil
	}

	s.mu.Lock()
	err := s.store.SetCompletion(ctx, id, false, s.clock.Now())
	s.mu.Unlock()
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to reopen task: %w", err)
	}

	s.Refresh(ctx)
	return true, nil
}

// RolloverHabits reopens completed habits whose next occurrence has arrived.
// It returns how many were reopened.
func (s *TaskService) RolloverHabits(ctx context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	tasks, err := s.store.ListAll(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	reopened := 0
	for _, t := range tasks {
		if !t.DueForRollover(now, s.loc) {
			continue
		}
		if err := s.store.SetCompletion(ctx, t.ID, false, now); err != nil {
			log.Printf("RolloverHabits: failed to reopen %s: %v", t.ID, err)
			continue
		}
		reopened++
	}
	s.mu.Unlock()

	if reopened > 0 {
		s.Refresh(ctx)
	}
	return reopened, nil
}

// DueSoon lists open tasks due within window from now.
func (s *TaskService) DueSoon(ctx context.Context, window time.Duration) ([]*task.Task, error) {
	now := s.clock.Now()
	tasks, err := s.store.ListInRange(ctx, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	return filterStatus(tasks, StatusActive), nil
}

// Refresh republishes the full task list to watchers.
func (s *TaskService) Refresh(ctx context.Context) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	tasks, err := s.store.ListAll(ctx)
	if err != nil {
		log.Printf("Refresh tasks: %v", err)
		return
	}
	s.hub.Publish(tasks)
}

// WatchAll streams the full list after every change.
func (s *TaskService) WatchAll(ctx context.Context) <-chan []*task.Task {
	return s.hub.Subscribe(ctx)
}

func (s *TaskService) WatchActive(ctx context.Context) <-chan []*task.Task {
	return s.watchFiltered(ctx, func(t *task.Task) bool { return !t.IsCompleted })
}

// WatchRange streams tasks due in [start, end].
func (s *TaskService) WatchRange(ctx context.Context, start, end time.Time) <-chan []*task.Task {
	return s.watchFiltered(ctx, func(t *task.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(start) && !t.DueDate.After(end)
	})
}

func (s *TaskService) Close() {
	s.hub.Close()
}

func (s *TaskService) watchFiltered(ctx context.Context, keep func(*task.Task) bool) <-chan []*task.Task {
	in := s.hub.Subscribe(ctx)
	out := make(chan []*task.Task, 1)

	go func() {
		defer close(out)
		for tasks := range in {
			filtered := make([]*task.Task, 0, len(tasks))
			for _, t := range tasks {
				if keep(t) {
					filtered = append(filtered, t)
				}
			}
			select {
			case out <- filtered:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func filterStatus(tasks []*task.Task, status TaskStatus) []*task.Task {
	if status != StatusActive && status != StatusCompleted {
		return tasks
	}
	out := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsCompleted == (status == StatusCompleted) {
			out = append(out, t)
		}
	}
	return out
}
