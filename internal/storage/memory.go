package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/task"
)

// MemoryStore keeps everything in process. Values are copied on the way in
// and out so callers never share memory with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[uuid.UUID]*task.Task
	avatar *avatar.Avatar
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]*task.Task)}
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]*task.Task, error) {
	return s.filter(func(*task.Task) bool { return true }), nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]*task.Task, error) {
	return s.filter(func(t *task.Task) bool { return !t.IsCompleted }), nil
}

func (s *MemoryStore) ListInRange(ctx context.Context, start, end time.Time) ([]*task.Task, error) {
	return s.filter(func(t *task.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(start) && !t.DueDate.After(end)
	}), nil
}

func (s *MemoryStore) ListByCategory(ctx context.Context, category string) ([]*task.Task, error) {
	return s.filter(func(t *task.Task) bool { return t.Category == category }), nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, t *task.Task) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := t.Clone()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.tasks[c.ID] = c
	return c.ID, nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) SetCompletion(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.IsCompleted = completed
	t.UpdatedAt = at
	return nil
}

func (s *MemoryStore) GetAvatar(ctx context.Context) (*avatar.Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.avatar == nil {
		return nil, nil
	}
	return s.avatar.Clone(), nil
}

func (s *MemoryStore) InsertAvatar(ctx context.Context, a *avatar.Avatar) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := a.Clone()
	c.ID = 1
	s.avatar = c
	return c.ID, nil
}

func (s *MemoryStore) UpdateAvatar(ctx context.Context, a *avatar.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.avatar == nil {
		return ErrNotFound
	}
	c := a.Clone()
	c.ID = s.avatar.ID
	s.avatar = c
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) filter(keep func(*task.Task) bool) []*task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sortByDueDate(out)
	return out
}

// sortByDueDate matches the SQL ordering: due date ascending with undated
// tasks last, then creation time.
func sortByDueDate(tasks []*task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
