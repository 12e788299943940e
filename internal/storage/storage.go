package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/task"
)

var (
	// ErrNotFound is returned by writes that target a missing record.
	// Reads of a missing record return nil without an error.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable wraps every failure of the underlying database.
	ErrUnavailable = errors.New("storage unavailable")
)

type TaskStore interface {
	// ListAll returns every task ordered by due date, undated tasks last.
	ListAll(ctx context.Context) ([]*task.Task, error)
	ListActive(ctx context.Context) ([]*task.Task, error)
	// ListInRange returns tasks whose due date lies in [start, end].
	ListInRange(ctx context.Context, start, end time.Time) ([]*task.Task, error)
	ListByCategory(ctx context.Context, category string) ([]*task.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) (uuid.UUID, error)
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	SetCompletion(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error
}

type AvatarStore interface {
	// GetAvatar returns nil, nil until an avatar has been inserted.
	GetAvatar(ctx context.Context) (*avatar.Avatar, error)
	InsertAvatar(ctx context.Context, a *avatar.Avatar) (int64, error)
	UpdateAvatar(ctx context.Context, a *avatar.Avatar) error
}

type Store interface {
	TaskStore
	AvatarStore
	Ping(ctx context.Context) error
	Close() error
}
