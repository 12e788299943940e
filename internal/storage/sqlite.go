package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/task"
	"mineShaftAPI/utils"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL DEFAULT '',
	due_date            INTEGER,
	reminder_time       INTEGER,
	priority            TEXT NOT NULL DEFAULT 'MEDIUM',
	is_completed        INTEGER NOT NULL DEFAULT 0,
	frequency           TEXT NOT NULL DEFAULT 'NONE',
	scheduled_days      TEXT NOT NULL DEFAULT '[]',
	streak              INTEGER NOT NULL DEFAULT 0,
	last_completed_date INTEGER,
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks (due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks (category);

CREATE TABLE IF NOT EXISTS avatar (
	id                       INTEGER PRIMARY KEY,
	name                     TEXT NOT NULL,
	level                    INTEGER NOT NULL,
	experience               INTEGER NOT NULL,
	coins                    INTEGER NOT NULL,
	mood                     TEXT NOT NULL,
	energy                   INTEGER NOT NULL,
	happiness                INTEGER NOT NULL,
	motivation               INTEGER NOT NULL,
	personality_type         TEXT NOT NULL,
	streak                   INTEGER NOT NULL,
	consecutive_tasks_done   INTEGER NOT NULL,
	consecutive_tasks_failed INTEGER NOT NULL,
	total_tasks_completed    INTEGER NOT NULL,
	total_tasks_failed       INTEGER NOT NULL,
	last_task_completed_at   INTEGER,
	last_interaction_time    INTEGER NOT NULL,
	selected_outfit          TEXT NOT NULL,
	unlocked_outfits         TEXT NOT NULL,
	achievements             TEXT NOT NULL
);
`

const sqliteTaskColumns = `id, title, description, category, due_date, reminder_time, priority,
	is_completed, frequency, scheduled_days, streak, last_completed_date, created_at, updated_at`

const sqliteAvatarColumns = `id, name, level, experience, coins, mood, energy, happiness, motivation,
	personality_type, streak, consecutive_tasks_done, consecutive_tasks_failed, total_tasks_completed,
	total_tasks_failed, last_task_completed_at, last_interaction_time, selected_outfit,
	unlocked_outfits, achievements`

// SQLiteStore is the embedded single-file backend.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// single writer keeps read-modify-write sequences simple
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_all", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks
		ORDER BY due_date IS NULL, due_date, created_at, id`)
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_active", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE is_completed = 0
		ORDER BY due_date IS NULL, due_date, created_at, id`)
}

func (s *SQLiteStore) ListInRange(ctx context.Context, start, end time.Time) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_range", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks
		WHERE due_date BETWEEN ? AND ?
		ORDER BY due_date, created_at, id`, toMillis(start), toMillis(end))
}

func (s *SQLiteStore) ListByCategory(ctx context.Context, category string) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_category", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE category = ?
		ORDER BY due_date IS NULL, due_date, created_at, id`, category)
}

func (s *SQLiteStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	defer utils.TrackStoreOperation("get", "tasks").ObserveDuration()

	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id.String())
	t, err := scanSQLiteTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get task", err)
	}
	return t, nil
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t *task.Task) (uuid.UUID, error) {
	defer utils.TrackStoreOperation("insert", "tasks").ObserveDuration()

	id := t.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	days, err := json.Marshal(weekdaysOrEmpty(t.ScheduledDays))
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode scheduled days: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (`+sqliteTaskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), t.Title, t.Description, t.Category,
		nullMillis(t.DueDate), nullMillis(t.ReminderTime), string(t.Priority),
		t.IsCompleted, string(t.Frequency), string(days), t.Streak,
		nullMillis(t.LastCompletedDate), toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	if err != nil {
		return uuid.Nil, unavailable("insert task", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, t *task.Task) error {
	defer utils.TrackStoreOperation("update", "tasks").ObserveDuration()

	days, err := json.Marshal(weekdaysOrEmpty(t.ScheduledDays))
	if err != nil {
		return fmt.Errorf("encode scheduled days: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, description = ?, category = ?, due_date = ?, reminder_time = ?,
		priority = ?, is_completed = ?, frequency = ?, scheduled_days = ?, streak = ?,
		last_completed_date = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Category, nullMillis(t.DueDate), nullMillis(t.ReminderTime),
		string(t.Priority), t.IsCompleted, string(t.Frequency), string(days), t.Streak,
		nullMillis(t.LastCompletedDate), toMillis(t.UpdatedAt),
		t.ID.String(),
	)
	if err != nil {
		return unavailable("update task", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	defer utils.TrackStoreOperation("delete", "tasks").ObserveDuration()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return unavailable("delete task", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) SetCompletion(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error {
	defer utils.TrackStoreOperation("set_completion", "tasks").ObserveDuration()

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET is_completed = ?, updated_at = ? WHERE id = ?`,
		completed, toMillis(at), id.String())
	if err != nil {
		return unavailable("set completion", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) GetAvatar(ctx context.Context) (*avatar.Avatar, error) {
	defer utils.TrackStoreOperation("get", "avatar").ObserveDuration()

	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteAvatarColumns+` FROM avatar ORDER BY id LIMIT 1`)

	var (
		a                     avatar.Avatar
		lastCompleted         sql.NullInt64
		lastInteraction       int64
		outfits, achievements string
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Level, &a.Experience, &a.Coins, &a.Mood, &a.Energy, &a.Happiness,
		&a.Motivation, &a.PersonalityType, &a.Streak, &a.ConsecutiveTasksDone,
		&a.ConsecutiveTasksFailed, &a.TotalTasksCompleted, &a.TotalTasksFailed,
		&lastCompleted, &lastInteraction, &a.SelectedOutfit, &outfits, &achievements,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get avatar", err)
	}

	a.LastTaskCompletedAt = fromNullMillis(lastCompleted)
	a.LastInteractionTime = fromMillis(lastInteraction)
	if err := json.Unmarshal([]byte(outfits), &a.UnlockedOutfits); err != nil {
		return nil, fmt.Errorf("decode unlocked outfits: %w", err)
	}
	if err := json.Unmarshal([]byte(achievements), &a.Achievements); err != nil {
		return nil, fmt.Errorf("decode achievements: %w", err)
	}
	a.Normalize()
	return &a, nil
}

func (s *SQLiteStore) InsertAvatar(ctx context.Context, a *avatar.Avatar) (int64, error) {
	defer utils.TrackStoreOperation("insert", "avatar").ObserveDuration()

	outfits, achievements, err := encodeAvatarSets(a)
	if err != nil {
		return 0, err
	}

	// the avatar is a singleton row, so inserting replaces whatever is there
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO avatar (`+sqliteAvatarColumns+`)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Level, a.Experience, a.Coins, string(a.Mood), a.Energy, a.Happiness,
		a.Motivation, string(a.PersonalityType), a.Streak, a.ConsecutiveTasksDone,
		a.ConsecutiveTasksFailed, a.TotalTasksCompleted, a.TotalTasksFailed,
		nullMillis(a.LastTaskCompletedAt), toMillis(a.LastInteractionTime), a.SelectedOutfit,
		outfits, achievements,
	)
	if err != nil {
		return 0, unavailable("insert avatar", err)
	}
	return 1, nil
}

func (s *SQLiteStore) UpdateAvatar(ctx context.Context, a *avatar.Avatar) error {
	defer utils.TrackStoreOperation("update", "avatar").ObserveDuration()

	outfits, achievements, err := encodeAvatarSets(a)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE avatar SET
		name = ?, level = ?, experience = ?, coins = ?, mood = ?, energy = ?, happiness = ?,
		motivation = ?, personality_type = ?, streak = ?, consecutive_tasks_done = ?,
		consecutive_tasks_failed = ?, total_tasks_completed = ?, total_tasks_failed = ?,
		last_task_completed_at = ?, last_interaction_time = ?, selected_outfit = ?,
		unlocked_outfits = ?, achievements = ?
		WHERE id = 1`,
		a.Name, a.Level, a.Experience, a.Coins, string(a.Mood), a.Energy, a.Happiness,
		a.Motivation, string(a.PersonalityType), a.Streak, a.ConsecutiveTasksDone,
		a.ConsecutiveTasksFailed, a.TotalTasksCompleted, a.TotalTasksFailed,
		nullMillis(a.LastTaskCompletedAt), toMillis(a.LastInteractionTime), a.SelectedOutfit,
		outfits, achievements,
	)
	if err != nil {
		return unavailable("update avatar", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query tasks", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, unavailable("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tasks", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (*task.Task, error) {
	var (
		t                            task.Task
		id, days                     string
		due, reminder, lastCompleted sql.NullInt64
		createdAt, updatedAt         int64
	)
	err := row.Scan(
		&id, &t.Title, &t.Description, &t.Category, &due, &reminder, &t.Priority,
		&t.IsCompleted, &t.Frequency, &days, &t.Streak, &lastCompleted, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse task id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(days), &t.ScheduledDays); err != nil {
		return nil, fmt.Errorf("decode scheduled days: %w", err)
	}
	if len(t.ScheduledDays) == 0 {
		t.ScheduledDays = nil
	}
	t.DueDate = fromNullMillis(due)
	t.ReminderTime = fromNullMillis(reminder)
	t.LastCompletedDate = fromNullMillis(lastCompleted)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return &t, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func weekdaysOrEmpty(days []time.Weekday) []time.Weekday {
	if days == nil {
		return []time.Weekday{}
	}
	return days
}

func encodeAvatarSets(a *avatar.Avatar) (string, string, error) {
	outfits, err := json.Marshal(a.UnlockedOutfits)
	if err != nil {
		return "", "", fmt.Errorf("encode unlocked outfits: %w", err)
	}
	achievements, err := json.Marshal(a.Achievements)
	if err != nil {
		return "", "", fmt.Errorf("encode achievements: %w", err)
	}
	return string(outfits), string(achievements), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
