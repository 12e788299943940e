package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/task"
	"mineShaftAPI/utils"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                  UUID PRIMARY KEY,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		category            TEXT NOT NULL DEFAULT '',
		due_date            TIMESTAMPTZ,
		reminder_time       TIMESTAMPTZ,
		priority            TEXT NOT NULL DEFAULT 'MEDIUM',
		is_completed        BOOLEAN NOT NULL DEFAULT FALSE,
		frequency           TEXT NOT NULL DEFAULT 'NONE',
		scheduled_days      INTEGER[] NOT NULL DEFAULT '{}',
		streak              INTEGER NOT NULL DEFAULT 0,
		last_completed_date TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks (due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks (category)`,
	`CREATE TABLE IF NOT EXISTS avatar (
		id                       BIGINT PRIMARY KEY,
		name                     TEXT NOT NULL,
		level                    INTEGER NOT NULL,
		experience               INTEGER NOT NULL,
		coins                    INTEGER NOT NULL,
		mood                     TEXT NOT NULL,
		energy                   INTEGER NOT NULL CHECK (energy BETWEEN 0 AND 100),
		happiness                INTEGER NOT NULL CHECK (happiness BETWEEN 0 AND 100),
		motivation               INTEGER NOT NULL CHECK (motivation BETWEEN 0 AND 100),
		personality_type         TEXT NOT NULL,
		streak                   INTEGER NOT NULL,
		consecutive_tasks_done   INTEGER NOT NULL,
		consecutive_tasks_failed INTEGER NOT NULL,
		total_tasks_completed    INTEGER NOT NULL,
		total_tasks_failed       INTEGER NOT NULL,
		last_task_completed_at   TIMESTAMPTZ,
		last_interaction_time    TIMESTAMPTZ NOT NULL,
		selected_outfit          TEXT NOT NULL,
		unlocked_outfits         TEXT[] NOT NULL,
		achievements             TEXT[] NOT NULL
	)`,
}

const pgTaskColumns = `id, title, description, category, due_date, reminder_time, priority,
	is_completed, frequency, scheduled_days, streak, last_completed_date, created_at, updated_at`

const pgAvatarColumns = `id, name, level, experience, coins, mood, energy, happiness, motivation,
	personality_type, streak, consecutive_tasks_done, consecutive_tasks_failed, total_tasks_completed,
	total_tasks_failed, last_task_completed_at, last_interaction_time, selected_outfit,
	unlocked_outfits, achievements`

type PostgresConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects, pings and makes sure the tables exist.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range postgresSchema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_all", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+pgTaskColumns+` FROM tasks
		ORDER BY due_date ASC NULLS LAST, created_at, id`)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_active", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE is_completed = FALSE
		ORDER BY due_date ASC NULLS LAST, created_at, id`)
}

func (s *PostgresStore) ListInRange(ctx context.Context, start, end time.Time) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_range", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+pgTaskColumns+` FROM tasks
		WHERE due_date BETWEEN $1 AND $2
		ORDER BY due_date, created_at, id`, start, end)
}

func (s *PostgresStore) ListByCategory(ctx context.Context, category string) ([]*task.Task, error) {
	defer utils.TrackStoreOperation("list_category", "tasks").ObserveDuration()
	return s.queryTasks(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE category = $1
		ORDER BY due_date ASC NULLS LAST, created_at, id`, category)
}

func (s *PostgresStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	defer utils.TrackStoreOperation("get", "tasks").ObserveDuration()

	row := s.db.QueryRow(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get task", err)
	}
	return t, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, t *task.Task) (uuid.UUID, error) {
	defer utils.TrackStoreOperation("insert", "tasks").ObserveDuration()

	id := t.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := s.db.Exec(ctx, `INSERT INTO tasks (`+pgTaskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, t.Title, t.Description, t.Category, t.DueDate, t.ReminderTime, string(t.Priority),
		t.IsCompleted, string(t.Frequency), weekdaysToInts(t.ScheduledDays), t.Streak,
		t.LastCompletedDate, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return uuid.Nil, unavailable("insert task", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, t *task.Task) error {
	defer utils.TrackStoreOperation("update", "tasks").ObserveDuration()

	tag, err := s.db.Exec(ctx, `UPDATE tasks SET
		title = $2, description = $3, category = $4, due_date = $5, reminder_time = $6,
		priority = $7, is_completed = $8, frequency = $9, scheduled_days = $10, streak = $11,
		last_completed_date = $12, updated_at = $13
		WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Category, t.DueDate, t.ReminderTime,
		string(t.Priority), t.IsCompleted, string(t.Frequency), weekdaysToInts(t.ScheduledDays),
		t.Streak, t.LastCompletedDate, t.UpdatedAt,
	)
	return affected(tag, err, "update task")
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id uuid.UUID) error {
	defer utils.TrackStoreOperation("delete", "tasks").ObserveDuration()

	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return affected(tag, err, "delete task")
}

func (s *PostgresStore) SetCompletion(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error {
	defer utils.TrackStoreOperation("set_completion", "tasks").ObserveDuration()

	tag, err := s.db.Exec(ctx, `UPDATE tasks SET is_completed = $2, updated_at = $3 WHERE id = $1`,
		id, completed, at)
	return affected(tag, err, "set completion")
}

func (s *PostgresStore) GetAvatar(ctx context.Context) (*avatar.Avatar, error) {
	defer utils.TrackStoreOperation("get", "avatar").ObserveDuration()

	var (
		a                     avatar.Avatar
		mood, personality     string
		outfits, achievements []string
	)
	err := s.db.QueryRow(ctx, `SELECT `+pgAvatarColumns+` FROM avatar ORDER BY id LIMIT 1`).Scan(
		&a.ID, &a.Name, &a.Level, &a.Experience, &a.Coins, &mood, &a.Energy, &a.Happiness,
		&a.Motivation, &personality, &a.Streak, &a.ConsecutiveTasksDone,
		&a.ConsecutiveTasksFailed, &a.TotalTasksCompleted, &a.TotalTasksFailed,
		&a.LastTaskCompletedAt, &a.LastInteractionTime, &a.SelectedOutfit, &outfits, &achievements,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get avatar", err)
	}

	a.Mood = avatar.Mood(mood)
	a.PersonalityType = avatar.PersonalityType(personality)
	a.UnlockedOutfits = outfits
	a.Achievements = achievements
	a.Normalize()
	return &a, nil
}

func (s *PostgresStore) InsertAvatar(ctx context.Context, a *avatar.Avatar) (int64, error) {
	defer utils.TrackStoreOperation("insert", "avatar").ObserveDuration()

	_, err := s.db.Exec(ctx, `INSERT INTO avatar (`+pgAvatarColumns+`)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, level = EXCLUDED.level, experience = EXCLUDED.experience,
			coins = EXCLUDED.coins, mood = EXCLUDED.mood, energy = EXCLUDED.energy,
			happiness = EXCLUDED.happiness, motivation = EXCLUDED.motivation,
			personality_type = EXCLUDED.personality_type, streak = EXCLUDED.streak,
			consecutive_tasks_done = EXCLUDED.consecutive_tasks_done,
			consecutive_tasks_failed = EXCLUDED.consecutive_tasks_failed,
			total_tasks_completed = EXCLUDED.total_tasks_completed,
			total_tasks_failed = EXCLUDED.total_tasks_failed,
			last_task_completed_at = EXCLUDED.last_task_completed_at,
			last_interaction_time = EXCLUDED.last_interaction_time,
			selected_outfit = EXCLUDED.selected_outfit,
			unlocked_outfits = EXCLUDED.unlocked_outfits,
			achievements = EXCLUDED.achievements`,
		avatarArgs(a)...,
	)
	if err != nil {
		return 0, unavailable("insert avatar", err)
	}
	return 1, nil
}

func (s *PostgresStore) UpdateAvatar(ctx context.Context, a *avatar.Avatar) error {
	defer utils.TrackStoreOperation("update", "avatar").ObserveDuration()

	tag, err := s.db.Exec(ctx, `UPDATE avatar SET
		name = $1, level = $2, experience = $3, coins = $4, mood = $5, energy = $6,
		happiness = $7, motivation = $8, personality_type = $9, streak = $10,
		consecutive_tasks_done = $11, consecutive_tasks_failed = $12,
		total_tasks_completed = $13, total_tasks_failed = $14, last_task_completed_at = $15,
		last_interaction_time = $16, selected_outfit = $17, unlocked_outfits = $18,
		achievements = $19
		WHERE id = 1`,
		avatarArgs(a)...,
	)
	return affected(tag, err, "update avatar")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query tasks", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanPgTask(rows)
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

func scanPgTask(row pgx.Row) (*task.Task, error) {
	var (
		t                   task.Task
		priority, frequency string
		days                []int32
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.DueDate, &t.ReminderTime, &priority,
		&t.IsCompleted, &frequency, &days, &t.Streak, &t.LastCompletedDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = task.Priority(priority)
	t.Frequency = task.Frequency(frequency)
	for _, d := range days {
		t.ScheduledDays = append(t.ScheduledDays, time.Weekday(d))
	}
	return &t, nil
}

func avatarArgs(a *avatar.Avatar) []any {
	outfits := a.UnlockedOutfits
	if outfits == nil {
		outfits = []string{}
	}
	achievements := a.Achievements
	if achievements == nil {
		achievements = []string{}
	}
	return []any{
		a.Name, a.Level, a.Experience, a.Coins, string(a.Mood), a.Energy, a.Happiness,
		a.Motivation, string(a.PersonalityType), a.Streak, a.ConsecutiveTasksDone,
		a.ConsecutiveTasksFailed, a.TotalTasksCompleted, a.TotalTasksFailed,
		a.LastTaskCompletedAt, a.LastInteractionTime, a.SelectedOutfit, outfits, achievements,
	}
}

func weekdaysToInts(days []time.Weekday) []int32 {
	out := make([]int32, 0, len(days))
	for _, d := range days {
		out = append(out, int32(d))
	}
	return out
}

func affected(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return unavailable(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
