package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mineShaftAPI/internal/achievement"
	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/clock"
	"mineShaftAPI/internal/stats"
	"mineShaftAPI/internal/storage"
	"mineShaftAPI/internal/task"
)

var start = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

// flakyStore fails selected operations the way a dropped connection would.
type flakyStore struct {
	*storage.MemoryStore
	mu               sync.Mutex
	failAvatarWrites bool
	failTaskReads    bool
}

func (s *flakyStore) setAvatarWrites(fail bool) {
	s.mu.Lock()
	s.failAvatarWrites = fail
	s.mu.Unlock()
}

func (s *flakyStore) UpdateAvatar(ctx context.Context, a *avatar.Avatar) error {
	s.mu.Lock()
	fail := s.failAvatarWrites
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("update avatar: %w: connection reset", storage.ErrUnavailable)
	}
	return s.MemoryStore.UpdateAvatar(ctx, a)
}

func (s *flakyStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mu.Lock()
	fail := s.failTaskReads
	s.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("get task: %w: connection reset", storage.ErrUnavailable)
	}
	return s.MemoryStore.GetTask(ctx, id)
}

type fixture struct {
	store   *flakyStore
	clock   *clock.Fake
	avatars *AvatarService
	tasks   *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &flakyStore{MemoryStore: storage.NewMemoryStore()},
		clock: clock.NewFake(start),
	}
	f.avatars = NewAvatarService(f.store, f.clock)
	f.tasks = NewTaskService(f.store, f.avatars, f.clock, time.UTC)
	t.Cleanup(func() {
		f.tasks.Close()
		f.avatars.Close()
	})

	_, err := f.avatars.Ensure(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) create(t *testing.T, title string, freq task.Frequency) *task.Task {
	t.Helper()
	tk, err := f.tasks.Create(context.Background(), &task.CreateTaskRequest{Title: title, Frequency: freq})
	require.NoError(t, err)
	return tk
}

func (f *fixture) avatar(t *testing.T) *avatar.Avatar {
	t.Helper()
	a, err := f.store.GetAvatar(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func TestComplete_OnlyOnOpenToDoneEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t, "write report", task.FrequencyNone)

	res, ok := f.tasks.Complete(ctx, tk.ID)
	require.True(t, ok)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, 10, res.Outcome.CoinsEarned)
	assert.True(t, res.Task.IsCompleted)

	a := f.avatar(t)
	assert.Equal(t, 1, a.Streak)
	assert.Equal(t, 1, a.TotalTasksCompleted)
	assert.Equal(t, 10, a.Coins)

	_, ok = f.tasks.Complete(ctx, tk.ID)
	assert.False(t, ok)
	assert.Equal(t, a, f.avatar(t))

	_, ok = f.tasks.Complete(ctx, uuid.New())
	assert.False(t, ok)
}

func TestFail_ResetsAvatarAndHabitStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := f.create(t, "run", task.FrequencyDaily)

	_, ok := f.tasks.Complete(ctx, habit.ID)
	require.True(t, ok)

	assert.True(t, f.tasks.Fail(ctx, habit.ID))

	got, err := f.tasks.Get(ctx, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Streak)

	a := f.avatar(t)
	assert.Equal(t, 0, a.Streak)
	assert.Equal(t, 0, a.ConsecutiveTasksDone)
	assert.Equal(t, 1, a.TotalTasksFailed)

	assert.False(t, f.tasks.Fail(ctx, uuid.New()))
}

func TestHabitRolloverFeedsStreaks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := f.create(t, "stretch", task.FrequencyDaily)

	_, ok := f.tasks.Complete(ctx, habit.ID)
	require.True(t, ok)

	n, err := f.tasks.RolloverHabits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "same day must not reopen")

	f.clock.Advance(24 * time.Hour)
	n, err = f.tasks.RolloverHabits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, ok := f.tasks.Complete(ctx, habit.ID)
	require.True(t, ok)
	assert.Equal(t, 2, res.Task.Streak)
	assert.Equal(t, 2, f.avatar(t).Streak)
}

func TestStorageFailureLeavesAvatarUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.avatar(t)

	f.store.setAvatarWrites(true)

	_, ok := f.avatars.OnTaskCompleted(ctx)
	assert.False(t, ok)
	assert.False(t, f.avatars.OnTaskFailed(ctx))
	assert.False(t, f.avatars.UnlockAchievement(ctx, achievement.FirstTask))
	assert.False(t, f.avatars.UnlockOutfit(ctx, "mage"))

	_, err := f.avatars.SelectOutfit(ctx, avatar.DefaultOutfit)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	_, err = f.avatars.Interact(ctx)
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	assert.Equal(t, before, f.avatar(t))
}

func TestTaskReadFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, "x", task.FrequencyNone)

	f.store.mu.Lock()
	f.store.failTaskReads = true
	f.store.mu.Unlock()

	_, ok := f.tasks.Complete(context.Background(), tk.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, f.avatar(t).TotalTasksCompleted)
}

func TestMissingAvatarIsNoOp(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewAvatarService(store, clock.NewFake(start))
	defer svc.Close()
	ctx := context.Background()

	_, ok := svc.OnTaskCompleted(ctx)
	assert.False(t, ok)
	assert.False(t, svc.OnTaskFailed(ctx))

	selected, err := svc.SelectOutfit(ctx, avatar.DefaultOutfit)
	assert.NoError(t, err)
	assert.False(t, selected)

	a, err := store.GetAvatar(ctx)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestConcurrentCompletionsAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 40
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.create(t, fmt.Sprintf("task %d", i), task.FrequencyNone).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, ok := f.tasks.Complete(ctx, id)
			assert.True(t, ok)
		}(id)
	}
	wg.Wait()

	a := f.avatar(t)
	assert.Equal(t, n, a.TotalTasksCompleted)
	assert.Equal(t, n, a.Streak)
	assert.Equal(t, n, a.ConsecutiveTasksDone)
	// 10 per completion plus the two streak milestones and reaching level 10
	assert.Equal(t, n*10+3*achievement.DefaultRewardCoins, a.Coins)
	assert.ElementsMatch(t, []string{achievement.WeekStreak, achievement.MonthStreak, achievement.Level10}, a.Achievements)
}

func TestOutfitsAndInteraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.avatars.SelectOutfit(ctx, "paladin")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, f.avatars.UnlockOutfit(ctx, "paladin"))
	assert.True(t, f.avatars.UnlockOutfit(ctx, "paladin"))
	assert.False(t, f.avatars.UnlockOutfit(ctx, ""))

	ok, err = f.avatars.SelectOutfit(ctx, "paladin")
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(time.Hour)
	a, err := f.avatars.Interact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, a.Happiness)
	assert.True(t, a.LastInteractionTime.Equal(start.Add(time.Hour)))

	stored := f.avatar(t)
	assert.Equal(t, "paladin", stored.SelectedOutfit)
	assert.Equal(t, []string{avatar.DefaultOutfit, "paladin"}, stored.UnlockedOutfits)
}

func TestUnlockAchievementOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, f.avatars.UnlockAchievement(ctx, achievement.FirstTask))
	assert.False(t, f.avatars.UnlockAchievement(ctx, achievement.FirstTask))
	assert.False(t, f.avatars.UnlockAchievement(ctx, "BOGUS"))

	a := f.avatar(t)
	assert.Equal(t, []string{achievement.FirstTask}, a.Achievements)
	assert.Equal(t, achievement.DefaultRewardCoins, a.Coins)

	progress, err := f.avatars.Achievements(ctx)
	require.NoError(t, err)
	assert.True(t, progress[0].IsUnlocked)
}

func TestSetCompletionToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t, "toggle", task.FrequencyNone)

	ok, err := f.tasks.SetCompletion(ctx, tk.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.tasks.SetCompletion(ctx, tk.ID, false)
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := f.tasks.List(ctx, TaskFilter{Status: StatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	ok, err = f.tasks.SetCompletion(ctx, uuid.New(), false)
	require.NoError(t, err)
	assert.False(t, ok)

	// checking it again is a new edge
	_, ok = f.tasks.Complete(ctx, tk.ID)
	assert.True(t, ok)
	assert.Equal(t, 2, f.avatar(t).TotalTasksCompleted)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t, "draft", task.FrequencyNone)

	title := "final"
	cat := "work"
	got, err := f.tasks.Update(ctx, tk.ID, &task.UpdateTaskRequest{Title: &title, Category: &cat})
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)

	work, err := f.tasks.List(ctx, TaskFilter{Category: "work"})
	require.NoError(t, err)
	assert.Len(t, work, 1)

	_, err = f.tasks.Update(ctx, uuid.New(), &task.UpdateTaskRequest{Title: &title})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, f.tasks.Delete(ctx, tk.ID))
	assert.ErrorIs(t, f.tasks.Delete(ctx, tk.ID), storage.ErrNotFound)
}

func TestDueSoon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon := start.Add(10 * time.Minute)
	later := start.Add(2 * time.Hour)
	for title, due := range map[string]time.Time{"soon": soon, "later": later} {
		d := due
		_, err := f.tasks.Create(ctx, &task.CreateTaskRequest{Title: title, DueDate: &d})
		require.NoError(t, err)
	}

	due, err := f.tasks.DueSoon(ctx, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "soon", due[0].Title)
}

func TestWatchActive(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tk := f.create(t, "watched", task.FrequencyNone)
	ch := f.tasks.WatchActive(ctx)

	first := <-ch
	require.Len(t, first, 1)

	_, ok := f.tasks.Complete(context.Background(), tk.ID)
	require.True(t, ok)

	select {
	case next := <-ch:
		assert.Empty(t, next)
	case <-time.After(time.Second):
		t.Fatal("no update after completion")
	}
}

func TestWatchRange(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	from := start.Add(24 * time.Hour)
	to := start.Add(72 * time.Hour)
	ch := f.tasks.WatchRange(ctx, from, to)

	due := func(title string, at time.Time) *task.Task {
		tk, err := f.tasks.Create(context.Background(), &task.CreateTaskRequest{Title: title, DueDate: &at})
		require.NoError(t, err)
		return tk
	}
	due("before", start)
	due("edge", from)
	late := due("after", to.Add(time.Hour))

	moved := to
	_, err := f.tasks.Update(context.Background(), late.ID, &task.UpdateTaskRequest{DueDate: &moved})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			var titles []string
			for _, tk := range got {
				require.NotNil(t, tk.DueDate)
				assert.False(t, tk.DueDate.Before(from) || tk.DueDate.After(to))
				titles = append(titles, tk.Title)
			}
			if len(titles) == 2 {
				assert.ElementsMatch(t, []string{"edge", "after"}, titles)
				return
			}
		case <-deadline:
			t.Fatal("range never included the moved task")
		}
	}
}

func TestAvatarUpdateDropsUnknownAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.avatars.Get(ctx)
	require.NoError(t, err)
	a.Achievements = append(a.Achievements, "BOGUS", achievement.FirstTask, achievement.FirstTask)
	require.NoError(t, f.avatars.Update(ctx, a))

	got, err := f.avatars.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{achievement.FirstTask}, got.Achievements)
	assert.Equal(t, []string{achievement.FirstTask}, f.avatar(t).Achievements)
}

func TestAvatarLoadRepairsStoredAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.avatar(t)
	a.Achievements = []string{"BOGUS", achievement.WeekStreak, achievement.WeekStreak}
	require.NoError(t, f.store.MemoryStore.UpdateAvatar(ctx, a))

	got, err := f.avatars.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{achievement.WeekStreak}, got.Achievements)

	progress, err := f.avatars.Achievements(ctx)
	require.NoError(t, err)
	unlocked := 0
	for _, p := range progress {
		if p.IsUnlocked {
			unlocked++
		}
	}
	assert.Equal(t, 1, unlocked)
}

func TestAvatarUpdateReturnsStorageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.avatar(t)
	before := a.Coins
	a.Coins += 500

	f.store.setAvatarWrites(true)
	err := f.avatars.Update(ctx, a)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	f.store.setAvatarWrites(false)
	assert.Equal(t, before, f.avatar(t).Coins)
}

func TestStatsServiceFollowsChanges(t *testing.T) {
	f := newFixture(t)
	svc := NewStatsService(f.tasks, f.avatars, f.clock, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	tk := f.create(t, "counted", task.FrequencyNone)
	_, ok := f.tasks.Complete(context.Background(), tk.ID)
	require.True(t, ok)

	ch := svc.Watch(ctx)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if s.TasksCompleted == 1 && s.TotalTasks == 1 {
				assert.Equal(t, 100, s.CompletionRate)
				assert.Len(t, s.TasksCompletedHistory, stats.HistoryPoints)
				return
			}
		case <-deadline:
			t.Fatal("statistics never caught up")
		}
	}
}

func TestStatsWatchStartsWithOneSnapshot(t *testing.T) {
	f := newFixture(t)
	svc := NewStatsService(f.tasks, f.avatars, f.clock, time.UTC)
	f.create(t, "pending", task.FrequencyNone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := svc.Watch(ctx)

	select {
	case s := <-ch:
		assert.Equal(t, 1, s.TotalTasks)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}
	select {
	case s := <-ch:
		t.Fatalf("unexpected second snapshot: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStatsCurrent(t *testing.T) {
	f := newFixture(t)
	svc := NewStatsService(f.tasks, f.avatars, f.clock, time.UTC)

	s, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.CompletionRate)
	assert.Equal(t, make([]int, stats.HistoryPoints), s.CompletionRateHistory)
}
