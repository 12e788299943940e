package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mineShaftAPI/internal/task"
)

type fakeSource struct {
	mu        sync.Mutex
	due       []*task.Task
	dueErr    error
	rollovers int
}

func (f *fakeSource) DueSoon(ctx context.Context, window time.Duration) ([]*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, f.dueErr
}

func (f *fakeSource) RolloverHabits(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollovers++
	return 1, nil
}

func (f *fakeSource) setDue(tasks ...*task.Task) {
	f.mu.Lock()
	f.due = tasks
	f.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (r *recorder) Notify(ctx context.Context, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.bodies = append(r.bodies, body)
	return nil
}

func (r *recorder) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func dueTask(title string, due time.Time) *task.Task {
	return &task.Task{ID: uuid.New(), Title: title, DueDate: &due}
}

func TestReminderMessage(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Task 'Pay rent' is due soon!", ReminderMessage([]*task.Task{dueTask("Pay rent", at)}))
	assert.Equal(t, "3 tasks are due soon!", ReminderMessage([]*task.Task{
		dueTask("a", at), dueTask("b", at), dueTask("c", at),
	}))
}

func TestScanReminders_OncePerDueDate(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rent := dueTask("Pay rent", at)
	src := &fakeSource{}
	src.setDue(rent)
	rec := &recorder{}
	s := NewScheduler(src, rec, Options{ReminderWindow: 15 * time.Minute})
	ctx := context.Background()

	assert.Equal(t, 1, s.ScanReminders(ctx))
	assert.Equal(t, 0, s.ScanReminders(ctx))

	gym := dueTask("Gym", at)
	src.setDue(rent, gym)
	assert.Equal(t, 1, s.ScanReminders(ctx))

	// moving the due date makes it remindable again
	moved := *rent
	later := at.Add(time.Hour)
	moved.DueDate = &later
	src.setDue(&moved, gym)
	assert.Equal(t, 1, s.ScanReminders(ctx))

	assert.Equal(t, []string{
		"Task 'Pay rent' is due soon!",
		"Task 'Gym' is due soon!",
		"Task 'Pay rent' is due soon!",
	}, rec.sent())
}

func TestScanReminders_ForgetsTasksThatLeftTheWindow(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rent := dueTask("Pay rent", at)
	src := &fakeSource{}
	s := NewScheduler(src, &recorder{}, Options{})
	ctx := context.Background()

	src.setDue(rent)
	require.Equal(t, 1, s.ScanReminders(ctx))

	src.setDue()
	assert.Equal(t, 0, s.ScanReminders(ctx))
	assert.Empty(t, s.reminded)
}

func TestScanReminders_Failures(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{dueErr: errors.New("store down")}
	rec := &recorder{}
	s := NewScheduler(src, rec, Options{})
	ctx := context.Background()

	assert.Equal(t, 0, s.ScanReminders(ctx))

	src.dueErr = nil
	src.setDue(dueTask("x", at))
	rec.err = errors.New("push rejected")
	assert.Equal(t, 0, s.ScanReminders(ctx))

	// nothing was recorded as reminded, so the next scan retries
	rec.err = nil
	assert.Equal(t, 1, s.ScanReminders(ctx))
}

func TestSchedulerLoops(t *testing.T) {
	at := time.Now().Add(5 * time.Minute)
	src := &fakeSource{}
	src.setDue(dueTask("soon", at))
	rec := &recorder{}

	s := NewScheduler(src, rec, Options{
		ReminderInterval: 10 * time.Millisecond,
		ReminderWindow:   time.Hour,
		RolloverInterval: 10 * time.Millisecond,
	})
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.rollovers >= 2 && len(rec.sent()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Len(t, rec.sent(), 1)
}

func TestNilNotifierDefaultsToLog(t *testing.T) {
	s := NewScheduler(&fakeSource{}, nil, Options{})
	assert.IsType(t, LogNotifier{}, s.notifier)
	assert.NoError(t, s.notifier.Notify(context.Background(), ReminderTitle, "hello"))
}
