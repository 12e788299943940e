// Package workers runs the periodic background jobs: due-task reminders and
// habit rollover.
package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mineShaftAPI/internal/task"
	"mineShaftAPI/utils"
)

const ReminderTitle = "Task Reminder"

// jobTimeout bounds one scan so a stuck store cannot pile up runs.
const jobTimeout = 30 * time.Second

// TaskSource is the slice of the task service the workers need.
type TaskSource interface {
	DueSoon(ctx context.Context, window time.Duration) ([]*task.Task, error)
	RolloverHabits(ctx context.Context) (int, error)
}

// Notifier delivers a reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier writes reminders to the log. It is the default when no push
// channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, title, body string) error {
	log.Printf("[%s] %s", title, body)
	return nil
}

type Options struct {
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	RolloverInterval time.Duration
}

type Scheduler struct {
	tasks    TaskSource
	notifier Notifier
	opts     Options

	mu sync.Mutex
	// task id -> due date it was reminded for
	reminded map[uuid.UUID]time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewScheduler(tasks TaskSource, notifier Notifier, opts Options) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		tasks:    tasks,
		notifier: notifier,
		opts:     opts,
		reminded: make(map[uuid.UUID]time.Time),
		stopChan: make(chan struct{}),
	}
}

// Start launches both loops. A non-positive interval disables its loop.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		if s.opts.ReminderInterval > 0 {
			s.wg.Add(1)
			go s.loop(s.opts.ReminderInterval, func(ctx context.Context) { s.ScanReminders(ctx) })
		}
		if s.opts.RolloverInterval > 0 {
			s.wg.Add(1)
			go s.loop(s.opts.RolloverInterval, func(ctx context.Context) { s.Rollover(ctx) })
		}
		log.Printf("Workers started (reminders every %s, rollover every %s)",
			s.opts.ReminderInterval, s.opts.RolloverInterval)
	})
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(every time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			job(ctx)
			cancel()
		case <-s.stopChan:
			return
		}
	}
}

// ScanReminders notifies about open tasks due within the reminder window that
// have not been reminded for their current due date. It returns how many
// tasks the notification covered.
func (s *Scheduler) ScanReminders(ctx context.Context) int {
	due, err := s.tasks.DueSoon(ctx, s.opts.ReminderWindow)
	if err != nil {
		utils.TrackError("worker", "reminders")
		log.Printf("ScanReminders: %v", err)
		return 0
	}

	s.mu.Lock()
	fresh := make([]*task.Task, 0, len(due))
	stillDue := make(map[uuid.UUID]struct{}, len(due))
	for _, t := range due {
		stillDue[t.ID] = struct{}{}
		if at, ok := s.reminded[t.ID]; ok && t.DueDate != nil && at.Equal(*t.DueDate) {
			continue
		}
		fresh = append(fresh, t)
	}
	// forget tasks that left the window so a new due date reminds again
	for id := range s.reminded {
		if _, ok := stillDue[id]; !ok {
			delete(s.reminded, id)
		}
	}
	s.mu.Unlock()

	if len(fresh) == 0 {
		return 0
	}

	if err := s.notifier.Notify(ctx, ReminderTitle, ReminderMessage(fresh)); err != nil {
		utils.TrackError("worker", "notify")
		log.Printf("ScanReminders: failed to notify: %v", err)
		return 0
	}

	s.mu.Lock()
	for _, t := range fresh {
		if t.DueDate != nil {
			s.reminded[t.ID] = *t.DueDate
		}
	}
	s.mu.Unlock()

	utils.TrackReminder()
	return len(fresh)
}

func (s *Scheduler) Rollover(ctx context.Context) int {
	n, err := s.tasks.RolloverHabits(ctx)
	if err != nil {
		utils.TrackError("worker", "rollover")
		log.Printf("Rollover: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Rollover: reopened %d habit tasks", n)
	}
	return n
}

// ReminderMessage names the task when there is only one.
func ReminderMessage(tasks []*task.Task) string {
	if len(tasks) == 1 {
		return fmt.Sprintf("Task '%s' is due soon!", tasks[0].Title)
	}
	return fmt.Sprintf("%d tasks are due soon!", len(tasks))
}
