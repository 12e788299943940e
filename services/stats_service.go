package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/broker"
	"mineShaftAPI/internal/clock"
	"mineShaftAPI/internal/stats"
	"mineShaftAPI/internal/task"
)

// StatsService keeps a statistics snapshot in step with the task list and
// the avatar. It only reads; all writes happen in the other services.
type StatsService struct {
	tasks   *TaskService
	avatars *AvatarService
	clock   clock.Clock
	loc     *time.Location
	hub     *broker.Hub[stats.Statistics]

	// recompute period so the day-based series roll over at midnight
	tick time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStatsService(tasks *TaskService, avatars *AvatarService, clk clock.Clock, loc *time.Location) *StatsService {
	return &StatsService{
		tasks:   tasks,
		avatars: avatars,
		clock:   clk,
		loc:     loc,
		hub:     broker.NewHub[stats.Statistics](),
		tick:    time.Minute,
	}
}

// Start subscribes to both sources and republishes on every change until Stop.
func (s *StatsService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	taskUpdates := s.tasks.WatchAll(ctx)
	avatarUpdates := s.avatars.Watch(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		var (
			tasks   []*task.Task
			current *avatar.Avatar
		)
		for {
			select {
			case t, ok := <-taskUpdates:
				if !ok {
					return
				}
				tasks = t
			case a, ok := <-avatarUpdates:
				if !ok {
					return
				}
				current = a
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			s.hub.Publish(stats.Compute(tasks, current, s.clock.Now(), s.loc))
		}
	}()
}

// Current computes a fresh snapshot straight from the stores.
func (s *StatsService) Current(ctx context.Context) (stats.Statistics, error) {
	tasks, err := s.tasks.List(ctx, TaskFilter{Status: StatusAll})
	if err != nil {
		return stats.Statistics{}, fmt.Errorf("failed to load tasks: %w", err)
	}
	a, err := s.avatars.Get(ctx)
	if err != nil {
		return stats.Statistics{}, fmt.Errorf("failed to load avatar: %w", err)
	}
	return stats.Compute(tasks, a, s.clock.Now(), s.loc), nil
}

// Watch streams snapshots, starting with the latest one. Before the first
// recompute it seeds the stream with Current.
func (s *StatsService) Watch(ctx context.Context) <-chan stats.Statistics {
	if _, ok := s.hub.Latest(); !ok {
		snap, err := s.Current(ctx)
		if err != nil {
			log.Printf("StatsService.Watch: initial snapshot: %v", err)
		} else {
			s.hub.Publish(snap)
		}
	}
	return s.hub.Subscribe(ctx)
}

func (s *StatsService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.hub.Close()
}
