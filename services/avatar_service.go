package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"mineShaftAPI/internal/achievement"
	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/broker"
	"mineShaftAPI/internal/clock"
	"mineShaftAPI/internal/progression"
	"mineShaftAPI/internal/storage"
	"mineShaftAPI/utils"
)

// AvatarService owns the single avatar record. Every change is a
// fetch-compute-write sequence under mu, so concurrent task events never
// overwrite each other.
type AvatarService struct {
	store storage.AvatarStore
	clock clock.Clock
	hub   *broker.Hub[*avatar.Avatar]
	mu    sync.Mutex
}

func NewAvatarService(store storage.AvatarStore, clk clock.Clock) *AvatarService {
	return &AvatarService{
		store: store,
		clock: clk,
		hub:   broker.NewHub[*avatar.Avatar](),
	}
}

// Ensure returns the avatar, creating it with defaults on first use.
func (s *AvatarService) Ensure(ctx context.Context) (*avatar.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if a != nil {
		if _, ok := s.hub.Latest(); !ok {
			s.hub.Publish(a.Clone())
		}
		return a, nil
	}

	a = avatar.New(s.clock.Now())
	id, err := s.store.InsertAvatar(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to create avatar: %w", err)
	}
	a.ID = id
	log.Printf("Avatar created with id %d", id)

	s.hub.Publish(a.Clone())
	return a, nil
}

func (s *AvatarService) Get(ctx context.Context) (*avatar.Avatar, error) {
	return s.Ensure(ctx)
}

// Watch streams the avatar after every committed change, starting with the
// current one.
func (s *AvatarService) Watch(ctx context.Context) <-chan *avatar.Avatar {
	return s.hub.Subscribe(ctx)
}

// Update overwrites the stored avatar. Storage errors reach the caller.
func (s *AvatarService) Update(ctx context.Context, a *avatar.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := a.Clone()
	n.Normalize()
	n.RetainAchievements(achievement.IDs())
	if err := s.store.UpdateAvatar(ctx, n); err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	s.hub.Publish(n)
	return nil
}

// OnTaskCompleted runs the completion transition. Failures are logged and
// reported as false with the stored avatar left as it was.
func (s *AvatarService) OnTaskCompleted(ctx context.Context) (progression.Outcome, bool) {
	var out progression.Outcome
	_, err := s.mutate(ctx, func(a *avatar.Avatar) (*avatar.Avatar, error) {
		var n *avatar.Avatar
		n, out = progression.Complete(a, s.clock.Now())
		return n, nil
	})
	if err != nil {
		s.logFailure("OnTaskCompleted", err)
		return progression.Outcome{}, false
	}

	utils.TrackAvatarEvent("completed")
	for _, id := range out.Unlocked {
		utils.TrackAchievement(id)
		log.Printf("OnTaskCompleted: achievement unlocked: %s", id)
	}
	return out, true
}

func (s *AvatarService) OnTaskFailed(ctx context.Context) bool {
	_, err := s.mutate(ctx, func(a *avatar.Avatar) (*avatar.Avatar, error) {
		return progression.Fail(a, s.clock.Now()), nil
	})
	if err != nil {
		s.logFailure("OnTaskFailed", err)
		return false
	}
	utils.TrackAvatarEvent("failed")
	return true
}

// UnlockAchievement grants id. Already-unlocked and unknown ids report false.
func (s *AvatarService) UnlockAchievement(ctx context.Context, id string) bool {
	var out progression.Outcome
	_, err := s.mutate(ctx, func(a *avatar.Avatar) (*avatar.Avatar, error) {
		n, o, err := progression.UnlockAchievement(a, id)
		if err != nil {
			return nil, err
		}
		if len(o.Unlocked) == 0 {
			return nil, errUnchanged
		}
		out = o
		return n, nil
	})
	if err != nil {
		s.logFailure("UnlockAchievement", err)
		return false
	}
	for _, u := range out.Unlocked {
		utils.TrackAchievement(u)
	}
	return true
}

// UnlockOutfit adds name to the wardrobe. It is idempotent and reports true
// when the outfit is unlocked afterwards.
func (s *AvatarService) UnlockOutfit(ctx context.Context, name string) bool {
	_, err := s.mutate(ctx, func(a *avatar.Avatar) (*avatar.Avatar, error) {
		n, changed, err := progression.UnlockOutfit(a, name)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, errUnchanged
		}
		return n, nil
	})
	if errors.Is(err, errUnchanged) {
		return true
	}
	if err != nil {
		s.logFailure("UnlockOutfit", err)
		return false
	}
	utils.TrackAvatarEvent("outfit_unlock")
	return true
}

// SelectOutfit wears name. A locked outfit is rejected with false and no
// error; storage failures are returned.
func (s *AvatarService) SelectOutfit(ctx context.Context, name string) (bool, error) {
	_, err := s.mutate(ctx, func(a *avatar.Avatar) (*avatar.Avatar, error) {
		return progression.SelectOutfit(a, name)
	})
	switch {
	case errors.Is(err, progression.ErrOutfitLocked), errors.Is(err, errNoAvatar):
		return false, nil
	case err != nil:
		return false, err
	}
	utils.TrackAvatarEvent("outfit_select")
	return true, nil
}

func (s *AvatarService) Interact(ctx context.Context) (*avatar.Avatar, error) {
	n, err := s.mutate(ctx, func(a *avatar.Avatar) (*avatar.Avatar, error) {
		return progression.Interact(a, s.clock.Now()), nil
	})
	if errors.Is(err, errNoAvatar) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	utils.TrackAvatarEvent("interact")
	return n, nil
}

func (s *AvatarService) Achievements(ctx context.Context) ([]achievement.Progress, error) {
	a, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return achievement.ProgressFor(a), nil
}

func (s *AvatarService) Close() {
	s.hub.Close()
}

var (
	errNoAvatar  = errors.New("avatar not created yet")
	errUnchanged = errors.New("avatar unchanged")
)

// mutate is the critical section: one read, one pure transition, one write,
// then a publish. Nothing is written when fn or the read fails.
func (s *AvatarService) mutate(ctx context.Context, fn func(*avatar.Avatar) (*avatar.Avatar, error)) (*avatar.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errNoAvatar
	}

	n, err := fn(a)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateAvatar(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}

	s.hub.Publish(n.Clone())
	return n, nil
}

// load reads the stored avatar, dropping achievement ids the catalog does
// not know. Callers hold mu.
func (s *AvatarService) load(ctx context.Context) (*avatar.Avatar, error) {
	a, err := s.store.GetAvatar(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load avatar: %w", err)
	}
	if a != nil {
		a.RetainAchievements(achievement.IDs())
	}
	return a, nil
}

func (s *AvatarService) logFailure(op string, err error) {
	switch {
	case errors.Is(err, errUnchanged):
		return
	case errors.Is(err, errNoAvatar):
		log.Printf("%s: skipped: %v", op, err)
	case errors.Is(err, storage.ErrUnavailable):
		utils.TrackError("storage", op)
		log.Printf("%s: storage error: %v", op, err)
	default:
		log.Printf("%s: rejected: %v", op, err)
	}
}
