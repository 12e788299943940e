package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mineShaftAPI/internal/achievement"
	"mineShaftAPI/internal/avatar"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestComplete_FirstCompletionStartsStreak(t *testing.T) {
	a := avatar.New(now)

	got, out := Complete(a, now)

	assert.Equal(t, 1, got.Streak)
	assert.Equal(t, 1, got.ConsecutiveTasksDone)
	assert.Equal(t, 1, got.TotalTasksCompleted)
	assert.Equal(t, avatar.MoodNeutral, got.Mood)
	assert.Equal(t, 10, got.Coins)
	assert.Equal(t, 10, out.CoinsEarned)
	require.NotNil(t, got.LastTaskCompletedAt)
	assert.True(t, got.LastTaskCompletedAt.Equal(now))

	// input untouched
	assert.Equal(t, 0, a.Streak)
	assert.Nil(t, a.LastTaskCompletedAt)
}

func TestComplete_StreakContinuity(t *testing.T) {
	tests := []struct {
		name    string
		gap     time.Duration
		want    int
		initial int
	}{
		{"same day", 2 * time.Hour, 5, 4},
		{"just under a day", 23*time.Hour + 59*time.Minute, 5, 4},
		{"47 hours truncates to one day", 47 * time.Hour, 5, 4},
		{"49 hours breaks", 49 * time.Hour, 1, 4},
		{"a week away breaks", 7 * 24 * time.Hour, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := avatar.New(now)
			a.Streak = tt.initial
			a.LastTaskCompletedAt = ago(tt.gap)

			got, _ := Complete(a, now)
			assert.Equal(t, tt.want, got.Streak)
		})
	}
}

func TestComplete_NilLastCompletionAlwaysYieldsOne(t *testing.T) {
	for _, streak := range []int{0, 3, 50} {
		a := avatar.New(now)
		a.Streak = streak
		a.LastTaskCompletedAt = nil

		got, _ := Complete(a, now)
		assert.Equal(t, 1, got.Streak, "stored streak %d", streak)
	}
}

func TestComplete_MoodAndEnergy(t *testing.T) {
	tests := []struct {
		name       string
		streak     int
		done       int
		energy     int
		wantMood   avatar.Mood
		wantEnergy int
	}{
		{"neutral", 0, 0, 50, avatar.MoodNeutral, 55},
		{"happy on third in a row", 1, 2, 50, avatar.MoodHappy, 60},
		{"ecstatic at week streak", 6, 0, 50, avatar.MoodEcstatic, 70},
		{"energy capped", 10, 10, 95, avatar.MoodEcstatic, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := avatar.New(now)
			a.Streak = tt.streak
			a.ConsecutiveTasksDone = tt.done
			a.Energy = tt.energy
			a.LastTaskCompletedAt = ago(time.Hour)

			got, _ := Complete(a, now)
			assert.Equal(t, tt.wantMood, got.Mood)
			assert.Equal(t, tt.wantEnergy, got.Energy)
		})
	}
}

func TestComplete_WeekStreakScenario(t *testing.T) {
	a := avatar.New(now)
	a.Streak = 6
	a.ConsecutiveTasksDone = 2
	a.Energy = 80
	a.LastTaskCompletedAt = ago(20 * time.Hour)

	got, out := Complete(a, now)

	assert.Equal(t, 7, got.Streak)
	assert.Equal(t, avatar.MoodEcstatic, got.Mood)
	assert.Equal(t, 100, got.Energy)
	assert.Contains(t, got.Achievements, achievement.WeekStreak)
	assert.Equal(t, a.Coins+60, got.Coins)
	assert.Equal(t, []string{achievement.WeekStreak}, out.Unlocked)
}

func TestComplete_MilestonesAreExactMatch(t *testing.T) {
	a := avatar.New(now)
	a.Streak = 7 // already past 7 without the achievement
	a.LastTaskCompletedAt = ago(time.Hour)

	got, out := Complete(a, now)

	assert.Equal(t, 8, got.Streak)
	assert.NotContains(t, got.Achievements, achievement.WeekStreak)
	assert.Empty(t, out.Unlocked)
	assert.Equal(t, a.Coins+CompletionCoins, got.Coins)
}

func TestComplete_MonthAndHundredMilestones(t *testing.T) {
	for streak, id := range map[int]string{29: achievement.MonthStreak, 99: achievement.HundredStreak} {
		a := avatar.New(now)
		a.Streak = streak
		a.LastTaskCompletedAt = ago(time.Hour)

		got, _ := Complete(a, now)
		assert.Contains(t, got.Achievements, id)
	}
}

func TestComplete_EarnsExperienceAndLevels(t *testing.T) {
	a := avatar.New(now)
	a.Experience = XPRequiredForLevel(10) - 10
	a.Level = 9
	a.LastTaskCompletedAt = ago(time.Hour)

	got, out := Complete(a, now)

	assert.GreaterOrEqual(t, got.Level, 10)
	assert.Contains(t, got.Achievements, achievement.Level10)
	assert.True(t, out.LeveledUp())
	assert.Equal(t, a.Experience+CompletionXP(1)+achievement.DefaultRewardExperience, got.Experience)
}

func TestFail_ResetsRunCounters(t *testing.T) {
	a := avatar.New(now)
	a.Streak = 12
	a.ConsecutiveTasksDone = 5
	a.LastTaskCompletedAt = ago(time.Hour)

	got := Fail(a, now)

	assert.Equal(t, 0, got.Streak)
	assert.Equal(t, 0, got.ConsecutiveTasksDone)
	assert.Equal(t, 1, got.ConsecutiveTasksFailed)
	assert.Equal(t, 1, got.TotalTasksFailed)
	assert.Equal(t, 90, got.Energy)
	assert.Equal(t, a.Coins, got.Coins)
	assert.Equal(t, a.LastTaskCompletedAt, got.LastTaskCompletedAt)
}

func TestFail_EscalatingPenalty(t *testing.T) {
	a := avatar.New(now)

	a = Fail(a, now)
	assert.Equal(t, 90, a.Energy)
	assert.Equal(t, avatar.MoodNeutral, a.Mood)

	a = Fail(a, now)
	assert.Equal(t, 75, a.Energy)
	assert.Equal(t, avatar.MoodNeutral, a.Mood)

	a = Fail(a, now)
	assert.Equal(t, 55, a.Energy)
	assert.Equal(t, avatar.MoodSad, a.Mood)
}

func TestFail_TiredUsesPriorEnergy(t *testing.T) {
	a := avatar.New(now)
	a.Energy = 30
	got := Fail(a, now)
	assert.Equal(t, avatar.MoodTired, got.Mood)
	assert.Equal(t, 20, got.Energy)

	a.Energy = 35 // drops to 25 but was above 30 before the failure
	got = Fail(a, now)
	assert.Equal(t, avatar.MoodNeutral, got.Mood)
}

func TestEnergyAlwaysClamped(t *testing.T) {
	for _, energy := range []int{-500, -1, 0, 3, 50, 99, 100, 101, 1000} {
		a := avatar.New(now)
		a.Energy = energy
		a.ConsecutiveTasksFailed = 5

		done, _ := Complete(a, now)
		failed := Fail(a, now)
		petted := Interact(a, now)

		for _, got := range []*avatar.Avatar{done, failed, petted} {
			assert.GreaterOrEqual(t, got.Energy, 0, "energy %d", energy)
			assert.LessOrEqual(t, got.Energy, 100, "energy %d", energy)
		}
	}
}

func TestUnlockAchievement_Idempotent(t *testing.T) {
	a := avatar.New(now)

	once, out, err := UnlockAchievement(a, achievement.FirstTask)
	require.NoError(t, err)
	assert.Equal(t, 50, once.Coins)
	assert.Equal(t, []string{achievement.FirstTask}, out.Unlocked)

	twice, out, err := UnlockAchievement(once, achievement.FirstTask)
	require.NoError(t, err)
	assert.Len(t, twice.Achievements, 1)
	assert.Equal(t, once.Coins, twice.Coins)
	assert.Empty(t, out.Unlocked)
}

func TestUnlockAchievement_UnknownID(t *testing.T) {
	a := avatar.New(now)
	got, _, err := UnlockAchievement(a, "NOPE")
	assert.ErrorIs(t, err, ErrUnknownAchievement)
	assert.Empty(t, got.Achievements)
	assert.Equal(t, 0, got.Coins)
}

func TestOutfits(t *testing.T) {
	a := avatar.New(now)

	a, err := SelectOutfit(a, "ninja")
	assert.ErrorIs(t, err, ErrOutfitLocked)
	assert.Equal(t, avatar.DefaultOutfit, a.SelectedOutfit)

	a, changed, err := UnlockOutfit(a, "ninja")
	require.NoError(t, err)
	assert.True(t, changed)

	a, changed, err = UnlockOutfit(a, "ninja")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{avatar.DefaultOutfit, "ninja"}, a.UnlockedOutfits)

	a, err = SelectOutfit(a, "ninja")
	require.NoError(t, err)
	assert.Equal(t, "ninja", a.SelectedOutfit)

	_, _, err = UnlockOutfit(a, "")
	assert.ErrorIs(t, err, ErrInvalidOutfit)
}

func TestSelectedOutfitAlwaysUnlocked(t *testing.T) {
	a := avatar.New(now)
	ops := []func(*avatar.Avatar) *avatar.Avatar{
		func(a *avatar.Avatar) *avatar.Avatar { n, _ := SelectOutfit(a, "mage"); return n },
		func(a *avatar.Avatar) *avatar.Avatar { n, _, _ := UnlockOutfit(a, "mage"); return n },
		func(a *avatar.Avatar) *avatar.Avatar { n, _ := SelectOutfit(a, "mage"); return n },
		func(a *avatar.Avatar) *avatar.Avatar { n, _ := Complete(a, now); return n },
		func(a *avatar.Avatar) *avatar.Avatar { return Fail(a, now) },
		func(a *avatar.Avatar) *avatar.Avatar { n, _ := SelectOutfit(a, "rogue"); return n },
		func(a *avatar.Avatar) *avatar.Avatar { return Interact(a, now) },
	}

	for i, op := range ops {
		a = op(a)
		assert.Contains(t, a.UnlockedOutfits, a.SelectedOutfit, "step %d", i)
	}
	assert.Equal(t, "mage", a.SelectedOutfit)
}

func TestInteract(t *testing.T) {
	a := avatar.New(now.Add(-time.Hour))
	a.Happiness = 50
	a.Motivation = 98

	got := Interact(a, now)

	assert.Equal(t, 60, got.Happiness)
	assert.Equal(t, 100, got.Motivation)
	assert.True(t, got.LastInteractionTime.Equal(now))
}

func TestLevelCurve(t *testing.T) {
	assert.Equal(t, 0, XPRequiredForLevel(1))
	assert.Equal(t, 100, XPRequiredForLevel(2))
	assert.Equal(t, 1, LevelForExperience(0))
	assert.Equal(t, 1, LevelForExperience(99))
	assert.Equal(t, 2, LevelForExperience(100))

	for level := 2; level <= 40; level++ {
		assert.Equal(t, level, LevelForExperience(XPRequiredForLevel(level)))
		assert.Equal(t, level-1, LevelForExperience(XPRequiredForLevel(level)-1))
	}
}
