package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of task and avatar store operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "entity"},
	)

	AvatarEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_events_total",
			Help: "Avatar progression events by kind",
		},
		[]string{"event"}, // completed, failed, interact, outfit_unlock, outfit_select
	)

	AchievementsUnlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Achievements granted to the avatar",
		},
		[]string{"achievement"},
	)

	RemindersSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "task_reminders_sent_total",
			Help: "Due-soon reminders handed to the notifier",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type", "reason"},
	)
)

// TrackStoreOperation times a store call. Use with defer timer.ObserveDuration().
func TrackStoreOperation(operation, entity string) *prometheus.Timer {
	return prometheus.NewTimer(StoreOperationDuration.WithLabelValues(operation, entity))
}

func TrackAvatarEvent(event string) {
	AvatarEventsTotal.WithLabelValues(event).Inc()
}

func TrackAchievement(id string) {
	AchievementsUnlockedTotal.WithLabelValues(id).Inc()
}

func TrackReminder() {
	RemindersSentTotal.Inc()
}

func TrackError(errorType, reason string) {
	ErrorsTotal.WithLabelValues(errorType, reason).Inc()
}
