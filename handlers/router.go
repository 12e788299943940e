package handlers

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mineShaftAPI/middleware"
	"mineShaftAPI/services"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Tasks   *services.TaskService
	Avatars *services.AvatarService
	Stats   *services.StatsService
	Store   Pinger
	// nil disables rate limiting
	Limiter *middleware.RateLimiter

	AuthEnabled bool
	MetricsUser string
	MetricsPass string
	PprofSecret string
}

func NewRouter(cfg RouterConfig) *mux.Router {
	taskHandler := NewTaskHandler(cfg.Tasks)
	avatarHandler := NewAvatarHandler(cfg.Avatars)
	statsHandler := NewStatsHandler(cfg.Stats)
	requireAuth := middleware.RequireAuth(cfg.AuthEnabled)

	r := mux.NewRouter()

	// the websocket stays outside the rate limiter; one upgrade holds for hours
	r.Handle("/api/v1/stats/ws", requireAuth(http.HandlerFunc(statsHandler.StreamStats))).Methods("GET")

	standardRouter := r.PathPrefix("/").Subrouter()
	if cfg.Limiter != nil {
		standardRouter.Use(cfg.Limiter.Middleware)
	}
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := cfg.Store.Ping(ctx); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "storage unavailable",
			})
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "mineShaft-api",
		})
	}).Methods("GET")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()
	api.Use(requireAuth)

	api.HandleFunc("/tasks", taskHandler.ListTasks).Methods("GET")
	api.HandleFunc("/tasks", taskHandler.CreateTask).Methods("POST")
	api.HandleFunc("/tasks/range", taskHandler.GetTasksInRange).Methods("GET")
	api.HandleFunc("/tasks/{id}", taskHandler.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}", taskHandler.UpdateTask).Methods("PUT")
	api.HandleFunc("/tasks/{id}", taskHandler.DeleteTask).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/completion", taskHandler.SetCompletion).Methods("PUT")
	api.HandleFunc("/tasks/{id}/complete", taskHandler.CompleteTask).Methods("POST")
	api.HandleFunc("/tasks/{id}/fail", taskHandler.FailTask).Methods("POST")

	api.HandleFunc("/avatar", avatarHandler.GetAvatar).Methods("GET")
	api.HandleFunc("/avatar/achievements", avatarHandler.GetAchievements).Methods("GET")
	api.HandleFunc("/avatar/outfits", avatarHandler.GetOutfits).Methods("GET")
	api.HandleFunc("/avatar/outfits", avatarHandler.UnlockOutfit).Methods("POST")
	api.HandleFunc("/avatar/outfit", avatarHandler.SelectOutfit).Methods("PUT")
	api.HandleFunc("/avatar/interact", avatarHandler.Interact).Methods("POST")

	api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")

	return r
}
