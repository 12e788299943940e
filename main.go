package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"

	"mineShaftAPI/handlers"
	"mineShaftAPI/internal/clock"
	"mineShaftAPI/internal/config"
	"mineShaftAPI/internal/storage"
	"mineShaftAPI/internal/workers"
	"mineShaftAPI/middleware"
	"mineShaftAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.AuthEnabled() {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")
	} else {
		log.Println("CLERK_SECRET_KEY not set, API routes are unauthenticated")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStore(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatal("Failed to open storage:", err)
	}
	defer func() {
		log.Println("Closing storage...")
		store.Close()
	}()

	middleware.InitPrometheus()

	avatarService := services.NewAvatarService(store, clock.Real{})
	taskService := services.NewTaskService(store, avatarService, clock.Real{}, loc)
	statsService := services.NewStatsService(taskService, avatarService, clock.Real{}, loc)

	if _, err := avatarService.Ensure(ctx); err != nil {
		cancel()
		log.Fatal("Failed to initialize avatar:", err)
	}
	taskService.Refresh(ctx)
	cancel()

	statsService.Start(context.Background())

	scheduler := workers.NewScheduler(taskService, workers.LogNotifier{}, workers.Options{
		ReminderInterval: cfg.ReminderInterval,
		ReminderWindow:   cfg.ReminderWindow,
		RolloverInterval: cfg.RolloverInterval,
	})
	scheduler.Start()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartCleanup(time.Minute)

	r := handlers.NewRouter(handlers.RouterConfig{
		Tasks:       taskService,
		Avatars:     avatarService,
		Stats:       statsService,
		Store:       store,
		Limiter:     limiter,
		AuthEnabled: cfg.AuthEnabled(),
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,
		PprofSecret: cfg.PprofSecret,
	})

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	scheduler.Stop()
	statsService.Stop()
	limiter.Stop()
	taskService.Close()
	avatarService.Close()

	log.Println("Server shutdown complete")
}

// openStore picks Postgres, then SQLite, then memory.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := storage.NewPostgresStore(ctx, storage.PostgresConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		log.Println("Successfully connected to Postgres")
		return pg, nil

	case cfg.DBPath != "":
		lite, err := storage.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		log.Printf("Using SQLite database at %s", cfg.DBPath)
		return lite, nil

	default:
		log.Println("No DATABASE_URL or DB_PATH set, keeping data in memory")
		return storage.NewMemoryStore(), nil
	}
}
