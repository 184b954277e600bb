package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/civic-gov/platform/internal/classifier"
	issueapi "github.com/civic-gov/platform/internal/issue/api"
	issueinfra "github.com/civic-gov/platform/internal/issue/infrastructure"
	"github.com/civic-gov/platform/internal/notification"
	"github.com/civic-gov/platform/internal/portal"
	"github.com/civic-gov/platform/internal/ranking"
	"github.com/civic-gov/platform/internal/scoring"
	"github.com/civic-gov/platform/internal/shared/auth"
	"github.com/civic-gov/platform/internal/shared/config"
	"github.com/civic-gov/platform/internal/shared/database"
	"github.com/civic-gov/platform/internal/shared/events"
	"github.com/civic-gov/platform/internal/shared/metrics"
	secmiddleware "github.com/civic-gov/platform/internal/shared/middleware"
	"github.com/civic-gov/platform/internal/worker"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    events.EventBus
	Cache  *worker.MetricsCache
	Mirror *portal.Mirror
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running in limited mode without database...")
	} else {
		app.DB = db
		defer db.Close()

		// Run migrations
		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus with KurrentDB (optional - skip if not available)
	bus, transport, err := events.NewEventBus(ctx, cfg.KurrentDB)
	if err != nil {
		fmt.Printf("Warning: KurrentDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Printf("KurrentDB Event Bus initialized (%s)\n", transport)
	}

	// Initialize the worker-metrics cache (optional - skip if not available)
	if cfg.Redis.Enabled {
		redisURL := fmt.Sprintf("redis://:%s@%s/%d", cfg.Redis.Password, cfg.Redis.Addr, cfg.Redis.DB)
		if cfg.Redis.Password == "" {
			redisURL = fmt.Sprintf("redis://%s/%d", cfg.Redis.Addr, cfg.Redis.DB)
		}
		cache, err := worker.NewMetricsCache(redisURL, 60*time.Second)
		if err != nil {
			fmt.Printf("Warning: Redis not available: %v\n", err)
			fmt.Println("Scores and leaderboards will recompute on every read...")
		} else {
			app.Cache = cache
			defer cache.Close()
			fmt.Println("Worker metrics cache initialized (Redis)")
		}
	}

	// Initialize the citizen-portal status mirror (optional)
	app.Mirror = portal.NewMirror(cfg.Portal)
	app.Mirror.OnFailure(metrics.RecordPortalMirrorFailure)
	if err := app.Mirror.Start(ctx); err != nil {
		fmt.Printf("Warning: Portal mirror not available: %v\n", err)
	} else if app.Mirror.Enabled() {
		fmt.Println("Citizen portal status mirror started (SQL Server)")
	}
	defer app.Mirror.Stop()

	// Notification service with dev providers
	notifier := notification.NewService(
		notification.NewConsoleProvider("PUSH"),
		notification.NewMockSMSProvider(),
		notification.NewMockEmailProvider(),
		notification.DefaultServiceConfig(),
	)
	if err := notifier.Start(ctx); err != nil {
		fmt.Printf("Warning: Notification service failed to start: %v\n", err)
	} else {
		defer notifier.Stop()
	}

	// Classification gateway
	var clf *classifier.Client
	if cfg.Classifier.Enabled {
		clf = classifier.NewClient(cfg.Classifier)
		fmt.Printf("Classifier enabled (service: %s)\n", cfg.Classifier.URL)
	}

	// Repositories
	var issueRepo *issueinfra.PostgresRepository
	var workerRepo *worker.Repository
	if app.DB != nil {
		issueRepo = issueinfra.NewPostgresRepository(app.DB.Pool)
		workerRepo = worker.NewRepository(app.DB.Pool)
	}

	// Notification dispatch rides the event stream: the consumer subscribes
	// to the issue lifecycle events and resolves recipients via the worker
	// directory.
	if app.Bus != nil {
		var directory notification.Directory
		if workerRepo != nil {
			directory = worker.NewContactDirectory(workerRepo)
		}
		consumer := notification.NewConsumer(notifier, directory)
		if err := consumer.Register(ctx, app.Bus); err != nil {
			fmt.Printf("Warning: Notification consumer failed to subscribe: %v\n", err)
		} else {
			fmt.Println("Notification consumer subscribed to issue events")
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RequestLogger)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required for now in dev mode)
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}
		r.Use(secmiddleware.NewIPRateLimiter(100, 200).Middleware)

		if app.DB != nil {
			scorer := scoring.NewEngine(issueRepo)
			ranker := ranking.NewEngine(
				worker.NewRosterSource(workerRepo),
				scorer,
				cfg.Ranking.MaxConcurrentReads,
			)

			issueHandler := issueapi.NewHandler(
				issueRepo, workerRepo, clf, app.Bus, app.Mirror, app.Cache)
			r.Mount("/", issueHandler.Routes())

			workerHandler := worker.NewHandler(workerRepo, scorer, ranker, app.Cache)
			r.Mount("/gamification", workerHandler.Routes())
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Civic Issue Management Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Classifier:     %s (enabled: %v)\n", cfg.Classifier.URL, cfg.Classifier.Enabled)
	fmt.Printf("Portal mirror:  enabled: %v\n", cfg.Portal.Enabled)
	fmt.Printf("KurrentDB:      %s:%d\n", cfg.KurrentDB.Host, cfg.KurrentDB.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Civic Issue Management Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		if app.Cache != nil {
			if err := app.Cache.Ping(r.Context()); err != nil {
				checks["redis"] = "not ready: " + err.Error()
			} else {
				checks["redis"] = "ready"
			}
		} else {
			checks["redis"] = "not configured"
		}

		if app.Mirror != nil && app.Mirror.Enabled() {
			if err := app.Mirror.Health(r.Context()); err != nil {
				checks["portal"] = "not ready: " + err.Error()
			} else {
				checks["portal"] = "ready"
			}
		} else {
			checks["portal"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
