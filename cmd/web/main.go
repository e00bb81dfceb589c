package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/config"
	"github.com/AdamBeresnev/arena-hub/internal/db"
	"github.com/AdamBeresnev/arena-hub/internal/middleware"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-co-op/gocron/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	database := db.InitDB(cfg.Database.Path)
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.Database.MigrationsURL); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	middleware.InitAuth(cfg.Auth)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime()
	sessionManager.Store = sqlite3store.New(database.DB)

	app, err := newApplication(cfg, database, sessionManager)
	if err != nil {
		log.Fatal(err)
	}

	scheduler, err := app.startJanitor()
	if err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	app.hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		slog.Error("Scheduler shutdown failed", "error", err)
	}
}

// startJanitor drops expired event cache entries on a fixed interval.
func (app *application) startJanitor() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if interval := app.cfg.CachePurgeInterval(); interval > 0 {
		_, err = scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				if n := app.eventCache.PurgeExpired(); n > 0 {
					slog.Debug("Purged expired cache entries", "count", n)
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	scheduler.Start()
	return scheduler, nil
}
