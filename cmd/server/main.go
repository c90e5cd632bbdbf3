/*
main.go - Application entry point

PURPOSE:
  Starts the car-wash ledger API. Handles configuration, dependency
  injection, the stale-shift scheduler and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (env, optional .env) and parse flags
  2. Configure zerolog
  3. Initialize SQLite store and business calendar
  4. Create API handler, router and auto-close scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DATABASE_PATH, default: lavadero.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/lavadero.db"
  APP_ENV=production JWT_SECRET=... ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warp/lavadero/api"
	"github.com/warp/lavadero/config"
	"github.com/warp/lavadero/ledger"
	"github.com/warp/lavadero/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	// Structured logger: dev pretty, prod JSON
	zerolog.SetGlobalLevel(cfg.Level())
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	cal := ledger.NewCalendar(loc)
	auth := api.NewAuth(store, cfg.JWTSecret, cfg.TokenTTL())

	handler := api.NewHandler(store, cal, auth)
	handler.DevMode = !cfg.IsProduction()

	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.AllowedOrigins()})

	scheduler := api.NewAutoCloseScheduler(handler.Jornadas)
	scheduler.Enabled = cfg.AutoCloseEnabled
	scheduler.CheckInterval = cfg.AutoCloseInterval()
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", *port).
			Str("db", *dbPath).
			Str("timezone", loc.String()).
			Str("env", cfg.Env).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
