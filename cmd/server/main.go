/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reverse-charge engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags
  2. Initialize SQLite store, seed the default rule set on first start
  3. Build the rule registry, timer, issuer and ledger
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: rcm.db, env DATABASE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/rcm.db"
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/warp/rcm-engine/api"
	"github.com/warp/rcm-engine/compliance"
	"github.com/warp/rcm-engine/ledger"
	"github.com/warp/rcm-engine/rules"
	"github.com/warp/rcm-engine/selfinvoice"
	"github.com/warp/rcm-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override it.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "rcm.db"), "SQLite database path")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "rcm-engine").Logger()
	if os.Getenv("LOG_PRETTY") == "true" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()

	// First start seeds the notified rule set; subsequent starts load
	// whatever the table holds.
	if err := store.SeedRules(ctx, rules.Defaults()); err != nil {
		log.Fatal().Err(err).Msg("failed to seed rules")
	}
	ruleSet, err := store.LoadRules(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load rules")
	}
	registry, err := rules.NewRegistry(ruleSet)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rule set")
	}
	log.Info().Int("rules", registry.Len()).Msg("rule registry loaded")

	timer := compliance.NewTimer(compliance.Config{})
	generator := selfinvoice.NewGenerator(registry, timer, selfinvoice.Config{})
	issuer := selfinvoice.NewIssuer(generator, store)
	led := ledger.New(store)

	handler := api.NewHandler(store, registry, timer, issuer, led, log)
	router := api.NewRouter(handler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
