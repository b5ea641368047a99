/*
main.go - Application entry point

PURPOSE:
  Starts the site attendance server. Loads configuration, wires the
  store, session manager and event bus, and handles graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (TOML file, then flag overrides)
  2. Initialize SQLite store
  3. Create session manager and subscribe it to the event bus
  4. Start the idle session reaper
  5. Configure HTTP router and start the server

FLAGS:
  --config   Path to a TOML config file (missing file means defaults)
  --port     HTTP server port, overrides [api].port
  --db       SQLite database path, overrides [database].path
             Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reaper
  4. Close database connection

EXAMPLES:
  ./server --config=attendance.toml
  ./server --db=":memory:" --port=3000

SEE ALSO:
  - config/config.go: Configuration file format
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/site-attendance/api"
	"github.com/warp/site-attendance/config"
	"github.com/warp/site-attendance/events"
	"github.com/warp/site-attendance/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Monthly site attendance ledger server",
	Long: `Serves the monthly attendance grid for construction sites over HTTP.
Edits are held in memory per (site, month) until saved.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().String("config", "attendance.toml", "Path to TOML config file")
	rootCmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().String("db", "", "SQLite database path (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.API.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path, _ = cmd.Flags().GetString("db")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	weekdays, err := cfg.RestWeekdays()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Sessions follow roster and holiday changes
	bus := events.Default()
	sessions := api.NewSessionManager(store, weekdays...)
	defer sessions.Watch(bus)()

	reaper := api.NewSessionReaper(sessions, cfg.Sessions.IdleTimeout, cfg.Sessions.ReapInterval)
	reaper.Start()
	defer reaper.Stop()

	handler := api.NewHandler(store, sessions, bus)
	router := api.NewRouter(handler, cfg.API.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://%s", cfg.Addr())
		log.Printf("Database: %s, rest days: %v", cfg.Database.Path, weekdays)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Printf("Server stopped, %d sessions open at exit", sessions.Len())
	return nil
}
