// AssetForge Core - Hardware Inventory Engine
//
// This is the main entry point for the AssetForge core service. It owns
// the inventory database: schema migrations, the item store, and the
// optional MQTT change event publisher that GUI instances subscribe to.
//
// Usage:
//
//	assetforge               Run the service (migrate, then serve)
//	assetforge migrate       Apply pending migrations and exit
//	assetforge migrate -target VERSION
//	                         Apply migrations up to VERSION and exit
//	assetforge status        Print the migration ledger and exit
//	assetforge verify        Run database integrity checks and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/assetforge/assetforge-core/migrations"

	"github.com/assetforge/assetforge-core/internal/events"
	"github.com/assetforge/assetforge-core/internal/infrastructure/config"
	"github.com/assetforge/assetforge-core/internal/infrastructure/database"
	"github.com/assetforge/assetforge-core/internal/infrastructure/logging"
	"github.com/assetforge/assetforge-core/internal/inventory"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to the requested command, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments after the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		return runServe(ctx)
	case "migrate":
		return runMigrate(ctx, args)
	case "status":
		return runStatus(ctx)
	case "verify":
		return runVerify(ctx)
	default:
		return fmt.Errorf("unknown command %q (expected serve, migrate, status, or verify)", command)
	}
}

// runServe is the long-running service mode: migrate, wire the store
// and event publisher, then wait for a shutdown signal.
func runServe(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting AssetForge core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect the event publisher (optional)
	var storeOpts []inventory.Option
	if cfg.Events.Enabled {
		publisher, pubErr := events.Connect(cfg.Events, log)
		if pubErr != nil {
			return fmt.Errorf("connecting event publisher: %w", pubErr)
		}
		defer func() {
			log.Info("disconnecting event publisher")
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error("error closing event publisher", "error", closeErr)
			}
		}()
		log.Info("event publisher connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Events.Broker.Host, cfg.Events.Broker.Port),
			"client_id", cfg.Events.Broker.ClientID,
		)
		storeOpts = append(storeOpts, inventory.WithNotifier(publisher))
	} else {
		log.Info("event publishing disabled")
	}

	store := inventory.NewStore(db, log, storeOpts...)
	_ = store // GUI instances attach over the store API

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("AssetForge core stopped")
	return nil
}

// runMigrate applies pending migrations, optionally stopping at a
// target version, then exits.
func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	target := fs.String("target", "", "migration version to stop at (inclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.Default()
	db, cfg, err := openFromConfig()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Process exits after this

	if *target != "" {
		if err := db.MigrateTo(ctx, *target); err != nil {
			return fmt.Errorf("migrating to %s: %w", *target, err)
		}
		log.Info("migrations applied", "target", *target, "path", cfg.Database.Path)
		return nil
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied", "path", cfg.Database.Path)
	return nil
}

// runStatus prints the applied migration ledger.
func runStatus(ctx context.Context) error {
	db, cfg, err := openFromConfig()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Process exits after this

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	fmt.Printf("database: %s\n", cfg.Database.Path)
	if len(applied) == 0 {
		fmt.Println("no migrations applied")
	}
	for _, r := range applied {
		fmt.Printf("%s  applied %s\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Printf("%s  pending (%s)\n", m.Version, m.Name)
	}
	return nil
}

// runVerify runs the database integrity and foreign key checks.
func runVerify(ctx context.Context) error {
	db, cfg, err := openFromConfig()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Process exits after this

	if err := db.Verify(ctx); err != nil {
		return fmt.Errorf("verifying %s: %w", cfg.Database.Path, err)
	}
	fmt.Printf("database: %s\nintegrity ok\n", cfg.Database.Path)
	return nil
}

// openFromConfig loads configuration and opens the database, shared by
// the one-shot maintenance commands.
func openFromConfig() (*database.DB, *config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

// openDatabase opens the configured SQLite database.
func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// getConfigPath returns the configuration file path.
// Uses ASSETFORGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ASSETFORGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
