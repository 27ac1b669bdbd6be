// Gatehouse - User & Access Management Service
//
// This is the main entry point for the Gatehouse API server.
// Gatehouse provides accounts, roles, and permissions behind a
// JWT-secured REST API:
//   - Users hold roles; roles hold permissions
//   - Route access is gated by named permissions, checked per request
//   - Session revocation and reset tokens live in SQLite or Redis
//
// For endpoint details, see the internal/api package documentation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gatehouse/migrations"

	"github.com/nerrad567/gatehouse/internal/api"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/database"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
	"github.com/nerrad567/gatehouse/internal/infrastructure/redis"
	"github.com/nerrad567/gatehouse/internal/rbac"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gatehouse",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories share the one connection pool
	users := rbac.NewUserRepository(db.DB)
	roles := rbac.NewRoleRepository(db.DB)
	permissions := rbac.NewPermissionRepository(db.DB)

	// Seed the permission graph and the bootstrap admin account.
	// Both are idempotent, so restarts are safe.
	if seedErr := rbac.SeedDefaults(ctx, roles, permissions, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding roles and permissions: %w", seedErr)
	}
	if _, seedErr := auth.SeedAdmin(ctx, users, roles, cfg.Auth.SeedAdminPassword, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Select token store backends (Redis when enabled, otherwise SQLite)
	revocations, resets, redisClient, err := buildTokenStores(cfg, db, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
	}

	authService := auth.NewService(auth.ServiceConfig{
		Users:       users,
		Roles:       roles,
		Revocations: revocations,
		Resets:      resets,
		Logger:      log.Logger,
		JWTSecret:   cfg.Auth.JWTSecret,
		SessionTTL:  cfg.Auth.GetSessionTTL(),
		ResetTTL:    cfg.Auth.GetResetTokenTTL(),
	})

	// Create and start the API server
	server, err := api.New(api.Deps{
		Config:      cfg.Server,
		Logger:      log,
		Auth:        authService,
		Users:       users,
		Roles:       roles,
		Permissions: permissions,
		DB:          db.DB,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.Server.Host, "port", cfg.Server.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, redisClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (drains in-flight requests, stops the prune loop)
	// 2. Redis (if enabled)
	// 3. Database

	log.Info("Gatehouse stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GATEHOUSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GATEHOUSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildTokenStores selects the backends for session revocation and password
// reset tokens. Redis entries expire via key TTLs; the SQLite stores rely on
// the API server's periodic prune loop instead.
//
// Returns:
//   - auth.RevocationStore: Backend for revoked session IDs
//   - auth.ResetTokenStore: Backend for password reset tokens
//   - *redis.Client: Connected client when Redis is enabled, nil otherwise
//   - error: If the Redis connection fails
func buildTokenStores(cfg *config.Config, db *database.DB, log *logging.Logger) (auth.RevocationStore, auth.ResetTokenStore, *redis.Client, error) {
	if !cfg.Redis.Enabled {
		log.Info("token stores using SQLite")
		return auth.NewRevocationStore(db.DB), auth.NewResetTokenStore(db.DB), nil, nil
	}

	client, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	log.Info("Redis connected", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	return auth.NewRedisRevocationStore(client.Client), auth.NewRedisResetTokenStore(client.Client), client, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - redisClient: Redis client to check (may be nil if disabled)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, redisClient *redis.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if redisClient != nil {
		if err := redisClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
