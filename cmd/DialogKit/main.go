package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/DialogKit/internal/api"
	"github.com/BTreeMap/DialogKit/internal/controls"
	"github.com/BTreeMap/DialogKit/internal/session"
	"github.com/BTreeMap/DialogKit/internal/store"
	"github.com/BTreeMap/DialogKit/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DialogKit state data
	DefaultStateDir = "/var/lib/dialogkit"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "dialogkit.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build the snapshot store for the configured driver
	st, err := buildSnapshotStore(flags, config)
	if err != nil {
		slog.Error("Failed to create snapshot store", "error", err)
		os.Exit(1)
	}

	manager := session.NewManager(st, buildTripPlannerTree)
	server := api.NewServer(manager, st, api.WithAddr(*flags.apiAddr))

	slog.Info("Bootstrapping DialogKit", "driver", *flags.storeDriver, "api_addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("DialogKit failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DialogKit exited successfully")
}

// Config holds environment configuration
type Config struct {
	StoreDriver   string
	DatabaseDSN   string
	StateDir      string
	APIAddr       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	storeDriver *string
	dbDSN       *string
	apiAddr     *string
	redisAddr   *string
}

// initializeLogger sets up structured logging; $DIALOGKIT_DEBUG enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DIALOGKIT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StoreDriver:   os.Getenv("DIALOGKIT_STORE_DRIVER"),
		DatabaseDSN:   os.Getenv("DIALOGKIT_DB_DSN"),
		StateDir:      os.Getenv("DIALOGKIT_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		RedisAddr:     os.Getenv("DIALOGKIT_REDIS_ADDR"),
		RedisPassword: os.Getenv("DIALOGKIT_REDIS_PASSWORD"),
		RedisDB:       util.ParseIntEnv("DIALOGKIT_REDIS_DB", 0),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DIALOGKIT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Fall back to DATABASE_URL for SQL drivers
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
		if config.DatabaseDSN != "" {
			slog.Debug("Using DATABASE_URL as DIALOGKIT_DB_DSN", "dsn_set", true)
		}
	}

	// Default to in-memory storage when nothing is configured
	if config.StoreDriver == "" {
		config.StoreDriver = "memory"
	}

	slog.Debug("environment variables loaded",
		"DIALOGKIT_STORE_DRIVER", config.StoreDriver,
		"DIALOGKIT_DB_DSN_SET", config.DatabaseDSN != "",
		"DIALOGKIT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"DIALOGKIT_REDIS_ADDR", config.RedisAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for DialogKit data (overrides $DIALOGKIT_STATE_DIR)"),
		storeDriver: flag.String("store-driver", config.StoreDriver, "snapshot store driver: memory, sqlite, postgres, or redis (overrides $DIALOGKIT_STORE_DRIVER)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseDSN, "database DSN for the sqlite/postgres store (overrides $DIALOGKIT_DB_DSN or $DATABASE_URL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		redisAddr:   flag.String("redis-addr", config.RedisAddr, "Redis address for the redis store (overrides $DIALOGKIT_REDIS_ADDR)"),
	}
	flag.Parse()
	return flags
}

// buildSnapshotStore constructs the snapshot store selected by the driver flag.
func buildSnapshotStore(flags Flags, config Config) (store.SnapshotStore, error) {
	switch *flags.storeDriver {
	case "memory":
		slog.Info("Using in-memory snapshot store")
		return store.NewInMemoryStore(), nil
	case "sqlite":
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("No database DSN provided, defaulting to SQLite in state dir", "sqlite_path", dsn)
		}
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case "redis":
		if *flags.redisAddr == "" {
			return nil, fmt.Errorf("redis store requires a redis address")
		}
		return store.NewRedisStore(*flags.redisAddr, config.RedisPassword, config.RedisDB), nil
	default:
		return nil, fmt.Errorf("unrecognized store driver %q", *flags.storeDriver)
	}
}

// buildTripPlannerTree builds the demo skill: a trip planner that collects a
// destination, travel window, and party size.
func buildTripPlannerTree() (controls.Control, error) {
	start, err := controls.NewDateControl(controls.DateConfig{
		ID:                  "start",
		Targets:             []string{"date"},
		SpecificTargetLabel: "start date",
		RequestPrompt:       "What date does your trip start?",
	})
	if err != nil {
		return nil, err
	}
	end, err := controls.NewDateControl(controls.DateConfig{
		ID:                  "end",
		Targets:             []string{"date"},
		SpecificTargetLabel: "end date",
		RequestPrompt:       "What date does your trip end?",
	})
	if err != nil {
		return nil, err
	}
	minTravelers := 1
	maxTravelers := 12
	travelers, err := controls.NewNumberControl(controls.NumberConfig{
		ID:                  "travelers",
		Targets:             []string{"travelers", "people"},
		SpecificTargetLabel: "number of travelers",
		RequestPrompt:       "How many people are traveling?",
		Min:                 &minTravelers,
		Max:                 &maxTravelers,
	})
	if err != nil {
		return nil, err
	}
	destination, err := controls.NewListControl(controls.ListConfig{
		ID:                   "destination",
		Targets:              []string{"destination", "city"},
		SpecificTargetLabel:  "destination",
		Choices:              []string{"Lisbon", "Kyoto", "Oaxaca", "Tallinn"},
		ConfirmationRequired: true,
	})
	if err != nil {
		return nil, err
	}
	return controls.NewContainerControl(controls.ContainerConfig{ID: "trip"}, destination, start, end, travelers)
}
