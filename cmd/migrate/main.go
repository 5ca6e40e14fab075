package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
	"github.com/ManuelReschke/TrackFox/internal/pkg/env"
)

func main() {
	// Load environment variables from the .env file
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Migrate] %v", err)
	}
	db := cfg.DB

	// Database connection for migrations
	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		db.User, db.Password, db.Host, db.Port, db.Name)

	log.Infof("[Migrate] Connecting to database: %s@%s:%s/%s", db.User, db.Host, db.Port, db.Name)

	m, err := migrate.New(
		"file://migrations", // path to the migration files
		dbURL,
	)
	if err != nil {
		log.Fatalf("[Migrate] Initializing migrations failed: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Errorf("[Migrate] Closing migration resources failed: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// Apply all pending migrations
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("[Migrate] Applying migrations failed: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Info("[Migrate] No change: database is already up to date")
		} else {
			log.Info("[Migrate] Migrations applied")
		}

	case "down":
		// Roll back the last migration
		if err := m.Steps(-1); err != nil {
			log.Fatalf("[Migrate] Rolling back the last migration failed: %v", err)
		}
		log.Info("[Migrate] Last migration rolled back")

	case "goto":
		version := versionArg()
		// Migrate to a specific version
		if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("[Migrate] Migrating to version %d failed: %v", version, err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Infof("[Migrate] No change: database is already at version %d", version)
		} else {
			log.Infof("[Migrate] Migrated to version %d", version)
		}

	case "force":
		version := versionArg()
		// Clear the dirty flag after a failed migration was fixed by hand
		if err := m.Force(int(version)); err != nil {
			log.Fatalf("[Migrate] Forcing version %d failed: %v", version, err)
		}
		log.Infof("[Migrate] Version forced to %d", version)

	case "status":
		// Show the current migration version
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info("[Migrate] No migrations have been applied yet")
			} else {
				log.Fatalf("[Migrate] Reading the migration version failed: %v", err)
			}
		} else {
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Infof("[Migrate] Current migration version: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func versionArg() uint {
	if len(os.Args) < 3 {
		log.Fatal("[Migrate] Please provide a version number")
	}
	version, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil {
		log.Fatalf("[Migrate] Invalid version number: %v", err)
	}
	return uint(version)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Available commands:")
	fmt.Println("  up      - Apply all pending migrations")
	fmt.Println("  down    - Roll back the last migration")
	fmt.Println("  goto N  - Migrate to version N")
	fmt.Println("  force N - Set version N without running migrations (clears dirty state)")
	fmt.Println("  status  - Show the current migration version")
}
