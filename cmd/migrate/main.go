package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		logger.Error("usage: migrate <up|down|version|force <v>>")
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "file://migrations"
	}

	m, err := migrate.New(migrationsPath, postgresURL)
	if err != nil {
		logger.Error("failed to create migrate instance", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	if err := run(m, logger, args); err != nil {
		logger.Error("migration failed", slog.String("command", args[0]), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, logger *slog.Logger, args []string) error {
	switch command := args[0]; command {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no pending migrations")
				return nil
			}
			return err
		}
		logger.Info("migrations applied successfully")
		return nil

	case "down":
		if err := m.Steps(-1); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
		logger.Info("migration rolled back successfully")
		return nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return nil

	case "force":
		// Clears the dirty flag after a failed migration has been repaired by hand.
		if len(args) < 2 {
			return errors.New("force requires a version argument")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.New("force version must be an integer")
		}
		if err := m.Force(version); err != nil {
			return err
		}
		logger.Info("migration version forced", slog.Int("version", version))
		return nil

	default:
		return errors.New("unknown command " + command)
	}
}
