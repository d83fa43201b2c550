package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/ytsched/internal/kvstore"
	"github.com/desertthunder/ytsched/internal/shared"
)

// SetupConfig writes the starter config file to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Wrote %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [youtube] client_id and client_secret\n")
	r.writePlain("2. Pick the [blob] and [kv] backends and their credentials\n")
	r.writePlain("3. Run 'ytsched auth login --save' to store a refresh token\n")
	return nil
}

// SetupDatabase initializes the sqlite database used by the sqlite kv backend and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			r.logger.Warn("failed to create config file, using loaded config", "error", err)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.printMigrations(db)
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.logger.Info("rolled back latest migration")
	return r.printMigrations(db)
}

// SetupStatus lists migrations and whether each is applied, then drops expired kv entries.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := r.printMigrations(db); err != nil {
		return err
	}

	statuses, err := shared.MigrationStatuses(db)
	if err != nil {
		return err
	}
	if len(statuses) == 0 || !statuses[0].Applied {
		return nil
	}

	n, err := kvstore.NewSQLiteStore(db).Purge(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("purged expired kv entries", "count", n)
	r.writePlain("\nPurged %d expired entries\n", n)
	return nil
}

// openDatabase opens the database without migrating it.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

func (r *Runner) printMigrations(db *sql.DB) error {
	statuses, err := shared.MigrationStatuses(db)
	if err != nil {
		return err
	}
	r.writePlainHeader("Migrations")
	for _, s := range statuses {
		mark := "✗"
		if s.Applied {
			mark = "✓"
		}
		r.writePlain("%s %04d %s\n", mark, s.Version, s.Name)
	}
	return nil
}
