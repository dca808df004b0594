package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainer/internal/config"
	"github.com/zulandar/trainer/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the history tables",
		Long:  "Runs AutoMigrate against the configured sqlite or mysql database. Other storage drivers need no schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	switch cfg.Storage.Driver {
	case config.DriverSQLite, config.DriverMySQL:
	default:
		fmt.Fprintf(out, "Storage driver %s has no schema, nothing to migrate\n", cfg.Storage.Driver)
		return nil
	}

	gormDB, err := openGorm(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), cfg.Storage.Driver)
	return nil
}
