package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/foreman/internal/config"
	"github.com/zulandar/foreman/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Foreman database",
		Long:  "Creates the database if needed, migrates all tables and seeds the project and resources from config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for project %q from %s\n", cfg.Project.Name, configPath)

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "mysql" {
		fmt.Fprintf(out, "Connected to MySQL at %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	} else {
		fmt.Fprintf(out, "Opened SQLite database %s\n", cfg.Database.Path)
	}

	if err := db.Init(gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintf(out, "Seeded project %s", cfg.Project.ID)
	if n := len(cfg.Resources); n > 0 {
		fmt.Fprintf(out, " and %d resources", n)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nForeman database initialized successfully.")
	return nil
}
