package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/incident.report/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect or change the case database schema",
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: migrateRun(func(cmd *cobra.Command, store *db.DB, _ []string) error {
				return store.MigrateUp(db.MigrationsFS())
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: migrateRun(func(cmd *cobra.Command, store *db.DB, _ []string) error {
				return store.MigrateDown(db.MigrationsFS())
			}),
		},
		&cobra.Command{
			Use:   "to <version>",
			Short: "Migrate up or down to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: migrateRun(func(cmd *cobra.Command, store *db.DB, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return store.MigrateTo(db.MigrationsFS(), uint(v))
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations, clearing the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: migrateRun(func(cmd *cobra.Command, store *db.DB, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return store.MigrateForce(db.MigrationsFS(), v)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show current, latest and pending schema versions",
			Args:  cobra.NoArgs,
			RunE: migrateRun(func(cmd *cobra.Command, store *db.DB, _ []string) error {
				s, err := store.Status(db.MigrationsFS())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database: %s\ncurrent:  %d\nlatest:   %d\npending:  %d\ndirty:    %t\n",
					store.Path(), s.Current, s.Latest, s.Pending, s.Dirty)
				return nil
			}),
		},
	)
}

// migrateRun opens the database without migrating it and runs fn.
func migrateRun(fn func(*cobra.Command, *db.DB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := db.OpenDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, store, args)
	}
}
