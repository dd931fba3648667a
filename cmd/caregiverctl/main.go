package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/caregiver-api/internal/config"
	"github.com/jwalitptl/caregiver-api/internal/repository/postgres"
	"github.com/jwalitptl/caregiver-api/pkg/logger"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var configDir string

var rootCmd = &cobra.Command{
	Use:           "caregiverctl",
	Short:         "Administer the caregiver API database",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup("warn", "console")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the schema version this build expects",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "caregiverctl %s (schema %d)\n", Version, postgres.TargetSchemaVersion)
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database schema",
}

var dbUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sqlx.DB) error {
			before, err := postgres.SchemaVersion(ctx, db)
			if err != nil {
				return err
			}
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema upgraded from %d to %d\n", before, postgres.TargetSchemaVersion)
			return nil
		})
	},
}

var dbVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sqlx.DB) error {
			v, err := postgres.SchemaVersion(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d, latest %d\n", v, postgres.TargetSchemaVersion)
			return nil
		})
	},
}

func withDB(ctx context.Context, fn func(context.Context, *sqlx.DB) error) error {
	var paths []string
	if configDir != "" {
		paths = []string{configDir}
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yml")

	dbCmd.AddCommand(dbUpgradeCmd, dbVersionCmd)
	rootCmd.AddCommand(versionCmd, dbCmd, caregiverCmd)
	initCaregiverCmd()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
