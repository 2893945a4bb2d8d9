package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronkwan/synced-object/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long:  `Database migration tool for the Postgres backend. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply the database migrations",
	Long: `Apply the database migrations to bring the schema up to date. The
connection string is read from the --db-url flag.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigration(cmd, database.MigrateUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the database migrations",
	Long: `Revert the database migrations.
WARNING: This removes the synced-object table and all stored state.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		yes, err := cmd.Flags().GetBool("yes")
		if err != nil {
			return fmt.Errorf("failed to get yes flag: %w", err)
		}
		if !yes {
			fmt.Print("This will drop the synced-object table and all stored state. Continue? (yes/no): ")
			var response string
			if _, err := fmt.Scanln(&response); err != nil {
				return fmt.Errorf("failed to read user input: %w", err)
			}
			if response != "yes" && response != "y" {
				return fmt.Errorf("migration cancelled by user")
			}
		}
		return runMigration(cmd, database.MigrateDown)
	},
}

func init() {
	migrateCmd.PersistentFlags().String("db-url", "", "Postgres connection string (required)")
	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")

	if err := migrateCmd.MarkPersistentFlagRequired("db-url"); err != nil {
		panic(err)
	}

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigration(cmd *cobra.Command, migrate func(context.Context, *pgx.Conn) error) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	connString, err := cmd.Flags().GetString("db-url")
	if err != nil {
		return fmt.Errorf("failed to get db-url flag: %w", err)
	}

	ctx := cmd.Context()
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			logger.Warn("failed to close database connection", zap.Error(closeErr))
		}
	}()

	logger.Info("running database migration")
	if err := migrate(ctx, conn); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("migration completed")
	return nil
}
