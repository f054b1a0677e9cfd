package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"healconnect/cmd/bootstrap"
	"healconnect/config"
	"healconnect/internal/infrastructure/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healconnect",
		Short: "HealConnect clinical operations API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(dedupeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and maintenance scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Initialize application with all dependencies
			app, err := bootstrap.New()
			if err != nil {
				logrus.Errorf("Failed to initialize application: %v", err)
				return err
			}

			// Run the application
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return database.MigrateUp(cfg.DB, log)
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return database.MigrateDown(cfg.DB, log, steps)
		},
	}
	downCmd.Flags().Int("steps", 1, "number of migrations to roll back")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func dedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Merge duplicate patient records once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			app, err := bootstrap.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if dryRun {
				groups, err := app.Identity.FindDuplicates(ctx)
				if err != nil {
					return err
				}
				for _, g := range groups {
					app.Log.Infof("Duplicate group: key=%q, patients=%d, survivor=%s", g.Key, len(g.PatientIDs), g.SurvivorID)
				}
				app.Log.Infof("Dry run found %d duplicate group(s)", len(groups))
				return nil
			}

			result, err := app.Identity.RunDeduplication(ctx)
			if result != nil {
				app.Log.Infof("Deduplication merged %d record(s) across %d group(s)", result.Merged, result.Groups)
			}
			return err
		},
	}
	cmd.Flags().Bool("dry-run", false, "only list the groups that would be merged")
	cmd.Flags().Duration("timeout", 10*time.Minute, "abort the run after this long")
	return cmd
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, bootstrap.NewLogger(cfg), nil
}
