package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/cmd/dispatch/commands"
	"github.com/covershift/dispatch/internal/config"
	"github.com/covershift/dispatch/pkg/clients/pushclient"
	"github.com/covershift/dispatch/pkg/core/services"
	"github.com/covershift/dispatch/pkg/locations"
	"github.com/covershift/dispatch/pkg/notify"
	"github.com/covershift/dispatch/pkg/postgres"
	"github.com/covershift/dispatch/pkg/utils/logging"
)

var (
	env        string
	configPath string
	app        *commands.AppContext
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Shift-continuity dispatcher - keep scheduled shifts staffed",
		Long:  `The dispatcher watches at-risk shifts, checks on assigned workers, recruits replacements and arbitrates concurrent acceptances.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.Logger != nil {
					app.Logger.Sync()
				}
				if app.Database != nil {
					app.Database.Close()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: dispatch_config.yaml)")
	rootCmd.MarkPersistentFlagRequired("env")

	app = &commands.AppContext{}
	rootCmd.AddCommand(commands.ScanCmd(app))
	rootCmd.AddCommand(commands.WatchCmd(app))
	rootCmd.AddCommand(commands.CheckCmd(app))
	rootCmd.AddCommand(commands.AcceptCmd(app))
	rootCmd.AddCommand(commands.FanoutCmd(app))
	rootCmd.AddCommand(commands.CandidatesCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, cache and notifier
func initApp() error {
	var err error
	app.Ctx = context.Background()

	// Local secrets; absent in deployed environments.
	godotenv.Load()

	app.Logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting dispatcher", zap.String("environment", env))

	if configPath != "" {
		app.Cfg, err = config.LoadFromPath(configPath)
	} else {
		app.Cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Database, err = postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := app.Database.RunMigrations(app.Ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// The candidate directory reads cache-fresh worker locations when
	// Redis is configured and degrades to durable positions otherwise.
	app.Workers = app.Database
	if app.Cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     app.Cfg.RedisAddr,
			Password: app.Cfg.RedisPassword,
		})
		app.Locations = locations.NewCache(client)
		app.Workers = &locations.Directory{Inner: app.Database, Cache: app.Locations, Logger: app.Logger}
	}

	app.Notifier = newNotifier()

	return nil
}

// newNotifier builds the FCM sender when push credentials are
// configured, and a log-only sender otherwise.
func newNotifier() services.Notifier {
	cfg := app.Cfg.Push
	if cfg.ProjectID == "" {
		app.Logger.Info("Push not configured, notifications will be logged only")
		return &notify.LogSender{Logger: app.Logger}
	}

	client, err := pushclient.NewClient(app.Ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		app.Logger.Warn("Push client unavailable, falling back to log-only notifications", zap.Error(err))
		return &notify.LogSender{Logger: app.Logger}
	}

	return notify.NewPushSender(client, app.Database, app.Logger)
}
