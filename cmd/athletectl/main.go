// Command athletectl is the operator CLI for the athlete testing store.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	app "github.com/wintality/athlete-testing/internal/app"
	"github.com/wintality/athlete-testing/internal/config"
	"github.com/wintality/athlete-testing/pkg/logger"
)

var (
	verbose bool

	// svc is opened before every subcommand and stopped after it.
	svc *app.Service

	// openService builds the service from the shared configuration.
	openService = func(ctx context.Context) (*app.Service, error) {
		cfg, err := config.Load(ctx)
		if err != nil {
			return nil, err
		}
		if err := logger.SetFormat(cfg.LogFormat); err != nil {
			return nil, err
		}
		level := cfg.LogLevel
		if !verbose {
			level = "warn"
		}
		if err := logger.SetLevelString(level); err != nil {
			return nil, err
		}
		return app.Open(ctx, cfg, logger.Named("athletectl"))
	}
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "athletectl",
	Short: "Operate the athlete testing store",
	Long: `athletectl seeds, lists, aggregates and exports testing sessions.

It reads the same configuration as the server: an optional YAML file named
by ATHLETE_CONFIG, then ATHLETE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.Start(cmd.Context()); err != nil {
			return err
		}
		svc = s
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if svc != nil {
			svc.Stop()
			svc = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warn")

	seedCmd.Flags().StringVar(&seedID, "id", defaultSeedID, "Session id to seed")
	seedCmd.Flags().StringVar(&seedName, "name", defaultSeedName, "Session name")
	seedCmd.Flags().StringSliceVar(&seedAthletes, "athletes", defaultSeedAthletes, "Athlete ids on the roster")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default session-<id>.xlsx)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
