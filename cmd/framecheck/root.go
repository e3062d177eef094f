package main

import (
	"fmt"

	"framecheck/internal/app"
	"framecheck/internal/config"
	"framecheck/internal/logger"

	"github.com/spf13/cobra"
)

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "framecheck",
		Short: "Run a video through an object detector and verify the per-frame detections",
		Long: `framecheck writes per-frame detection records and annotated images for a video,
then checks every record file against expected per-class counts.

Settings come from defaults, .env, the environment, framecheck.yaml and flags,
in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("classes", "", "Class file with one label per line (default: built-in plate classes)")
	flags.String("ext", "", "Record file extension (default .txt)")
	flags.String("db", "", "Report history database (default ./data/framecheck.db)")
	flags.String("log-dir", "", "Log directory (default ./logs)")
	flags.Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		processCommand(),
		verifyCommand(),
		historyCommand(),
		serveCommand(),
	)
	return rootCmd
}

// environment is what every command starts from.
type environment struct {
	cfg    *config.Config
	logger *logger.Logger
	app    *app.App
}

func (e *environment) Close() {
	if err := e.app.Close(); err != nil {
		e.logger.Warning("Failed to close database: %v", err)
	}
	e.logger.Close()
}

func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.LogDirectory, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := app.NewApp(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	return &environment{cfg: cfg, logger: log, app: a}, nil
}
