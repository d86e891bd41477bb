package main

import (
	"fmt"
	"os"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-elements/cmd"
	"github.com/mattsolo1/grove-elements/cmd/config"
	"github.com/mattsolo1/grove-elements/pkg/service"
)

var (
	svc    *service.Service
	logger *logrus.Logger
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"el",
		"Organize items into nested folders shared between clients",
	)
	config.AddGlobalFlags(rootCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// This runs once before any subcommand
		config.InitConfig()
		settings := config.Load()
		logger = config.NewLogger(settings.LogLevel)

		var err error
		svc, err = config.InitService(settings, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize service: %w", err)
		}
		return nil
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewServeCmd(&logger))
	rootCmd.AddCommand(cmd.NewTreeCmd(&svc))
	rootCmd.AddCommand(cmd.NewExportCmd(&svc))
	rootCmd.AddCommand(cmd.NewAddItemCmd(&svc))
	rootCmd.AddCommand(cmd.NewAddFolderCmd(&svc))
	rootCmd.AddCommand(cmd.NewMoveCmd(&svc))
	rootCmd.AddCommand(cmd.NewDropCmd(&svc))
	rootCmd.AddCommand(cmd.NewToggleCmd(&svc))
	rootCmd.AddCommand(cmd.NewWatchCmd(&svc, &logger))
	rootCmd.AddCommand(cmd.NewTuiCmd(&svc, &logger))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
