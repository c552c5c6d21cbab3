package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"teachable-dl/internal/config"
)

func newRootCommand() *cobra.Command {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "teachable-dl",
		Short:         "Download Teachable course content and reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newCoursesCommand(logger))
	rootCmd.AddCommand(newDownloadCommand(logger))
	rootCmd.AddCommand(newMirrorCommand(logger))

	return rootCmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if cfg.API.Key == "" {
		return cfg, fmt.Errorf("api key is required (set TEACHABLE_API_KEY)")
	}
	return cfg, nil
}
