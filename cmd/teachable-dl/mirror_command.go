package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"teachable-dl/internal/config"
)

// newMirrorCommand uploads an already-downloaded course directory to object
// storage in one pass, for archives produced before mirroring was enabled.
func newMirrorCommand(logger *logrus.Logger) *cobra.Command {
	var keyPrefix string

	cmd := &cobra.Command{
		Use:   "mirror <directory>",
		Short: "Upload a downloaded course directory to object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage.Bucket == "" {
				return fmt.Errorf("storage bucket is required (set TEACHABLE_STORAGE_BUCKET)")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mirror, opts, err := buildMirror(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if keyPrefix != "" {
				opts.KeyPrefix = keyPrefix
			}
			opts.ProgressCallback = func(done, total int64) {
				logger.WithFields(logrus.Fields{
					"done":  done,
					"total": total,
				}).Debug("upload progress")
			}

			location, err := mirror.UploadDirectory(ctx, args[0], opts)
			if err != nil {
				return err
			}
			logger.WithField("location", location).Info("directory mirrored")
			return nil
		},
	}

	cmd.Flags().StringVar(&keyPrefix, "key-prefix", "", "Object key prefix (defaults to the configured storage prefix)")
	return cmd
}
