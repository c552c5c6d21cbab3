package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"teachable-dl/internal/report"
)

func newCoursesCommand(logger *logrus.Logger) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Fetch the full course list and save it as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := newAPIClient(cfg, logger)
			courses, err := client.ListCourses(ctx)
			if err != nil {
				return err
			}

			path := filepath.Join(output, "all_courses_data.csv")
			if err := report.WriteCourseListCSV(path, courses); err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"courses": len(courses),
				"path":    path,
			}).Info("course list saved")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory for the course list CSV")
	return cmd
}
