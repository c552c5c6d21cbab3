package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"teachable-dl/internal/config"
	"teachable-dl/internal/domain"
	"teachable-dl/internal/downloader"
	apphttp "teachable-dl/internal/http"
	"teachable-dl/internal/pipeline"
	"teachable-dl/internal/report"
	"teachable-dl/internal/repository/sqlite"
	"teachable-dl/internal/retry"
	"teachable-dl/internal/service"
	"teachable-dl/internal/transfer"
)

func newDownloadCommand(logger *logrus.Logger) *cobra.Command {
	var (
		output     string
		moduleID   int64
		lectureID  int64
		types      []string
		statusAddr string
	)

	cmd := &cobra.Command{
		Use:   "download <course-id>...",
		Short: "Download course attachments and write per-course reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseIDs := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid course id %q", arg)
				}
				courseIDs = append(courseIDs, id)
			}

			kinds, err := parseTypes(types)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Download.OutputDir = output
			}
			if statusAddr != "" {
				cfg.Status.Addr = statusAddr
			}

			return runDownload(logger, cfg, courseIDs, moduleID, lectureID, kinds)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory to save course data")
	cmd.Flags().Int64Var(&moduleID, "module-id", 0, "Only process this section (module) id")
	cmd.Flags().Int64Var(&lectureID, "lecture-id", 0, "Only process this lecture id")
	cmd.Flags().StringSliceVarP(&types, "types", "t", nil,
		"Attachment types to download (pdf, file, image, video, audio); default all")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Serve a read-only status API on this address")
	return cmd
}

func runDownload(logger *logrus.Logger, cfg config.Config, courseIDs []int64, moduleID, lectureID int64, kinds map[domain.AttachmentKind]bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger.WithField("run_id", runID).Info("starting download run")

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	recordRepo := sqlite.NewDownloadRecordRepository(db)
	if err := recordRepo.Init(ctx); err != nil {
		return fmt.Errorf("init download records: %w", err)
	}
	records := service.NewRecordService(recordRepo)

	client := newAPIClient(cfg, logger)

	transferrer := transfer.New(transfer.Config{
		SmallFileThreshold: cfg.Download.SmallFileThreshold,
		ResumeMargin:       cfg.Download.ResumeMargin,
		ChunkSize:          cfg.Download.ChunkSize,
		ProgressInterval:   cfg.Download.ProgressInterval,
		ConnectTimeout:     cfg.Download.ConnectTimeout,
		Timeout:            cfg.Download.TransferTimeout,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Download.MaxRetries,
			InitialDelay: cfg.Download.InitialDelay,
			Factor:       cfg.Download.BackoffFactor,
		},
		Logger: logger,
	})

	mirror, mirrorOpts, err := buildMirror(ctx, cfg, logger)
	if err != nil {
		return err
	}

	manager := downloader.NewManager(downloader.Config{
		RunID:        runID,
		Workers:      cfg.Download.MaxConcurrent,
		RestoreAfter: cfg.Download.RestoreAfter,
		AdminDomain:  cfg.API.AdminDomain,
		Records:      records,
		Mirror:       mirror,
		MirrorOpts:   mirrorOpts,
		Logger:       logger,
	}, transferrer)
	defer manager.Stop()

	var statusSrv *http.Server
	if cfg.Status.Addr != "" {
		statusSrv = startStatusServer(cfg.Status.Addr, manager, records, runID, logger)
		defer shutdownStatusServer(statusSrv, logger)
	}

	pipe := pipeline.New(pipeline.Config{
		OutputDir: cfg.Download.OutputDir,
		Types:     kinds,
		ModuleID:  moduleID,
		LectureID: lectureID,
		Logger:    logger,
	}, client, manager)

	for _, courseID := range courseIDs {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := pipe.ProcessCourse(ctx, courseID); err != nil {
			logger.WithField("course_id", courseID).Errorf("process course: %v", err)
		}
	}

	if err := manager.Wait(ctx); err != nil {
		logger.Warn("interrupted, cancelling in-flight transfers")
	}
	manager.Stop()

	report.RenderFailureSummary(os.Stdout, manager.Ledger().Entries())
	if manager.CompletedWithFailures() {
		return fmt.Errorf("run %s completed with failures", runID)
	}
	logger.WithField("run_id", runID).Info("run completed")
	return nil
}

func parseTypes(types []string) (map[domain.AttachmentKind]bool, error) {
	if len(types) == 0 {
		return nil, nil // no filter: every downloadable kind
	}

	kinds := make(map[domain.AttachmentKind]bool, len(types))
	for _, t := range types {
		switch t {
		case "pdf", "pdf_embed":
			kinds[domain.KindPDFEmbed] = true
		case "file":
			kinds[domain.KindFile] = true
		case "image":
			kinds[domain.KindImage] = true
		case "video":
			kinds[domain.KindVideo] = true
		case "audio":
			kinds[domain.KindAudio] = true
		default:
			return nil, fmt.Errorf("unknown attachment type %q", t)
		}
	}
	return kinds, nil
}

func startStatusServer(addr string, manager *downloader.Manager, records service.RecordService, runID string, logger *logrus.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(manager, records, runID).RegisterRoutes(router)

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		logger.WithField("addr", addr).Info("status API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("status server: %v", err)
		}
	}()
	return srv
}

func shutdownStatusServer(srv *http.Server, logger *logrus.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("status server shutdown: %v", err)
	}
}
