package repository

import (
	"context"

	"teachable-dl/internal/domain"
)

// DownloadRecordRepository exposes persistence for per-run download outcomes.
type DownloadRecordRepository interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, record *domain.DownloadRecord) error
	UpdateStatus(ctx context.Context, runID string, attachmentID int64, status domain.DownloadStatus, failureKind domain.FailureKind, errorMessage string) error
	UpdateBytes(ctx context.Context, runID string, attachmentID int64, bytesWritten int64) error
	UpdateMirrorLocation(ctx context.Context, runID string, attachmentID int64, location string) error
	ListByRun(ctx context.Context, runID string) ([]domain.DownloadRecord, error)
	ListFailedByRun(ctx context.Context, runID string) ([]domain.DownloadRecord, error)
}
