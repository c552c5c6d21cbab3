package service

import (
	"context"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/repository"
)

// RecordService mediates between the download manager and the persistence
// layer, translating task outcomes into download records.
type RecordService interface {
	RecordStart(ctx context.Context, runID string, task domain.DownloadTask) error
	MarkCompleted(ctx context.Context, runID string, task domain.DownloadTask, bytesWritten int64, skipped bool) error
	MarkFailed(ctx context.Context, runID string, task domain.DownloadTask, kind domain.FailureKind, errorMessage string) error
	MarkMirrored(ctx context.Context, runID string, attachmentID int64, location string) error
	RunRecords(ctx context.Context, runID string) ([]domain.DownloadRecord, error)
	RunFailures(ctx context.Context, runID string) ([]domain.DownloadRecord, error)
}

type recordService struct {
	records repository.DownloadRecordRepository
}

func NewRecordService(records repository.DownloadRecordRepository) RecordService {
	return &recordService{records: records}
}

func (s *recordService) RecordStart(ctx context.Context, runID string, task domain.DownloadTask) error {
	return s.records.Upsert(ctx, &domain.DownloadRecord{
		RunID:          runID,
		AttachmentID:   task.AttachmentID,
		AttachmentKind: task.AttachmentKind,
		AttachmentName: task.AttachmentName,
		CourseID:       task.CourseID,
		CourseName:     task.CourseName,
		LectureID:      task.LectureID,
		LectureName:    task.LectureName,
		Status:         domain.DownloadStatusDownloading,
		ExpectedSize:   task.ExpectedSize,
		DirectURL:      task.URL,
		LocalPath:      task.DestinationPath,
	})
}

func (s *recordService) MarkCompleted(ctx context.Context, runID string, task domain.DownloadTask, bytesWritten int64, skipped bool) error {
	status := domain.DownloadStatusCompleted
	if skipped {
		status = domain.DownloadStatusSkipped
	}
	if err := s.records.UpdateBytes(ctx, runID, task.AttachmentID, bytesWritten); err != nil {
		return err
	}
	return s.records.UpdateStatus(ctx, runID, task.AttachmentID, status, "", "")
}

func (s *recordService) MarkFailed(ctx context.Context, runID string, task domain.DownloadTask, kind domain.FailureKind, errorMessage string) error {
	return s.records.UpdateStatus(ctx, runID, task.AttachmentID, domain.DownloadStatusFailed, kind, errorMessage)
}

func (s *recordService) MarkMirrored(ctx context.Context, runID string, attachmentID int64, location string) error {
	return s.records.UpdateMirrorLocation(ctx, runID, attachmentID, location)
}

func (s *recordService) RunRecords(ctx context.Context, runID string) ([]domain.DownloadRecord, error) {
	return s.records.ListByRun(ctx, runID)
}

func (s *recordService) RunFailures(ctx context.Context, runID string) ([]domain.DownloadRecord, error) {
	return s.records.ListFailedByRun(ctx, runID)
}
