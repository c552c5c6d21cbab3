package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/repository"
)

const createDownloadsTable = `
CREATE TABLE IF NOT EXISTS downloads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	attachment_id INTEGER NOT NULL,
	attachment_kind TEXT NOT NULL DEFAULT '',
	attachment_name TEXT NOT NULL DEFAULT '',
	course_id INTEGER NOT NULL DEFAULT 0,
	course_name TEXT NOT NULL DEFAULT '',
	lecture_id INTEGER NOT NULL DEFAULT 0,
	lecture_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	bytes_written INTEGER NOT NULL DEFAULT 0,
	expected_size INTEGER NOT NULL DEFAULT 0,
	failure_kind TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	direct_url TEXT NOT NULL DEFAULT '',
	admin_url TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL DEFAULT '',
	mirror_location TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME NULL,
	UNIQUE (run_id, attachment_id)
);
`

// DownloadRecordRepository persists per-run attachment outcomes.
type DownloadRecordRepository struct {
	db *sql.DB
}

func NewDownloadRecordRepository(db *sql.DB) repository.DownloadRecordRepository {
	return &DownloadRecordRepository{db: db}
}

func (r *DownloadRecordRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createDownloadsTable); err != nil {
		return fmt.Errorf("create downloads table: %w", err)
	}
	return nil
}

func (r *DownloadRecordRepository) Upsert(ctx context.Context, record *domain.DownloadRecord) error {
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO downloads (run_id, attachment_id, attachment_kind, attachment_name, course_id, course_name, lecture_id, lecture_name, status, bytes_written, expected_size, failure_kind, error_message, direct_url, admin_url, local_path, mirror_location, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id, attachment_id) DO UPDATE SET
	status=excluded.status,
	updated_at=excluded.updated_at`,
		record.RunID,
		record.AttachmentID,
		string(record.AttachmentKind),
		record.AttachmentName,
		record.CourseID,
		record.CourseName,
		record.LectureID,
		record.LectureName,
		string(record.Status),
		record.BytesWritten,
		record.ExpectedSize,
		string(record.FailureKind),
		record.ErrorMessage,
		record.DirectURL,
		record.AdminURL,
		record.LocalPath,
		record.MirrorLocation,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert download record: %w", err)
	}
	return nil
}

func (r *DownloadRecordRepository) UpdateStatus(ctx context.Context, runID string, attachmentID int64, status domain.DownloadStatus, failureKind domain.FailureKind, errorMessage string) error {
	now := time.Now().UTC()
	var completedAt any
	if status == domain.DownloadStatusCompleted || status == domain.DownloadStatusSkipped {
		completedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE downloads
SET status=?, failure_kind=?, error_message=?, completed_at=?, updated_at=?
WHERE run_id=? AND attachment_id=?`,
		string(status),
		string(failureKind),
		errorMessage,
		completedAt,
		now,
		runID,
		attachmentID,
	)
	if err != nil {
		return fmt.Errorf("update download status: %w", err)
	}
	return nil
}

func (r *DownloadRecordRepository) UpdateBytes(ctx context.Context, runID string, attachmentID int64, bytesWritten int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE downloads
SET bytes_written=?, updated_at=?
WHERE run_id=? AND attachment_id=?`,
		bytesWritten,
		time.Now().UTC(),
		runID,
		attachmentID,
	)
	if err != nil {
		return fmt.Errorf("update download bytes: %w", err)
	}
	return nil
}

func (r *DownloadRecordRepository) UpdateMirrorLocation(ctx context.Context, runID string, attachmentID int64, location string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE downloads
SET mirror_location=?, updated_at=?
WHERE run_id=? AND attachment_id=?`,
		location,
		time.Now().UTC(),
		runID,
		attachmentID,
	)
	if err != nil {
		return fmt.Errorf("update mirror location: %w", err)
	}
	return nil
}

func (r *DownloadRecordRepository) ListByRun(ctx context.Context, runID string) ([]domain.DownloadRecord, error) {
	return r.list(ctx, `WHERE run_id=?`, runID)
}

func (r *DownloadRecordRepository) ListFailedByRun(ctx context.Context, runID string) ([]domain.DownloadRecord, error) {
	return r.list(ctx, `WHERE run_id=? AND status=?`, runID, string(domain.DownloadStatusFailed))
}

func (r *DownloadRecordRepository) list(ctx context.Context, where string, args ...any) ([]domain.DownloadRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, run_id, attachment_id, attachment_kind, attachment_name, course_id, course_name, lecture_id, lecture_name, status, bytes_written, expected_size, failure_kind, error_message, direct_url, admin_url, local_path, mirror_location, created_at, updated_at, completed_at
FROM downloads `+where+` ORDER BY course_id, attachment_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	var records []domain.DownloadRecord
	for rows.Next() {
		var rec domain.DownloadRecord
		var status, kind, failureKind string
		var completedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.AttachmentID,
			&kind,
			&rec.AttachmentName,
			&rec.CourseID,
			&rec.CourseName,
			&rec.LectureID,
			&rec.LectureName,
			&status,
			&rec.BytesWritten,
			&rec.ExpectedSize,
			&failureKind,
			&rec.ErrorMessage,
			&rec.DirectURL,
			&rec.AdminURL,
			&rec.LocalPath,
			&rec.MirrorLocation,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan download record: %w", err)
		}
		rec.Status = domain.DownloadStatus(status)
		rec.AttachmentKind = domain.AttachmentKind(kind)
		rec.FailureKind = domain.FailureKind(failureKind)
		if completedAt.Valid {
			t := completedAt.Time
			rec.CompletedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	return records, nil
}
