package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/repository"
)

func newTestRepo(t *testing.T) repository.DownloadRecordRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewDownloadRecordRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return repo
}

func sampleRecord(runID string, attachmentID int64) *domain.DownloadRecord {
	return &domain.DownloadRecord{
		RunID:          runID,
		AttachmentID:   attachmentID,
		AttachmentKind: domain.KindVideo,
		AttachmentName: "intro.mp4",
		CourseID:       42,
		CourseName:     "Course",
		LectureID:      10,
		LectureName:    "Lecture",
		Status:         domain.DownloadStatusDownloading,
		DirectURL:      "https://cdn/intro.mp4",
		LocalPath:      "/tmp/intro.mp4",
	}
}

func TestUpsertAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, sampleRecord("run-1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(ctx, sampleRecord("run-1", 2)); err != nil {
		t.Fatal(err)
	}
	// a second start for the same attachment must not create a new row
	if err := repo.Upsert(ctx, sampleRecord("run-1", 1)); err != nil {
		t.Fatal(err)
	}
	// same attachment in a different run is a separate row
	if err := repo.Upsert(ctx, sampleRecord("run-2", 1)); err != nil {
		t.Fatal(err)
	}

	records, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].AttachmentID != 1 || records[1].AttachmentID != 2 {
		t.Errorf("records = %+v", records)
	}
	if records[0].Status != domain.DownloadStatusDownloading {
		t.Errorf("status = %s", records[0].Status)
	}
	if records[0].AttachmentKind != domain.KindVideo {
		t.Errorf("kind = %s", records[0].AttachmentKind)
	}
}

func TestUpdateStatusCompleted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, sampleRecord("run-1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, "run-1", 1, domain.DownloadStatusCompleted, "", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateBytes(ctx, "run-1", 1, 12345); err != nil {
		t.Fatal(err)
	}

	records, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	rec := records[0]
	if rec.Status != domain.DownloadStatusCompleted {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.BytesWritten != 12345 {
		t.Errorf("bytes = %d", rec.BytesWritten)
	}
	if rec.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestListFailedByRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := repo.Upsert(ctx, sampleRecord("run-1", i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.UpdateStatus(ctx, "run-1", 2, domain.DownloadStatusFailed, domain.FailureNetwork, "connection reset"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, "run-1", 3, domain.DownloadStatusCompleted, "", ""); err != nil {
		t.Fatal(err)
	}

	failed, err := repo.ListFailedByRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Fatalf("got %d failed records, want 1", len(failed))
	}
	if failed[0].AttachmentID != 2 {
		t.Errorf("failed attachment = %d", failed[0].AttachmentID)
	}
	if failed[0].FailureKind != domain.FailureNetwork {
		t.Errorf("failure kind = %s", failed[0].FailureKind)
	}
	if failed[0].ErrorMessage != "connection reset" {
		t.Errorf("error message = %q", failed[0].ErrorMessage)
	}
	if failed[0].CompletedAt != nil {
		t.Error("failed record must not carry completed_at")
	}
}

func TestUpdateMirrorLocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, sampleRecord("run-1", 1)); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateMirrorLocation(ctx, "run-1", 1, "s3://bucket/42 - Course/intro.mp4"); err != nil {
		t.Fatal(err)
	}

	records, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if records[0].MirrorLocation != "s3://bucket/42 - Course/intro.mp4" {
		t.Errorf("mirror location = %q", records[0].MirrorLocation)
	}
}
