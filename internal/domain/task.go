package domain

import "time"

type DownloadStatus string

const (
	DownloadStatusPending     DownloadStatus = "pending"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusSkipped     DownloadStatus = "skipped"
	DownloadStatusFailed      DownloadStatus = "failed"
)

// FailureKind classifies a terminal transfer failure for the run ledger.
type FailureKind string

const (
	FailureNetwork      FailureKind = "network"
	FailureRateLimited  FailureKind = "rate_limited"
	FailureHTTP         FailureKind = "http"
	FailureSizeMismatch FailureKind = "size_mismatch"
	FailureCancelled    FailureKind = "cancelled"
	FailureMissingURL   FailureKind = "missing_url"
)

// DownloadTask is the unit of work consumed by the download manager.
// It is immutable once enqueued.
type DownloadTask struct {
	AttachmentID       int64
	AttachmentKind     AttachmentKind
	AttachmentName     string
	URL                string
	DestinationPath    string
	CourseID           int64
	CourseName         string
	SectionID          int64
	SectionName        string
	SectionPosition    int
	LectureID          int64
	LectureName        string
	LecturePosition    int
	AttachmentPosition int
	ExpectedSize       int64
}

// FailureEntry is one row of the run ledger: a permanently failed task with
// enough context for a human to finish the download by hand.
type FailureEntry struct {
	AttachmentID int64
	CourseID     int64
	CourseName   string
	SectionName  string
	LectureID    int64
	LectureName  string
	Kind         FailureKind
	Detail       string
	DirectURL    string
	AdminURL     string
	ExpectedSize int64
	ActualSize   int64
}

// DownloadRecord is the persisted outcome of one attachment in one run.
type DownloadRecord struct {
	ID             int64
	RunID          string
	AttachmentID   int64
	AttachmentKind AttachmentKind
	AttachmentName string
	CourseID       int64
	CourseName     string
	LectureID      int64
	LectureName    string
	Status         DownloadStatus
	BytesWritten   int64
	ExpectedSize   int64
	FailureKind    FailureKind
	ErrorMessage   string
	DirectURL      string
	AdminURL       string
	LocalPath      string
	MirrorLocation string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}
