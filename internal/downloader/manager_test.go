package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/transfer"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeTransferrer records calls and answers from a per-URL script.
type fakeTransferrer struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	delay time.Duration
}

func (f *fakeTransferrer) Transfer(ctx context.Context, url, destPath string) (*transfer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	err := f.errs[url]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err != nil {
		return &transfer.Result{}, err
	}
	return &transfer.Result{BytesWritten: 100}, nil
}

func (f *fakeTransferrer) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func task(id int64, dir string) domain.DownloadTask {
	return domain.DownloadTask{
		AttachmentID:    id,
		AttachmentKind:  domain.KindVideo,
		AttachmentName:  fmt.Sprintf("video-%d.mp4", id),
		URL:             fmt.Sprintf("https://cdn/%d", id),
		DestinationPath: filepath.Join(dir, fmt.Sprintf("01_01_01_%d_video.mp4", id)),
		CourseID:        1,
		CourseName:      "Course",
		LectureID:       10,
		LectureName:     "Lecture",
	}
}

func newTestManager(ft *fakeTransferrer) *Manager {
	return NewManager(Config{
		RunID:   "run-test",
		Workers: 2,
		Logger:  testLogger(),
	}, ft)
}

func TestManagerRunsEachTaskOnce(t *testing.T) {
	ft := &fakeTransferrer{}
	m := newTestManager(ft)
	defer m.Stop()

	dir := t.TempDir()
	for i := int64(1); i <= 5; i++ {
		m.Add(task(i, dir))
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		if n := ft.callCount(fmt.Sprintf("https://cdn/%d", i)); n != 1 {
			t.Errorf("task %d transferred %d times, want 1", i, n)
		}
	}
	if m.CompletedWithFailures() {
		t.Error("unexpected failures")
	}
}

func TestManagerDeduplicatesAdds(t *testing.T) {
	ft := &fakeTransferrer{delay: 20 * time.Millisecond}
	m := newTestManager(ft)
	defer m.Stop()

	dir := t.TempDir()
	tk := task(7, dir)
	for i := 0; i < 10; i++ {
		m.Add(tk)
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if n := ft.callCount(tk.URL); n != 1 {
		t.Errorf("duplicate adds caused %d transfers, want 1", n)
	}
}

func TestManagerSkipsFailedTask(t *testing.T) {
	ft := &fakeTransferrer{errs: map[string]error{
		"https://cdn/1": errors.New("connection refused"),
	}}
	m := newTestManager(ft)
	defer m.Stop()

	dir := t.TempDir()
	m.Add(task(1, dir))
	if err := m.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !m.CompletedWithFailures() {
		t.Fatal("expected a recorded failure")
	}
	if m.Ledger().Len() != 1 {
		t.Fatalf("ledger entries = %d, want 1", m.Ledger().Len())
	}
	entry := m.Ledger().Entries()[0]
	if entry.AttachmentID != 1 || entry.Kind != domain.FailureNetwork {
		t.Errorf("entry = %+v", entry)
	}
}

func TestManagerToleratesLateAdds(t *testing.T) {
	ft := &fakeTransferrer{delay: 30 * time.Millisecond}
	m := newTestManager(ft)
	defer m.Stop()

	dir := t.TempDir()
	m.Add(task(1, dir))

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Add(task(2, dir))
		time.Sleep(10 * time.Millisecond)
		m.Add(task(3, dir))
	}()

	if err := m.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := int64(1); i <= 3; i++ {
		if n := ft.callCount(fmt.Sprintf("https://cdn/%d", i)); n != 1 {
			t.Errorf("task %d transferred %d times, want 1", i, n)
		}
	}
}

func TestManagerStopCancelsTransfers(t *testing.T) {
	ft := &fakeTransferrer{delay: 10 * time.Second}
	m := newTestManager(ft)

	dir := t.TempDir()
	m.Add(task(1, dir))

	time.Sleep(50 * time.Millisecond) // let the worker pick it up
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight transfer")
	}
}

func TestManagerThrottlesAfterCancellation(t *testing.T) {
	ft := &fakeTransferrer{errs: map[string]error{
		"https://cdn/1": context.Canceled,
	}}
	m := NewManager(Config{
		RunID:   "run-test",
		Workers: 3,
		Logger:  testLogger(),
	}, ft)
	defer m.Stop()

	dir := t.TempDir()
	m.Add(task(1, dir))
	if err := m.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := m.Snapshot()
	if snap.TransferLimit != 1 {
		t.Errorf("transfer limit = %d, want 1 after a cancelled transfer", snap.TransferLimit)
	}
	if snap.Failed != 1 {
		t.Errorf("failed = %d, want 1", snap.Failed)
	}
	entries := m.Ledger().Entries()
	if len(entries) != 1 || entries[0].Kind != domain.FailureCancelled {
		t.Errorf("ledger = %+v", entries)
	}
}

func TestManagerAddAfterStopIsNoop(t *testing.T) {
	ft := &fakeTransferrer{}
	m := newTestManager(ft)
	m.Stop()

	m.Add(task(1, t.TempDir()))
	if err := m.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ft.callCount("https://cdn/1") != 0 {
		t.Error("task ran after Stop")
	}
}

func TestLedgerSortsEntries(t *testing.T) {
	l := NewLedger()
	l.Add(domain.FailureEntry{CourseID: 2, AttachmentID: 5})
	l.Add(domain.FailureEntry{CourseID: 1, AttachmentID: 9})
	l.Add(domain.FailureEntry{CourseID: 1, AttachmentID: 3})

	got := l.Entries()
	want := []struct{ course, attachment int64 }{{1, 3}, {1, 9}, {2, 5}}
	for i, w := range want {
		if got[i].CourseID != w.course || got[i].AttachmentID != w.attachment {
			t.Errorf("entry %d = course %d attachment %d, want course %d attachment %d",
				i, got[i].CourseID, got[i].AttachmentID, w.course, w.attachment)
		}
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.FailureKind
	}{
		{"canceled", context.Canceled, domain.FailureCancelled},
		{"deadline", context.DeadlineExceeded, domain.FailureCancelled},
		{"missing url", transfer.ErrMissingURL, domain.FailureMissingURL},
		{"size", &transfer.SizeMismatchError{Expected: 2, Actual: 1}, domain.FailureSizeMismatch},
		{"http", &transfer.HTTPError{StatusCode: 403}, domain.FailureHTTP},
		{"other", errors.New("dial tcp: timeout"), domain.FailureNetwork},
		{"wrapped canceled", fmt.Errorf("data request: %w", context.Canceled), domain.FailureCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFailure(tt.err); got != tt.want {
				t.Errorf("classifyFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
