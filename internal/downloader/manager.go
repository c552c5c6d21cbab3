// Package downloader coordinates many simultaneous attachment transfers: a
// FIFO task queue consumed by a bounded worker pool, at-most-once dispatch
// per attachment id, a failure ledger, and an adaptive concurrency policy
// that throttles after interruptions.
package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/naming"
	"teachable-dl/internal/service"
	"teachable-dl/internal/storage"
	"teachable-dl/internal/teachable"
	"teachable-dl/internal/transfer"
)

// Transferrer downloads one URL to one destination path.
type Transferrer interface {
	Transfer(ctx context.Context, url, destPath string) (*transfer.Result, error)
}

// Config configures the manager. Records and Mirror are optional
// collaborators; a nil value disables them.
type Config struct {
	RunID        string
	Workers      int
	RestoreAfter int
	AdminDomain  string
	WaitWarnTime time.Duration
	Records      service.RecordService
	Mirror       storage.Service
	MirrorOpts   storage.UploadOptions
	Logger       *logrus.Logger
}

// Manager owns the download queue and worker pool. Workers start lazily on
// the first Add; Wait blocks until the queue drains and no transfer is
// active, tolerating tasks added while it waits.
type Manager struct {
	cfg        Config
	transferer Transferrer
	limiter    *adaptiveLimiter
	ledger     *Ledger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []domain.DownloadTask
	enqueued  map[int64]struct{}
	completed map[int64]struct{}
	failed    map[int64]struct{}
	active    map[int64]struct{}
	busy      int
	started   bool
	stopped   bool
}

func NewManager(cfg Config, transferer Transferrer) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.WaitWarnTime == 0 {
		cfg.WaitWarnTime = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		transferer: transferer,
		limiter:    newAdaptiveLimiter(cfg.Workers, cfg.RestoreAfter),
		ledger:     NewLedger(),
		ctx:        ctx,
		cancel:     cancel,
		enqueued:   make(map[int64]struct{}),
		completed:  make(map[int64]struct{}),
		failed:     make(map[int64]struct{}),
		active:     make(map[int64]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Add enqueues a task. Adding the same attachment id twice is a no-op;
// workers are started on the first call.
func (m *Manager) Add(task domain.DownloadTask) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if _, ok := m.enqueued[task.AttachmentID]; ok {
		return
	}
	m.enqueued[task.AttachmentID] = struct{}{}
	m.queue = append(m.queue, task)

	if !m.started {
		m.started = true
		for i := 0; i < m.cfg.Workers; i++ {
			m.wg.Add(1)
			go m.worker(i)
		}
	}
	m.cond.Signal()
}

// Wait blocks until the queue is empty and no transfer is active. New tasks
// may arrive while waiting; it keeps re-checking until both are empty at
// the same time. A long stall is logged as a warning, never treated as done.
func (m *Manager) Wait(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	lastWarn := time.Now()

	for {
		m.mu.Lock()
		idle := len(m.queue) == 0 && m.busy == 0
		m.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(lastWarn) >= m.cfg.WaitWarnTime {
				lastWarn = time.Now()
				queued, active := m.queueStats()
				m.cfg.Logger.WithFields(logrus.Fields{
					"queued": queued,
					"active": active,
				}).Warn("still waiting for downloads to finish")
			}
		}
	}
}

// Stop cancels in-flight transfers and future dequeues, then waits for the
// workers to exit. Transfers are cancelled cooperatively so staging files
// stay consistent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	m.cond.Broadcast()
	m.wg.Wait()
}

// Ledger exposes the run's failure ledger.
func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// CompletedWithFailures reports whether any task failed permanently this run.
func (m *Manager) CompletedWithFailures() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failed) > 0
}

// Snapshot is a point-in-time view of the manager for the status API.
type Snapshot struct {
	Queued        int     `json:"queued"`
	Active        int     `json:"active"`
	Completed     int     `json:"completed"`
	Failed        int     `json:"failed"`
	TransferLimit int     `json:"transfer_limit"`
	ActiveTaskIDs []int64 `json:"active_task_ids"`
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return Snapshot{
		Queued:        len(m.queue),
		Active:        len(m.active),
		Completed:     len(m.completed),
		Failed:        len(m.failed),
		TransferLimit: m.limiter.Limit(),
		ActiveTaskIDs: ids,
	}
}

func (m *Manager) queueStats() (queued, active int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), len(m.active)
}

func (m *Manager) worker(index int) {
	defer m.wg.Done()
	logger := m.cfg.Logger.WithField("worker", index)

	for {
		task, ok := m.take()
		if !ok {
			return
		}
		m.runTask(logger, task)

		m.mu.Lock()
		m.busy--
		m.mu.Unlock()
	}
}

// take dequeues the next runnable task, blocking while the queue is empty.
// Returns false once the manager is stopped.
func (m *Manager) take() (domain.DownloadTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		for len(m.queue) == 0 && !m.stopped {
			m.cond.Wait()
		}
		if m.stopped {
			return domain.DownloadTask{}, false
		}

		task := m.queue[0]
		m.queue = m.queue[1:]

		// the enqueued set guarantees each id entered the queue once, so a
		// dequeued task can only be in a terminal set, never active
		if _, done := m.completed[task.AttachmentID]; done {
			continue
		}
		if _, bad := m.failed[task.AttachmentID]; bad {
			continue
		}

		m.active[task.AttachmentID] = struct{}{}
		m.busy++
		return task, true
	}
}

func (m *Manager) runTask(logger *logrus.Entry, task domain.DownloadTask) {
	defer func() {
		m.mu.Lock()
		delete(m.active, task.AttachmentID)
		m.mu.Unlock()
	}()

	logger = logger.WithFields(logrus.Fields{
		"attachment_id": task.AttachmentID,
		"course_id":     task.CourseID,
	})

	if m.cfg.Records != nil {
		if err := m.cfg.Records.RecordStart(m.ctx, m.cfg.RunID, task); err != nil {
			logger.Warnf("persist task start: %v", err)
		}
	}

	// an earlier run may have left this attachment under an outdated name
	dir := filepath.Dir(task.DestinationPath)
	if old, err := naming.RenameForAttachment(dir, filepath.Base(task.DestinationPath), task.AttachmentID); err != nil {
		logger.Warnf("rename stale file: %v", err)
	} else if old != "" {
		logger.WithField("from", filepath.Base(old)).Info("renamed existing file to current layout")
	}

	if err := m.limiter.Acquire(m.ctx); err != nil {
		m.recordFailure(logger, task, nil, err)
		return
	}
	result, err := m.transferer.Transfer(m.ctx, task.URL, task.DestinationPath)
	m.limiter.Release()

	if err != nil {
		m.recordFailure(logger, task, result, err)
		return
	}

	m.mu.Lock()
	m.completed[task.AttachmentID] = struct{}{}
	m.mu.Unlock()
	m.limiter.OnSuccess()

	if result.Skipped {
		logger.Debug("already downloaded")
	} else {
		logger.WithField("bytes", result.BytesWritten).Info("download completed")
	}

	if m.cfg.Records != nil {
		if err := m.cfg.Records.MarkCompleted(m.ctx, m.cfg.RunID, task, result.BytesWritten, result.Skipped); err != nil {
			logger.Warnf("persist completion: %v", err)
		}
	}

	m.mirror(logger, task)
}

func (m *Manager) recordFailure(logger *logrus.Entry, task domain.DownloadTask, result *transfer.Result, err error) {
	kind := classifyFailure(err)

	// a cancelled transfer keeps its staging file and becomes retryable on
	// the next run; within this run it is terminal either way
	m.mu.Lock()
	m.failed[task.AttachmentID] = struct{}{}
	m.mu.Unlock()

	if kind == domain.FailureCancelled {
		m.limiter.OnCancelled()
		logger.Warn("transfer cancelled, staging file preserved")
	} else {
		logger.Errorf("transfer failed (%s): %v", kind, err)
	}

	entry := domain.FailureEntry{
		AttachmentID: task.AttachmentID,
		CourseID:     task.CourseID,
		CourseName:   task.CourseName,
		SectionName:  task.SectionName,
		LectureID:    task.LectureID,
		LectureName:  task.LectureName,
		Kind:         kind,
		Detail:       err.Error(),
		DirectURL:    task.URL,
		AdminURL:     teachable.AdminLectureURL(m.cfg.AdminDomain, task.CourseID, task.LectureID),
	}
	if result != nil {
		entry.ExpectedSize = result.ExpectedSize
		entry.ActualSize = result.BytesWritten
	}
	m.ledger.Add(entry)

	if m.cfg.Records != nil {
		if err := m.cfg.Records.MarkFailed(m.ctx, m.cfg.RunID, task, kind, err.Error()); err != nil {
			logger.Warnf("persist failure: %v", err)
		}
	}
}

// mirror uploads a completed file to remote object storage when a mirror is
// configured. Mirror failures never fail the task; the local copy is the
// source of truth.
func (m *Manager) mirror(logger *logrus.Entry, task domain.DownloadTask) {
	if m.cfg.Mirror == nil {
		return
	}

	opts := m.cfg.MirrorOpts
	opts.KeyPrefix = storage.JoinKey(opts.KeyPrefix, naming.CourseDirName(task.CourseID, task.CourseName))
	location, err := m.cfg.Mirror.UploadFile(m.ctx, task.DestinationPath, opts)
	if err != nil {
		logger.Warnf("mirror upload: %v", err)
		return
	}
	logger.WithField("location", location).Debug("mirrored to object storage")

	if m.cfg.Records != nil {
		if err := m.cfg.Records.MarkMirrored(m.ctx, m.cfg.RunID, task.AttachmentID, location); err != nil {
			logger.Warnf("persist mirror location: %v", err)
		}
	}
}

func classifyFailure(err error) domain.FailureKind {
	var httpErr *transfer.HTTPError
	var sizeErr *transfer.SizeMismatchError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.FailureCancelled
	case errors.Is(err, transfer.ErrMissingURL):
		return domain.FailureMissingURL
	case errors.As(err, &sizeErr):
		return domain.FailureSizeMismatch
	case errors.As(err, &httpErr):
		return domain.FailureHTTP
	default:
		return domain.FailureNetwork
	}
}
