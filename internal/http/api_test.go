package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"teachable-dl/internal/domain"
	"teachable-dl/internal/downloader"
	"teachable-dl/internal/repository/sqlite"
	"teachable-dl/internal/service"
	"teachable-dl/internal/transfer"
)

type noopTransferrer struct{}

func (noopTransferrer) Transfer(ctx context.Context, url, destPath string) (*transfer.Result, error) {
	return &transfer.Result{}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *downloader.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	manager := downloader.NewManager(downloader.Config{
		RunID:   "run-test",
		Workers: 1,
		Logger:  logger,
	}, noopTransferrer{})
	t.Cleanup(manager.Stop)

	router := gin.New()
	NewHandler(manager, nil, "run-test").RegisterRoutes(router)
	return router, manager
}

func TestHealthRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		RunID    string              `json:"run_id"`
		Snapshot downloader.Snapshot `json:"snapshot"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.RunID != "run-test" {
		t.Errorf("run_id = %q", body.RunID)
	}
	if body.Snapshot.TransferLimit < 1 {
		t.Errorf("snapshot = %+v", body.Snapshot)
	}
}

func TestFailuresRouteEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/failures", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d", body.Count)
	}
}

func TestFailedRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewDownloadRecordRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	records := service.NewRecordService(repo)

	tk := domain.DownloadTask{AttachmentID: 1, AttachmentName: "clip.mp4", CourseID: 42}
	if err := records.RecordStart(context.Background(), "run-test", tk); err != nil {
		t.Fatal(err)
	}
	if err := records.MarkFailed(context.Background(), "run-test", tk, domain.FailureNetwork, "connection reset"); err != nil {
		t.Fatal(err)
	}

	manager := downloader.NewManager(downloader.Config{
		RunID:   "run-test",
		Workers: 1,
		Logger:  logger,
	}, noopTransferrer{})
	t.Cleanup(manager.Stop)

	router := gin.New()
	NewHandler(manager, records, "run-test").RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records/failed", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Records []domain.DownloadRecord `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(body.Records))
	}
	if body.Records[0].AttachmentID != 1 || body.Records[0].FailureKind != domain.FailureNetwork {
		t.Errorf("record = %+v", body.Records[0])
	}
}

func TestRecordsRouteWithoutStore(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
