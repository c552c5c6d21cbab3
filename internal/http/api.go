// Package http serves a read-only view of a running download session so
// long runs can be watched from a browser or curl.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teachable-dl/internal/downloader"
	"teachable-dl/internal/service"
)

// Handler wires status routes to the download manager.
type Handler struct {
	manager *downloader.Manager
	records service.RecordService
	runID   string
}

func NewHandler(manager *downloader.Manager, records service.RecordService, runID string) *Handler {
	return &Handler{
		manager: manager,
		records: records,
		runID:   runID,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/status", h.status)
		api.GET("/failures", h.failures)
		api.GET("/records", h.runRecords)
		api.GET("/records/failed", h.failedRecords)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}

func (h *Handler) status(ctx *gin.Context) {
	snapshot := h.manager.Snapshot()
	ctx.JSON(http.StatusOK, gin.H{
		"run_id":   h.runID,
		"snapshot": snapshot,
	})
}

func (h *Handler) failures(ctx *gin.Context) {
	entries := h.manager.Ledger().Entries()
	ctx.JSON(http.StatusOK, gin.H{
		"count":    len(entries),
		"failures": entries,
	})
}

func (h *Handler) runRecords(ctx *gin.Context) {
	if h.records == nil {
		ctx.JSON(http.StatusOK, gin.H{"records": []any{}})
		return
	}
	records, err := h.records.RunRecords(ctx.Request.Context(), h.runID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"records": records})
}

// failedRecords serves the persisted failures only, the rows a follow-up run
// or a human retry would act on.
func (h *Handler) failedRecords(ctx *gin.Context) {
	if h.records == nil {
		ctx.JSON(http.StatusOK, gin.H{"records": []any{}})
		return
	}
	records, err := h.records.RunFailures(ctx.Request.Context(), h.runID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"records": records})
}
