package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"clipforge/config"
	"clipforge/jobs"
	"clipforge/media"
	"clipforge/task"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	cfg      *config.Config
	runner   *jobs.Runner
	registry *task.Registry
}

func NewHandler(cfg *config.Config, runner *jobs.Runner, registry *task.Registry) *Handler {
	return &Handler{
		cfg:      cfg,
		runner:   runner,
		registry: registry,
	}
}

// handleUpload stores one multipart file and reports its media kind.
// The stored name is prefixed with a fresh uuid so repeated uploads of
// the same filename never clobber each other.
func (h *Handler) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	if h.cfg.MaxUploadSize > 0 && file.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File exceeds the %d byte upload limit", h.cfg.MaxUploadSize),
		})
		return
	}

	kind, ok := media.KindForFilename(file.Filename)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported file type: %s", file.Filename)})
		return
	}

	stored := uuid.NewString() + "_" + media.SanitizeUploadName(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(h.cfg.UploadDir, stored)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":      stored,
		"type":          kind,
		"original_name": file.Filename,
	})
}

// handleProcess accepts a composition request and answers with the task
// id as soon as the job goroutine is spawned. Progress, completion and
// errors all arrive over the websocket, never on this response.
func (h *Handler) handleProcess(c *gin.Context) {
	var req jobs.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.runner.Submit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID, "total_steps": t.TotalSteps})
}

// handleListTasks lists every known task, live and finished.
func (h *Handler) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.List())
}

// handleGetTask retrieves one task snapshot.
func (h *Handler) handleGetTask(c *gin.Context) {
	t, found := h.registry.Get(c.Param("taskId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// handleDownload serves a finished output as an attachment.
func (h *Handler) handleDownload(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" || strings.HasPrefix(filename, ".") {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	path := filepath.Join(h.cfg.OutputDir, filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	c.FileAttachment(path, filename)
}

// handleListFiles lists the uploaded assets with their inferred kind.
func (h *Handler) handleListFiles(c *gin.Context) {
	entries, err := os.ReadDir(h.cfg.UploadDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload directory"})
		return
	}

	files := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		kind, ok := media.KindForFilename(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, gin.H{
			"filename": entry.Name(),
			"type":     kind,
			"size":     info.Size(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}
