package api

import (
	"clipforge/config"
	"clipforge/jobs"
	"clipforge/task"
	"clipforge/ws"

	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg *config.Config, runner *jobs.Runner, registry *task.Registry, hub *ws.Hub) *gin.Engine {
	r := gin.Default()
	if cfg.MaxUploadSize > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadSize
	}
	h := NewHandler(cfg, runner, registry)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// The websocket carries its own message-level protocol and stays
	// outside the bearer-auth group so browser clients can connect
	// without custom headers.
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/upload", h.handleUpload)
		v1.POST("/process", h.handleProcess)

		v1.GET("/tasks", h.handleListTasks)
		v1.GET("/tasks/:taskId", h.handleGetTask)

		v1.GET("/files", h.handleListFiles)
		v1.GET("/download/:filename", h.handleDownload)
	}
	return r
}
