// Package server exposes the download orchestrator over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/olastephen/video-audio-downloader/config"
	"github.com/olastephen/video-audio-downloader/internal/provider"
	"github.com/olastephen/video-audio-downloader/internal/scheduler"
	"github.com/olastephen/video-audio-downloader/internal/storage"
)

// Prober serves metadata lookups without downloading.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (*provider.MediaInfo, error)
}

// Server handles HTTP requests for the download orchestrator.
type Server struct {
	cfg    *config.Config
	router *gin.Engine

	sched  *scheduler.Scheduler
	store  storage.Storage
	prober Prober
}

// New creates the HTTP server and wires its routes.
func New(cfg *config.Config, sched *scheduler.Scheduler, store storage.Storage, prober Prober) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		router: gin.New(),
		sched:  sched,
		store:  store,
		prober: prober,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.router.GET("/", s.index)
	s.router.GET("/health", s.healthCheck)

	s.router.POST("/download", s.submitDownload)
	s.router.GET("/status/:id", s.taskStatus)
	s.router.GET("/download_file/:id", s.downloadFile)
	s.router.GET("/info", s.mediaInfo)

	s.router.GET("/storage/files", s.listFiles)
	s.router.DELETE("/storage/files/:object", s.deleteFile)

	s.router.GET("/system/status", s.systemStatus)
}

// Handler exposes the router so main can run it inside an http.Server with
// graceful shutdown.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "video-audio-downloader",
		"endpoints": gin.H{
			"submit":        "POST /download",
			"status":        "GET /status/{task_id}",
			"download":      "GET /download_file/{task_id}",
			"info":          "GET /info?url=...",
			"files":         "GET /storage/files",
			"delete_file":   "DELETE /storage/files/{object}",
			"system_status": "GET /system/status",
			"health":        "GET /health",
		},
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "video-audio-downloader",
	})
}
