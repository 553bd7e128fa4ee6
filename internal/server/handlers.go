package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/olastephen/video-audio-downloader/internal/provider"
	"github.com/olastephen/video-audio-downloader/internal/scheduler"
	"github.com/olastephen/video-audio-downloader/internal/storage"
	"github.com/olastephen/video-audio-downloader/internal/task"
)

const probeTimeout = 60 * time.Second

func (s *Server) submitDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	id, err := s.sched.Submit(req.URL, task.Options{
		Quality:        req.Quality,
		Format:         req.Format,
		AudioOnly:      req.AudioOnly,
		DirectDownload: req.DirectDownload,
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, DownloadAccepted{
		TaskID:  id,
		Status:  string(task.StateQueued),
		Message: "Download task accepted",
	})
}

func (s *Server) taskStatus(c *gin.Context) {
	t, ok := s.sched.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// downloadFile redirects the client to a freshly presigned URL; bytes are
// served by the storage backend, never by this process.
func (s *Server) downloadFile(c *gin.Context) {
	t, ok := s.sched.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if t.State != task.StateCompleted {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "task is not completed",
			"status": t.State,
		})
		return
	}

	url, err := s.store.PresignGet(c.Request.Context(), t.ObjectName, t.Filename, s.cfg.Storage.URLExpiry.Std())
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (s *Server) mediaInfo(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	if provider.IsPlaylistURL(rawURL) {
		entries, err := provider.ListYouTubePlaylist(ctx, rawURL)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"type":    "playlist",
			"count":   len(entries),
			"entries": entries,
		})
		return
	}

	info, err := s.prober.Probe(ctx, rawURL)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) listFiles(c *gin.Context) {
	files, err := s.store.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"count": len(files),
	})
}

func (s *Server) deleteFile(c *gin.Context) {
	object := c.Param("object")
	if err := s.store.Delete(c.Request.Context(), object); err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "file deleted",
		"object":  object,
	})
}

func (s *Server) systemStatus(c *gin.Context) {
	counts := s.sched.Counts()
	byState := make(map[string]int, len(counts))
	total := 0
	for state, n := range counts {
		byState[string(state)] = n
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": gin.H{
			"total":    total,
			"by_state": byState,
		},
		"downloads": gin.H{
			"active_slots":   s.sched.ActiveSlots(),
			"max_concurrent": s.sched.MaxConcurrent(),
		},
		"storage": gin.H{
			"endpoint": s.cfg.Storage.Endpoint,
			"bucket":   s.cfg.Storage.Bucket,
		},
	})
}

func (s *Server) storageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
	case errors.Is(err, storage.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
