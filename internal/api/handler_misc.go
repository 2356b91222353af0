package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"keegan-registry/internal/registry"
	"keegan-registry/internal/stories"
)

func (s *Server) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"version": s.cfg.Server.Version,
		"time":    registry.NowMs(s.clock),
	})
}

// GetSeed hands out the shared daily seed clients use to keep
// procedural audio in sync.
func (s *Server) GetSeed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"seed": stories.Seed(s.clock.Now()),
		"tz":   "UTC",
	})
}

// GetStory returns the day's canned story line for a mood.
// Query Params: mood (default focus)
func (s *Server) GetStory(c *gin.Context) {
	mood := c.DefaultQuery("mood", "focus")
	c.JSON(http.StatusOK, gin.H{
		"mood":  mood,
		"story": stories.Pick(mood, s.clock.Now()),
		"seed":  stories.Seed(s.clock.Now()),
	})
}

// PostTelemetry appends a caller-supplied event to the telemetry log.
func (s *Server) PostTelemetry(c *gin.Context) {
	var event map[string]any
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	stored := s.telemetry.Append(event)
	if s.telemetry.Enabled() && !stored {
		slog.Error("failed to store telemetry event", "event", event["event"])
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stored": stored})
}
