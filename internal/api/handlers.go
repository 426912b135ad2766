package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	manager ManagerAPI
	logger  *slog.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) listFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": h.manager.ListFeeds()})
}

func (h *handlers) startFeed(c *gin.Context) {
	feedID := c.Param("id")
	if err := h.manager.StartFeed(c.Request.Context(), feedID); err != nil {
		h.logger.Warn("feed start rejected", slog.String("feed_id", feedID), slog.Any("error", err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed_id": feedID, "status": "monitoring"})
}

func (h *handlers) stopFeed(c *gin.Context) {
	feedID := c.Param("id")
	if err := h.manager.StopFeed(feedID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed_id": feedID, "status": "stopped"})
}

func (h *handlers) feedStats(c *gin.Context) {
	feedID := c.Param("id")
	report, err := h.manager.FeedStats(c.Request.Context(), feedID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
