package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/timr/internal/config"
	"github.com/mescon/timr/internal/timer"
)

// formatUptime returns a human-readable uptime string
func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// handleHealth returns server health status for container orchestration.
// The server is degraded once the event bus has started dropping events.
func (s *RESTServer) handleHealth(c *gin.Context) {
	byStatus := make(map[timer.Status]int)
	for _, e := range s.store.GetAll() {
		byStatus[e.Timer.Status()]++
	}

	var dropped int64
	if s.eventBus != nil {
		dropped = s.eventBus.Dropped()
	}

	status := "healthy"
	if dropped > 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"version":           config.Version,
		"uptime":            formatUptime(time.Since(s.startTime)),
		"timers":            s.store.Len(),
		"timers_by_status":  byStatus,
		"events_dropped":    dropped,
		"websocket_clients": s.hub.ClientCount(),
	})
}
