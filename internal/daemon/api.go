package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/config"
	"github.com/visarisk/agent/internal/models"
)

const defaultLogLimit = 100

// getSession reports the current session state.
func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.Controller.State().ToResponse())
}

// getLogs returns recent log events, newest last. Query parameters:
// level (repeatable), since (RFC 3339) and limit.
func (s *Server) getLogs(c *gin.Context) {
	filter := config.LogFilter{
		Limit: defaultLogLimit,
	}

	for _, value := range c.QueryArray("level") {
		level, err := logrus.ParseLevel(value)
		if err != nil {
			s.getErrorPage(c, http.StatusBadRequest, "Invalid log level", err)
			return
		}
		filter.Levels = append(filter.Levels, level)
	}

	if value, ok := c.GetQuery("since"); ok {
		since, err := time.Parse(time.RFC3339, value)
		if err != nil {
			s.getErrorPage(c, http.StatusBadRequest, "Invalid since parameter", err)
			return
		}
		filter.Since = &since
	}

	if value, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.getErrorPage(c, http.StatusBadRequest, "Invalid limit parameter",
				fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	events := s.Config.GetEventsWithFilter(filter)

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// healthHandler reports the agent as degraded while the session has not
// been restored yet.
func (s *Server) healthHandler(c *gin.Context) {
	servicesHealth := map[string]models.HealthState{
		"session": models.HealthStatusHealthy,
	}

	if s.Controller.State().Kind == models.StateUnknown {
		servicesHealth["session"] = models.HealthStatusDegraded
	}

	overallStatus := models.HealthStatusHealthy
	for _, status := range servicesHealth {
		if status != models.HealthStatusHealthy {
			overallStatus = models.HealthStatusDegraded
			break
		}
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   common.GetVersion(),
		Services:  servicesHealth,
	})
}

// readyHandler answers 503 until the persisted session was consulted.
func (s *Server) readyHandler(c *gin.Context) {
	state := s.Controller.State()

	status := "ready"
	code := http.StatusOK
	if state.Kind == models.StateUnknown {
		status = "starting"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"state":     state.Kind.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   common.GetVersion(),
		"uptime":    time.Since(s.StartTime).Round(time.Second).String(),
	})
}
