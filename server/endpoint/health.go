// Package endpoint provides liveness and readiness handlers.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// Liveness confirms the process is alive and able to serve HTTP.
func Liveness(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"service":   serviceName,
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readiness aggregates component health. Any unhealthy component makes the
// service not ready (503); degraded components keep it ready.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ready"
		httpStatus := http.StatusOK
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
			for _, ch := range components {
				if ch.Status == component.StatusUnhealthy {
					status = "not_ready"
					httpStatus = http.StatusServiceUnavailable
					break
				}
				if ch.Status == component.StatusDegraded {
					status = "degraded"
				}
			}
		}
		c.JSON(httpStatus, gin.H{
			"status":     status,
			"service":    serviceName,
			"components": components,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}
