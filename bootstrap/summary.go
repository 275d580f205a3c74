package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
)

// Route is a registered HTTP route shown in the startup summary.
type Route struct {
	Method string
	Path   string
}

// Summary collects what the service started with and logs it once.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	routes          []Route
}

// NewSummary creates a summary for a service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(method, path string) {
	s.routes = append(s.routes, Route{Method: method, Path: path})
}

// Routes returns the tracked routes.
func (s *Summary) Routes() []Route {
	return s.routes
}

// Lines renders the summary, one entry per line.
func (s *Summary) Lines(ctx context.Context, registry *component.Registry) []string {
	lines := []string{
		fmt.Sprintf("%s %s started in %s", s.serviceName, s.version, s.startupDuration.Round(time.Millisecond)),
	}
	if registry != nil {
		health := make(map[string]component.Health)
		for _, h := range registry.HealthAll(ctx) {
			health[h.Name] = h
		}
		for _, c := range registry.All() {
			desc := component.Description{Name: c.Name()}
			if d, ok := c.(component.Describable); ok {
				desc = d.Describe()
				if desc.Name == "" {
					desc.Name = c.Name()
				}
			}
			line := fmt.Sprintf("  %s %-14s %-10s %s", statusIcon(health[c.Name()].Status), desc.Name, desc.Type, desc.Details)
			lines = append(lines, strings.TrimRight(line, " "))
		}
	}
	for _, r := range s.routes {
		lines = append(lines, fmt.Sprintf("  %-6s %s", r.Method, r.Path))
	}
	return lines
}

// Display logs the summary.
func (s *Summary) Display(ctx context.Context, registry *component.Registry, log *logger.Logger) {
	for _, line := range s.Lines(ctx, registry) {
		log.Info(line)
	}
}

func statusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✓"
	case component.StatusDegraded:
		return "~"
	case component.StatusUnhealthy:
		return "✗"
	default:
		return "?"
	}
}
