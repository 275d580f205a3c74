package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/component"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/", h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rr.Code, body
}

func TestLiveness(t *testing.T) {
	code, body := serve(t, Liveness("notifyd", "1.2.3"))
	if code != http.StatusOK || body["status"] != "alive" || body["version"] != "1.2.3" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
}

func TestReadiness(t *testing.T) {
	checker := func(statuses ...component.HealthStatus) HealthChecker {
		return func(context.Context) []component.Health {
			out := make([]component.Health, len(statuses))
			for i, s := range statuses {
				out[i] = component.Health{Name: "c", Status: s}
			}
			return out
		}
	}

	tests := []struct {
		name       string
		checker    HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checker", nil, http.StatusOK, "ready"},
		{"all healthy", checker(component.StatusHealthy, component.StatusHealthy), http.StatusOK, "ready"},
		{"degraded", checker(component.StatusHealthy, component.StatusDegraded), http.StatusOK, "degraded"},
		{"unhealthy", checker(component.StatusDegraded, component.StatusUnhealthy), http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, Readiness("notifyd", tt.checker))
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}
}
