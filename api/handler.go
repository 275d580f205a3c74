package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/auth"
	"github.com/kbukum/notify/auth/authctx"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/gateway"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/server/endpoint"
	"github.com/kbukum/notify/stream"
)

// Route prefixes.
const (
	InternalPrefix = "/api/v1/internal/notify"
	ExternalPrefix = "/api/v1/external/notify"
	HealthPrefix   = "/api/v1/notify/health"
)

// Publisher accepts publish requests.
type Publisher interface {
	Publish(ctx context.Context, req gateway.Request) (envelope.Envelope, error)
}

// Streamer opens streaming sessions.
type Streamer interface {
	Open(ctx context.Context, recipientID string) (*stream.Session, error)
}

// Authenticator resolves the caller of an external request.
type Authenticator interface {
	Authenticate(r *http.Request) (auth.Identity, error)
}

// History loads persisted envelopes, newest first.
type History interface {
	Recent(ctx context.Context, recipientID string, limit int) ([]envelope.Envelope, error)
}

// Deps are the collaborators of a Handler. History is optional.
type Deps struct {
	Publisher     Publisher
	Streamer      Streamer
	Authenticator Authenticator
	History       History
	// Admission guards internal routes. Nil admits everyone.
	Admission gin.HandlerFunc
	// Health reports component health for the readiness probe.
	Health endpoint.HealthChecker
	// AppContext ends when the process starts shutting down; live streams
	// end with it.
	AppContext context.Context

	ServiceName string
	Version     string
	Logger      *logger.Logger
}

// Handler serves the notify HTTP API.
type Handler struct {
	deps Deps
	log  *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	if deps.AppContext == nil {
		deps.AppContext = context.Background()
	}
	if deps.Admission == nil {
		deps.Admission = func(c *gin.Context) { c.Next() }
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{deps: deps, log: log.WithComponent("api")}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	internal := r.Group(InternalPrefix, h.deps.Admission)
	internal.POST("/publish", h.Publish)

	external := r.Group(ExternalPrefix, h.authenticate)
	external.GET("/stream", h.Stream)
	if h.deps.History != nil {
		external.GET("/history", h.History)
	}

	health := r.Group(HealthPrefix)
	health.GET("/live", endpoint.Liveness(h.deps.ServiceName, h.deps.Version))
	health.GET("/ready", endpoint.Readiness(h.deps.ServiceName, h.deps.Health))
}

// authenticate rejects unauthenticated callers and stores the Identity in
// the request context.
func (h *Handler) authenticate(c *gin.Context) {
	id, err := h.deps.Authenticator.Authenticate(c.Request)
	if err != nil {
		h.log.Debug("authentication failed", logger.Fields("path", c.Request.URL.Path, logger.FieldError, err.Error()))
		server.RespondWithError(c, err)
		return
	}
	c.Request = c.Request.WithContext(authctx.Set(c.Request.Context(), id))
	c.Next()
}
