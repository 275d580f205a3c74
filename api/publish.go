package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/gateway"
	"github.com/kbukum/notify/server"
)

// PublishResponse acknowledges an accepted publish.
type PublishResponse struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id"`
}

// Publish handles POST /publish. Acceptance means the broker took the
// event, not that anyone received it.
func (h *Handler) Publish(c *gin.Context) {
	var req gateway.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.Validation("Request body must be a JSON object.").WithCause(err))
		return
	}

	env, err := h.deps.Publisher.Publish(c.Request.Context(), req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, PublishResponse{Accepted: true, ID: env.ID})
}
