package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/auth/authctx"
	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/stream"
)

// Stream handles GET /stream. Failures before the stream opens get an
// error status; afterwards the session simply ends.
func (h *Handler) Stream(c *gin.Context) {
	id := authctx.MustGet(c.Request.Context())

	conn, err := stream.NewHTTPConn(c.Writer, c.Request)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	sess, err := h.deps.Streamer.Open(c.Request.Context(), id.RecipientID)
	if err != nil {
		h.log.Warn("stream open failed", logger.Fields(
			logger.FieldRecipientID, id.RecipientID,
			logger.FieldError, err.Error(),
		))
		server.RespondWithError(c, errors.ServiceUnavailable("event broker").WithCause(err))
		return
	}

	if err := sess.Run(h.deps.AppContext, conn); err != nil {
		h.log.Warn("stream ended with error", logger.Fields(
			logger.FieldSessionID, sess.ID(),
			logger.FieldRecipientID, id.RecipientID,
			logger.FieldError, err.Error(),
		))
	}
}
