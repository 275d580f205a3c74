package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/notify/auth/authctx"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/store"
)

// History handles GET /history?limit=N for the authenticated recipient.
func (h *Handler) History(c *gin.Context) {
	id := authctx.MustGet(c.Request.Context())

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	events, err := h.deps.History.Recent(c.Request.Context(), id.RecipientID, limit)
	if err != nil {
		server.RespondWithError(c, errors.ServiceUnavailable("event store").WithCause(err))
		return
	}
	if events == nil {
		events = []envelope.Envelope{}
	}
	server.RespondOK(c, events)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return store.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > store.MaxLimit {
		return 0, errors.InvalidInput("limit", "must be an integer between 1 and "+strconv.Itoa(store.MaxLimit))
	}
	return n, nil
}
