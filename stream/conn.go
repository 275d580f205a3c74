package stream

import (
	"net/http"
	"time"

	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/sse"
)

// Conn is the client side of a session.
type Conn interface {
	// Write sends one frame. An error means the client is gone.
	Write(ev sse.Event) error
	// Done is closed when the client disconnects.
	Done() <-chan struct{}
}

// HTTPConn streams frames over an HTTP response.
type HTTPConn struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	done    <-chan struct{}
	started bool
}

var _ Conn = (*HTTPConn)(nil)

// NewHTTPConn prepares w for streaming. Headers are sent with the first
// frame, so the caller can still answer with an error status until then.
func NewHTTPConn(w http.ResponseWriter, r *http.Request) (*HTTPConn, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errors.StreamingUnsupported()
	}
	rc := http.NewResponseController(w)
	// Long-lived responses must outlive the server's WriteTimeout.
	_ = rc.SetWriteDeadline(time.Time{})
	return &HTTPConn{w: w, rc: rc, done: r.Context().Done()}, nil
}

// Write encodes ev and flushes it to the client.
func (c *HTTPConn) Write(ev sse.Event) error {
	if !c.started {
		sse.SetHeaders(c.w.Header())
		c.w.WriteHeader(http.StatusOK)
		c.started = true
	}
	if _, err := c.w.Write(ev.Encode()); err != nil {
		return err
	}
	return c.rc.Flush()
}

// Done is closed when the request context ends.
func (c *HTTPConn) Done() <-chan struct{} {
	return c.done
}
