package sse

import (
	"net/http"
	"strconv"
	"strings"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Heartbeat is the encoded keepalive comment.
const Heartbeat = ":\n\n"

const (
	idPrefix    = "id: "
	retryPrefix = "retry: "
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Event is one event-stream frame.
type Event struct {
	// ID becomes the client's last-event-id.
	ID string
	// Event is the event name. Empty means the client default, "message".
	Event string
	// Data is the payload. Each line becomes its own data line.
	Data string
	// Retry is a reconnection hint in milliseconds; zero omits it.
	Retry int
	// Keepalive marks a comment-only frame. Other fields are ignored.
	Keepalive bool
}

// KeepaliveEvent returns a heartbeat frame.
func KeepaliveEvent() Event {
	return Event{Keepalive: true}
}

// Encode renders the event. Line breaks inside ID and Event are dropped
// since they would split the field.
func (e Event) Encode() []byte {
	if e.Keepalive {
		return []byte(Heartbeat)
	}

	var b strings.Builder
	b.Grow(e.encodedLenHint())

	if e.ID != "" {
		b.WriteString(idPrefix)
		b.WriteString(singleLine(e.ID))
		b.WriteByte('\n')
	}
	if e.Retry > 0 {
		b.WriteString(retryPrefix)
		b.WriteString(strconv.Itoa(e.Retry))
		b.WriteByte('\n')
	}
	if e.Event != "" {
		b.WriteString(eventPrefix)
		b.WriteString(singleLine(e.Event))
		b.WriteByte('\n')
	}
	for _, line := range splitLines(e.Data) {
		b.WriteString(dataPrefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// String returns the encoded event.
func (e Event) String() string {
	return string(e.Encode())
}

func (e Event) encodedLenHint() int {
	return len(idPrefix) + len(e.ID) + len(retryPrefix) + 8 +
		len(eventPrefix) + len(e.Event) + len(dataPrefix) + len(e.Data) + 8
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// splitLines splits on CRLF, CR and LF. Empty input yields one empty line.
func splitLines(s string) []string {
	return strings.Split(lineBreaks.Replace(s), "\n")
}

func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// SetHeaders prepares a response for streaming.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Disable proxy buffering (nginx).
	h.Set("X-Accel-Buffering", "no")
}
