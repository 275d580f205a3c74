package envelope

import (
	"encoding/json"
	"time"
)

// DefaultEventType is the event name used when an envelope has no type.
const DefaultEventType = "message"

// Envelope is one event instance addressed to one recipient.
type Envelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	RecipientID string          `json:"recipient_id"`
	Data        json.RawMessage `json:"data"`
	Permalink   string          `json:"permalink,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Fields are the caller-supplied parts of an Envelope.
type Fields struct {
	Type        string
	RecipientID string
	Data        json.RawMessage
	Permalink   string
}

// Builder stamps ids and timestamps onto new envelopes.
type Builder struct {
	ids *IDGenerator
	now func() time.Time
}

// NewBuilder creates a Builder. A nil clock uses time.Now.
func NewBuilder(ids *IDGenerator, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if ids == nil {
		ids = NewIDGenerator()
	}
	return &Builder{ids: ids, now: now}
}

// Build returns a new Envelope for f, timestamped in UTC.
func (b *Builder) Build(f Fields) Envelope {
	now := b.now().UTC()
	data := make(json.RawMessage, len(f.Data))
	copy(data, f.Data)
	return Envelope{
		ID:          b.ids.Next(now),
		Type:        f.Type,
		RecipientID: f.RecipientID,
		Data:        data,
		Permalink:   f.Permalink,
		CreatedAt:   now,
	}
}

// Marshal returns the wire form of the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventType returns Type, or DefaultEventType when empty.
func (e Envelope) EventType() string {
	if e.Type == "" {
		return DefaultEventType
	}
	return e.Type
}
