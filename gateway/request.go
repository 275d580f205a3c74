package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/validation"
)

// MaxTypeLength bounds the event type, which becomes the SSE event name.
// Keep in step with the max tag on Request.Type.
const MaxTypeLength = 64

// Request is a publish request. The type must stay on one line because it
// is written verbatim as the SSE event name.
type Request struct {
	Type        string          `json:"type" validate:"notblank,max=64,nocontrol"`
	RecipientID string          `json:"recipient_id" validate:"notblank,nocontrol"`
	Data        json.RawMessage `json:"data" validate:"required"`
	Permalink   string          `json:"permalink,omitempty" validate:"omitempty,max=2048"`
	Persistent  bool            `json:"persistent"`
}

// Validate checks the request. A JSON null counts as missing data.
func (r Request) Validate() error {
	v := validation.New().Struct(r)

	// A nil body is already reported by the required tag.
	if r.Data != nil {
		data := bytes.TrimSpace(r.Data)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			v.AddError("data", "is required")
		} else if !json.Valid(data) {
			v.AddError("data", "must be valid JSON")
		}
	}

	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func (r Request) fields() envelope.Fields {
	return envelope.Fields{
		Type:        r.Type,
		RecipientID: r.RecipientID,
		Data:        bytes.TrimSpace(r.Data),
		Permalink:   r.Permalink,
	}
}
