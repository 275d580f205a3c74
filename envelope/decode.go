package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Result is the outcome of Decode: either Decoded or Raw.
type Result interface {
	isResult()
}

// Decoded is a payload that parsed as an Envelope.
type Decoded struct {
	Envelope Envelope
	// Payload is the compacted JSON of the original message.
	Payload []byte
}

// Raw is a payload that did not parse as an Envelope.
type Raw struct {
	Payload []byte
	Err     error
}

func (Decoded) isResult() {}
func (Raw) isResult()     {}

var (
	errNotObject = errors.New("payload is not a JSON object")
	errBadID     = errors.New("id is neither a string nor a number")
)

// wireEnvelope accepts a numeric id from publishers other than the gateway.
type wireEnvelope struct {
	Envelope
	ID json.RawMessage `json:"id"`
}

// Decode classifies a broker message. It never fails.
func Decode(payload []byte) Result {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Raw{Payload: payload, Err: errNotObject}
	}

	var w wireEnvelope
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Raw{Payload: payload, Err: err}
	}
	id, err := decodeID(w.ID)
	if err != nil {
		return Raw{Payload: payload, Err: err}
	}
	env := w.Envelope
	env.ID = id

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Raw{Payload: payload, Err: err}
	}
	return Decoded{Envelope: env, Payload: compact.Bytes()}
}

// decodeID returns a string id as is and a numeric id in its literal form.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var id string
		err := json.Unmarshal(raw, &id)
		return id, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errBadID
	}
	return n.String(), nil
}
