package envelope

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

var idPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{16}$`)

func TestIDGeneratorFormat(t *testing.T) {
	g := NewIDGenerator()
	now := time.UnixMilli(1718000000123)
	id := g.Next(now)
	if !idPattern.MatchString(id) {
		t.Fatalf("id %q does not match %s", id, idPattern)
	}
	if !strings.HasPrefix(id, "1718000000123-") {
		t.Errorf("expected millisecond prefix, got %q", id)
	}
}

func TestIDGeneratorDeterministicSource(t *testing.T) {
	g := NewIDGeneratorWithSource(bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03}))
	if got := g.Next(time.UnixMilli(5)); got != "0000000000005-deadbeef00010203" {
		t.Errorf("unexpected id %q", got)
	}
}

func TestIDGeneratorNonDecreasing(t *testing.T) {
	g := NewIDGenerator()
	first := g.Next(time.UnixMilli(2000))
	second := g.Next(time.UnixMilli(1000)) // clock stepped back
	if second[:13] != first[:13] {
		t.Errorf("prefix went backwards: %s then %s", first, second)
	}
}

func TestIDGeneratorUnique(t *testing.T) {
	g := NewIDGenerator()
	now := time.Now()
	const n = 1000

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Next(now)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(seen))
	}
}

func TestBuilderBuild(t *testing.T) {
	fixed := time.Date(2024, 6, 10, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	b := NewBuilder(nil, func() time.Time { return fixed })

	data := json.RawMessage(`{"text":"hi"}`)
	env := b.Build(Fields{Type: "comment", RecipientID: "42", Data: data, Permalink: "/posts/1"})

	if !idPattern.MatchString(env.ID) {
		t.Errorf("unexpected id %q", env.ID)
	}
	if env.CreatedAt.Location() != time.UTC || !env.CreatedAt.Equal(fixed) {
		t.Errorf("expected UTC timestamp equal to clock, got %v", env.CreatedAt)
	}
	data[2] = 'X'
	if string(env.Data) != `{"text":"hi"}` {
		t.Errorf("envelope data aliased caller buffer: %s", env.Data)
	}
}

func TestBuilderIDsSortByCreation(t *testing.T) {
	clock := time.UnixMilli(1_700_000_000_000)
	b := NewBuilder(nil, func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	})
	var ids []string
	for i := 0; i < 20; i++ {
		ids = append(ids, b.Build(Fields{Type: "t", RecipientID: "r", Data: json.RawMessage(`1`)}).ID)
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ids not sorted by creation: %v", ids)
	}
}

func TestMarshalWireForm(t *testing.T) {
	env := Envelope{
		ID:          "0000000000001-0000000000000000",
		Type:        "comment",
		RecipientID: "42",
		Data:        json.RawMessage(`{"text":"hi"}`),
		CreatedAt:   time.Date(2024, 6, 10, 8, 0, 0, 500, time.UTC),
	}
	b, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"id":"0000000000001-0000000000000000","type":"comment","recipient_id":"42","data":{"text":"hi"},"created_at":"2024-06-10T08:00:00.0000005Z"}`
	if string(b) != want {
		t.Errorf("Marshal() = %s\nwant %s", b, want)
	}

	env.Permalink = "/p/1"
	b, _ = env.Marshal()
	if !strings.Contains(string(b), `"permalink":"/p/1"`) {
		t.Errorf("expected permalink in %s", b)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantDecoded bool
		wantType    string
		wantID      string
		wantPayload string
	}{
		{
			name:        "envelope",
			payload:     `{"id":"1-a","type":"comment","recipient_id":"42","data":{"x":1},"created_at":"2024-06-10T08:00:00Z"}`,
			wantDecoded: true,
			wantType:    "comment",
			wantID:      "1-a",
			wantPayload: `{"id":"1-a","type":"comment","recipient_id":"42","data":{"x":1},"created_at":"2024-06-10T08:00:00Z"}`,
		},
		{
			name:        "object without type defaults to message",
			payload:     `{ "hello" : "world" }`,
			wantDecoded: true,
			wantType:    DefaultEventType,
			wantPayload: `{"hello":"world"}`,
		},
		{name: "not json", payload: "not json"},
		{name: "truncated json", payload: `{"id":"1"`},
		{name: "array", payload: `[1,2,3]`},
		{name: "string", payload: `"hello"`},
		{
			name:        "numeric id",
			payload:     `{"id":42,"type":"comment"}`,
			wantDecoded: true,
			wantType:    "comment",
			wantID:      "42",
			wantPayload: `{"id":42,"type":"comment"}`,
		},
		{
			name:        "null id",
			payload:     `{"id":null,"type":"comment"}`,
			wantDecoded: true,
			wantType:    "comment",
			wantPayload: `{"id":null,"type":"comment"}`,
		},
		{name: "boolean id", payload: `{"id":true,"type":"x"}`},
		{name: "object id", payload: `{"id":{"n":1},"type":"x"}`},
		{name: "wrong field type", payload: `{"id":"7","type":5}`},
		{name: "empty", payload: ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			switch r := Decode([]byte(tc.payload)).(type) {
			case Decoded:
				if !tc.wantDecoded {
					t.Fatalf("expected Raw, got Decoded %+v", r)
				}
				if r.Envelope.EventType() != tc.wantType || r.Envelope.ID != tc.wantID {
					t.Errorf("got type=%q id=%q", r.Envelope.EventType(), r.Envelope.ID)
				}
				if string(r.Payload) != tc.wantPayload {
					t.Errorf("payload = %s, want %s", r.Payload, tc.wantPayload)
				}
			case Raw:
				if tc.wantDecoded {
					t.Fatalf("expected Decoded, got Raw (%v)", r.Err)
				}
				if string(r.Payload) != tc.payload {
					t.Errorf("raw payload altered: %q", r.Payload)
				}
				if r.Err == nil {
					t.Error("expected Raw to carry the decode error")
				}
			default:
				t.Fatalf("unexpected result type %T", r)
			}
		})
	}
}

func TestDecodeRoundTripsMarshal(t *testing.T) {
	b := NewBuilder(nil, nil)
	env := b.Build(Fields{Type: "comment", RecipientID: "42", Data: json.RawMessage(`{"text":"multi\nline"}`)})
	payload, err := env.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	d, ok := Decode(payload).(Decoded)
	if !ok {
		t.Fatal("expected Decoded")
	}
	if d.Envelope.ID != env.ID || !d.Envelope.CreatedAt.Equal(env.CreatedAt) {
		t.Errorf("decoded envelope mismatch: %+v vs %+v", d.Envelope, env)
	}
	if !bytes.Equal(d.Payload, payload) {
		t.Errorf("payload changed: %s vs %s", d.Payload, payload)
	}
}
