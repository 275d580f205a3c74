package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReaderNext(t *testing.T) {
	input := "id: 1\nevent: comment\ndata: hello\n\n" +
		":\n\n" +
		"data: a\ndata: b\n\n" +
		"retry: 1500\nevent: ready\ndata: stream-open\n\n"

	r := NewReader(strings.NewReader(input), 0)
	want := []Event{
		{ID: "1", Event: "comment", Data: "hello"},
		{Keepalive: true},
		{Data: "a\nb"},
		{Retry: 1500, Event: "ready", Data: "stream-open"},
	}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("event %d: unexpected error %v", i, err)
		}
		if got != w {
			t.Errorf("event %d = %+v, want %+v", i, got, w)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReaderLineEndings(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"LF", "event: x\ndata: 1\ndata: 2\n\n"},
		{"CRLF", "event: x\r\ndata: 1\r\ndata: 2\r\n\r\n"},
		{"CR", "event: x\rdata: 1\rdata: 2\r\r"},
		{"BOM", "\xEF\xBB\xBFevent: x\ndata: 1\ndata: 2\n\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events, err := ReadAll([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].Event != "x" || events[0].Data != "1\n2" {
				t.Errorf("unexpected event %+v", events[0])
			}
		})
	}
}

func TestReaderFieldParsing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Event
	}{
		{"no space after colon", "data:x\n\n", Event{Data: "x"}},
		{"only one space stripped", "data:  x\n\n", Event{Data: " x"}},
		{"field without colon", "data\n\n", Event{Data: ""}},
		{"unknown field ignored", "foo: bar\ndata: x\n\n", Event{Data: "x"}},
		{"invalid retry ignored", "retry: soon\ndata: x\n\n", Event{Data: "x"}},
		{"comment between fields", "event: a\n: note\ndata: x\n\n", Event{Event: "a", Data: "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events, err := ReadAll([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(events) != 1 || events[0] != tc.want {
				t.Fatalf("got %+v, want [%+v]", events, tc.want)
			}
		})
	}
}

func TestReaderDiscardsIncompleteTail(t *testing.T) {
	events, err := ReadAll([]byte("data: done\n\ndata: partial\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Data != "done" {
		t.Fatalf("expected only the complete event, got %+v", events)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	r := NewReader(strings.NewReader("data: "+strings.Repeat("x", 64)+"\n\n"), 16)
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a scanner error, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	events := []Event{
		{ID: "1718000000000-9f86d081884c7d65", Event: "comment", Data: `{"id":"x","data":{"text":"hi"}}`},
		{Data: "raw bytes"},
		{Event: "multi", Data: "first\nsecond\n\nfourth"},
		{Retry: 1500, Event: "ready", Data: "stream-open"},
		{Keepalive: true},
		{ID: "2", Data: ""},
	}

	var stream []byte
	for _, ev := range events {
		stream = append(stream, ev.Encode()...)
	}
	got, err := ReadAll(stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("event %d: got %+v, want %+v", i, got[i], events[i])
		}
	}
}
