package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxLineSize bounds a single line read by a Reader.
const DefaultMaxLineSize = 1 << 20

var bom = []byte{0xEF, 0xBB, 0xBF}

// Reader decodes frames from an event stream.
type Reader struct {
	scanner *bufio.Scanner
	first   bool
}

// NewReader creates a Reader with lines up to maxLineSize bytes.
// A non-positive maxLineSize uses DefaultMaxLineSize.
func NewReader(r io.Reader, maxLineSize int) *Reader {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, min(4096, maxLineSize)), maxLineSize)
	s.Split(scanLines)
	return &Reader{scanner: s, first: true}
}

// Next returns the next complete frame. A block holding only comments is
// returned as a Keepalive event. An unterminated final block is discarded
// and io.EOF is returned.
func (r *Reader) Next() (Event, error) {
	var (
		ev       Event
		data     strings.Builder
		hasData  bool
		hasField bool
		comment  bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if r.first {
			line = bytes.TrimPrefix(line, bom)
			r.first = false
		}

		if len(line) == 0 {
			switch {
			case hasField:
				ev.Data = data.String()
				return ev, nil
			case comment:
				return KeepaliveEvent(), nil
			}
			continue
		}
		if line[0] == ':' {
			comment = true
			continue
		}

		field, value := parseLine(string(line))
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
			hasField = true
		case "event":
			ev.Event = value
			hasField = true
		case "id":
			ev.ID = value
			hasField = true
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = ms
				hasField = true
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// ReadAll decodes every complete frame in b.
func ReadAll(b []byte) ([]Event, error) {
	r := NewReader(bytes.NewReader(b), 0)
	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// parseLine splits "field: value", removing one leading space from value.
func parseLine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

// scanLines is bufio.ScanLines accepting LF, CR and CRLF terminators.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	i := bytes.IndexByte(data, '\n')
	j := bytes.IndexByte(data, '\r')

	switch {
	case i >= 0 && (j < 0 || i < j):
		return i + 1, data[:i], nil
	case j >= 0:
		if j+1 < len(data) {
			if data[j+1] == '\n' {
				return j + 2, data[:j], nil
			}
			return j + 1, data[:j], nil
		}
		if atEOF {
			return j + 1, data[:j], nil
		}
		// CR at buffer end may be half of CRLF.
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
