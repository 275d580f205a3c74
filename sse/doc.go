// Package sse encodes and decodes the text/event-stream wire format.
//
// An Event encodes as its fields in a fixed order followed by a blank line:
//
//	id: 1718000000000-9f86d081884c7d65
//	event: comment
//	data: {"id":"1718000000000-9f86d081884c7d65",...}
//
// A heartbeat is a bare comment, ":\n\n". Multi-line data is split into
// one data line per line and rejoined with "\n" by the Reader.
package sse
