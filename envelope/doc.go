// Package envelope defines the immutable value published for one event and
// the decoding used by subscribers.
//
// An Envelope is serialized once by the publisher; every subscriber receives
// the same bytes. Decode never fails: payloads that are not envelopes come
// back as Raw so a session can still forward them.
package envelope
