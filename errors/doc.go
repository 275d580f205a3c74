// Package errors provides the structured error type used across notify.
//
// AppError carries a machine-readable code, a client-safe message, the HTTP
// status the transport layer should answer with, and whether the caller may
// retry. Handlers render it with ToResponse; internal packages wrap plain
// errors with fmt.Errorf and convert at the edge.
package errors
