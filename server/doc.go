// Package server provides the HTTP server for notifyd: Gin routing served
// over HTTP/1.1 and cleartext HTTP/2 (h2c), with lifecycle management
// through the component package.
//
// # Middleware
//
// Applied around every route (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: cross-origin headers and preflight handling
//   - BodySizeLimit: request body size limit
//   - RequestLogger: request logging with duration, stream aware
//
// Admission is a Gin middleware mounted on internal route groups only.
//
// # Endpoints
//
// server/endpoint provides liveness and readiness handlers.
package server
