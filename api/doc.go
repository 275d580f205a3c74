// Package api exposes notifyd over HTTP.
//
// Routes:
//
//	POST /api/v1/internal/notify/publish    admission controlled
//	GET  /api/v1/external/notify/stream     authenticated event stream
//	GET  /api/v1/external/notify/history    authenticated, when a store is configured
//	GET  /api/v1/notify/health/live
//	GET  /api/v1/notify/health/ready
package api
