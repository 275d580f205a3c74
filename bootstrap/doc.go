// Package bootstrap runs a service: it applies config defaults, starts
// registered components, runs configure callbacks, blocks until a shutdown
// signal and then stops everything within a graceful timeout.
//
// App.Context is canceled as the first step of shutdown, so long-lived work
// started from it (streaming sessions) ends before components stop.
package bootstrap
