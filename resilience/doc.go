// Package resilience wraps calls to external systems with retry and
// circuit breaking. The gateway retries store writes and push sends; the
// push producer sits behind a breaker so a dead Kafka cluster fails fast.
//
//	err := resilience.RetryFunc(ctx, policy, func() error {
//	    return breaker.Execute(func() error { return send(ctx, msg) })
//	})
package resilience
