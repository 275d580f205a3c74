// Package gateway accepts publish requests from internal callers. A request
// is validated, stamped into an envelope and published on the recipient's
// broker channel; persistence and offline push then run in the background
// and never affect the publish result.
package gateway
