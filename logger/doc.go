// Package logger provides structured logging for notify using zerolog.
//
// Components receive a *Logger at construction and tag themselves with
// WithComponent; fields are passed as maps built with Fields:
//
//	log := base.WithComponent("stream")
//	log.Info("session opened", logger.Fields("recipient_id", id))
package logger
