// Package stream turns a broker subscription into an event stream for one
// connected client.
//
// A Session owns one subscription, a reader goroutine and a bounded queue.
// The reader decodes each broker message and enqueues it, dropping the
// oldest queued event when the queue is full. The drain loop writes queued
// events as they arrive and a heartbeat comment after every quiet interval,
// until the client disconnects, the subscription fails or the process
// shuts down.
//
//	sess, err := streamer.Open(ctx, recipientID) // nothing written yet
//	if err != nil { ... respond 503 ... }
//	defer sess.Close()
//	err = sess.Run(ctx, conn)
package stream
