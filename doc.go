// Package beanstalk implements a client for the beanstalkd work queue.
//
// A Client owns a single connection to one beanstalkd server and exposes
// one method per protocol command. The protocol is strictly one request in
// flight at a time, so every method sends its command and consumes the
// response before returning; callers sharing a Client across goroutines
// must serialize access themselves.
//
// Example use:
//
//	c, err := beanstalk.Dial(ctx, "localhost:11300")
//	if err != nil {
//	    // handle error
//	}
//	defer c.Close()
//
//	id, err := c.Put(ctx, []byte("hello"), 1024, 0, 60*time.Second)
//
//	job, err := c.Reserve(ctx)
//	// process job.Body
//	err = c.Delete(ctx, job.ID)
//
// Transport failures and protocol desynchronization close the connection;
// subsequent calls fail fast with ErrConnectionClosed. Reconnecting is the
// caller's decision, the client never retries on its own.
package beanstalk
