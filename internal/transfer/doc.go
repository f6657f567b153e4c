// Package transfer runs one side of a single-file transfer over one
// connection.
//
// A Session is built per connection for either role and runs the role's
// state machine to completion. It owns the connection's stream reader and
// codec, streams payload bytes between the connection and a Source or Sink,
// and always closes the connection before Run returns.
package transfer
