// Package transport owns the lifecycle of one client connection.
//
// A Session walks through Unopened, Connecting, Open and Closed exactly once:
//
//	s := transport.NewSession(endpoint, transport.Options{ConnectTimeout: 2 * time.Second})
//	defer s.Close()
//
//	if err := s.Open(ctx); err != nil {
//	    return err // connect timeout, refusal or other connect failure
//	}
//	if err := s.WriteAndFlush(frame.Bytes()); err != nil {
//	    return err
//	}
//	res, err := s.ReadReply(27, 500*time.Millisecond)
//
// Open and ReadReply are the only blocking calls and both are bounded.
// Close is idempotent and may be deferred right after NewSession, so no
// socket outlives one exchange attempt regardless of where it failed.
//
// Errors are *SessionError values classified by ErrorType; use
// IsConnectError, IsWriteError, IsReadTimeout and IsMalformedReply to tell
// them apart.
package transport
