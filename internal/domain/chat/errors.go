package chat

import "errors"

// Failure taxonomy for the routing core. None of these are fatal to the
// process; a single connection's failure never affects others.
var (
	// ErrUnauthorized: bad operator token at connect time. The connection
	// is refused, not retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedEvent: unparseable or invalid inbound event. Dropped;
	// the connection stays open.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrPersistence: the store rejected a write. The triggering event is
	// not broadcast and the failure is surfaced to the originating
	// connection only.
	ErrPersistence = errors.New("persistence failed")
)
