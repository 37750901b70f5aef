package puppet

import "errors"

var (
	// ErrNotFound is returned when an entity id resolves to nothing:
	// an unknown message, an expired invitation, a member not in the
	// room.
	ErrNotFound = errors.New("puppet: not found")

	// ErrUnsupported marks operations the gateway protocol has no
	// endpoint for. They fail immediately and are never attempted.
	ErrUnsupported = errors.New("puppet: operation not supported by gateway")

	// ErrNotLoggedIn is returned by operations that need an
	// authenticated session.
	ErrNotLoggedIn = errors.New("puppet: not logged in")
)
