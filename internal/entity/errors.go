package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrNoTransport is returned when an entity is built without a transport.
	ErrNoTransport = errors.New("entity: transport is required")

	// ErrInvalidName is returned when an entity is built without a name.
	ErrInvalidName = errors.New("entity: name is required")

	// ErrNoCommand is returned when an empty command name is sent.
	ErrNoCommand = errors.New("entity: empty command name")

	// ErrInvalidRepeat is returned for a negative repeat count.
	ErrInvalidRepeat = errors.New("entity: repeat count must not be negative")

	// ErrSendFailed wraps transport failures during a send.
	ErrSendFailed = errors.New("entity: send failed")

	// ErrRelayFailed wraps transport failures while driving or polling a relay.
	ErrRelayFailed = errors.New("entity: relay operation failed")
)
