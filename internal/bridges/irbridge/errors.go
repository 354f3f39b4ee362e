package irbridge

import "errors"

// Domain errors for the IR bridge package.
var (
	// ErrDuplicateEntity is returned by Setup when two configured devices
	// derive the same unique ID.
	ErrDuplicateEntity = errors.New("irbridge: duplicate entity")

	// ErrUnknownEntity is returned when no entity has the requested ID.
	ErrUnknownEntity = errors.New("irbridge: unknown entity")

	// ErrUnknownAction is returned for an action name the bridge does not
	// implement.
	ErrUnknownAction = errors.New("irbridge: unknown action")

	// ErrNotSupported is returned when an entity cannot perform an action,
	// for example update on a remote.
	ErrNotSupported = errors.New("irbridge: action not supported by entity")

	// ErrInvalidParameters is returned for malformed command parameters.
	ErrInvalidParameters = errors.New("irbridge: invalid parameters")
)
