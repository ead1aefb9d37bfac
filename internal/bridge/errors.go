package bridge

import "errors"

var (
	// ErrDecode is returned when a command payload cannot be decoded.
	ErrDecode = errors.New("bridge: cannot decode command payload")

	// ErrUnknownCommand is returned for a command kind the bridge does not handle.
	ErrUnknownCommand = errors.New("bridge: unknown command")

	// ErrDisconnected is returned when a connection attempt is abandoned
	// because Disconnect was called while it was in flight.
	ErrDisconnected = errors.New("bridge: disconnected during connect")
)
