package bus

import "errors"

// Sentinel errors for the bus package.
var (
	// ErrBusClosed is returned when subscribing to a bus that is closing
	// or closed.
	ErrBusClosed = errors.New("bus is closed")

	// ErrBusNotInstalled is returned when a named bus does not exist.
	ErrBusNotInstalled = errors.New("bus not installed")

	// ErrSubscriberClosed is returned when using a closed Subscriber.
	ErrSubscriberClosed = errors.New("subscriber is closed")
)
