package screen

import "errors"

var (
	ErrNotAvailable   = errors.New("screen: action not available")
	ErrUnknownCommand = errors.New("screen: unknown command")
	ErrClosed         = errors.New("screen: observer is closed")
)
