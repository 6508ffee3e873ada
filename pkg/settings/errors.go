package settings

import "errors"

var (
	ErrUnknownKey      = errors.New("settings: unknown key")
	ErrClosed          = errors.New("settings: store is closed")
	ErrInvalidLogLevel = errors.New("settings: invalid log level")
	ErrInvalidValue    = errors.New("settings: invalid value")
)
