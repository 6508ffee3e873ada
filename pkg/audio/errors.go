package audio

import "errors"

var (
	ErrNotRunning        = errors.New("audio: routing is not running")
	ErrDeviceUnavailable = errors.New("audio: device not available")
)
