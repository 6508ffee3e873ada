package meeting

import "errors"

var (
	ErrAlreadySubscribed = errors.New("meeting state stream already has a consumer")
	ErrNotOngoing        = errors.New("meeting is not ongoing")
	ErrClosed            = errors.New("meeting controller is closed")
)
