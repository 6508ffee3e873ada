package loopback

import "errors"

var (
	ErrNotJoined     = errors.New("loopback: not in a room")
	ErrJoinRejected  = errors.New("loopback: join rejected")
	ErrMissingRoomID = errors.New("loopback: room id is required")
)
