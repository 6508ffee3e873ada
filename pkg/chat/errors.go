package chat

import "errors"

var (
	ErrNoSendCallback = errors.New("chat: no send callback installed")
	ErrEmptyMessage   = errors.New("chat: message is empty")
)
