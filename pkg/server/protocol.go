package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/qieqieplus/meeting-client/pkg/audio"
	"github.com/qieqieplus/meeting-client/pkg/screen"
)

// WebSocket message types
const (
	MessageTypeView    = "view"
	MessageTypeError   = "error"
	MessageTypeCommand = "command"
	MessageTypeResult  = "result"
)

// ViewMessage carries a full view snapshot.
type ViewMessage struct {
	Type string      `json:"type"`
	View screen.View `json:"view"`
}

// ErrorMessage is sent when an error occurs
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// ResultMessage acknowledges a command sent over the socket.
type ResultMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// CommandMessage is a user action sent by a client. The same shape is used
// as the optional body of POST /api/meeting/{action}.
type CommandMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
	Text   string `json:"text,omitempty"`
	Device string `json:"device,omitempty"`
}

// ErrUnknownDevice is returned for an audio device name that is not one of
// earpiece, speakerphone, wired_headset or bluetooth.
var ErrUnknownDevice = errors.New("unknown audio device")

func CreateViewMessage(v screen.View) ([]byte, error) {
	return json.Marshal(ViewMessage{Type: MessageTypeView, View: v})
}

// CreateErrorMessage creates an error message
func CreateErrorMessage(errMsg string, code int) ([]byte, error) {
	return json.Marshal(ErrorMessage{Type: MessageTypeError, Error: errMsg, Code: code})
}

func CreateResultMessage(id, action string, err error) ([]byte, error) {
	msg := ResultMessage{Type: MessageTypeResult, ID: id, Action: action, OK: err == nil}
	if err != nil {
		msg.Error = err.Error()
	}
	return json.Marshal(msg)
}

// ToCommand maps the message to an observer command.
func (m CommandMessage) ToCommand() (screen.Command, error) {
	switch m.Action {
	case "view-mode":
		mode, err := screen.ParseViewMode(m.Mode)
		if err != nil {
			return screen.Command{}, err
		}
		return screen.SetViewMode(mode), nil
	case "send-chat":
		return screen.SendChat(m.Text), nil
	case "audio-device":
		t, ok := audio.ParseDeviceType(m.Device)
		if !ok {
			return screen.Command{}, fmt.Errorf("%w: %q", ErrUnknownDevice, m.Device)
		}
		return screen.SelectAudio(t), nil
	default:
		return screen.ParseAction(m.Action)
	}
}

// ParseCommandMessage decodes a client frame into a command.
func ParseCommandMessage(data []byte) (CommandMessage, screen.Command, error) {
	var msg CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, screen.Command{}, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type != MessageTypeCommand {
		return msg, screen.Command{}, fmt.Errorf("unsupported message type %q", msg.Type)
	}
	cmd, err := msg.ToCommand()
	return msg, cmd, err
}
