package screen

import (
	"fmt"

	"github.com/qieqieplus/meeting-client/pkg/audio"
)

// CommandKind identifies a user action.
type CommandKind int

const (
	CmdStart CommandKind = iota
	CmdChoose
	CmdToggleAudio
	CmdToggleVideo
	CmdFlipCamera
	CmdEndCall
	CmdSendChat
	CmdOpenChat
	CmdMenu
	CmdRefreshAudio
	CmdSelectAudio
)

var commandNames = map[CommandKind]string{
	CmdStart:        "start",
	CmdChoose:       "choose",
	CmdToggleAudio:  "toggle-audio",
	CmdToggleVideo:  "toggle-video",
	CmdFlipCamera:   "flip-camera",
	CmdEndCall:      "end-call",
	CmdSendChat:     "send-chat",
	CmdOpenChat:     "open-chat",
	CmdMenu:         "menu",
	CmdRefreshAudio: "refresh-audio",
	CmdSelectAudio:  "audio-device",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// MenuAction is an entry of the call screen's overflow menu.
type MenuAction int

const (
	MenuShareLink MenuAction = iota
	MenuRecordMeeting
	MenuShareScreen
	MenuEmailLogs
	MenuViewMode
	MenuVolume
	MenuFlipCamera
)

func (a MenuAction) String() string {
	switch a {
	case MenuShareLink:
		return "share-link"
	case MenuRecordMeeting:
		return "record-meeting"
	case MenuShareScreen:
		return "share-screen"
	case MenuEmailLogs:
		return "email-logs"
	case MenuViewMode:
		return "view-mode"
	case MenuVolume:
		return "volume"
	case MenuFlipCamera:
		return "flip-camera"
	default:
		return "unknown"
	}
}

// Command is one user action for the observer loop.
type Command struct {
	Kind   CommandKind
	Choice Choice
	Text   string
	Action MenuAction
	Mode   ViewMode
	Device audio.DeviceType
}

func (c Command) String() string {
	switch c.Kind {
	case CmdChoose:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Choice)
	case CmdMenu:
		if c.Action == MenuViewMode {
			return fmt.Sprintf("%s(%s=%s)", c.Kind, c.Action, c.Mode)
		}
		return fmt.Sprintf("%s(%s)", c.Kind, c.Action)
	case CmdSelectAudio:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Device)
	default:
		return c.Kind.String()
	}
}

func Start() Command                 { return Command{Kind: CmdStart} }
func Choose(c Choice) Command        { return Command{Kind: CmdChoose, Choice: c} }
func ToggleAudio() Command           { return Command{Kind: CmdToggleAudio} }
func ToggleVideo() Command           { return Command{Kind: CmdToggleVideo} }
func FlipCamera() Command            { return Command{Kind: CmdFlipCamera} }
func EndCall() Command               { return Command{Kind: CmdEndCall} }
func SendChat(text string) Command   { return Command{Kind: CmdSendChat, Text: text} }
func OpenChat() Command              { return Command{Kind: CmdOpenChat} }
func Menu(a MenuAction) Command      { return Command{Kind: CmdMenu, Action: a} }
func SetViewMode(m ViewMode) Command { return Command{Kind: CmdMenu, Action: MenuViewMode, Mode: m} }
func RefreshAudio() Command          { return Command{Kind: CmdRefreshAudio} }

func SelectAudio(t audio.DeviceType) Command {
	return Command{Kind: CmdSelectAudio, Device: t}
}

// ParseAction maps an HTTP action name to a command.
func ParseAction(name string) (Command, error) {
	switch name {
	case "start":
		return Start(), nil
	case "retry":
		return Choose(ChoiceRetry), nil
	case "leave":
		return Choose(ChoiceLeave), nil
	case "report":
		return Choose(ChoiceReport), nil
	case "end-call":
		return EndCall(), nil
	case "toggle-audio":
		return ToggleAudio(), nil
	case "toggle-video":
		return ToggleVideo(), nil
	case "flip-camera":
		return FlipCamera(), nil
	case "volume":
		return Menu(MenuVolume), nil
	case "share-link":
		return Menu(MenuShareLink), nil
	case "record-meeting":
		return Menu(MenuRecordMeeting), nil
	case "share-screen":
		return Menu(MenuShareScreen), nil
	case "email-logs":
		return Menu(MenuEmailLogs), nil
	case "open-chat":
		return OpenChat(), nil
	case "refresh-audio":
		return RefreshAudio(), nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}
