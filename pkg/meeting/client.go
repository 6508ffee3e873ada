package meeting

import (
	"context"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/chat"
)

// JoinConfig holds everything the SDK needs to join a room.
type JoinConfig struct {
	SessionID string
	RoomID    string
	Env       string
	Role      string
	Username  string
	AuthToken string

	PublishAudio bool
	PublishVideo bool
	Camera       string
	Codec        string
	Width        int
	Height       int
	Bitrate      int
	FrameRate    int

	DetectDominantSpeaker bool
	AudioPollInterval     time.Duration
	SilenceThreshold      int
}

// Stage is a join milestone reported by the SDK before the call goes live.
type Stage int

const (
	StageJoining Stage = iota
	StageLoadingMedia
	StagePublishingMedia
)

func (s Stage) String() string {
	switch s {
	case StageJoining:
		return "joining"
	case StageLoadingMedia:
		return "loading_media"
	case StagePublishingMedia:
		return "publishing_media"
	default:
		return "unknown"
	}
}

// Listener receives SDK callbacks for one join attempt. Callbacks may arrive
// on any goroutine.
type Listener interface {
	OnStage(stage Stage)
	OnJoined()
	OnReconnecting(err error)
	OnReconnected()
	OnError(err error)
	OnMessage(msg chat.Message)
}

// Client is the call SDK. Media capture, transport and signalling all live
// behind it. Only Join may invoke the Listener synchronously; the other
// methods are called with controller state locked.
type Client interface {
	// Join starts joining and returns once the attempt is under way. Progress
	// and the final outcome are reported through l.
	Join(ctx context.Context, cfg JoinConfig, l Listener) error
	Leave(ctx context.Context) error

	SetLocalAudioEnabled(enabled bool) error
	SetLocalVideoEnabled(enabled bool) error
	SwitchCamera() error
	SetRemoteAudioMuted(muted bool)

	SendBroadcast(ctx context.Context, text string) (chat.Message, error)
}
