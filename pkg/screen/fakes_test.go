package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/qieqieplus/meeting-client/pkg/audio"
	"github.com/qieqieplus/meeting-client/pkg/chat"
)

// recorder is a Surface that counts calls and keeps the last arguments.
type recorder struct {
	mu sync.Mutex

	shows, refreshes, hides int
	modals, dismisses       int
	homes                   int
	lastModal               Dialog
	lastProgress            [2]string
	controlsEnabled         bool
	controls                Controls
	notices                 []string
	viewMode                ViewMode
	unread                  int
	localAudio, localVideo  bool
	device                  string
	state                   string
}

func (r *recorder) SetState(label string) { r.locked(func() { r.state = label }) }

func (r *recorder) ShowProgress(heading, message string) {
	r.locked(func() {
		r.shows++
		r.lastProgress = [2]string{heading, message}
	})
}

func (r *recorder) RefreshProgress(heading, message string) {
	r.locked(func() {
		r.refreshes++
		r.lastProgress = [2]string{heading, message}
	})
}

func (r *recorder) HideProgress() { r.locked(func() { r.hides++ }) }

func (r *recorder) ShowModal(d Dialog) {
	r.locked(func() {
		r.modals++
		r.lastModal = d
	})
}

func (r *recorder) DismissModal()                   { r.locked(func() { r.dismisses++ }) }
func (r *recorder) NavigateHome()                   { r.locked(func() { r.homes++ }) }
func (r *recorder) SetMediaControlsEnabled(on bool) { r.locked(func() { r.controlsEnabled = on }) }
func (r *recorder) SetControls(c Controls)          { r.locked(func() { r.controls = c }) }
func (r *recorder) SetLocalAudio(on bool)           { r.locked(func() { r.localAudio = on }) }
func (r *recorder) SetLocalVideo(on bool)           { r.locked(func() { r.localVideo = on }) }
func (r *recorder) SetUnreadCount(n int)            { r.locked(func() { r.unread = n }) }
func (r *recorder) SetAudioDevice(name string)      { r.locked(func() { r.device = name }) }
func (r *recorder) SetViewMode(m ViewMode)          { r.locked(func() { r.viewMode = m }) }
func (r *recorder) Notify(text string)              { r.locked(func() { r.notices = append(r.notices, text) }) }

func (r *recorder) locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func (r *recorder) lastNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

// router is an AudioRouter that counts starts and stops.
type router struct {
	mu       sync.Mutex
	starts   int
	stops    int
	refreshes int
	running  bool
	selected audio.DeviceType
	onChange audio.ChangeFunc
}

func (r *router) Start(onChange audio.ChangeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.starts++
	r.running = true
	r.onChange = onChange
	if onChange != nil {
		onChange(audio.Device{Type: audio.DeviceSpeakerphone, Name: "speaker"}, nil)
	}
	return nil
}

func (r *router) UpdateDeviceState() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	return nil
}

func (r *router) SelectDevice(t audio.DeviceType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t != audio.DeviceEarpiece && t != audio.DeviceSpeakerphone {
		return audio.ErrDeviceUnavailable
	}
	r.selected = t
	if r.onChange != nil {
		r.onChange(audio.Device{Type: t, Name: t.String()}, nil)
	}
	return nil
}

func (r *router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.stops++
	}
	r.running = false
	r.onChange = nil
}

// session is a Session that records calls without emitting states.
type session struct {
	starts, retries, leaves int
	audioToggles            int
	videoToggles            int
	flips                   int
	muted                   bool
	sent                    []string
}

func (s *session) Start(ctx context.Context) error { s.starts++; return nil }
func (s *session) Retry(ctx context.Context) error { s.retries++; return nil }
func (s *session) Leave(ctx context.Context) error { s.leaves++; return nil }
func (s *session) ToggleLocalAudio() error         { s.audioToggles++; return nil }
func (s *session) ToggleLocalVideo() error         { s.videoToggles++; return nil }
func (s *session) FlipCamera() error               { s.flips++; return nil }
func (s *session) ToggleRemoteAudio() error        { s.muted = !s.muted; return nil }
func (s *session) IsAudioMuted() bool              { return s.muted }

func (s *session) SendChatMessage(ctx context.Context, text string) (chat.Message, error) {
	s.sent = append(s.sent, text)
	return chat.NewMessage("me", text, true), nil
}

type reporter struct {
	exports int
	err     error
}

func (r *reporter) Export() (string, error) {
	r.exports++
	if r.err != nil {
		return "", r.err
	}
	return "/tmp/report.zip", nil
}

var errBoom = errors.New("boom")
