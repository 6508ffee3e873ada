package screen

import (
	"sync"
	"time"
)

// ProgressView is the blocking progress surface.
type ProgressView struct {
	Visible bool   `json:"visible"`
	Heading string `json:"heading"`
	Message string `json:"message"`
}

// View is a snapshot of everything a renderer shows.
type View struct {
	State                string       `json:"state"`
	Progress             ProgressView `json:"progress"`
	ContentVisible       bool         `json:"contentVisible"`
	Modal                *Dialog      `json:"modal,omitempty"`
	MediaControlsEnabled bool         `json:"mediaControlsEnabled"`
	Controls             Controls     `json:"controls"`
	LocalAudio           bool         `json:"localAudio"`
	LocalVideo           bool         `json:"localVideo"`
	Unread               int          `json:"unread"`
	AudioDevice          string       `json:"audioDevice,omitempty"`
	ViewMode             ViewMode     `json:"viewMode"`
	Home                 bool         `json:"home"`
	Notice               string       `json:"notice,omitempty"`
	NoticeAt             time.Time    `json:"noticeAt,omitempty"`
	Version              uint64       `json:"version"`
}

// ViewState is a Surface that keeps the latest View and fans it out to
// watchers. Each watcher only ever holds the most recent snapshot.
type ViewState struct {
	mu       sync.RWMutex
	view     View
	watchers map[chan View]struct{}
	onChange func(View)
}

func NewViewState() *ViewState {
	return &ViewState{
		view:     View{State: "Disconnected", Home: true, ContentVisible: true},
		watchers: make(map[chan View]struct{}),
	}
}

// OnChange registers fn to be called with every new snapshot.
func (s *ViewState) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Snapshot returns the current view.
func (s *ViewState) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneView(s.view)
}

// Watch returns a channel primed with the current view. Call the returned
// function to stop watching.
func (s *ViewState) Watch() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- cloneView(s.view)
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *ViewState) update(fn func(v *View)) {
	s.mu.Lock()
	fn(&s.view)
	s.view.Version++
	snap := cloneView(s.view)
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- cloneView(snap)
	}
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
}

func cloneView(v View) View {
	if v.Modal != nil {
		d := *v.Modal
		d.Failures = append([]string(nil), v.Modal.Failures...)
		d.Choices = append([]string(nil), v.Modal.Choices...)
		v.Modal = &d
	}
	return v
}

func (s *ViewState) SetState(label string) {
	s.update(func(v *View) {
		v.State = label
	})
}

func (s *ViewState) ShowProgress(heading, message string) {
	s.update(func(v *View) {
		v.Progress = ProgressView{Visible: true, Heading: heading, Message: message}
		v.ContentVisible = false
		v.Home = false
	})
}

func (s *ViewState) RefreshProgress(heading, message string) {
	s.update(func(v *View) {
		v.Progress.Heading = heading
		v.Progress.Message = message
	})
}

func (s *ViewState) HideProgress() {
	s.update(func(v *View) {
		v.Progress = ProgressView{}
		v.ContentVisible = true
	})
}

func (s *ViewState) ShowModal(d Dialog) {
	s.update(func(v *View) { v.Modal = &d })
}

func (s *ViewState) DismissModal() {
	s.update(func(v *View) { v.Modal = nil })
}

func (s *ViewState) NavigateHome() {
	s.update(func(v *View) {
		v.Home = true
		v.Modal = nil
		v.Progress = ProgressView{}
		v.ContentVisible = true
		v.MediaControlsEnabled = false
		v.AudioDevice = ""
	})
}

func (s *ViewState) SetMediaControlsEnabled(enabled bool) {
	s.update(func(v *View) { v.MediaControlsEnabled = enabled })
}

func (s *ViewState) SetControls(c Controls) {
	s.update(func(v *View) { v.Controls = c })
}

func (s *ViewState) SetLocalAudio(enabled bool) {
	s.update(func(v *View) { v.LocalAudio = enabled })
}

func (s *ViewState) SetLocalVideo(enabled bool) {
	s.update(func(v *View) { v.LocalVideo = enabled })
}

func (s *ViewState) SetUnreadCount(n int) {
	s.update(func(v *View) { v.Unread = n })
}

func (s *ViewState) SetAudioDevice(name string) {
	s.update(func(v *View) { v.AudioDevice = name })
}

func (s *ViewState) SetViewMode(m ViewMode) {
	s.update(func(v *View) { v.ViewMode = m })
}

func (s *ViewState) Notify(text string) {
	s.update(func(v *View) {
		v.Notice = text
		v.NoticeAt = time.Now()
	})
}
