package screen

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/qieqieplus/meeting-client/pkg/audio"
	"github.com/qieqieplus/meeting-client/pkg/chat"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/meeting"
)

// Session is the call controller as seen by the screen.
type Session interface {
	Start(ctx context.Context) error
	Retry(ctx context.Context) error
	Leave(ctx context.Context) error
	ToggleLocalAudio() error
	ToggleLocalVideo() error
	FlipCamera() error
	ToggleRemoteAudio() error
	IsAudioMuted() bool
	SendChatMessage(ctx context.Context, text string) (chat.Message, error)
}

// AudioRouter owns the audio route of a live call.
type AudioRouter interface {
	Start(onChange audio.ChangeFunc) error
	Stop()
	UpdateDeviceState() error
	SelectDevice(t audio.DeviceType) error
}

// Reporter exports diagnostic logs and returns where they were written.
type Reporter interface {
	Export() (string, error)
}

// Room identifies the call for share links.
type Room struct {
	ID  string
	Env string
}

// ShareLink returns the guest invite URL for the room.
func (r Room) ShareLink() string {
	q := url.Values{}
	q.Set("room", r.ID)
	q.Set("env", r.Env)
	q.Set("role", "Guest")
	return fmt.Sprintf("https://%s.100ms.live/?%s", r.Env, q.Encode())
}

// Inputs are the streams the observer consumes. Nil channels are ignored.
// Controls carries changed media preferences; they apply while the call is
// live.
type Inputs struct {
	States     <-chan meeting.State
	LocalAudio <-chan bool
	LocalVideo <-chan bool
	Messages   <-chan chat.Message
	Controls   <-chan Controls
}

// Option configures an Observer.
type Option func(*Observer)

func WithAudio(r AudioRouter) Option { return func(o *Observer) { o.audio = r } }

func WithChat(s *chat.Store) Option { return func(o *Observer) { o.chat = s } }

func WithReporter(r Reporter) Option { return func(o *Observer) { o.reporter = r } }

// WithControls sets the function deciding which media toggles are exposed.
// It is consulted whenever the call goes live.
func WithControls(fn func() Controls) Option { return func(o *Observer) { o.controls = fn } }

func WithRoom(fn func() Room) Option { return func(o *Observer) { o.room = fn } }

// WithAudioStartHook registers fn to be called each time audio routing starts.
func WithAudioStartHook(fn func()) Option { return func(o *Observer) { o.onAudioStart = fn } }

type request struct {
	cmd   Command
	reply chan error
}

// Observer turns connection states and user commands into surface effects.
// Handle and Dispatch must be called from a single goroutine; Run does that.
type Observer struct {
	session  Session
	surface  Surface
	audio    AudioRouter
	chat     *chat.Store
	reporter Reporter
	controls func() Controls
	room     func() Room

	onAudioStart func()

	current         meeting.State
	progressVisible bool
	audioStarted    bool
	cleanedUp       bool
	navigatedHome   bool
	modal           *Dialog
	viewMode        ViewMode
	exposed         Controls

	requests  chan request
	done      chan struct{}
	closeOnce sync.Once
}

func NewObserver(session Session, surface Surface, opts ...Option) *Observer {
	o := &Observer{
		session:  session,
		surface:  surface,
		controls: func() Controls { return Controls{Audio: true, Video: true} },
		room:     func() Room { return Room{} },
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle applies the effects of one state transition.
func (o *Observer) Handle(s meeting.State) {
	prev := o.current
	o.current = s
	o.surface.SetState(s.String())

	log.WithFields(log.Fields{"state": s.String()}).Debug("Handling connection state")

	if s.Kind() == meeting.KindConnecting {
		o.navigatedHome = false
	}
	if s.Kind() != meeting.KindDisconnected {
		o.cleanedUp = false
	}

	switch st := s.(type) {
	case meeting.Ongoing:
		o.hideProgress()
		o.startAudio()
		o.exposed = o.controls()
		o.surface.SetControls(o.exposed)
		o.surface.SetMediaControlsEnabled(true)
		if o.chat != nil {
			o.chat.SetSendCallback(o.session.SendChatMessage)
		}

	case meeting.Disconnected:
		o.hideProgress()
		if !o.cleanedUp {
			o.stopAudio()
			o.releaseCall()
			o.dismissModal()
			o.surface.SetMediaControlsEnabled(false)
			o.cleanedUp = true
		}
		if st.GoToHome {
			o.navigateHome()
		}

	case meeting.Failure:
		o.hideProgress()
		o.dismissModal()
		o.stopAudio()
		o.releaseCall()
		o.surface.SetMediaControlsEnabled(false)

		failures := st.Failures
		if len(failures) == 0 && st.Err != nil {
			failures = []error{st.Err}
		}
		d := failureDialog(failures)
		o.modal = &d
		o.surface.ShowModal(d)

	case meeting.Progress:
		if o.navigatedHome {
			// The call surface is gone until the next attempt connects.
			return
		}
		heading, message := st.Progress()
		if prev != nil && prev.Kind() == s.Kind() && o.progressVisible {
			o.surface.RefreshProgress(heading, message)
		} else {
			o.surface.ShowProgress(heading, message)
			o.progressVisible = true
		}
		o.surface.SetMediaControlsEnabled(false)

	default:
		log.Warnf("Unhandled connection state %s", s)
	}
}

// Resolve answers the failure dialog. Leave is also allowed without one.
func (o *Observer) Resolve(ctx context.Context, c Choice) error {
	switch c {
	case ChoiceRetry:
		if o.modal == nil {
			return fmt.Errorf("%w: no failure to retry", ErrNotAvailable)
		}
		o.dismissModal()
		return o.session.Retry(ctx)

	case ChoiceLeave:
		o.dismissModal()
		if err := o.session.Leave(ctx); err != nil {
			return err
		}
		o.navigateHome()
		return nil

	case ChoiceReport:
		if o.reporter == nil {
			return fmt.Errorf("%w: log export is not configured", ErrNotAvailable)
		}
		path, err := o.reporter.Export()
		if err != nil {
			o.surface.Notify(fmt.Sprintf("Log export failed: %v", err))
			return fmt.Errorf("export logs: %w", err)
		}
		o.surface.Notify(fmt.Sprintf("Logs exported to %s", path))
		return nil

	default:
		return fmt.Errorf("%w: choice %d", ErrUnknownCommand, c)
	}
}

// Dispatch executes one user command.
func (o *Observer) Dispatch(ctx context.Context, cmd Command) error {
	log.WithFields(log.Fields{"command": cmd.String()}).Debug("Dispatching command")

	switch cmd.Kind {
	case CmdStart:
		if o.modal != nil {
			return fmt.Errorf("%w: answer the failure dialog first", ErrNotAvailable)
		}
		return o.session.Start(ctx)
	case CmdChoose:
		return o.Resolve(ctx, cmd.Choice)
	case CmdToggleAudio:
		if !o.live() || !o.exposed.Audio {
			return fmt.Errorf("%w: %s", ErrNotAvailable, cmd)
		}
		return o.session.ToggleLocalAudio()
	case CmdToggleVideo:
		if !o.live() || !o.exposed.Video {
			return fmt.Errorf("%w: %s", ErrNotAvailable, cmd)
		}
		return o.session.ToggleLocalVideo()
	case CmdFlipCamera:
		return o.flipCamera(cmd)
	case CmdEndCall:
		return o.session.Leave(ctx)
	case CmdSendChat:
		if o.chat == nil {
			return fmt.Errorf("%w: chat is not configured", ErrNotAvailable)
		}
		_, err := o.chat.Send(ctx, cmd.Text)
		return err
	case CmdOpenChat:
		if o.chat != nil {
			o.chat.MarkRead()
		}
		return nil
	case CmdMenu:
		return o.menu(ctx, cmd)
	case CmdRefreshAudio:
		if !o.audioStarted {
			return fmt.Errorf("%w: %s", ErrNotAvailable, cmd)
		}
		return o.audio.UpdateDeviceState()
	case CmdSelectAudio:
		if !o.audioStarted {
			return fmt.Errorf("%w: %s", ErrNotAvailable, cmd)
		}
		return o.audio.SelectDevice(cmd.Device)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (o *Observer) menu(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case MenuShareLink:
		o.surface.Notify(fmt.Sprintf("Meeting link: %s", o.room().ShareLink()))
		return nil
	case MenuRecordMeeting:
		o.surface.Notify("Recording Not Supported")
		return nil
	case MenuShareScreen:
		o.surface.Notify("Screen Share Not Supported")
		return nil
	case MenuEmailLogs:
		return o.Resolve(ctx, ChoiceReport)
	case MenuViewMode:
		if cmd.Mode == o.viewMode {
			o.surface.Notify(fmt.Sprintf("Already in ViewMode=%s", cmd.Mode))
			return nil
		}
		o.viewMode = cmd.Mode
		o.surface.SetViewMode(cmd.Mode)
		return nil
	case MenuVolume:
		if !o.live() {
			return fmt.Errorf("%w: %s", ErrNotAvailable, cmd)
		}
		if err := o.session.ToggleRemoteAudio(); err != nil {
			return err
		}
		if o.session.IsAudioMuted() {
			o.surface.Notify("Muted remote audio")
		} else {
			o.surface.Notify("Unmuted remote audio")
		}
		return nil
	case MenuFlipCamera:
		return o.flipCamera(cmd)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (o *Observer) flipCamera(cmd Command) error {
	if !o.live() || !o.exposed.Video {
		return fmt.Errorf("%w: %s", ErrNotAvailable, cmd)
	}
	return o.session.FlipCamera()
}

// Submit hands cmd to the Run loop and waits for its result.
func (o *Observer) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case o.requests <- req:
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes states, commands and inbound updates one at a time until
// ctx is cancelled or the state stream ends. It closes the observer on
// return.
func (o *Observer) Run(ctx context.Context, in Inputs) error {
	defer o.Close()

	controls := in.Controls
	var unread <-chan int
	if o.chat != nil {
		sub := o.chat.Subscribe()
		defer o.chat.Unsubscribe(sub.ID)
		unread = sub.Channel
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.done:
			return nil

		case s, ok := <-in.States:
			if !ok {
				return nil
			}
			o.Handle(s)

		case req := <-o.requests:
			err := o.Dispatch(ctx, req.cmd)
			if err != nil {
				log.WithFields(log.Fields{"command": req.cmd.String()}).Warnf("Command failed: %v", err)
			}
			req.reply <- err

		case n, ok := <-unread:
			if !ok {
				unread = nil
				continue
			}
			o.surface.SetUnreadCount(n)

		case v := <-in.LocalAudio:
			o.surface.SetLocalAudio(v)

		case v := <-in.LocalVideo:
			o.surface.SetLocalVideo(v)

		case msg := <-in.Messages:
			if o.chat != nil {
				o.chat.Received(msg)
			}

		case c, ok := <-controls:
			if !ok {
				controls = nil
				continue
			}
			o.applyControls(c)
		}
	}
}

// Close stops audio routing and releases call-scoped state. Safe to call
// more than once.
func (o *Observer) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		if o.audio != nil {
			o.audio.Stop()
		}
		if o.chat != nil {
			o.chat.RemoveSendCallback()
		}
		log.Debug("Screen observer closed")
	})
}

func (o *Observer) live() bool {
	return o.current != nil && o.current.Kind() == meeting.KindOngoing
}

func (o *Observer) applyControls(c Controls) {
	if !o.live() || c == o.exposed {
		return
	}
	log.WithFields(log.Fields{"audio": c.Audio, "video": c.Video}).Info("Media controls changed")
	o.exposed = c
	o.surface.SetControls(c)
}

func (o *Observer) hideProgress() {
	if o.progressVisible {
		o.surface.HideProgress()
		o.progressVisible = false
	}
}

func (o *Observer) startAudio() {
	if o.audioStarted || o.audio == nil {
		return
	}
	err := o.audio.Start(func(selected audio.Device, _ []audio.Device) {
		o.surface.SetAudioDevice(selected.Name)
	})
	if err != nil {
		log.Errorf("Failed to start audio routing: %v", err)
		return
	}
	o.audioStarted = true
	if o.onAudioStart != nil {
		o.onAudioStart()
	}
}

func (o *Observer) stopAudio() {
	if o.audio != nil {
		o.audio.Stop()
	}
	o.audioStarted = false
}

func (o *Observer) releaseCall() {
	if o.chat == nil {
		return
	}
	o.chat.RemoveSendCallback()
	o.chat.Clear()
}

func (o *Observer) dismissModal() {
	if o.modal != nil {
		o.surface.DismissModal()
		o.modal = nil
	}
}

func (o *Observer) navigateHome() {
	if o.navigatedHome {
		return
	}
	o.navigatedHome = true
	o.surface.NavigateHome()
}
