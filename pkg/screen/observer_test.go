package screen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/qieqieplus/meeting-client/pkg/audio"
	"github.com/qieqieplus/meeting-client/pkg/chat"
	"github.com/qieqieplus/meeting-client/pkg/meeting"
)

type fixture struct {
	obs     *Observer
	surface *recorder
	router  *router
	session *session
	chat    *chat.Store
	report  *reporter
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		surface: &recorder{},
		router:  &router{},
		session: &session{},
		chat:    chat.NewStore(),
		report:  &reporter{},
	}
	base := []Option{
		WithAudio(f.router),
		WithChat(f.chat),
		WithReporter(f.report),
		WithRoom(func() Room { return Room{ID: "abc", Env: "qa-in2"} }),
	}
	f.obs = NewObserver(f.session, f.surface, append(base, opts...)...)
	return f
}

func (f *fixture) handle(states ...meeting.State) {
	for _, s := range states {
		f.obs.Handle(s)
	}
}

func joinSequence() []meeting.State {
	return []meeting.State{
		meeting.Connecting{Heading: "Connecting...", Message: "Connecting to room abc"},
		meeting.Joining{Heading: "Joining..."},
		meeting.LoadingMedia{Heading: "Loading Media..."},
		meeting.PublishingMedia{Heading: "Publishing Media..."},
		meeting.Ongoing{},
	}
}

func TestObserver_JoinSequence(t *testing.T) {
	f := newFixture()
	f.handle(joinSequence()...)

	assert.Equal(t, 4, f.surface.shows)
	assert.Equal(t, 1, f.surface.hides)
	assert.Equal(t, 0, f.surface.refreshes)
	assert.Equal(t, 1, f.router.starts)
	assert.True(t, f.surface.controlsEnabled)
	assert.Equal(t, "speaker", f.surface.device)
	assert.True(t, f.chat.HasSendCallback())
}

func TestObserver_RepeatedOngoingStartsAudioOnce(t *testing.T) {
	f := newFixture()
	f.handle(joinSequence()...)
	f.handle(meeting.Ongoing{}, meeting.Ongoing{})

	assert.Equal(t, 1, f.router.starts)
	assert.Equal(t, 1, f.surface.hides)
}

func TestObserver_SameProgressKindRefreshes(t *testing.T) {
	f := newFixture()
	f.handle(
		meeting.Reconnecting{Heading: "Reconnecting...", Message: "first"},
		meeting.Reconnecting{Heading: "Reconnecting...", Message: "second"},
	)

	assert.Equal(t, 1, f.surface.shows)
	assert.Equal(t, 1, f.surface.refreshes)
	assert.Equal(t, [2]string{"Reconnecting...", "second"}, f.surface.lastProgress)
}

func TestObserver_FailureModal(t *testing.T) {
	f := newFixture()
	f.handle(joinSequence()...)

	a, b := errors.New("A"), errors.New("B")
	f.handle(
		meeting.Failure{Err: a, Failures: []error{a}},
		meeting.Failure{Err: b, Failures: []error{a, b}},
	)

	assert.Equal(t, 2, f.surface.modals)
	assert.Equal(t, 1, f.surface.dismisses)
	assert.Equal(t, "Error", f.surface.lastModal.Title)
	assert.Equal(t, "2 failures: \nA\n\nB", f.surface.lastModal.Message)
	assert.Equal(t, []string{"A", "B"}, f.surface.lastModal.Failures)
	assert.Equal(t, []string{"retry", "leave", "report"}, f.surface.lastModal.Choices)
	assert.False(t, f.router.running)
	assert.False(t, f.surface.controlsEnabled)
	assert.False(t, f.chat.HasSendCallback())
}

func TestObserver_FailureHidesProgress(t *testing.T) {
	f := newFixture()
	f.handle(
		meeting.Connecting{Heading: "Connecting..."},
		meeting.Joining{Heading: "Joining..."},
		meeting.Failure{Err: errBoom, Failures: []error{errBoom}},
	)

	assert.Equal(t, 2, f.surface.shows)
	assert.Equal(t, 1, f.surface.hides)
	assert.Equal(t, 1, f.surface.modals)
	assert.False(t, f.obs.progressVisible)

	// The next attempt shows progress afresh.
	f.handle(meeting.Connecting{Heading: "Connecting..."})
	assert.Equal(t, 3, f.surface.shows)
}

func TestObserver_StartRejectedWhileFailureShown(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.handle(meeting.Failure{Err: errBoom, Failures: []error{errBoom}})

	assert.ErrorIs(t, f.obs.Dispatch(ctx, Start()), ErrNotAvailable)
	assert.Equal(t, 0, f.session.starts)
	assert.Equal(t, 0, f.surface.dismisses)

	require.NoError(t, f.obs.Dispatch(ctx, Choose(ChoiceRetry)))
	assert.Equal(t, 1, f.session.retries)
	assert.Equal(t, 1, f.surface.dismisses)

	require.NoError(t, f.obs.Dispatch(ctx, Start()))
	assert.Equal(t, 1, f.session.starts)
}

func TestObserver_AudioDeviceCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	assert.ErrorIs(t, f.obs.Dispatch(ctx, RefreshAudio()), ErrNotAvailable)
	assert.ErrorIs(t, f.obs.Dispatch(ctx, SelectAudio(audio.DeviceEarpiece)), ErrNotAvailable)

	f.handle(joinSequence()...)
	require.NoError(t, f.obs.Dispatch(ctx, RefreshAudio()))
	assert.Equal(t, 1, f.router.refreshes)

	require.NoError(t, f.obs.Dispatch(ctx, SelectAudio(audio.DeviceEarpiece)))
	assert.Equal(t, "earpiece", f.surface.device)
	assert.ErrorIs(t, f.obs.Dispatch(ctx, SelectAudio(audio.DeviceBluetooth)), audio.ErrDeviceUnavailable)

	f.handle(meeting.Disconnected{})
	assert.ErrorIs(t, f.obs.Dispatch(ctx, RefreshAudio()), ErrNotAvailable)
}

func TestObserver_ReportKeepsModal(t *testing.T) {
	f := newFixture()
	f.handle(meeting.Failure{Err: errBoom, Failures: []error{errBoom}})

	require.NoError(t, f.obs.Resolve(context.Background(), ChoiceReport))
	assert.Equal(t, 1, f.report.exports)
	assert.Equal(t, 0, f.surface.dismisses)
	assert.Equal(t, "Logs exported to /tmp/report.zip", f.surface.lastNotice())

	f.report.err = errors.New("disk full")
	require.Error(t, f.obs.Resolve(context.Background(), ChoiceReport))
	assert.Contains(t, f.surface.lastNotice(), "disk full")
}

func TestObserver_RetryRequiresFailure(t *testing.T) {
	f := newFixture()
	err := f.obs.Resolve(context.Background(), ChoiceRetry)
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Equal(t, 0, f.session.retries)
}

func TestObserver_DisconnectedGoToHomeOnce(t *testing.T) {
	f := newFixture()
	f.handle(joinSequence()...)
	f.handle(
		meeting.Disconnected{GoToHome: true},
		meeting.Disconnected{GoToHome: true},
		meeting.Disconnected{GoToHome: true},
	)

	assert.Equal(t, 1, f.surface.homes)
	assert.Equal(t, 1, f.router.stops)
}

func TestObserver_DisconnectedClearsChat(t *testing.T) {
	f := newFixture()
	f.handle(joinSequence()...)
	f.chat.Received(chat.NewMessage("bob", "hi", false))
	require.Equal(t, 1, f.chat.UnreadCount())

	f.handle(meeting.Disconnected{})
	assert.Empty(t, f.chat.Messages())
	assert.Equal(t, 0, f.chat.UnreadCount())
	assert.False(t, f.chat.HasSendCallback())
	assert.Equal(t, 0, f.surface.homes)
}

func TestObserver_MediaCommandsOnlyWhileOngoing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(WithControls(func() Controls { return Controls{Audio: true, Video: false} }))

	assert.ErrorIs(t, f.obs.Dispatch(ctx, ToggleAudio()), ErrNotAvailable)
	f.handle(joinSequence()...)

	require.NoError(t, f.obs.Dispatch(ctx, ToggleAudio()))
	assert.ErrorIs(t, f.obs.Dispatch(ctx, ToggleVideo()), ErrNotAvailable)
	assert.ErrorIs(t, f.obs.Dispatch(ctx, FlipCamera()), ErrNotAvailable)
	assert.ErrorIs(t, f.obs.Dispatch(ctx, Menu(MenuFlipCamera)), ErrNotAvailable)
	assert.Equal(t, 1, f.session.audioToggles)
	assert.Equal(t, 0, f.session.videoToggles)
	assert.Equal(t, Controls{Audio: true}, f.surface.controls)

	f.handle(meeting.Reconnecting{Heading: "Reconnecting..."})
	assert.ErrorIs(t, f.obs.Dispatch(ctx, ToggleAudio()), ErrNotAvailable)
}

func TestObserver_MenuActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.handle(joinSequence()...)

	require.NoError(t, f.obs.Dispatch(ctx, Menu(MenuShareLink)))
	assert.Equal(t, "Meeting link: https://qa-in2.100ms.live/?env=qa-in2&role=Guest&room=abc", f.surface.lastNotice())

	require.NoError(t, f.obs.Dispatch(ctx, Menu(MenuRecordMeeting)))
	assert.Equal(t, "Recording Not Supported", f.surface.lastNotice())

	require.NoError(t, f.obs.Dispatch(ctx, Menu(MenuShareScreen)))
	assert.Equal(t, "Screen Share Not Supported", f.surface.lastNotice())

	require.NoError(t, f.obs.Dispatch(ctx, SetViewMode(ViewGrid)))
	assert.Equal(t, "Already in ViewMode=Grid", f.surface.lastNotice())

	require.NoError(t, f.obs.Dispatch(ctx, SetViewMode(ViewActiveSpeaker)))
	assert.Equal(t, ViewActiveSpeaker, f.surface.viewMode)

	require.NoError(t, f.obs.Dispatch(ctx, Menu(MenuVolume)))
	assert.Equal(t, "Muted remote audio", f.surface.lastNotice())
	require.NoError(t, f.obs.Dispatch(ctx, Menu(MenuVolume)))
	assert.Equal(t, "Unmuted remote audio", f.surface.lastNotice())

	require.NoError(t, f.obs.Dispatch(ctx, Menu(MenuEmailLogs)))
	assert.Equal(t, 1, f.report.exports)

	require.NoError(t, f.obs.Dispatch(ctx, FlipCamera()))
	assert.Equal(t, 1, f.session.flips)
}

func TestObserver_ChatCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	assert.ErrorIs(t, f.obs.Dispatch(ctx, SendChat("hello")), chat.ErrNoSendCallback)

	f.handle(joinSequence()...)
	require.NoError(t, f.obs.Dispatch(ctx, SendChat("hello")))
	assert.Equal(t, []string{"hello"}, f.session.sent)

	f.chat.Received(chat.NewMessage("bob", "hi", false))
	require.NoError(t, f.obs.Dispatch(ctx, OpenChat()))
	assert.Equal(t, 0, f.chat.UnreadCount())
}

func TestObserver_RunLoop(t *testing.T) {
	f := newFixture()
	states := make(chan meeting.State)
	localAudio := make(chan bool, 1)
	messages := make(chan chat.Message, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.obs.Run(ctx, Inputs{States: states, LocalAudio: localAudio, Messages: messages})
	}()

	for _, s := range joinSequence() {
		states <- s
	}
	require.NoError(t, f.obs.Submit(ctx, ToggleAudio()))

	localAudio <- true
	messages <- chat.NewMessage("bob", "hi", false)
	require.Eventually(t, func() bool {
		f.surface.mu.Lock()
		defer f.surface.mu.Unlock()
		return f.surface.localAudio && f.surface.unread == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	assert.False(t, f.router.running)
	assert.ErrorIs(t, f.obs.Submit(context.Background(), ToggleAudio()), ErrClosed)
	f.obs.Close()
}

func TestObserver_ControlsFollowPreferences(t *testing.T) {
	f := newFixture()
	states := make(chan meeting.State)
	controls := make(chan Controls, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.obs.Run(ctx, Inputs{States: states, Controls: controls})

	for _, s := range joinSequence() {
		states <- s
	}
	require.NoError(t, f.obs.Submit(ctx, ToggleVideo()))

	controls <- Controls{Audio: true, Video: false}
	require.Eventually(t, func() bool {
		f.surface.mu.Lock()
		defer f.surface.mu.Unlock()
		return f.surface.controls == Controls{Audio: true, Video: false}
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.obs.Submit(ctx, ToggleVideo()), ErrNotAvailable)

	// Ignored while not live; the next Ongoing reads preferences afresh.
	states <- meeting.Reconnecting{Heading: "Reconnecting..."}
	controls <- Controls{Audio: false, Video: false}
	require.NoError(t, f.obs.Submit(ctx, OpenChat()))
	f.surface.mu.Lock()
	defer f.surface.mu.Unlock()
	assert.Equal(t, Controls{Audio: true, Video: false}, f.surface.controls)
}

// Properties

func progressGen() *rapid.Generator[meeting.State] {
	return rapid.Custom(func(t *rapid.T) meeting.State {
		msg := rapid.StringMatching(`[a-z]{0,6}`).Draw(t, "message")
		switch rapid.IntRange(0, 5).Draw(t, "kind") {
		case 0:
			return meeting.Connecting{Heading: "Connecting...", Message: msg}
		case 1:
			return meeting.Joining{Heading: "Joining...", Message: msg}
		case 2:
			return meeting.LoadingMedia{Heading: "Loading Media...", Message: msg}
		case 3:
			return meeting.PublishingMedia{Heading: "Publishing Media...", Message: msg}
		case 4:
			return meeting.Reconnecting{Heading: "Reconnecting...", Message: msg}
		default:
			return meeting.Disconnecting{Heading: "Disconnecting...", Message: msg}
		}
	})
}

func TestProperty_OngoingHidesProgressAndStartsAudioOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		seq := rapid.SliceOfN(progressGen(), 0, 20).Draw(t, "progress")
		ongoing := rapid.IntRange(1, 4).Draw(t, "ongoing")

		f.handle(seq...)
		for i := 0; i < ongoing; i++ {
			f.handle(meeting.Ongoing{})
		}

		if f.router.starts != 1 {
			t.Fatalf("audio started %d times", f.router.starts)
		}
		wantHides := 0
		if len(seq) > 0 {
			wantHides = 1
		}
		if f.surface.hides != wantHides {
			t.Fatalf("progress hidden %d times, want %d", f.surface.hides, wantHides)
		}
		if f.obs.progressVisible {
			t.Fatal("progress still visible")
		}
	})
}

func TestProperty_SameKindRefreshesOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		seq := rapid.SliceOfN(progressGen(), 1, 30).Draw(t, "progress")

		wantShows := 0
		for i, s := range seq {
			if i == 0 || seq[i-1].Kind() != s.Kind() {
				wantShows++
			}
		}
		f.handle(seq...)

		if f.surface.shows != wantShows {
			t.Fatalf("shows=%d want %d", f.surface.shows, wantShows)
		}
		if f.surface.refreshes != len(seq)-wantShows {
			t.Fatalf("refreshes=%d want %d", f.surface.refreshes, len(seq)-wantShows)
		}
		last := seq[len(seq)-1].(meeting.Progress)
		heading, message := last.Progress()
		if f.surface.lastProgress != [2]string{heading, message} {
			t.Fatalf("progress shows %v", f.surface.lastProgress)
		}
	})
}

func TestProperty_ModalListsFailuresInOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		n := rapid.IntRange(1, 10).Draw(t, "n")

		var failures []error
		for i := 0; i < n; i++ {
			err := fmt.Errorf("cause %d", i)
			failures = append(failures, err)
			f.handle(meeting.Failure{Err: err, Failures: append([]error(nil), failures...)})
		}

		d := f.surface.lastModal
		if len(d.Failures) != n {
			t.Fatalf("modal lists %d failures, want %d", len(d.Failures), n)
		}
		for i, cause := range d.Failures {
			if cause != fmt.Sprintf("cause %d", i) {
				t.Fatalf("failure %d = %q", i, cause)
			}
		}
		if !strings.HasPrefix(d.Message, fmt.Sprintf("%d failures", n)) {
			t.Fatalf("message %q", d.Message)
		}
		if f.surface.modals-f.surface.dismisses != 1 {
			t.Fatalf("modals stacked: shown=%d dismissed=%d", f.surface.modals, f.surface.dismisses)
		}
	})
}

func TestProperty_RepeatedDisconnectedCleansUpOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		f.handle(joinSequence()...)
		k := rapid.IntRange(1, 10).Draw(t, "repeats")
		for i := 0; i < k; i++ {
			f.handle(meeting.Disconnected{GoToHome: rapid.Bool().Draw(t, "home")})
		}

		if f.router.stops != 1 {
			t.Fatalf("audio stopped %d times", f.router.stops)
		}
		if f.surface.homes > 1 {
			t.Fatalf("navigated home %d times", f.surface.homes)
		}
	})
}

// Controller-driven scenarios.

type scriptedClient struct {
	joins    int
	listener meeting.Listener
}

func (c *scriptedClient) Join(ctx context.Context, cfg meeting.JoinConfig, l meeting.Listener) error {
	c.joins++
	c.listener = l
	return nil
}
func (c *scriptedClient) Leave(ctx context.Context) error { return nil }
func (c *scriptedClient) SetLocalAudioEnabled(bool) error { return nil }
func (c *scriptedClient) SetLocalVideoEnabled(bool) error { return nil }
func (c *scriptedClient) SwitchCamera() error             { return nil }
func (c *scriptedClient) SetRemoteAudioMuted(bool)        {}
func (c *scriptedClient) SendBroadcast(ctx context.Context, text string) (chat.Message, error) {
	return chat.NewMessage("me", text, true), nil
}

func newControllerFixture(t *testing.T) (*fixture, *meeting.Controller, *scriptedClient, <-chan meeting.State) {
	t.Helper()
	client := &scriptedClient{}
	ctrl := meeting.NewController(client, func() meeting.JoinConfig {
		return meeting.JoinConfig{RoomID: "abc", Env: "qa-in2", PublishAudio: true, PublishVideo: true}
	})
	t.Cleanup(ctrl.Close)
	states, err := ctrl.States()
	require.NoError(t, err)

	f := &fixture{surface: &recorder{}, router: &router{}, chat: chat.NewStore(), report: &reporter{}}
	f.obs = NewObserver(ctrl, f.surface, WithAudio(f.router), WithChat(f.chat), WithReporter(f.report))
	return f, ctrl, client, states
}

func (f *fixture) pump(t *testing.T, states <-chan meeting.State, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case s := <-states:
			f.obs.Handle(s)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %d of %d", i+1, n)
		}
	}
}

func TestObserver_RetryAfterFailures(t *testing.T) {
	ctx := context.Background()
	f, ctrl, client, states := newControllerFixture(t)

	require.NoError(t, ctrl.Start(ctx))
	client.listener.OnJoined()
	client.listener.OnError(errors.New("A"))
	client.listener.OnError(errors.New("B"))
	// Disconnected, Connecting, Ongoing, Failure(A), Failure(B)
	f.pump(t, states, 5)

	assert.True(t, strings.HasPrefix(f.surface.lastModal.Message, "2 failures"))
	assert.Equal(t, []string{"A", "B"}, f.surface.lastModal.Failures)

	require.NoError(t, f.obs.Resolve(ctx, ChoiceRetry))
	f.pump(t, states, 1)

	assert.Equal(t, 2, client.joins, "retry starts exactly one new attempt")
	assert.Empty(t, ctrl.Failures())
	assert.IsType(t, meeting.Connecting{}, ctrl.Current())
}

func TestObserver_LeaveAfterFailures(t *testing.T) {
	ctx := context.Background()
	f, ctrl, client, states := newControllerFixture(t)

	require.NoError(t, ctrl.Start(ctx))
	client.listener.OnJoined()
	client.listener.OnError(errors.New("A"))
	f.pump(t, states, 4)
	require.Equal(t, 1, f.router.starts)

	require.NoError(t, f.obs.Resolve(ctx, ChoiceLeave))
	// Disconnecting, Disconnected{GoToHome}
	f.pump(t, states, 2)

	assert.Empty(t, ctrl.Failures())
	assert.False(t, f.router.running)
	assert.Equal(t, 1, f.surface.homes)
	assert.Equal(t, 1, client.joins)
}
