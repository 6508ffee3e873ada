package meeting

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/qieqieplus/meeting-client/pkg/chat"
	"github.com/qieqieplus/meeting-client/pkg/log"
)

// ConfigFunc builds the join configuration for a new attempt. It is called
// on every Start so that settings changed between attempts are picked up.
type ConfigFunc func() JoinConfig

// Option configures a Controller.
type Option func(*Controller)

// WithTransitionHook registers fn to be called for every emitted state.
func WithTransitionHook(fn func(State)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// Controller owns the connection lifecycle of one call: it drives the SDK,
// turns its callbacks into States, and keeps the failures the user has not
// acknowledged yet.
type Controller struct {
	client     Client
	joinConfig ConfigFunc

	mu       sync.Mutex
	current  State
	prior    State
	failures []error
	attempt  uint64
	session  string
	cfg      JoinConfig
	closed   bool

	queue      *stateQueue
	subscribed bool

	audioEnabled bool
	videoEnabled bool
	remoteMuted  bool
	audioFlags   chan bool
	videoFlags   chan bool

	messages chan chat.Message

	onTransition func(State)
}

// NewController creates a controller in the Disconnected state. The initial
// state is the first value delivered on States().
func NewController(client Client, joinConfig ConfigFunc, opts ...Option) *Controller {
	c := &Controller{
		client:     client,
		joinConfig: joinConfig,
		queue:      newStateQueue(),
		audioFlags: make(chan bool, 1),
		videoFlags: make(chan bool, 1),
		messages:   make(chan chat.Message, 64),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	c.emitLocked(Disconnected{})
	c.mu.Unlock()
	return c
}

// States returns the state stream. It has exactly one consumer; a second
// call fails with ErrAlreadySubscribed.
func (c *Controller) States() (<-chan State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribed {
		return nil, ErrAlreadySubscribed
	}
	c.subscribed = true
	return c.queue.out, nil
}

// LocalAudio delivers the local microphone flag. Only the latest value is kept.
func (c *Controller) LocalAudio() <-chan bool { return c.audioFlags }

// LocalVideo delivers the local camera flag. Only the latest value is kept.
func (c *Controller) LocalVideo() <-chan bool { return c.videoFlags }

// Messages delivers chat broadcasts received from the call.
func (c *Controller) Messages() <-chan chat.Message { return c.messages }

// Current returns the most recently emitted state.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Prior returns the last state emitted before the pending failures, or the
// current state when there are none.
func (c *Controller) Prior() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prior == nil {
		return c.current
	}
	return c.prior
}

// Failures returns the unacknowledged failures in arrival order.
func (c *Controller) Failures() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureSnapshotLocked()
}

// SessionID identifies the current join attempt.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// IsOngoing reports whether the call is live.
func (c *Controller) IsOngoing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Kind() == KindOngoing
}

// IsAudioMuted reports whether remote audio playback is muted.
func (c *Controller) IsAudioMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteMuted
}

// Start begins a new join attempt. It is a no-op unless the call is
// Disconnected; pending failures must be answered with Retry or Leave.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, ok := c.current.(Disconnected); !ok {
		log.Debugf("Ignoring start while %s", c.current)
		c.mu.Unlock()
		return nil
	}
	return c.beginLocked(ctx)
}

// beginLocked emits Connecting and joins. It releases c.mu.
func (c *Controller) beginLocked(ctx context.Context) error {
	c.attempt++
	attempt := c.attempt
	c.session = uuid.NewString()
	cfg := c.joinConfig()
	cfg.SessionID = c.session
	c.cfg = cfg
	c.emitLocked(Connecting{
		Heading: "Connecting...",
		Message: connectingMessage(cfg.RoomID),
	})
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"session": cfg.SessionID,
		"room":    cfg.RoomID,
		"env":     cfg.Env,
		"role":    cfg.Role,
	}).Info("Starting meeting")

	if err := c.client.Join(ctx, cfg, &attemptListener{c: c, attempt: attempt, cfg: cfg}); err != nil {
		c.fail(attempt, fmt.Errorf("join room %s: %w", cfg.RoomID, err))
	}
	return nil
}

// Retry clears the accumulated failures and starts exactly one new attempt.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.current.(type) {
	case Disconnected, Failure:
	default:
		log.Debugf("Ignoring retry while %s", c.current)
		c.mu.Unlock()
		return nil
	}
	c.failures = nil
	return c.beginLocked(ctx)
}

// Leave disconnects from the call and asks the screen to go home. Leaving
// errors are logged, never surfaced as failures.
func (c *Controller) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.attempt++
	c.failures = nil
	wasLive := c.current.Kind() != KindDisconnected
	if wasLive {
		c.emitLocked(Disconnecting{
			Heading: "Disconnecting...",
			Message: "Leaving the meeting",
		})
	}
	session := c.session
	c.mu.Unlock()

	if wasLive {
		if err := c.client.Leave(ctx); err != nil {
			log.WithFields(log.Fields{"session": session}).Warnf("Error leaving meeting: %v", err)
		}
	}

	c.mu.Lock()
	c.resetMediaLocked()
	c.emitLocked(Disconnected{GoToHome: true})
	c.mu.Unlock()

	log.WithFields(log.Fields{"session": session}).Info("Left meeting")
	return nil
}

// ToggleLocalAudio flips the local microphone. Only allowed while ongoing.
func (c *Controller) ToggleLocalAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Kind() != KindOngoing {
		return ErrNotOngoing
	}
	next := !c.audioEnabled
	if err := c.client.SetLocalAudioEnabled(next); err != nil {
		return fmt.Errorf("set local audio: %w", err)
	}
	c.audioEnabled = next
	latest(c.audioFlags, next)
	return nil
}

// ToggleLocalVideo flips the local camera. Only allowed while ongoing.
func (c *Controller) ToggleLocalVideo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Kind() != KindOngoing {
		return ErrNotOngoing
	}
	next := !c.videoEnabled
	if err := c.client.SetLocalVideoEnabled(next); err != nil {
		return fmt.Errorf("set local video: %w", err)
	}
	c.videoEnabled = next
	latest(c.videoFlags, next)
	return nil
}

// FlipCamera switches between front and back cameras.
func (c *Controller) FlipCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Kind() != KindOngoing {
		return ErrNotOngoing
	}
	if err := c.client.SwitchCamera(); err != nil {
		return fmt.Errorf("switch camera: %w", err)
	}
	return nil
}

// ToggleRemoteAudio mutes or unmutes playback of the other participants.
func (c *Controller) ToggleRemoteAudio() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Kind() != KindOngoing {
		return ErrNotOngoing
	}
	c.remoteMuted = !c.remoteMuted
	c.client.SetRemoteAudioMuted(c.remoteMuted)
	return nil
}

// SendChatMessage broadcasts text to the room.
func (c *Controller) SendChatMessage(ctx context.Context, text string) (chat.Message, error) {
	if !c.IsOngoing() {
		return chat.Message{}, ErrNotOngoing
	}
	msg, err := c.client.SendBroadcast(ctx, text)
	if err != nil {
		return chat.Message{}, fmt.Errorf("send broadcast: %w", err)
	}
	return msg, nil
}

// Close stops delivering states. Callbacks from the SDK that arrive later
// are ignored. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.attempt++
	c.queue.close()
}

func (c *Controller) fail(attempt uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.attempt || c.closed {
		log.Debugf("Dropping failure from stale attempt %d: %v", attempt, err)
		return
	}

	c.failures = append(c.failures, err)
	c.resetMediaLocked()
	log.WithFields(log.Fields{
		"session":  c.session,
		"failures": len(c.failures),
	}).Errorf("Meeting failure: %v", err)

	c.emitLocked(Failure{Err: err, Failures: c.failureSnapshotLocked()})
}

// advance applies an SDK callback for attempt, ignoring stale ones.
func (c *Controller) advance(attempt uint64, next State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attempt != c.attempt || c.closed {
		log.Debugf("Dropping %s from stale attempt %d", next, attempt)
		return
	}
	// Pending failures stay on screen until the user retries or leaves.
	if c.current.Kind() == KindFailure {
		log.Debugf("Holding %s behind unacknowledged failures", next)
		return
	}
	if next.Kind() == KindOngoing && c.current.Kind() != KindOngoing {
		c.audioEnabled = c.cfg.PublishAudio
		c.videoEnabled = c.cfg.PublishVideo
		latest(c.audioFlags, c.audioEnabled)
		latest(c.videoFlags, c.videoEnabled)
	}
	c.emitLocked(next)
}

func (c *Controller) receive(attempt uint64, msg chat.Message) {
	c.mu.Lock()
	stale := attempt != c.attempt || c.closed
	c.mu.Unlock()
	if stale {
		return
	}

	select {
	case c.messages <- msg:
	default:
		log.Warnf("Dropping chat message %s (channel full)", msg.ID)
	}
}

// emitLocked must be called with the mutex held.
func (c *Controller) emitLocked(s State) {
	if s.Kind() == KindFailure {
		if c.current != nil && c.current.Kind() != KindFailure {
			c.prior = c.current
		}
	} else {
		c.prior = nil
	}
	c.current = s
	log.Debugf("Meeting state: %s", s)
	if c.onTransition != nil {
		c.onTransition(s)
	}
	c.queue.push(s)
}

func (c *Controller) failureSnapshotLocked() []error {
	out := make([]error, len(c.failures))
	copy(out, c.failures)
	return out
}

func (c *Controller) resetMediaLocked() {
	c.audioEnabled = false
	c.videoEnabled = false
	c.remoteMuted = false
	latest(c.audioFlags, false)
	latest(c.videoFlags, false)
}

// latest replaces any unread value in ch with v. ch must have capacity 1 and
// a single writer.
func latest(ch chan bool, v bool) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func connectingMessage(roomID string) string {
	if roomID == "" {
		return ""
	}
	return "Connecting to room " + roomID
}

type attemptListener struct {
	c       *Controller
	attempt uint64
	cfg     JoinConfig
}

func (l *attemptListener) OnStage(stage Stage) {
	switch stage {
	case StageJoining:
		l.c.advance(l.attempt, Joining{Heading: "Joining...", Message: "Joining as " + l.cfg.Username})
	case StageLoadingMedia:
		l.c.advance(l.attempt, LoadingMedia{Heading: "Loading Media...", Message: "Preparing local audio and video"})
	case StagePublishingMedia:
		l.c.advance(l.attempt, PublishingMedia{Heading: "Publishing Media...", Message: "Sharing local audio and video"})
	default:
		log.Warnf("Unknown join stage %d", stage)
	}
}

func (l *attemptListener) OnJoined() {
	l.c.advance(l.attempt, Ongoing{})
}

func (l *attemptListener) OnReconnecting(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.c.advance(l.attempt, Reconnecting{Heading: "Reconnecting...", Message: msg})
}

func (l *attemptListener) OnReconnected() {
	l.c.advance(l.attempt, Ongoing{})
}

func (l *attemptListener) OnError(err error) {
	l.c.fail(l.attempt, err)
}

func (l *attemptListener) OnMessage(msg chat.Message) {
	l.c.receive(l.attempt, msg)
}
