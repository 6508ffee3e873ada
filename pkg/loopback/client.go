package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/chat"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/meeting"
)

// Options configures the simulated SDK.
type Options struct {
	// StepDelay is the pause between join stages.
	StepDelay time.Duration
	// FailJoins makes the first n joins fail after the joining stage.
	FailJoins int
	// EchoSender, when set, echoes every broadcast back as a remote message.
	EchoSender string
}

// Client simulates the call SDK in-process. It walks through the join
// stages on its own goroutine and reports through the listener.
type Client struct {
	opts Options

	mu        sync.Mutex
	joins     int
	listener  meeting.Listener
	cfg       meeting.JoinConfig
	joined    bool
	cancel    context.CancelFunc
	audio     bool
	video     bool
	camera    string
	muted     bool
	broadcast []chat.Message
}

func New(opts Options) *Client {
	return &Client{opts: opts}
}

func (c *Client) Join(ctx context.Context, cfg meeting.JoinConfig, l meeting.Listener) error {
	if cfg.RoomID == "" {
		return ErrMissingRoomID
	}

	c.mu.Lock()
	c.stopLocked()
	c.joins++
	attempt := c.joins
	fail := attempt <= c.opts.FailJoins
	runCtx, cancel := context.WithCancel(context.Background())
	c.listener = l
	c.cfg = cfg
	c.joined = false
	c.cancel = cancel
	c.audio = cfg.PublishAudio
	c.video = cfg.PublishVideo
	c.camera = cfg.Camera
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"room":    cfg.RoomID,
		"attempt": attempt,
		"fail":    fail,
	}).Info("Loopback join started")

	go c.run(runCtx, l, fail)
	return nil
}

func (c *Client) run(ctx context.Context, l meeting.Listener, fail bool) {
	l.OnStage(meeting.StageJoining)
	if !c.wait(ctx) {
		return
	}
	if fail {
		l.OnError(fmt.Errorf("%w: %s", ErrJoinRejected, c.roomID()))
		return
	}

	l.OnStage(meeting.StageLoadingMedia)
	if !c.wait(ctx) {
		return
	}
	l.OnStage(meeting.StagePublishingMedia)
	if !c.wait(ctx) {
		return
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.joined = true
	c.mu.Unlock()
	l.OnJoined()
}

func (c *Client) wait(ctx context.Context) bool {
	if c.opts.StepDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.opts.StepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	active := c.cancel != nil
	c.stopLocked()
	c.joined = false
	c.listener = nil
	c.mu.Unlock()

	if !active {
		return ErrNotJoined
	}
	log.Info("Loopback left room")
	return nil
}

// stopLocked cancels a join in progress. Callers hold c.mu.
func (c *Client) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// DropNetwork simulates a network loss followed by recovery after the step
// delay.
func (c *Client) DropNetwork(reason error) error {
	c.mu.Lock()
	l, joined := c.listener, c.joined
	c.mu.Unlock()
	if !joined || l == nil {
		return ErrNotJoined
	}

	l.OnReconnecting(reason)
	go func() {
		if c.opts.StepDelay > 0 {
			time.Sleep(c.opts.StepDelay)
		}
		l.OnReconnected()
	}()
	return nil
}

// Fail reports a fatal error for the current call.
func (c *Client) Fail(err error) error {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l == nil {
		return ErrNotJoined
	}
	l.OnError(err)
	return nil
}

// Deliver simulates a broadcast from another participant.
func (c *Client) Deliver(sender, text string) error {
	c.mu.Lock()
	l, joined := c.listener, c.joined
	c.mu.Unlock()
	if !joined || l == nil {
		return ErrNotJoined
	}
	l.OnMessage(chat.NewMessage(sender, text, false))
	return nil
}

func (c *Client) SetLocalAudioEnabled(enabled bool) error {
	if !c.isJoined() {
		return ErrNotJoined
	}
	c.mu.Lock()
	c.audio = enabled
	c.mu.Unlock()
	return nil
}

func (c *Client) SetLocalVideoEnabled(enabled bool) error {
	if !c.isJoined() {
		return ErrNotJoined
	}
	c.mu.Lock()
	c.video = enabled
	c.mu.Unlock()
	return nil
}

func (c *Client) SwitchCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return ErrNotJoined
	}
	if c.camera == "environment" {
		c.camera = "user"
	} else {
		c.camera = "environment"
	}
	return nil
}

func (c *Client) SetRemoteAudioMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = muted
}

func (c *Client) SendBroadcast(ctx context.Context, text string) (chat.Message, error) {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return chat.Message{}, ErrNotJoined
	}
	msg := chat.NewMessage(c.cfg.Username, text, true)
	c.broadcast = append(c.broadcast, msg)
	l := c.listener
	c.mu.Unlock()

	if c.opts.EchoSender != "" && l != nil {
		go l.OnMessage(chat.NewMessage(c.opts.EchoSender, text, false))
	}
	return msg, nil
}

// Media reports the simulated local media state.
func (c *Client) Media() (audio, video bool, camera string, remoteMuted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio, c.video, c.camera, c.muted
}

func (c *Client) Joins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joins
}

func (c *Client) Broadcasts() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.broadcast...)
}

func (c *Client) isJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Client) roomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.RoomID
}
