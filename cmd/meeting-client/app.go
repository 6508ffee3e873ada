package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/audio"
	"github.com/qieqieplus/meeting-client/pkg/chat"
	"github.com/qieqieplus/meeting-client/pkg/config"
	"github.com/qieqieplus/meeting-client/pkg/diag"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/loopback"
	"github.com/qieqieplus/meeting-client/pkg/meeting"
	"github.com/qieqieplus/meeting-client/pkg/metrics"
	"github.com/qieqieplus/meeting-client/pkg/screen"
	"github.com/qieqieplus/meeting-client/pkg/settings"
)

// app wires one call client: the settings store, the simulated SDK, the
// controller and the observer driving the shared view.
type app struct {
	cfg        *config.Config
	settings   *settings.Store
	chat       *chat.Store
	sdk        *loopback.Client
	controller *meeting.Controller
	audio      *audio.Manager
	reporter   *diag.Reporter
	metrics    *metrics.Manager
	view       *screen.ViewState
	observer   *screen.Observer

	stopHook func()
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := settings.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	if err := applyRoomOverrides(cfg, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("store room overrides: %w", err)
	}

	a := &app{
		cfg:      cfg,
		settings: store,
		chat:     chat.NewStore(),
		metrics:  metrics.NewManager(),
		view:     screen.NewViewState(),
		sdk: loopback.New(loopback.Options{
			StepDelay:  cfg.Loopback.StepDelay,
			FailJoins:  cfg.Loopback.FailJoins,
			EchoSender: cfg.Loopback.EchoSender,
		}),
	}

	a.controller = meeting.NewController(a.sdk, a.joinConfig, meeting.WithTransitionHook(a.metrics.RecordTransition))
	a.audio = audio.NewManager(audio.ALSAProber{}, settings.Get(store, settings.AudioPollInterval))

	a.reporter = diag.NewReporter(cfg.LogFile.Path, cfg.ExportDir)
	a.reporter.AddSnapshot("settings", func() (any, error) { return store.Snapshot() })
	a.reporter.AddSnapshot("view", func() (any, error) { return a.view.Snapshot(), nil })
	a.reporter.AddSnapshot("audio", func() (any, error) { return a.audioSnapshot(), nil })

	a.observer = screen.NewObserver(a.controller, a.view,
		screen.WithAudio(a.audio),
		screen.WithChat(a.chat),
		screen.WithReporter(a.reporter),
		screen.WithControls(a.controls),
		screen.WithRoom(func() screen.Room {
			return screen.Room{
				ID:  settings.Get(store, settings.LastUsedRoomID),
				Env: settings.Get(store, settings.Environment),
			}
		}),
		screen.WithAudioStartHook(a.metrics.RecordAudioStart),
	)

	a.stopHook = store.OnConstraintChange(func(name string) {
		log.WithFields(log.Fields{"key": name}).Debug("Media constraint changed, applies on next join")
	})
	return a, nil
}

// applyRoomOverrides stores room values given on the command line so they
// become the last used room.
func applyRoomOverrides(cfg *config.Config, store *settings.Store) error {
	if cfg.RoomID == "" && cfg.RoomEnv == "" && cfg.RoomRole == "" {
		return nil
	}
	return store.Edit(func(e *settings.Editor) error {
		if cfg.RoomID != "" {
			settings.Put(e, settings.LastUsedRoomID, cfg.RoomID)
		}
		if cfg.RoomEnv != "" {
			settings.Put(e, settings.Environment, cfg.RoomEnv)
		}
		if cfg.RoomRole != "" {
			settings.Put(e, settings.Role, cfg.RoomRole)
		}
		return nil
	})
}

// audioSnapshot describes the audio route for diagnostic reports.
func (a *app) audioSnapshot() map[string]any {
	selected, ok := a.audio.Selected()
	out := map[string]any{
		"running":       a.audio.Running(),
		"devices":       a.audio.Devices(),
		"poll_interval": a.audio.Interval().String(),
	}
	if ok {
		out["selected"] = selected
	}
	return out
}

// controls are the media toggles the call screen exposes.
func (a *app) controls() screen.Controls {
	return screen.Controls{
		Audio: settings.Get(a.settings, settings.PublishAudio),
		Video: settings.Get(a.settings, settings.PublishVideo),
	}
}

// joinConfig is read on every join attempt so that edits made between calls
// take effect.
func (a *app) joinConfig() meeting.JoinConfig {
	s := a.settings
	return meeting.JoinConfig{
		RoomID:    settings.Get(s, settings.LastUsedRoomID),
		Env:       settings.Get(s, settings.Environment),
		Role:      settings.Get(s, settings.Role),
		Username:  settings.Get(s, settings.Username),
		AuthToken: a.cfg.AuthToken,

		PublishAudio: settings.Get(s, settings.PublishAudio),
		PublishVideo: settings.Get(s, settings.PublishVideo),
		Camera:       settings.Get(s, settings.Camera),
		Codec:        settings.Get(s, settings.Codec),
		Width:        settings.Get(s, settings.VideoResolutionWidth),
		Height:       settings.Get(s, settings.VideoResolutionHeight),
		Bitrate:      settings.Get(s, settings.VideoBitrate),
		FrameRate:    settings.Get(s, settings.VideoFrameRate),

		DetectDominantSpeaker: settings.Get(s, settings.DetectDominantSpeaker),
		AudioPollInterval:     settings.Get(s, settings.AudioPollInterval),
		SilenceThreshold:      settings.Get(s, settings.SilenceAudioLevelThreshold),
	}
}

// run drives the observer until ctx is done.
func (a *app) run(ctx context.Context) error {
	states, err := a.controller.States()
	if err != nil {
		return err
	}

	controls := make(chan screen.Controls, 1)
	go a.followSettings(ctx, a.subscribeSettings(), controls)

	if a.cfg.AutoStart {
		go func() {
			if err := a.observer.Submit(ctx, screen.Start()); err != nil {
				log.Errorf("Failed to start call: %v", err)
			}
		}()
	}

	return a.observer.Run(ctx, screen.Inputs{
		States:     states,
		LocalAudio: a.controller.LocalAudio(),
		LocalVideo: a.controller.LocalVideo(),
		Messages:   a.controller.Messages(),
		Controls:   controls,
	})
}

// settingsFeed holds the subscriptions that change a running client.
type settingsFeed struct {
	pollInterval <-chan time.Duration
	publishAudio <-chan bool
	publishVideo <-chan bool
	stop         []func()
}

func (a *app) subscribeSettings() settingsFeed {
	var f settingsFeed
	var stop func()
	f.pollInterval, stop = settings.Subscribe(a.settings, settings.AudioPollInterval)
	f.stop = append(f.stop, stop)
	f.publishAudio, stop = settings.Subscribe(a.settings, settings.PublishAudio)
	f.stop = append(f.stop, stop)
	f.publishVideo, stop = settings.Subscribe(a.settings, settings.PublishVideo)
	f.stop = append(f.stop, stop)
	return f
}

// followSettings applies setting edits while the client runs. Media
// preferences are forwarded to the observer as the latest Controls.
func (a *app) followSettings(ctx context.Context, f settingsFeed, controls chan screen.Controls) {
	defer func() {
		for _, stop := range f.stop {
			stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-f.pollInterval:
			if !ok {
				return
			}
			a.audio.SetInterval(d)
			continue
		case _, ok := <-f.publishAudio:
			if !ok {
				return
			}
		case _, ok := <-f.publishVideo:
			if !ok {
				return
			}
		}

		select {
		case <-controls:
		default:
		}
		controls <- a.controls()
	}
}

// shutdown leaves any call and releases every resource. It is safe to call
// once run has returned.
func (a *app) shutdown(ctx context.Context) {
	if a.controller.IsOngoing() {
		if err := a.controller.Leave(ctx); err != nil {
			log.Warnf("Failed to leave call during shutdown: %v", err)
		}
	}
	a.observer.Close()
	a.controller.Close()
	a.audio.Stop()
	a.chat.Shutdown()
	a.stopHook()
	if err := a.settings.Close(); err != nil {
		log.Errorf("Failed to close settings: %v", err)
	}
	if err := log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
	}
}
