package settings

import (
	"encoding"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Key names a typed setting and its default.
type Key[T any] struct {
	Name    string
	Default T
	// Constraint marks settings that affect local media constraints.
	Constraint bool
}

type keyEntry struct {
	name       string
	constraint bool
	def        any
	parse      func(raw string) ([]byte, error)
	decode     func(data []byte) (any, error)
}

var registry = map[string]keyEntry{}

func newKey[T any](name string, def T, constraint bool) Key[T] {
	registry[name] = keyEntry{
		name:       name,
		constraint: constraint,
		def:        def,
		parse: func(raw string) ([]byte, error) {
			v, err := parseValue[T](raw)
			if err != nil {
				return nil, err
			}
			return json.Marshal(v)
		},
		decode: func(data []byte) (any, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
	return Key[T]{Name: name, Default: def, Constraint: constraint}
}

var (
	PublishVideo          = newKey("publish-video", true, false)
	Camera                = newKey("camera", "user", false)
	PublishAudio          = newKey("publish-audio", true, false)
	VideoResolutionWidth  = newKey("video-resolution-width", 640, true)
	VideoResolutionHeight = newKey("video-resolution-height", 480, true)
	Codec                 = newKey("codec", "VP8", false)
	VideoBitrate          = newKey("video-bitrate", 256, true)
	Role                  = newKey("role", "Student", false)
	VideoFrameRate        = newKey("video-frame-rate", 24, true)
	Username              = newKey("username", "Android User", false)

	DetectDominantSpeaker      = newKey("detect-dominant-speaker", true, false)
	ShowNetworkInfo            = newKey("show-network-info", true, false)
	AudioPollInterval          = newKey("audio-poll-interval", time.Second, false)
	SilenceAudioLevelThreshold = newKey("silence-audio-level-threshold", 10, false)

	LastUsedRoomID = newKey("last-used-room-id", "", false)
	Environment    = newKey("last-used-env", "qa-in2", false)

	VideoGridRows    = newKey("video-grid-rows", 2, false)
	VideoGridColumns = newKey("video-grid-columns", 2, false)

	LogLevelWebRTC = newKey("log-level-webrtc", LevelWarn, false)
	LogLevelSDK    = newKey("log-level-100ms", LevelVerbose, false)

	LeakCanary = newKey("leak-canary", false, false)
)

// Names returns every known setting name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConstraintKeys returns the settings that affect local media constraints.
func ConstraintKeys() []string {
	var names []string
	for name, e := range registry {
		if e.constraint {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// IsConstraintKey reports whether name affects local media constraints.
func IsConstraintKey(name string) bool {
	return registry[name].constraint
}

func parseValue[T any](raw string) (T, error) {
	var v T
	var err error

	switch p := any(&v).(type) {
	case *string:
		*p = raw
	case *bool:
		*p, err = strconv.ParseBool(raw)
	case *int:
		*p, err = strconv.Atoi(raw)
	case *time.Duration:
		*p, err = time.ParseDuration(raw)
	case encoding.TextUnmarshaler:
		err = p.UnmarshalText([]byte(raw))
	default:
		err = json.Unmarshal([]byte(raw), p)
	}
	if err != nil {
		return v, fmt.Errorf("%w: %q: %v", ErrInvalidValue, raw, err)
	}
	return v, nil
}
