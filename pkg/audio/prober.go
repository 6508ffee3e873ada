package audio

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// Prober lists the audio routes currently available.
type Prober interface {
	Probe(ctx context.Context) ([]Device, error)
}

// StaticProber returns a fixed device list that can be replaced at runtime.
type StaticProber struct {
	mu      sync.Mutex
	devices []Device
	err     error
}

func NewStaticProber(devices ...Device) *StaticProber {
	return &StaticProber{devices: devices}
}

// Set replaces the device list returned by subsequent probes.
func (p *StaticProber) Set(devices ...Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devices
	p.err = nil
}

// Fail makes subsequent probes return err until the next Set.
func (p *StaticProber) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *StaticProber) Probe(ctx context.Context) ([]Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return append([]Device(nil), p.devices...), nil
}

// DefaultCardsPath is the ALSA card list on Linux.
const DefaultCardsPath = "/proc/asound/cards"

// ALSAProber classifies the sound cards listed by ALSA. Hosts without ALSA
// get a single speakerphone route.
type ALSAProber struct {
	Path string
}

func (p ALSAProber) Probe(ctx context.Context) ([]Device, error) {
	path := p.Path
	if path == "" {
		path = DefaultCardsPath
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Device{{Type: DeviceSpeakerphone, Name: "default"}}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices []Device
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// " 0 [PCH            ]: HDA-Intel - HDA Intel PCH"
		line := scanner.Text()
		_, desc, ok := strings.Cut(line, "]: ")
		if !ok {
			continue
		}
		devices = append(devices, Device{Type: classify(desc), Name: strings.TrimSpace(desc)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		devices = append(devices, Device{Type: DeviceSpeakerphone, Name: "default"})
	}
	return devices, nil
}

func classify(desc string) DeviceType {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "bluez"), strings.Contains(d, "bluetooth"):
		return DeviceBluetooth
	case strings.Contains(d, "headset"), strings.Contains(d, "usb-audio"):
		return DeviceWiredHeadset
	default:
		return DeviceSpeakerphone
	}
}
