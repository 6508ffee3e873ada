package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/log"
)

// ChangeFunc is called whenever the selected device or the device list
// changes. It runs outside the manager's lock.
type ChangeFunc func(selected Device, available []Device)

// Manager selects and tracks the active audio route for a call.
type Manager struct {
	prober   Prober
	interval time.Duration

	mu       sync.Mutex
	running  bool
	devices  []Device
	selected Device
	// preferred is the user's explicit choice; it wins while available.
	preferred DeviceType
	onChange  ChangeFunc
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a manager that re-probes every interval while running.
// A non-positive interval disables polling.
func NewManager(prober Prober, interval time.Duration) *Manager {
	return &Manager{
		prober:   prober,
		interval: interval,
	}
}

// Start probes the available devices, selects one and starts polling.
// Calling Start on a running manager does nothing.
func (m *Manager) Start(onChange ChangeFunc) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}

	devices, err := m.prober.Probe(context.Background())
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("probe audio devices: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.onChange = onChange
	m.cancel = cancel
	m.done = make(chan struct{})
	m.preferred = DeviceNone
	m.devices = devices
	m.selected, _ = best(devices)
	selected, available := m.selected, m.devicesLocked()
	done, interval := m.done, m.interval
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"device":    selected.Type.String(),
		"available": len(available),
	}).Info("Audio routing started")

	m.startPolling(ctx, done, interval)

	if onChange != nil {
		onChange(selected, available)
	}
	return nil
}

// Stop releases the route and stops polling. It is safe to call any number
// of times, including before Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.onChange = nil
	m.devices = nil
	m.selected = Device{}
	m.preferred = DeviceNone
	m.mu.Unlock()

	cancel()
	<-done
	log.Info("Audio routing stopped")
}

// SetInterval changes the poll interval. A running manager restarts its
// poller with the new interval.
func (m *Manager) SetInterval(d time.Duration) {
	m.mu.Lock()
	if d == m.interval {
		m.mu.Unlock()
		return
	}
	m.interval = d
	if !m.running {
		m.mu.Unlock()
		return
	}
	oldCancel, oldDone := m.cancel, m.done
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	oldCancel()
	<-oldDone
	log.WithFields(log.Fields{"interval": d.String()}).Info("Audio poll interval changed")
	m.startPolling(ctx, done, d)
}

// Interval returns the current poll interval.
func (m *Manager) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Running reports whether the manager holds an audio route.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// UpdateDeviceState re-probes immediately and reselects if needed.
func (m *Manager) UpdateDeviceState() error {
	devices, err := m.prober.Probe(context.Background())
	if err != nil {
		return fmt.Errorf("probe audio devices: %w", err)
	}
	m.apply(devices)
	return nil
}

// SelectDevice pins the route to a device type while it stays available.
func (m *Manager) SelectDevice(t DeviceType) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	d, ok := find(m.devices, t)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, t)
	}
	m.preferred = t
	changed := m.selected != d
	m.selected = d
	onChange, available := m.onChange, m.devicesLocked()
	m.mu.Unlock()

	if changed {
		log.Infof("Audio device selected: %s", d.Type)
		if onChange != nil {
			onChange(d, available)
		}
	}
	return nil
}

// Selected returns the active device, or false when not running.
func (m *Manager) Selected() (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected, m.running && m.selected.Type != DeviceNone
}

// Devices returns the last probed device list.
func (m *Manager) Devices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devicesLocked()
}

func (m *Manager) devicesLocked() []Device {
	return append([]Device(nil), m.devices...)
}

func (m *Manager) apply(devices []Device) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	next, ok := find(devices, m.preferred)
	if !ok {
		next, _ = best(devices)
	}
	if sameDevices(m.devices, devices) && next == m.selected {
		m.mu.Unlock()
		return
	}
	if next.Type != m.selected.Type {
		log.WithFields(log.Fields{
			"from": m.selected.Type.String(),
			"to":   next.Type.String(),
		}).Info("Audio device changed")
	}
	m.devices = devices
	m.selected = next
	onChange, available := m.onChange, m.devicesLocked()
	m.mu.Unlock()

	if onChange != nil {
		onChange(next, available)
	}
}

func (m *Manager) startPolling(ctx context.Context, done chan struct{}, interval time.Duration) {
	if interval > 0 {
		go m.poll(ctx, done, interval)
	} else {
		close(done)
	}
}

func (m *Manager) poll(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			devices, err := m.prober.Probe(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warnf("Failed to probe audio devices: %v", err)
				}
				continue
			}
			m.apply(devices)
		}
	}
}
