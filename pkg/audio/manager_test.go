package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	earpiece = Device{Type: DeviceEarpiece, Name: "earpiece"}
	speaker  = Device{Type: DeviceSpeakerphone, Name: "speaker"}
	wired    = Device{Type: DeviceWiredHeadset, Name: "headset"}
	bt       = Device{Type: DeviceBluetooth, Name: "buds"}
)

type changes struct {
	mu   sync.Mutex
	seen []Device
}

func (c *changes) record(selected Device, _ []Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, selected)
}

func (c *changes) list() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Device(nil), c.seen...)
}

func TestDeviceType_String(t *testing.T) {
	tests := []struct {
		typ      DeviceType
		expected string
	}{
		{DeviceNone, "none"},
		{DeviceEarpiece, "earpiece"},
		{DeviceSpeakerphone, "speakerphone"},
		{DeviceWiredHeadset, "wired_headset"},
		{DeviceBluetooth, "bluetooth"},
		{DeviceType(42), "unknown"},
	}

	for _, test := range tests {
		if got := test.typ.String(); got != test.expected {
			t.Errorf("DeviceType(%d).String() = %q, want %q", test.typ, got, test.expected)
		}
		if test.typ >= DeviceEarpiece && test.typ <= DeviceBluetooth {
			parsed, ok := ParseDeviceType(test.expected)
			if !ok || parsed != test.typ {
				t.Errorf("ParseDeviceType(%q) = %v, %t", test.expected, parsed, ok)
			}
		}
	}
}

func TestManager_StartSelectsByPriority(t *testing.T) {
	tests := []struct {
		name     string
		devices  []Device
		expected DeviceType
	}{
		{"bluetooth wins", []Device{earpiece, speaker, wired, bt}, DeviceBluetooth},
		{"wired over speaker", []Device{speaker, wired, earpiece}, DeviceWiredHeadset},
		{"speaker over earpiece", []Device{earpiece, speaker}, DeviceSpeakerphone},
		{"earpiece only", []Device{earpiece}, DeviceEarpiece},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := NewManager(NewStaticProber(test.devices...), 0)
			var c changes
			require.NoError(t, m.Start(c.record))
			defer m.Stop()

			selected, ok := m.Selected()
			require.True(t, ok)
			assert.Equal(t, test.expected, selected.Type)
			assert.Len(t, c.list(), 1)
		})
	}
}

func TestManager_StartTwiceIsNoop(t *testing.T) {
	m := NewManager(NewStaticProber(speaker), 0)
	var c changes
	require.NoError(t, m.Start(c.record))
	require.NoError(t, m.Start(c.record))
	assert.Len(t, c.list(), 1)
	m.Stop()
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager(NewStaticProber(speaker), 10*time.Millisecond)

	m.Stop()
	require.NoError(t, m.Start(nil))
	assert.True(t, m.Running())

	m.Stop()
	m.Stop()
	assert.False(t, m.Running())
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestManager_StartProbeError(t *testing.T) {
	p := NewStaticProber()
	p.Fail(errors.New("no sound server"))
	m := NewManager(p, 0)

	require.Error(t, m.Start(nil))
	assert.False(t, m.Running())
}

func TestManager_UpdateDeviceState(t *testing.T) {
	p := NewStaticProber(earpiece, speaker)
	m := NewManager(p, 0)
	var c changes
	require.NoError(t, m.Start(c.record))
	defer m.Stop()

	p.Set(earpiece, speaker, wired)
	require.NoError(t, m.UpdateDeviceState())
	selected, _ := m.Selected()
	assert.Equal(t, DeviceWiredHeadset, selected.Type)

	// Unchanged list: no notification.
	require.NoError(t, m.UpdateDeviceState())
	assert.Equal(t, []Device{speaker, wired}, c.list())

	p.Set(earpiece, speaker)
	require.NoError(t, m.UpdateDeviceState())
	selected, _ = m.Selected()
	assert.Equal(t, DeviceSpeakerphone, selected.Type)
}

func TestManager_SelectDevice(t *testing.T) {
	p := NewStaticProber(earpiece, speaker)
	m := NewManager(p, 0)

	assert.ErrorIs(t, m.SelectDevice(DeviceEarpiece), ErrNotRunning)

	require.NoError(t, m.Start(nil))
	defer m.Stop()

	assert.ErrorIs(t, m.SelectDevice(DeviceBluetooth), ErrDeviceUnavailable)
	require.NoError(t, m.SelectDevice(DeviceEarpiece))

	// The explicit choice survives a re-probe while still available.
	p.Set(earpiece, speaker, wired)
	require.NoError(t, m.UpdateDeviceState())
	selected, _ := m.Selected()
	assert.Equal(t, DeviceEarpiece, selected.Type)

	p.Set(speaker, wired)
	require.NoError(t, m.UpdateDeviceState())
	selected, _ = m.Selected()
	assert.Equal(t, DeviceWiredHeadset, selected.Type)
}

func TestManager_PollPicksUpChanges(t *testing.T) {
	p := NewStaticProber(speaker)
	m := NewManager(p, 5*time.Millisecond)
	require.NoError(t, m.Start(nil))
	defer m.Stop()

	p.Set(speaker, bt)
	require.Eventually(t, func() bool {
		selected, _ := m.Selected()
		return selected.Type == DeviceBluetooth
	}, time.Second, 5*time.Millisecond)
}

func TestManager_SetIntervalRestartsPolling(t *testing.T) {
	p := NewStaticProber(speaker)
	m := NewManager(p, 0)
	m.SetInterval(0)
	require.NoError(t, m.Start(nil))
	defer m.Stop()

	p.Set(speaker, bt)
	time.Sleep(20 * time.Millisecond)
	selected, _ := m.Selected()
	assert.Equal(t, DeviceSpeakerphone, selected.Type, "polling is off")

	m.SetInterval(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, m.Interval())
	require.Eventually(t, func() bool {
		selected, _ := m.Selected()
		return selected.Type == DeviceBluetooth
	}, time.Second, 5*time.Millisecond)

	m.SetInterval(0)
	p.Set(speaker, wired)
	time.Sleep(20 * time.Millisecond)
	selected, _ = m.Selected()
	assert.Equal(t, DeviceBluetooth, selected.Type, "polling is off again")
}

func TestManager_SetIntervalBeforeStart(t *testing.T) {
	p := NewStaticProber(speaker)
	m := NewManager(p, 0)
	m.SetInterval(5 * time.Millisecond)
	require.NoError(t, m.Start(nil))
	defer m.Stop()

	p.Set(speaker, wired)
	require.Eventually(t, func() bool {
		selected, _ := m.Selected()
		return selected.Type == DeviceWiredHeadset
	}, time.Second, 5*time.Millisecond)
}

func TestALSAProber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards")
	content := ` 0 [PCH            ]: HDA-Intel - HDA Intel PCH
                      HDA Intel PCH at 0xf7f10000 irq 33
 1 [Headset        ]: USB-Audio - Jabra Headset
 2 [Buds           ]: bluez - Bluetooth Audio
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	devices, err := ALSAProber{Path: path}.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, DeviceSpeakerphone, devices[0].Type)
	assert.Equal(t, DeviceWiredHeadset, devices[1].Type)
	assert.Equal(t, DeviceBluetooth, devices[2].Type)

	devices, err = ALSAProber{Path: filepath.Join(dir, "missing")}.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Device{{Type: DeviceSpeakerphone, Name: "default"}}, devices)
}
