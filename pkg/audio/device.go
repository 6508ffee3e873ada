package audio

// DeviceType is the kind of audio output route. Larger values win when the
// manager picks a device automatically.
type DeviceType int

const (
	DeviceNone DeviceType = iota
	DeviceEarpiece
	DeviceSpeakerphone
	DeviceWiredHeadset
	DeviceBluetooth
)

func (t DeviceType) String() string {
	switch t {
	case DeviceNone:
		return "none"
	case DeviceEarpiece:
		return "earpiece"
	case DeviceSpeakerphone:
		return "speakerphone"
	case DeviceWiredHeadset:
		return "wired_headset"
	case DeviceBluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// ParseDeviceType is the inverse of String.
func ParseDeviceType(s string) (DeviceType, bool) {
	for t := DeviceEarpiece; t <= DeviceBluetooth; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return DeviceNone, false
}

// Device is one available audio route.
type Device struct {
	Type DeviceType `json:"type"`
	Name string     `json:"name"`
}

// best returns the highest-priority device, or false for an empty list.
func best(devices []Device) (Device, bool) {
	var out Device
	for _, d := range devices {
		if d.Type > out.Type {
			out = d
		}
	}
	return out, out.Type != DeviceNone
}

func find(devices []Device, t DeviceType) (Device, bool) {
	for _, d := range devices {
		if d.Type == t {
			return d, true
		}
	}
	return Device{}, false
}

func sameDevices(a, b []Device) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
