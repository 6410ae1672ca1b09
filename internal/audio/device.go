// SPDX-License-Identifier: MIT
package audio

import "time"

// Device describes one PortAudio device.
type Device struct {
	ID                       int
	Name                     string
	HostAPI                  string
	MaxInputChannels         int
	MaxOutputChannels        int
	DefaultSampleRate        float64
	DefaultLowOutputLatency  time.Duration
	DefaultHighOutputLatency time.Duration
	IsDefaultOutput          bool
}

// CanOutput reports whether the device has at least one output channel.
func (d Device) CanOutput() bool {
	return d.MaxOutputChannels > 0
}

// HostDevices lists every device. PortAudio must be initialised.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if def, err := paLibDefaultOutputDeviceFunc(); err == nil && def != nil {
		defaultName = def.Name
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                       i,
			Name:                     info.Name,
			MaxInputChannels:         info.MaxInputChannels,
			MaxOutputChannels:        info.MaxOutputChannels,
			DefaultSampleRate:        info.DefaultSampleRate,
			DefaultLowOutputLatency:  info.DefaultLowOutputLatency,
			DefaultHighOutputLatency: info.DefaultHighOutputLatency,
			IsDefaultOutput:          info.Name != "" && info.Name == defaultName,
		}
		if info.HostApi != nil {
			devices[i].HostAPI = info.HostApi.Name
		}
	}
	return devices, nil
}

// Devices initialises PortAudio, lists every device and terminates again.
// Use HostDevices when PortAudio is already running.
func Devices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	return HostDevices()
}
