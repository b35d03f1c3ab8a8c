package audio

import (
	"fmt"
	"strings"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypePortAudio BackendType = "portaudio"
	BackendTypePipeWire  BackendType = "pipewire"
	BackendTypeAuto      BackendType = "auto"
)

// DeviceInfo describes one audio device reported by a backend
type DeviceInfo struct {
	Name              string  `json:"name" yaml:"name"`
	HostAPI           string  `json:"host_api" yaml:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
	IsDefaultInput    bool    `json:"is_default_input" yaml:"is_default_input"`
	IsDefaultOutput   bool    `json:"is_default_output" yaml:"is_default_output"`
}

// DuplexParams configures a simultaneous playback/capture stream.
// Empty device names select the system defaults.
type DuplexParams struct {
	InputDevice     string
	OutputDevice    string
	InputChannels   int
	OutputChannels  int
	SampleRate      float64
	FramesPerBuffer int
}

// DuplexStream is a blocking duplex stream. Write and Read move exactly
// FramesPerBuffer frames per call.
type DuplexStream interface {
	Start() error
	Write(out []float32) error
	Read(in []float32) error
	Stop() error
	Close() error
}

// Backend defines the interface for audio backend implementations
type Backend interface {
	// List available audio devices
	ListDevices() ([]DeviceInfo, error)

	// Validate that a device is available; empty means the default device
	ValidateDevice(name string, input bool) error

	// Open a duplex stream for synchronized playback and capture
	OpenDuplex(params DuplexParams) (DuplexStream, error)

	// Get the backend type
	GetType() BackendType
}

// NewBackend creates the backend selected by name
func NewBackend(name string) (Backend, error) {
	switch determineBackend(name) {
	case BackendTypePortAudio:
		return NewPortAudioBackend(), nil
	case BackendTypePipeWire:
		if !pipeWireAvailable() {
			return nil, fmt.Errorf("pipewire backend requires pw-cat and pw-link in PATH")
		}
		return NewPipeWireBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported audio backend: %s", name)
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(name string) BackendType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "portaudio":
		// PortAudio opens a true duplex stream with a shared clock
		return BackendTypePortAudio
	case "pipewire":
		return BackendTypePipeWire
	}
	return BackendType(name)
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	backends := []BackendType{BackendTypePortAudio}
	if pipeWireAvailable() {
		backends = append(backends, BackendTypePipeWire)
	}
	return backends
}

// findDevice looks up a device by exact name, falling back to a
// case-insensitive substring match when exactly one device matches.
func findDevice(devices []DeviceInfo, name string) (DeviceInfo, error) {
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}

	var matches []DeviceInfo
	lower := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return DeviceInfo{}, fmt.Errorf("device not found: %s", name)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return DeviceInfo{}, fmt.Errorf("ambiguous device name '%s' matches %v", name, names)
	}
}
