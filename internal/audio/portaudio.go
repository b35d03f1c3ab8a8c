package audio

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend implements the Backend interface for PortAudio
type PortAudioBackend struct{}

// NewPortAudioBackend creates a new PortAudio backend
func NewPortAudioBackend() *PortAudioBackend {
	return &PortAudioBackend{}
}

// GetType returns the backend type
func (p *PortAudioBackend) GetType() BackendType {
	return BackendTypePortAudio
}

// ListDevices returns all devices known to PortAudio
func (p *PortAudioBackend) ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceErr("initialize", "", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, deviceErr("list", "", err)
	}

	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefaultInput:    defIn != nil && defIn.Index == d.Index,
			IsDefaultOutput:   defOut != nil && defOut.Index == d.Index,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		result = append(result, info)
	}

	return result, nil
}

// ValidateDevice checks that a named (or the default) device exists and has
// channels in the requested direction
func (p *PortAudioBackend) ValidateDevice(name string, input bool) error {
	if err := portaudio.Initialize(); err != nil {
		return deviceErr("initialize", name, err)
	}
	defer portaudio.Terminate()

	dev, err := lookupDevice(name, input)
	if err != nil {
		return err
	}

	if input && dev.MaxInputChannels < 1 {
		return deviceErr("validate", dev.Name, errors.New("device has no input channels"))
	}
	if !input && dev.MaxOutputChannels < 1 {
		return deviceErr("validate", dev.Name, errors.New("device has no output channels"))
	}

	return nil
}

// OpenDuplex opens a blocking duplex stream. The returned stream owns a
// PortAudio initialization reference released by Close.
func (p *PortAudioBackend) OpenDuplex(params DuplexParams) (DuplexStream, error) {
	if params.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be > 0, got %d", params.FramesPerBuffer)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceErr("initialize", "", err)
	}

	in, err := lookupDevice(params.InputDevice, true)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	out, err := lookupDevice(params.OutputDevice, false)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	sp := portaudio.HighLatencyParameters(in, out)
	sp.Input.Channels = params.InputChannels
	sp.Output.Channels = params.OutputChannels
	sp.SampleRate = params.SampleRate
	sp.FramesPerBuffer = params.FramesPerBuffer

	s := &portAudioStream{
		in:  make([]float32, params.FramesPerBuffer*params.InputChannels),
		out: make([]float32, params.FramesPerBuffer*params.OutputChannels),
	}

	stream, err := portaudio.OpenStream(sp, s.in, s.out)
	if err != nil {
		portaudio.Terminate()
		return nil, deviceErr("open", fmt.Sprintf("%s -> %s", out.Name, in.Name), err)
	}
	s.stream = stream

	slog.Debug("Opened duplex stream",
		"input", in.Name,
		"output", out.Name,
		"sample_rate", params.SampleRate,
		"frames_per_buffer", params.FramesPerBuffer)

	return s, nil
}

func lookupDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		var (
			dev *portaudio.DeviceInfo
			err error
		)
		if input {
			dev, err = portaudio.DefaultInputDevice()
		} else {
			dev, err = portaudio.DefaultOutputDevice()
		}
		if err != nil {
			return nil, deviceErr("lookup", "default", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, deviceErr("list", "", err)
	}

	infos := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = DeviceInfo{Name: d.Name}
	}
	found, err := findDevice(infos, name)
	if err != nil {
		return nil, deviceErr("lookup", name, err)
	}
	for _, d := range devices {
		if d.Name == found.Name {
			return d, nil
		}
	}
	return nil, deviceErr("lookup", name, errors.New("device disappeared"))
}

type portAudioStream struct {
	stream *portaudio.Stream
	in     []float32
	out    []float32
}

func (s *portAudioStream) Start() error {
	return s.stream.Start()
}

func (s *portAudioStream) Write(out []float32) error {
	copy(s.out, out)
	err := s.stream.Write()
	if errors.Is(err, portaudio.OutputUnderflowed) {
		slog.Debug("Output underflow during duplex write")
		return nil
	}
	return err
}

func (s *portAudioStream) Read(in []float32) error {
	err := s.stream.Read()
	if errors.Is(err, portaudio.InputOverflowed) {
		slog.Debug("Input overflow during duplex read")
		err = nil
	}
	copy(in, s.in)
	return err
}

func (s *portAudioStream) Stop() error {
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	err := s.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
