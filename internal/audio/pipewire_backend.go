package audio

import (
	"errors"
	"os/exec"
)

// PipeWireBackend implements Backend on top of the pw-link and pw-cat tools
type PipeWireBackend struct {
	pw     *PipeWire
	catBin string
}

// NewPipeWireBackend creates a backend driving the local PipeWire daemon
func NewPipeWireBackend() *PipeWireBackend {
	return &PipeWireBackend{pw: NewPipeWire(), catBin: "pw-cat"}
}

// pipeWireAvailable reports whether the PipeWire command line tools are installed
func pipeWireAvailable() bool {
	if _, err := exec.LookPath("pw-cat"); err != nil {
		return false
	}
	_, err := exec.LookPath("pw-link")
	return err == nil
}

// ListDevices returns PipeWire nodes that expose capture or playback ports
func (p *PipeWireBackend) ListDevices() ([]DeviceInfo, error) {
	devices, err := p.pw.Devices()
	if err != nil {
		return nil, deviceErr("list", "", err)
	}
	return devices, nil
}

// ValidateDevice accepts a node name or a single "node:port" name.
// Empty selects the default node chosen by the session manager.
func (p *PipeWireBackend) ValidateDevice(name string, input bool) error {
	_, err := p.resolveTarget(name, input)
	return err
}

// resolveTarget maps a configured device to the node pw-cat targets
func (p *PipeWireBackend) resolveTarget(name string, input bool) (string, error) {
	if name == "" {
		return "", nil
	}

	ports, err := p.pw.ListPorts(input)
	if err != nil {
		return "", deviceErr("list", name, err)
	}

	// Exact port names are checked for duplicate registrations
	if len(findPortDuplicatesInList(name, ports)) > 0 {
		if err := validatePortInList(name, ports); err != nil {
			return "", deviceErr("lookup", name, err)
		}
		return portNode(name), nil
	}

	var nodes []DeviceInfo
	for n := range groupNodes(ports) {
		nodes = append(nodes, DeviceInfo{Name: n})
	}
	found, err := findDevice(nodes, name)
	if err != nil {
		return "", deviceErr("lookup", name, err)
	}
	return found.Name, nil
}

// OpenDuplex starts a playback and a record pw-cat process sharing one
// sample rate and buffer size.
func (p *PipeWireBackend) OpenDuplex(params DuplexParams) (DuplexStream, error) {
	if params.InputChannels != 1 {
		return nil, deviceErr("open", params.InputDevice, errors.New("only mono capture is supported"))
	}

	inTarget, err := p.resolveTarget(params.InputDevice, true)
	if err != nil {
		return nil, err
	}
	outTarget, err := p.resolveTarget(params.OutputDevice, false)
	if err != nil {
		return nil, err
	}

	return newPWCatStream(p.catBin, params, inTarget, outTarget), nil
}

// GetType returns the backend type
func (p *PipeWireBackend) GetType() BackendType {
	return BackendTypePipeWire
}
