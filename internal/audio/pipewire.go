package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// PipeWire inspects the ports of the PipeWire graph through pw-link
type PipeWire struct {
	run func(args ...string) ([]byte, error)
}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{run: runPWLink}
}

func runPWLink(args ...string) ([]byte, error) {
	return exec.Command("pw-link", args...).Output()
}

// ListPorts returns the ports that can be captured from (output ports of
// microphones and monitors) or played to (input ports of sinks).
func (pw *PipeWire) ListPorts(capture bool) ([]string, error) {
	flag := "-i"
	if capture {
		flag = "-o"
	}

	output, err := pw.run(flag)
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePorts(string(output)), nil
}

// parsePorts extracts port names from pw-link listing output
func parsePorts(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Input ports:") || strings.HasPrefix(line, "Output ports:") {
			continue
		}
		ports = append(ports, line)
	}
	return ports
}

// portNode returns the node part of a "node:port" name
func portNode(port string) string {
	if i := strings.LastIndex(port, ":"); i > 0 {
		return port[:i]
	}
	return port
}

// groupNodes collapses ports into nodes, counting ports per node
func groupNodes(ports []string) map[string]int {
	nodes := make(map[string]int)
	for _, p := range ports {
		nodes[portNode(p)]++
	}
	return nodes
}

// validatePortInList checks that a port exists exactly once
func validatePortInList(portName string, ports []string) error {
	duplicates := findPortDuplicatesInList(portName, ports)
	if len(duplicates) == 0 {
		return fmt.Errorf("port not found: %s", portName)
	}
	if len(duplicates) > 1 {
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", portName, duplicates)
	}
	return nil
}

// findPortDuplicatesInList finds all ports with exactly the same name
func findPortDuplicatesInList(portName string, allPorts []string) []string {
	var duplicates []string
	for _, port := range allPorts {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	return duplicates
}

// Devices lists PipeWire nodes as devices. Capture ports count as input
// channels, playback ports as output channels.
func (pw *PipeWire) Devices() ([]DeviceInfo, error) {
	capture, err := pw.ListPorts(true)
	if err != nil {
		return nil, err
	}
	playback, err := pw.ListPorts(false)
	if err != nil {
		return nil, err
	}
	return nodeDevices(capture, playback), nil
}

func nodeDevices(capture, playback []string) []DeviceInfo {
	in := groupNodes(capture)
	out := groupNodes(playback)

	names := make([]string, 0, len(in)+len(out))
	for n := range in {
		names = append(names, n)
	}
	for n := range out {
		if _, ok := in[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	devices := make([]DeviceInfo, len(names))
	for i, n := range names {
		devices[i] = DeviceInfo{
			Name:              n,
			HostAPI:           string(BackendTypePipeWire),
			MaxInputChannels:  in[n],
			MaxOutputChannels: out[n],
		}
	}
	slog.Debug("PipeWire nodes", "capture", len(in), "playback", len(out))
	return devices
}
