package audio

import "fmt"

// DeviceError reports that the audio hardware was unavailable or a stream
// operation failed. It is fatal to a sweep.
type DeviceError struct {
	Op     string
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("audio device %s (%s): %v", e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func deviceErr(op, device string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Device: device, Err: err}
}
